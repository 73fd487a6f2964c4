package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"

	"wayfarer/apperr"
	"wayfarer/models"
)

const fallbackAvatar = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

// PublicProfile is what other users see.
type PublicProfile struct {
	models.UserSummary
	Bio      string    `json:"bio"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

func publicProfile(u *models.User) PublicProfile {
	avatar := u.Avatar
	if avatar == "" {
		avatar = fallbackAvatar
	}
	return PublicProfile{
		UserSummary: models.UserSummary{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: avatar},
		Bio:         u.Bio,
		IsOnline:    u.IsOnline,
		LastSeen:    u.LastSeen,
	}
}

func (h *Handler) GetMyProfile(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.Accounts.FindByID(ctx, currentUser(c))
	if errors.Is(err, mongo.ErrNoDocuments) {
		fail(c, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		fail(c, errors.Wrap(err, "load profile"))
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.Accounts.FindByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && !user.Active()) {
		fail(c, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		fail(c, errors.Wrap(err, "load user"))
		return
	}
	c.JSON(http.StatusOK, publicProfile(user))
}
