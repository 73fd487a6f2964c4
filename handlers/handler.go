// Package handlers serves the REST API under /api: signup and login, the
// feed and posts with comments, reactions and shares, direct and group
// chats and their messages, notifications, stories, connections with
// follows and blocks, group and event invites, and web push subscriptions.
// The feed, single posts and public profiles also answer anonymous callers.
// Errors come back as JSON with an HTTP status and a message.
package handlers

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"wayfarer/apperr"
	"wayfarer/middleware"
	"wayfarer/models"
	"wayfarer/push"
	"wayfarer/services"
)

const requestTimeout = 10 * time.Second

type Accounts interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

type TokenIssuer interface {
	Issue(user primitive.ObjectID, role string) (string, error)
}

type MessageBoxTracker interface {
	SetMessageBox(ctx context.Context, user primitive.ObjectID, open bool) error
}

type Deps struct {
	Accounts      Accounts
	Tokens        TokenIssuer
	Feed          *services.FeedService
	Posts         *services.PostService
	Chats         *services.ChatService
	Messages      *services.MessageService
	Notifications *services.NotificationService
	Stories       *services.StoryService
	Graph         *services.GraphService
	Invites       *services.InviteService
	Push          *push.Sender
	Presence      MessageBoxTracker
}

type Handler struct {
	Deps
}

func New(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

// bind decodes the JSON body. An empty body is validated as an empty object.
// Validation failures keep their field list; anything else is a malformed body.
func bind(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(obj)
	}
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fail(c, err)
	} else {
		fail(c, apperr.BadRequest("Invalid request body"))
	}
	return false
}

// currentUser is only called behind middleware.Auth.Required.
func currentUser(c *gin.Context) primitive.ObjectID {
	id, _ := middleware.UserID(c)
	return id
}

func viewer(c *gin.Context) *primitive.ObjectID {
	if id, ok := middleware.UserID(c); ok {
		return &id
	}
	return nil
}

func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		fail(c, apperr.BadRequest("Invalid "+name))
		return primitive.NilObjectID, false
	}
	return id, true
}

func parseIDs(raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, r := range raw {
		id, err := primitive.ObjectIDFromHex(r)
		if err != nil {
			return nil, apperr.BadRequest("Invalid id: " + r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalID(raw string) (*primitive.ObjectID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, apperr.BadRequest("Invalid id: " + raw)
	}
	return &id, nil
}

// paging reads ?page= and ?limit=. Zero leaves the service default in place.
func paging(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return page, limit
}
