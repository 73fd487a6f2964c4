package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"wayfarer/apperr"
	"wayfarer/models"
)

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required,max=80"`
	Username string `json:"username" binding:"omitempty,alphanum,min=3,max=30"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	_, err := h.Accounts.FindByEmail(ctx, req.Email)
	if err == nil {
		fail(c, apperr.Conflict("Email already in use"))
		return
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		fail(c, errors.Wrap(err, "look up email"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, errors.Wrap(err, "hash password"))
		return
	}
	hash := string(hashed)

	username := strings.ToLower(req.Username)
	if username == "" {
		username = "user_" + primitive.NewObjectID().Hex()[:8]
	}

	now := time.Now().UTC()
	user := models.User{
		Email:        req.Email,
		PasswordHash: &hash,
		Role:         models.RoleUser,
		Username:     username,
		Name:         strings.TrimSpace(req.Name),
		LastSeen:     now,
		CreatedAt:    now,
	}
	if err := h.Accounts.Create(ctx, &user); err != nil {
		fail(c, errors.Wrap(err, "create user"))
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Role)
	if err != nil {
		fail(c, errors.Wrap(err, "issue token"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"token":   token,
		"userId":  user.ID.Hex(),
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.Accounts.FindByEmail(ctx, req.Email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		fail(c, apperr.Unauthorized("Invalid email or password"))
		return
	}
	if err != nil {
		fail(c, errors.Wrap(err, "look up email"))
		return
	}

	if user.PasswordHash == nil ||
		bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
		fail(c, apperr.Unauthorized("Invalid email or password"))
		return
	}
	if !user.Active() {
		fail(c, apperr.Forbidden("This account is disabled"))
		return
	}
	if user.IsBanned && !user.BanExpired(time.Now()) {
		fail(c, apperr.Forbidden("This account is banned"))
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Role)
	if err != nil {
		fail(c, errors.Wrap(err, "issue token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"userId":  user.ID.Hex(),
		"role":    user.Role,
	})
}
