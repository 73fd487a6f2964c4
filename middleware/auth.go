package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"wayfarer/apperr"
	"wayfarer/models"
)

const (
	userIDKey = "userId"
	roleKey   = "role"
)

type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Auth issues and verifies HS256 tokens.
type Auth struct {
	secret []byte
	ttl    time.Duration
}

func NewAuth(secret string, ttl time.Duration) *Auth {
	return &Auth{secret: []byte(secret), ttl: ttl}
}

func (a *Auth) Issue(user primitive.ObjectID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.Hex(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates a raw token and returns its user and role.
func (a *Auth) ParseToken(raw string) (primitive.ObjectID, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return primitive.NilObjectID, "", err
	}
	if !token.Valid {
		return primitive.NilObjectID, "", fmt.Errorf("token is not valid")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, "", fmt.Errorf("token subject: %w", err)
	}
	return id, claims.Role, nil
}

// bearer reads the Authorization header, falling back to ?token=.
func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// Required rejects requests without a valid token.
func (a *Auth) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		// CORS preflight
		if c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}
		raw, ok := bearer(c)
		if !ok {
			_ = c.Error(apperr.Unauthorized("Authentication required"))
			c.Abort()
			return
		}
		user, role, err := a.ParseToken(raw)
		if err != nil {
			_ = c.Error(apperr.Unauthorized("Invalid token"))
			c.Abort()
			return
		}
		c.Set(userIDKey, user)
		c.Set(roleKey, role)
		c.Next()
	}
}

// Optional identifies the caller when a valid token is present and lets
// anonymous requests through.
func (a *Auth) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearer(c); ok {
			if user, role, err := a.ParseToken(raw); err == nil {
				c.Set(userIDKey, user)
				c.Set(roleKey, role)
			}
		}
		c.Next()
	}
}

// AdminOnly must run after Required.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Role(c) != models.RoleAdmin {
			_ = c.Error(apperr.Forbidden("Admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}

func Role(c *gin.Context) string {
	return c.GetString(roleKey)
}
