package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"wayfarer/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(auth *Auth, production bool) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(production))
	r.GET("/private", auth.Required(), func(c *gin.Context) {
		id, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"user": id.Hex(), "role": Role(c)})
	})
	r.GET("/public", auth.Optional(), func(c *gin.Context) {
		_, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.Wrap(errors.New("socket closed"), "load feed"))
	})
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperr.NotFound("Post not found"))
	})
	return r
}

func do(r http.Handler, path, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	body := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRequiredAuth(t *testing.T) {
	auth := NewAuth("secret", time.Hour)
	r := newRouter(auth, true)
	user := primitive.NewObjectID()

	token, err := auth.Issue(user, "admin")
	require.NoError(t, err)

	w, body := do(r, "/private", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.Hex(), body["user"])
	assert.Equal(t, "admin", body["role"])

	w, body = do(r, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	other, err := NewAuth("other", time.Hour).Issue(user, "user")
	require.NoError(t, err)
	w, _ = do(r, "/private", other)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := NewAuth("secret", -time.Minute).Issue(user, "user")
	require.NoError(t, err)
	w, _ = do(r, "/private", expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(r, "/private?token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOptionalAuth(t *testing.T) {
	auth := NewAuth("secret", time.Hour)
	r := newRouter(auth, true)
	token, err := auth.Issue(primitive.NewObjectID(), "user")
	require.NoError(t, err)

	_, body := do(r, "/public", "")
	assert.Equal(t, false, body["authenticated"])

	_, body = do(r, "/public", token)
	assert.Equal(t, true, body["authenticated"])

	_, body = do(r, "/public", "garbage")
	assert.Equal(t, false, body["authenticated"])
}

func TestErrorHandlerStackOutsideProduction(t *testing.T) {
	auth := NewAuth("secret", time.Hour)

	w, body := do(newRouter(auth, false), "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Something went wrong", body["message"])
	assert.Contains(t, body["stack"], "socket closed")
	assert.Contains(t, body["stack"], "load feed")

	w, body = do(newRouter(auth, true), "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, body, "stack")

	w, body = do(newRouter(auth, true), "/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Post not found", body["message"])
}

func TestRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(2, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("1.1.1.1"))

	now = now.Add(2 * time.Minute)
	rl.Sweep()
	assert.Empty(t, rl.requests)

	r := gin.New()
	r.Use(ErrorHandler(true), RateLimit(NewIPRateLimiter(1, time.Minute)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w, _ := do(r, "/", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, body := do(r, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "TOO_MANY_REQUESTS", body["code"])
}

func TestAdminOnly(t *testing.T) {
	auth := NewAuth("secret", time.Hour)
	r := gin.New()
	r.Use(ErrorHandler(true))
	r.GET("/admin", auth.Required(), AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	admin, err := auth.Issue(primitive.NewObjectID(), "admin")
	require.NoError(t, err)
	user, err := auth.Issue(primitive.NewObjectID(), "user")
	require.NoError(t, err)

	w, _ := do(r, "/admin", admin)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, body := do(r, "/admin", user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])
}
