package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfarer/apperr"
	"wayfarer/models"
)

type SubscribeRequest struct {
	Endpoint string          `json:"endpoint" binding:"required,url"`
	Keys     models.PushKeys `json:"keys" binding:"required"`
}

func (h *Handler) GetVapidPublicKey(c *gin.Context) {
	if !h.Push.Enabled() {
		fail(c, apperr.NotFound("Web push is not configured"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.Push.PublicKey()})
}

// SubscribePush stores a browser subscription. The endpoint is the key, so a
// browser that re-subscribes replaces its previous keys.
func (h *Handler) SubscribePush(c *gin.Context) {
	var req SubscribeRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user := currentUser(c)
	sub := &models.PushSubscription{User: user, Endpoint: req.Endpoint, Keys: req.Keys}
	if err := h.Push.Subscribe(ctx, sub); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Push subscription saved successfully",
		"userId":  user.Hex(),
	})
}
