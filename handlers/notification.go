package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfarer/middleware"
	"wayfarer/services"
)

type CustomNotificationRequest struct {
	Receiver string `json:"receiver"`
	Title    string `json:"title" binding:"required,max=200"`
	Message  string `json:"message" binding:"required,max=1000"`
	Image    string `json:"image" binding:"omitempty,url"`
	Type     string `json:"type" binding:"required"`
	Link     string `json:"link" binding:"max=500"`
	Admin    bool   `json:"admin"`
}

func (h *Handler) GetNotifications(c *gin.Context) {
	page, limit := paging(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Notifications.GetAll(ctx, currentUser(c), middleware.Role(c), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ViewNotifications(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Notifications.ViewAll(ctx, currentUser(c), middleware.Role(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewed": n})
}

func (h *Handler) ClearNotifications(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Notifications.Clear(ctx, currentUser(c), middleware.Role(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// SendNotification lets an administrator notify one user or the admin room.
func (h *Handler) SendNotification(c *gin.Context) {
	var req CustomNotificationRequest
	if !bind(c, &req) {
		return
	}
	receiver, err := parseOptionalID(req.Receiver)
	if err != nil {
		fail(c, err)
		return
	}
	sender := currentUser(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Notifications.AddCustom(ctx, services.NotificationInput{
		Sender:   &sender,
		Receiver: receiver,
		Title:    req.Title,
		Message:  req.Message,
		Image:    req.Image,
		Type:     req.Type,
		Link:     req.Link,
		Admin:    req.Admin,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}
