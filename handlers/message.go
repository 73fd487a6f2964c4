package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfarer/apperr"
	"wayfarer/models"
	"wayfarer/services"
)

// SendMessageRequest addresses a message by receiver for direct chats or by
// chatId for an existing chat.
type SendMessageRequest struct {
	Receiver string                `json:"receiver"`
	ChatID   string                `json:"chatId"`
	Content  models.MessageContent `json:"content" binding:"required"`
}

type TypingRequest struct {
	ChatID string `json:"chatId" binding:"required"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !bind(c, &req) {
		return
	}
	if req.Receiver == "" && req.ChatID == "" {
		fail(c, apperr.BadRequest("receiver or chatId is required"))
		return
	}
	chatID, err := parseOptionalID(req.ChatID)
	if err != nil {
		fail(c, err)
		return
	}
	receiver, err := parseOptionalID(req.Receiver)
	if err != nil {
		fail(c, err)
		return
	}

	in := services.SendInput{
		Sender:  currentUser(c),
		ChatID:  chatID,
		Content: req.Content,
	}
	if receiver != nil {
		in.Receiver = *receiver
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Messages.Send(ctx, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// DeleteMessage hides a message for the caller, or with ?for=everyone
// withdraws it from the whole chat.
func (h *Handler) DeleteMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var err error
	switch c.DefaultQuery("for", "me") {
	case "me":
		err = h.Messages.DeleteForMe(ctx, currentUser(c), id)
	case "everyone":
		err = h.Messages.DeleteForEveryone(ctx, currentUser(c), id)
	default:
		err = apperr.BadRequest("for must be me or everyone")
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}

func (h *Handler) Typing(c *gin.Context) {
	var req TypingRequest
	if !bind(c, &req) {
		return
	}
	chatID, err := parseOptionalID(req.ChatID)
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Messages.Typing(ctx, currentUser(c), *chatID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
