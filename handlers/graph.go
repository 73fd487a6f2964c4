package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetConnections(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.Graph.Connections(ctx, currentUser(c), c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) RequestConnection(c *gin.Context) {
	other, ok := pathID(c, "userId")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	conn, err := h.Graph.Connect(ctx, currentUser(c), other)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conn)
}

func (h *Handler) AcceptConnection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	conn, err := h.Graph.Accept(ctx, currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

func (h *Handler) RemoveConnection(c *gin.Context) {
	other, ok := pathID(c, "userId")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Graph.RemoveConnection(ctx, currentUser(c), other); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Connection removed"})
}

func (h *Handler) Follow(c *gin.Context) {
	other, ok := pathID(c, "userId")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Graph.Follow(ctx, currentUser(c), other); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Followed"})
}

func (h *Handler) Unfollow(c *gin.Context) {
	other, ok := pathID(c, "userId")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Graph.Unfollow(ctx, currentUser(c), other); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unfollowed"})
}

func (h *Handler) Block(c *gin.Context) {
	other, ok := pathID(c, "userId")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Graph.Block(ctx, currentUser(c), other); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User blocked"})
}

func (h *Handler) Unblock(c *gin.Context) {
	other, ok := pathID(c, "userId")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Graph.Unblock(ctx, currentUser(c), other); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User unblocked"})
}
