package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfarer/services"
)

type GroupChatRequest struct {
	Name             string   `json:"name" binding:"required,max=100"`
	Members          []string `json:"members" binding:"required,min=1,max=256"`
	CanMembersAdd    bool     `json:"canMembersAdd"`
	CanMembersRemove bool     `json:"canMembersRemove"`
}

type MembersRequest struct {
	Members []string `json:"members" binding:"required,min=1,max=256"`
}

func (h *Handler) GetChatList(c *gin.Context) {
	page, limit := paging(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	chats, err := h.Chats.List(ctx, currentUser(c), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (h *Handler) GetChat(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	chat, err := h.Chats.Get(ctx, currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *Handler) CreateGroupChat(c *gin.Context) {
	var req GroupChatRequest
	if !bind(c, &req) {
		return
	}
	members, err := parseIDs(req.Members)
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	chat, err := h.Chats.CreateGroup(ctx, currentUser(c), services.GroupChatInput{
		Name:             req.Name,
		Members:          members,
		CanMembersAdd:    req.CanMembersAdd,
		CanMembersRemove: req.CanMembersRemove,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *Handler) AddChatMembers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req MembersRequest
	if !bind(c, &req) {
		return
	}
	members, err := parseIDs(req.Members)
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	chat, err := h.Chats.AddMembers(ctx, currentUser(c), id, members)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *Handler) RemoveChatMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	member, ok := pathID(c, "userId")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Chats.RemoveMember(ctx, currentUser(c), id, member); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

func (h *Handler) DeleteChat(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Chats.Delete(ctx, currentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted"})
}

func (h *Handler) GetMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, limit := paging(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	messages, err := h.Messages.List(ctx, currentUser(c), id, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *Handler) MarkChatSeen(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Messages.MarkChatSeen(ctx, currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seen": n})
}
