package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wayfarer/models"
	"wayfarer/services"
)

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=2000"`
}

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required,max=200"`
	Description string    `json:"description" binding:"max=2000"`
	Location    string    `json:"location" binding:"max=300"`
	StartsAt    time.Time `json:"startsAt" binding:"required"`
}

type InviteRequest struct {
	Invitee string `json:"invitee" binding:"required"`
}

type RespondRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	group, err := h.Invites.CreateGroup(ctx, currentUser(c), services.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	event, err := h.Invites.CreateEvent(ctx, currentUser(c), services.CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *Handler) InviteToGroup(c *gin.Context) {
	h.invite(c, models.InviteGroup)
}

func (h *Handler) InviteToEvent(c *gin.Context) {
	h.invite(c, models.InviteEvent)
}

func (h *Handler) invite(c *gin.Context, kind string) {
	target, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req InviteRequest
	if !bind(c, &req) {
		return
	}
	invitee, err := parseOptionalID(req.Invitee)
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	inv, err := h.Invites.Invite(ctx, currentUser(c), kind, target, *invitee)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetPendingInvites(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.Invites.Pending(ctx, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) RespondToInvite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req RespondRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	inv, err := h.Invites.Respond(ctx, currentUser(c), id, *req.Accept)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
