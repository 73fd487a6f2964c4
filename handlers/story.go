package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfarer/services"
)

type StoryMediaRequest struct {
	URL  string `json:"url" binding:"required,url"`
	Type string `json:"type" binding:"required,oneof=image video"`
}

type CreateStoryRequest struct {
	Privacy string              `json:"privacy"`
	Media   []StoryMediaRequest `json:"media" binding:"required,min=1,dive"`
}

func (h *Handler) CreateStory(c *gin.Context) {
	var req CreateStoryRequest
	if !bind(c, &req) {
		return
	}
	in := services.CreateStoryInput{Privacy: req.Privacy}
	for _, m := range req.Media {
		in.Media = append(in.Media, services.StoryMediaInput{URL: m.URL, Type: m.Type})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	story, err := h.Stories.Create(ctx, currentUser(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (h *Handler) GetStories(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	stories, err := h.Stories.ListVisible(ctx, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stories)
}

func (h *Handler) GetStory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	story, err := h.Stories.GetStory(ctx, currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *Handler) GetStoryMedia(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	media, err := h.Stories.GetStoryMedia(ctx, currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, media)
}

func (h *Handler) ViewStoryMedia(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	recorded, err := h.Stories.View(ctx, currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": recorded})
}

func (h *Handler) ReactToStoryMedia(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ReactionRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	outcome, err := h.Stories.React(ctx, currentUser(c), id, req.Type)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaction": outcome.String()})
}

func (h *Handler) GetStoryViewers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	viewers, err := h.Stories.Viewers(ctx, currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewers)
}

func (h *Handler) DeleteStoryMedia(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Stories.DeleteMedia(ctx, currentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Story media deleted"})
}
