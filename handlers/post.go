package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfarer/services"
)

type CreatePostRequest struct {
	Type     string   `json:"type" binding:"omitempty,oneof=user group event"`
	Source   string   `json:"source"`
	Content  string   `json:"content" binding:"max=5000"`
	Media    []string `json:"media" binding:"max=10"`
	Hashtags []string `json:"hashtags" binding:"max=30"`
	Privacy  string   `json:"privacy" binding:"omitempty,oneof=public friends private"`
}

type ReactionRequest struct {
	Type string `json:"type" binding:"required,max=20"`
}

type CommentRequest struct {
	Text     string   `json:"text" binding:"required,max=2000"`
	Mentions []string `json:"mentions"`
}

type ShareRequest struct {
	Content string `json:"content" binding:"max=5000"`
	Privacy string `json:"privacy" binding:"omitempty,oneof=public friends private"`
}

type MediaRequest struct {
	URL  string `json:"url" binding:"required,url"`
	Type string `json:"type" binding:"required,oneof=image video"`
}

// GetFeed serves anonymous and signed-in readers alike.
func (h *Handler) GetFeed(c *gin.Context) {
	page, limit := paging(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	feed, err := h.Feed.Feed(ctx, services.FeedQuery{
		Viewer:    viewer(c),
		MediaType: c.Query("mediaType"),
		Hashtag:   c.Query("hashtag"),
		PostType:  c.Query("type"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

func (h *Handler) RegisterMedia(c *gin.Context) {
	var req MediaRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	media, err := h.Posts.RegisterMedia(ctx, currentUser(c), req.URL, req.Type)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, media)
}

func (h *Handler) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if !bind(c, &req) {
		return
	}
	source, err := parseOptionalID(req.Source)
	if err != nil {
		fail(c, err)
		return
	}
	media, err := parseIDs(req.Media)
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.Posts.Create(ctx, currentUser(c), services.CreatePostInput{
		Type:     req.Type,
		Source:   source,
		Content:  req.Content,
		Media:    media,
		Hashtags: req.Hashtags,
		Privacy:  req.Privacy,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) GetPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.Posts.Get(ctx, viewer(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) ReactToPost(c *gin.Context) {
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

	outcome, err := h.Posts.React(ctx, currentUser(c), id, req.Type)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaction": outcome.String()})
}

func (h *Handler) CommentOnPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if !bind(c, &req) {
		return
	}
	mentions, err := parseIDs(req.Mentions)
	if err != nil {
		fail(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	comment, err := h.Posts.Comment(ctx, currentUser(c), id, req.Text, mentions)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) ReactToComment(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}
	commentID, ok := pathID(c, "commentId")
	if !ok {
		return
	}
	var req ReactionRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	outcome, err := h.Posts.ReactToComment(ctx, currentUser(c), postID, commentID, req.Type)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaction": outcome.String()})
}

func (h *Handler) SharePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ShareRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.Posts.Share(ctx, currentUser(c), id, req.Content, req.Privacy)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Posts.Delete(ctx, currentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}
