package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"wayfarer/handlers"
	"wayfarer/middleware"
)

type Options struct {
	Handler     *handlers.Handler
	Auth        *middleware.Auth
	Limiter     *middleware.IPRateLimiter
	WebSocket   http.HandlerFunc
	CORSOrigins []string
	Production  bool
}

func SetupRouter(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler(opts.Production))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})
	if opts.WebSocket != nil {
		router.GET("/ws", gin.WrapF(opts.WebSocket))
	}

	h := opts.Handler
	api := router.Group("/api")
	if opts.Limiter != nil {
		api.Use(middleware.RateLimit(opts.Limiter))
	}

	// Public
	api.POST("/signup", h.Signup)
	api.POST("/login", h.Login)
	api.GET("/vapid-public-key", h.GetVapidPublicKey)

	// Readable without an account
	open := api.Group("", opts.Auth.Optional())
	open.GET("/feed", h.GetFeed)
	open.GET("/posts/:id", h.GetPost)
	open.GET("/users/:id", h.GetUser)

	protected := api.Group("", opts.Auth.Required())

	protected.GET("/me", h.GetMyProfile)

	// Posts
	protected.POST("/media", h.RegisterMedia)
	protected.POST("/posts", h.CreatePost)
	protected.DELETE("/posts/:id", h.DeletePost)
	protected.POST("/posts/:id/reactions", h.ReactToPost)
	protected.POST("/posts/:id/comments", h.CommentOnPost)
	protected.POST("/posts/:id/comments/:commentId/reactions", h.ReactToComment)
	protected.POST("/posts/:id/share", h.SharePost)

	// Chats
	protected.GET("/chats", h.GetChatList)
	protected.POST("/chats", h.CreateGroupChat)
	protected.GET("/chats/:id", h.GetChat)
	protected.DELETE("/chats/:id", h.DeleteChat)
	protected.GET("/chats/:id/messages", h.GetMessages)
	protected.POST("/chats/:id/seen", h.MarkChatSeen)
	protected.POST("/chats/:id/members", h.AddChatMembers)
	protected.DELETE("/chats/:id/members/:userId", h.RemoveChatMember)

	// Messages
	protected.POST("/messages", h.SendMessage)
	protected.DELETE("/messages/:id", h.DeleteMessage)
	protected.POST("/typing", h.Typing)

	// Notifications
	protected.GET("/notifications", h.GetNotifications)
	protected.PUT("/notifications/view", h.ViewNotifications)
	protected.DELETE("/notifications", h.ClearNotifications)
	protected.POST("/notifications", middleware.AdminOnly(), h.SendNotification)

	// Stories
	protected.POST("/stories", h.CreateStory)
	protected.GET("/stories", h.GetStories)
	protected.GET("/stories/:id", h.GetStory)
	protected.GET("/stories/media/:id", h.GetStoryMedia)
	protected.POST("/stories/media/:id/view", h.ViewStoryMedia)
	protected.POST("/stories/media/:id/reactions", h.ReactToStoryMedia)
	protected.GET("/stories/media/:id/viewers", h.GetStoryViewers)
	protected.DELETE("/stories/media/:id", h.DeleteStoryMedia)

	// Social graph
	protected.GET("/connections", h.GetConnections)
	protected.POST("/connections/:userId", h.RequestConnection)
	protected.PUT("/connections/requests/:id/accept", h.AcceptConnection)
	protected.DELETE("/connections/:userId", h.RemoveConnection)
	protected.POST("/follow/:userId", h.Follow)
	protected.DELETE("/follow/:userId", h.Unfollow)
	protected.POST("/block/:userId", h.Block)
	protected.DELETE("/block/:userId", h.Unblock)

	// Groups, events and invites
	protected.POST("/groups", h.CreateGroup)
	protected.POST("/groups/:id/invites", h.InviteToGroup)
	protected.POST("/events", h.CreateEvent)
	protected.POST("/events/:id/invites", h.InviteToEvent)
	protected.GET("/invites", h.GetPendingInvites)
	protected.POST("/invites/:id/respond", h.RespondToInvite)

	// Push subscriptions
	protected.POST("/subscribe", h.SubscribePush)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "NOT_FOUND",
				"message": "Endpoint not found",
				"path":    c.Request.URL.Path,
			})
			return
		}
		c.Status(http.StatusNotFound)
	})

	return router
}
