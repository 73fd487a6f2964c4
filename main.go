package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wayfarer/config"
	"wayfarer/database"
	"wayfarer/handlers"
	"wayfarer/logger"
	"wayfarer/middleware"
	"wayfarer/presence"
	"wayfarer/push"
	"wayfarer/realtime"
	"wayfarer/repository"
	"wayfarer/routes"
	"wayfarer/scheduler"
	"wayfarer/services"
)

const (
	tokenTTL        = 24 * time.Hour
	presenceTTL     = 90 * time.Second
	limiterSweep    = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(false)
		logger.Log.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Init(cfg.IsProduction())
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := database.Disconnect(); err != nil {
			logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		cancel()
		logger.Log.Fatal("failed to create indexes", zap.Error(err))
	}
	cancel()

	repos := repository.New(db, cfg.MongoTransactions)

	// Presence
	var tracker presence.Tracker = presence.NewMemory()
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rp, err := presence.NewRedis(ctx, presence.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, presenceTTL)
		cancel()
		if err != nil {
			logger.Log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer rp.Close()
		tracker = rp
		logger.Info("presence stored in redis", zap.String("addr", cfg.RedisAddr))
	}
	tracked := presence.NewMirrored(tracker, repos.Users)

	// Realtime
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := realtime.NewManager()
	go hub.Start(hubCtx)

	var publisher services.Publisher = hub
	if cfg.NatsURL != "" {
		bridge, err := realtime.NewNATSBridge(cfg.NatsURL, hub)
		if err != nil {
			logger.Log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		if err := bridge.Start(); err != nil {
			logger.Log.Fatal("failed to start realtime bridge", zap.Error(err))
		}
		defer bridge.Close()
		publisher = bridge
	}

	sender := push.NewSender(repos.Push, push.Config{
		PublicKey:  cfg.VapidPublicKey,
		PrivateKey: cfg.VapidPrivateKey,
		Subscriber: cfg.VapidSubscriber,
	})
	if !sender.Enabled() {
		logger.Warn("VAPID keys not set, web push disabled (run cmd/vapidgen)")
	}

	// Services
	notifications := services.NewNotificationService(repos.Notifications, publisher, tracked, sender)
	feed := services.NewFeedService(repos.Posts, repos.Graph)
	auth := middleware.NewAuth(cfg.JWTSecret, tokenTTL)

	h := handlers.New(handlers.Deps{
		Accounts:      repos.Users,
		Tokens:        auth,
		Feed:          feed,
		Posts:         services.NewPostService(repos.Posts, repos.Media, repos.Users, feed, notifications),
		Chats:         services.NewChatService(repos.Chats, repos.Users, publisher),
		Notifications: notifications,
		Messages: services.NewMessageService(services.MessageDeps{
			Users:         repos.Users,
			Graph:         repos.Graph,
			Chats:         repos.Chats,
			Messages:      repos.Messages,
			Notifications: notifications,
			Publisher:     publisher,
			Presence:      tracked,
			Tx:            repos.Tx,
		}),
		Stories:  services.NewStoryService(repos.Stories, repos.Graph, repos.Users, notifications, repos.Tx, cfg.StoryTTL),
		Graph:    services.NewGraphService(repos.Graph, repos.Users, notifications, repos.Tx),
		Invites:  services.NewInviteService(repos.Invites, repos.Users, repos.Graph, notifications, repos.Tx),
		Push:     sender,
		Presence: tracked,
	})

	// Scheduled jobs
	jobs := scheduler.New()
	if err := jobs.AddBanSweep(cfg.BanSweepSchedule, scheduler.NewBanExpiryJob(repos.Users)); err != nil {
		logger.Log.Fatal("failed to schedule ban sweep", zap.Error(err))
	}
	jobs.Start()

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	go func() {
		ticker := time.NewTicker(limiterSweep)
		defer ticker.Stop()
		for {
			select {
			case <-hubCtx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	}()

	router := routes.SetupRouter(routes.Options{
		Handler: h,
		Auth:    auth,
		Limiter: limiter,
		WebSocket: realtime.WebSocketHandler(hub, realtime.HandlerConfig{
			Auth:        auth.ParseToken,
			Presence:    tracked,
			Inbound:     h.Inbound(),
			CheckOrigin: allowedOrigin(cfg.CORSOrigins),
		}),
		CORSOrigins: cfg.CORSOrigins,
		Production:  cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	jobs.Stop(shutdownCtx)
	stopHub()

	logger.Info("server stopped")
}

// allowedOrigin applies the CORS allow list to websocket upgrades. Clients
// that send no Origin header are not browsers and are let through.
func allowedOrigin(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
