package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"wayfarer/logger"
)

const (
	Users             = "users"
	Posts             = "posts"
	Media             = "media"
	Chats             = "chats"
	Messages          = "messages"
	Notifications     = "notifications"
	Stories           = "stories"
	StoryMedia        = "story_media"
	Connections       = "connections"
	Followers         = "followers"
	BlockedUsers      = "blocked_users"
	Groups            = "groups"
	Events            = "events"
	Invites           = "invites"
	PushSubscriptions = "push_subscriptions"
)

const connectAttempts = 3

var Client *mongo.Client

// Connect dials MongoDB, retrying a few times before giving up, and returns
// the named database.
func Connect(uri, name string) (*mongo.Database, error) {
	var lastErr error
	for i := 1; i <= connectAttempts; i++ {
		db, err := connectOnce(uri, name)
		if err == nil {
			logger.Info("connected to MongoDB", zap.String("db", name))
			return db, nil
		}
		lastErr = err
		logger.Warn("MongoDB connection attempt failed", zap.Int("attempt", i), zap.Error(err))
		if i < connectAttempts {
			time.Sleep(2 * time.Second)
		}
	}
	return nil, errors.Wrapf(lastErr, "connect to MongoDB after %d attempts", connectAttempts)
}

func connectOnce(uri, name string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	Client = client
	return client.Database(name), nil
}

func Disconnect() error {
	if Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := Client.Disconnect(ctx); err != nil {
		return err
	}

	logger.Info("disconnected from MongoDB")
	return nil
}
