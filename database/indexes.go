package database

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"wayfarer/logger"
)

// IndexSpec is one index on one collection.
type IndexSpec struct {
	Collection string
	Model      mongo.IndexModel
}

// Indexes lists every index the service relies on. TTL indexes purge expired
// story media and unattached uploads; the partial unique index on
// notifications keeps at most one unviewed message notification per
// (receiver, sender).
func Indexes() []IndexSpec {
	return []IndexSpec{
		{Users, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{Users, mongo.IndexModel{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{Users, mongo.IndexModel{
			Keys: bson.D{{Key: "isBanned", Value: 1}, {Key: "banUntil", Value: 1}},
		}},
		{Posts, mongo.IndexModel{
			Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "type", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		{Posts, mongo.IndexModel{
			Keys: bson.D{{Key: "hashtags", Value: 1}},
		}},
		{Media, mongo.IndexModel{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		}},
		{Chats, mongo.IndexModel{
			Keys: bson.D{{Key: "participants", Value: 1}, {Key: "type", Value: 1}},
		}},
		{Chats, mongo.IndexModel{
			Keys: bson.D{{Key: "directKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"directKey": bson.M{"$exists": true}}),
		}},
		{Messages, mongo.IndexModel{
			Keys: bson.D{{Key: "chat", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		{Notifications, mongo.IndexModel{
			Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		{Notifications, mongo.IndexModel{
			Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "sender", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().
				SetName("unviewed_message_once").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"type": "message", "viewed": false}),
		}},
		{Stories, mongo.IndexModel{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		}},
		{Stories, mongo.IndexModel{
			Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		{StoryMedia, mongo.IndexModel{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		}},
		{StoryMedia, mongo.IndexModel{
			Keys: bson.D{{Key: "story", Value: 1}, {Key: "createdAt", Value: 1}},
		}},
		{Connections, mongo.IndexModel{
			Keys:    bson.D{{Key: "requester", Value: 1}, {Key: "recipient", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{Connections, mongo.IndexModel{
			Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "status", Value: 1}},
		}},
		{Followers, mongo.IndexModel{
			Keys:    bson.D{{Key: "follower", Value: 1}, {Key: "following", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{BlockedUsers, mongo.IndexModel{
			Keys:    bson.D{{Key: "blocker", Value: 1}, {Key: "blocked", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{Invites, mongo.IndexModel{
			Keys: bson.D{{Key: "kind", Value: 1}, {Key: "target", Value: 1}, {Key: "invitee", Value: 1}},
			Options: options.Index().
				SetName("pending_invite_once").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "pending"}),
		}},
		{PushSubscriptions, mongo.IndexModel{
			Keys:    bson.D{{Key: "endpoint", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
}

// EnsureIndexes creates every index in Indexes. Creating an index that
// already exists with the same options is a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, spec := range Indexes() {
		name, err := db.Collection(spec.Collection).Indexes().CreateOne(ctx, spec.Model)
		if err != nil {
			return errors.Wrapf(err, "create index on %s", spec.Collection)
		}
		logger.Debug("index ready", zap.String("collection", spec.Collection), zap.String("index", name))
	}
	return nil
}
