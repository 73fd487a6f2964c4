package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wayfarer/database"
	"wayfarer/models"
)

type ChatRepo struct {
	coll *mongo.Collection
}

func NewChatRepo(db *mongo.Database) *ChatRepo {
	return &ChatRepo{coll: db.Collection(database.Chats)}
}

func (r *ChatRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	return findOne[models.Chat](ctx, r.coll, bson.M{"_id": id})
}

// FindDirect looks the single chat up by its direct key, which the unique
// index keeps to one live document per pair.
func (r *ChatRepo) FindDirect(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error) {
	return findOne[models.Chat](ctx, r.coll, bson.M{"directKey": models.DirectKey(a, b), "isDeleted": false})
}

func (r *ChatRepo) ListForUser(ctx context.Context, user primitive.ObjectID, skip, limit int64) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}, {Key: "updatedAt", Value: -1}})
	return findAll[models.Chat](ctx, r.coll, bson.M{"participants": user, "isDeleted": false}, page(opts, skip, limit))
}

func (r *ChatRepo) Insert(ctx context.Context, c *models.Chat) error {
	res, err := r.coll.InsertOne(ctx, c)
	if err != nil {
		return err
	}
	c.ID = insertedID(res)
	return nil
}

func (r *ChatRepo) SetLastMessage(ctx context.Context, chatID, messageID primitive.ObjectID, at time.Time) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": chatID}, bson.M{"$set": bson.M{
		"lastMessage":   messageID,
		"lastMessageAt": at,
		"updatedAt":     at,
	}})
}

func (r *ChatRepo) AddParticipants(ctx context.Context, chatID primitive.ObjectID, ids []primitive.ObjectID) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": chatID}, bson.M{
		"$addToSet": bson.M{"participants": bson.M{"$each": ids}},
		"$set":      bson.M{"updatedAt": stamp()},
	})
}

func (r *ChatRepo) RemoveParticipant(ctx context.Context, chatID, user primitive.ObjectID) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": chatID}, bson.M{
		"$pull": bson.M{"participants": user},
		"$set":  bson.M{"updatedAt": stamp()},
	})
}

// SoftDelete hides the chat and releases its direct key so the pair can
// start a new chat.
func (r *ChatRepo) SoftDelete(ctx context.Context, chatID primitive.ObjectID) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": chatID}, bson.M{
		"$set":   bson.M{"isDeleted": true, "updatedAt": stamp()},
		"$unset": bson.M{"directKey": ""},
	})
}

type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection(database.Messages)}
}

func (r *MessageRepo) Insert(ctx context.Context, m *models.Message) error {
	res, err := r.coll.InsertOne(ctx, m)
	if err != nil {
		return err
	}
	m.ID = insertedID(res)
	return nil
}

func (r *MessageRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	return findOne[models.Message](ctx, r.coll, bson.M{"_id": id})
}

// ListByChat pages newest first and skips messages viewer deleted for themselves.
func (r *MessageRepo) ListByChat(ctx context.Context, chatID, viewer primitive.ObjectID, skip, limit int64) ([]models.Message, error) {
	return findAll[models.Message](ctx, r.coll,
		bson.M{"chat": chatID, "deletedFor": bson.M{"$ne": viewer}},
		page(newest(), skip, limit),
	)
}

func (r *MessageRepo) MarkSeen(ctx context.Context, id, user primitive.ObjectID) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{"seenBy": user}})
}

func (r *MessageRepo) MarkChatSeen(ctx context.Context, chatID, reader primitive.ObjectID) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"chat": chatID, "sender": bson.M{"$ne": reader}, "seenBy": bson.M{"$ne": reader}},
		bson.M{"$addToSet": bson.M{"seenBy": reader}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MessageRepo) DeleteFor(ctx context.Context, id, user primitive.ObjectID) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{"deletedFor": user}})
}

// SoftDelete keeps the message as a tombstone with its content cleared.
func (r *MessageRepo) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"isDeleted": true,
		"content":   models.MessageContent{Type: models.ContentText},
	}})
}
