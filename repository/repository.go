// Package repository implements the service stores on MongoDB.
package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wayfarer/models"
)

// Repositories bundles every store over one database.
type Repositories struct {
	Users         *UserRepo
	Graph         *GraphRepo
	Posts         *PostRepo
	Media         *MediaRepo
	Chats         *ChatRepo
	Messages      *MessageRepo
	Notifications *NotificationRepo
	Stories       *StoryRepo
	Invites       *InviteRepo
	Push          *PushRepo
	Tx            *TxRunner
}

func New(db *mongo.Database, transactions bool) *Repositories {
	return &Repositories{
		Users:         NewUserRepo(db),
		Graph:         NewGraphRepo(db),
		Posts:         NewPostRepo(db),
		Media:         NewMediaRepo(db),
		Chats:         NewChatRepo(db),
		Messages:      NewMessageRepo(db),
		Notifications: NewNotificationRepo(db),
		Stories:       NewStoryRepo(db),
		Invites:       NewInviteRepo(db),
		Push:          NewPushRepo(db),
		Tx:            NewTxRunner(db.Client(), transactions),
	}
}

// TxRunner runs a function inside a MongoDB transaction. Transactions need a
// replica set; with enabled=false the function runs directly.
type TxRunner struct {
	client  *mongo.Client
	enabled bool
}

func NewTxRunner(client *mongo.Client, enabled bool) *TxRunner {
	return &TxRunner{client: client, enabled: enabled}
}

func (t *TxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.enabled {
		return fn(ctx)
	}
	sess, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func insertedID(res *mongo.InsertOneResult) primitive.ObjectID {
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOneOptions) (*T, error) {
	var v T
	if err := coll.FindOne(ctx, filter, opts...).Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// updateMatched reports mongo.ErrNoDocuments when filter matched nothing.
func updateMatched(ctx context.Context, coll *mongo.Collection, filter, update interface{}) error {
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// guardedUpdate is one conditional write of an upsert-into-array pair.
type guardedUpdate struct {
	filter interface{}
	update interface{}
	opts   []*options.UpdateOptions
}

// replaceOrAppend edits an array entry in place or pushes a new one, each
// guarded by its filter so concurrent writers never overwrite each other.
// A second round covers an entry removed or added between the two writes.
func replaceOrAppend(ctx context.Context, coll *mongo.Collection, replace, add guardedUpdate) error {
	for round := 0; round < 2; round++ {
		for _, u := range []guardedUpdate{replace, add} {
			res, err := coll.UpdateOne(ctx, u.filter, u.update, u.opts...)
			if err != nil {
				return err
			}
			if res.MatchedCount > 0 {
				return nil
			}
		}
	}
	return mongo.ErrNoDocuments
}

// reactionWrites builds the replace and append writes for r on the
// reactions array at path, under the document filter base.
func reactionWrites(base bson.M, path string, r models.Reaction, extra bson.M) (guardedUpdate, guardedUpdate) {
	withUser := bson.M{path + ".user": r.User}
	withoutUser := bson.M{path + ".user": bson.M{"$ne": r.User}}
	for k, v := range base {
		withUser[k] = v
		withoutUser[k] = v
	}

	set := bson.M{path + ".$.type": r.Type, path + ".$.createdAt": r.CreatedAt}
	for k, v := range extra {
		set[k] = v
	}
	replace := guardedUpdate{filter: withUser, update: bson.M{"$set": set}}

	add := guardedUpdate{filter: withoutUser, update: bson.M{"$push": bson.M{path: r}}}
	if len(extra) > 0 {
		add.update = bson.M{"$push": bson.M{path: r}, "$set": extra}
	}
	return replace, add
}

func newest() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
}

func page(opts *options.FindOptions, skip, limit int64) *options.FindOptions {
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return opts
}

func idsOf[T any](rows []T, pick func(T) primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		out = append(out, pick(r))
	}
	return out
}

func stamp() time.Time { return time.Now().UTC() }
