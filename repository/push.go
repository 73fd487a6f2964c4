package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wayfarer/database"
	"wayfarer/models"
)

type PushRepo struct {
	coll *mongo.Collection
}

func NewPushRepo(db *mongo.Database) *PushRepo {
	return &PushRepo{coll: db.Collection(database.PushSubscriptions)}
}

// Upsert keys subscriptions by endpoint; a browser that re-subscribes under
// another account moves to that account.
func (r *PushRepo) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"endpoint": sub.Endpoint},
		bson.M{
			"$set":         bson.M{"user": sub.User, "keys": sub.Keys},
			"$setOnInsert": bson.M{"createdAt": sub.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *PushRepo) ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.PushSubscription, error) {
	return findAll[models.PushSubscription](ctx, r.coll, bson.M{"user": user})
}

func (r *PushRepo) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"endpoint": endpoint})
	return err
}
