package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"wayfarer/database"
	"wayfarer/models"
	"wayfarer/services"
)

type NotificationRepo struct {
	coll *mongo.Collection
}

func NewNotificationRepo(db *mongo.Database) *NotificationRepo {
	return &NotificationRepo{coll: db.Collection(database.Notifications)}
}

func scopeFilter(scope services.NotificationScope) bson.M {
	if scope.Admin {
		return bson.M{"role": models.RoleAdmin}
	}
	return bson.M{"receiver": scope.Receiver}
}

// Insert fails with a duplicate key error when an unviewed message
// notification for the same pair already exists.
func (r *NotificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	res, err := r.coll.InsertOne(ctx, n)
	if err != nil {
		return err
	}
	n.ID = insertedID(res)
	return nil
}

func (r *NotificationRepo) List(ctx context.Context, scope services.NotificationScope, skip, limit int64) ([]models.Notification, error) {
	return findAll[models.Notification](ctx, r.coll, scopeFilter(scope), page(newest(), skip, limit))
}

func (r *NotificationRepo) CountUnread(ctx context.Context, scope services.NotificationScope) (int64, error) {
	filter := scopeFilter(scope)
	filter["viewed"] = false
	return r.coll.CountDocuments(ctx, filter)
}

func (r *NotificationRepo) MarkViewed(ctx context.Context, scope services.NotificationScope) (int64, error) {
	filter := scopeFilter(scope)
	filter["viewed"] = false
	res, err := r.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"viewed": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepo) ViewFrom(ctx context.Context, receiver, sender primitive.ObjectID, typ string) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"receiver": receiver, "sender": sender, "type": typ, "viewed": false},
		bson.M{"$set": bson.M{"viewed": true}},
	)
	return err
}

func (r *NotificationRepo) Delete(ctx context.Context, scope services.NotificationScope) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, scopeFilter(scope))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
