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

// GraphRepo stores connections, follows and blocks.
type GraphRepo struct {
	connections *mongo.Collection
	followers   *mongo.Collection
	blocks      *mongo.Collection
}

func NewGraphRepo(db *mongo.Database) *GraphRepo {
	return &GraphRepo{
		connections: db.Collection(database.Connections),
		followers:   db.Collection(database.Followers),
		blocks:      db.Collection(database.BlockedUsers),
	}
}

// pairFilter matches documents linking a and b in either direction.
func pairFilter(left, right string, a, b primitive.ObjectID) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{left: a, right: b},
		bson.M{left: b, right: a},
	}}
}

func exists(ctx context.Context, coll *mongo.Collection, filter interface{}) (bool, error) {
	n, err := coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *GraphRepo) AcceptedConnections(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error) {
	rows, err := findAll[models.Connection](ctx, r.connections, bson.M{
		"status": models.ConnectionAccepted,
		"$or":    bson.A{bson.M{"requester": user}, bson.M{"recipient": user}},
	})
	if err != nil {
		return nil, err
	}
	return idsOf(rows, func(c models.Connection) primitive.ObjectID { return c.Other(user) }), nil
}

func (r *GraphRepo) Following(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error) {
	rows, err := findAll[models.Follower](ctx, r.followers, bson.M{"follower": user})
	if err != nil {
		return nil, err
	}
	return idsOf(rows, func(f models.Follower) primitive.ObjectID { return f.Following }), nil
}

func (r *GraphRepo) BlockedBy(ctx context.Context, blocker primitive.ObjectID) ([]primitive.ObjectID, error) {
	rows, err := findAll[models.BlockedUser](ctx, r.blocks, bson.M{"blocker": blocker})
	if err != nil {
		return nil, err
	}
	return idsOf(rows, func(b models.BlockedUser) primitive.ObjectID { return b.Blocked }), nil
}

func (r *GraphRepo) IsBlocked(ctx context.Context, a, b primitive.ObjectID) (bool, error) {
	return exists(ctx, r.blocks, pairFilter("blocker", "blocked", a, b))
}

func (r *GraphRepo) AreConnected(ctx context.Context, a, b primitive.ObjectID) (bool, error) {
	filter := pairFilter("requester", "recipient", a, b)
	filter["status"] = models.ConnectionAccepted
	return exists(ctx, r.connections, filter)
}

func (r *GraphRepo) FollowsEither(ctx context.Context, a, b primitive.ObjectID) (bool, error) {
	return exists(ctx, r.followers, pairFilter("follower", "following", a, b))
}

func (r *GraphRepo) FindConnection(ctx context.Context, a, b primitive.ObjectID) (*models.Connection, error) {
	return findOne[models.Connection](ctx, r.connections, pairFilter("requester", "recipient", a, b))
}

func (r *GraphRepo) FindConnectionByID(ctx context.Context, id primitive.ObjectID) (*models.Connection, error) {
	return findOne[models.Connection](ctx, r.connections, bson.M{"_id": id})
}

// ListConnections returns accepted connections on either side, or the
// pending requests user received.
func (r *GraphRepo) ListConnections(ctx context.Context, user primitive.ObjectID, status string) ([]models.Connection, error) {
	filter := bson.M{"status": status, "recipient": user}
	if status == models.ConnectionAccepted {
		filter = bson.M{
			"status": status,
			"$or":    bson.A{bson.M{"requester": user}, bson.M{"recipient": user}},
		}
	}
	return findAll[models.Connection](ctx, r.connections, filter, newest())
}

func (r *GraphRepo) CreateConnection(ctx context.Context, c *models.Connection) error {
	res, err := r.connections.InsertOne(ctx, c)
	if err != nil {
		return err
	}
	c.ID = insertedID(res)
	return nil
}

func (r *GraphRepo) AcceptConnection(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return updateMatched(ctx, r.connections,
		bson.M{"_id": id, "status": models.ConnectionPending},
		bson.M{"$set": bson.M{"status": models.ConnectionAccepted, "updatedAt": at}},
	)
}

func (r *GraphRepo) DeleteConnection(ctx context.Context, a, b primitive.ObjectID) (bool, error) {
	res, err := r.connections.DeleteMany(ctx, pairFilter("requester", "recipient", a, b))
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *GraphRepo) Follow(ctx context.Context, f *models.Follower) error {
	res, err := r.followers.InsertOne(ctx, f)
	if err != nil {
		return err
	}
	f.ID = insertedID(res)
	return nil
}

func (r *GraphRepo) Unfollow(ctx context.Context, follower, following primitive.ObjectID) (bool, error) {
	res, err := r.followers.DeleteOne(ctx, bson.M{"follower": follower, "following": following})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *GraphRepo) Block(ctx context.Context, b *models.BlockedUser) error {
	res, err := r.blocks.InsertOne(ctx, b)
	if err != nil {
		return err
	}
	b.ID = insertedID(res)
	return nil
}

func (r *GraphRepo) Unblock(ctx context.Context, blocker, blocked primitive.ObjectID) (bool, error) {
	res, err := r.blocks.DeleteOne(ctx, bson.M{"blocker": blocker, "blocked": blocked})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
