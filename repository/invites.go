package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"wayfarer/database"
	"wayfarer/models"
)

// InviteRepo stores groups, events and the invites to them.
type InviteRepo struct {
	groups  *mongo.Collection
	events  *mongo.Collection
	invites *mongo.Collection
}

func NewInviteRepo(db *mongo.Database) *InviteRepo {
	return &InviteRepo{
		groups:  db.Collection(database.Groups),
		events:  db.Collection(database.Events),
		invites: db.Collection(database.Invites),
	}
}

// target returns the collection and membership field for an invite kind.
func (r *InviteRepo) target(kind string) (*mongo.Collection, string) {
	if kind == models.InviteEvent {
		return r.events, "attendees"
	}
	return r.groups, "members"
}

func (r *InviteRepo) InsertGroup(ctx context.Context, g *models.Group) error {
	res, err := r.groups.InsertOne(ctx, g)
	if err != nil {
		return err
	}
	g.ID = insertedID(res)
	return nil
}

func (r *InviteRepo) FindGroup(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	return findOne[models.Group](ctx, r.groups, bson.M{"_id": id})
}

func (r *InviteRepo) InsertEvent(ctx context.Context, e *models.Event) error {
	res, err := r.events.InsertOne(ctx, e)
	if err != nil {
		return err
	}
	e.ID = insertedID(res)
	return nil
}

func (r *InviteRepo) FindEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	return findOne[models.Event](ctx, r.events, bson.M{"_id": id})
}

func (r *InviteRepo) InsertInvite(ctx context.Context, inv *models.Invite) error {
	res, err := r.invites.InsertOne(ctx, inv)
	if err != nil {
		return err
	}
	inv.ID = insertedID(res)
	return nil
}

func (r *InviteRepo) FindInvite(ctx context.Context, id primitive.ObjectID) (*models.Invite, error) {
	return findOne[models.Invite](ctx, r.invites, bson.M{"_id": id})
}

func (r *InviteRepo) ListPending(ctx context.Context, invitee primitive.ObjectID) ([]models.Invite, error) {
	return findAll[models.Invite](ctx, r.invites, bson.M{"invitee": invitee, "status": models.InvitePending}, newest())
}

func (r *InviteRepo) SetInviteStatus(ctx context.Context, id primitive.ObjectID, status string, at time.Time) error {
	return updateMatched(ctx, r.invites,
		bson.M{"_id": id, "status": models.InvitePending},
		bson.M{"$set": bson.M{"status": status, "updatedAt": at}},
	)
}

func (r *InviteRepo) AddPending(ctx context.Context, kind string, target, user primitive.ObjectID) error {
	coll, _ := r.target(kind)
	return updateMatched(ctx, coll, bson.M{"_id": target}, bson.M{"$addToSet": bson.M{"pendingInvites": user}})
}

func (r *InviteRepo) AddMember(ctx context.Context, kind string, target, user primitive.ObjectID) error {
	coll, field := r.target(kind)
	return updateMatched(ctx, coll, bson.M{"_id": target}, bson.M{
		"$pull":     bson.M{"pendingInvites": user},
		"$addToSet": bson.M{field: user},
	})
}

func (r *InviteRepo) RemovePending(ctx context.Context, kind string, target, user primitive.ObjectID) error {
	coll, _ := r.target(kind)
	return updateMatched(ctx, coll, bson.M{"_id": target}, bson.M{"$pull": bson.M{"pendingInvites": user}})
}
