package repository

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"wayfarer/database"
	"wayfarer/models"
)

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(database.Users)}
}

func (r *UserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"_id": id})
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.coll.InsertOne(ctx, u)
	if err != nil {
		return err
	}
	u.ID = insertedID(res)
	return nil
}

// SetPresence mirrors the presence tracker onto the user document.
func (r *UserRepo) SetPresence(ctx context.Context, user primitive.ObjectID, online, inMessageBox bool, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": user}, bson.M{"$set": bson.M{
		"isOnline":     online,
		"inMessageBox": inMessageBox,
		"lastSeen":     at,
	}})
	return err
}

// FindBanExpired lists banned users whose ban ended at or before now.
func (r *UserRepo) FindBanExpired(ctx context.Context, now time.Time) ([]models.User, error) {
	return findAll[models.User](ctx, r.coll, bson.M{
		"isBanned": true,
		"banUntil": bson.M{"$lte": now},
	})
}

// LiftBan clears the ban flag and its end time.
func (r *UserRepo) LiftBan(ctx context.Context, id primitive.ObjectID) error {
	return updateMatched(ctx, r.coll,
		bson.M{"_id": id, "isBanned": true},
		bson.M{"$set": bson.M{"isBanned": false}, "$unset": bson.M{"banUntil": ""}},
	)
}
