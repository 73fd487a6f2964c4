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

// StoryRepo stores stories and their media. Every read filters on expiresAt
// because the TTL monitor only sweeps about once a minute.
type StoryRepo struct {
	stories *mongo.Collection
	media   *mongo.Collection
}

func NewStoryRepo(db *mongo.Database) *StoryRepo {
	return &StoryRepo{
		stories: db.Collection(database.Stories),
		media:   db.Collection(database.StoryMedia),
	}
}

func live(now time.Time) bson.M {
	return bson.M{"$gt": now}
}

func (r *StoryRepo) InsertStory(ctx context.Context, s *models.Story) error {
	res, err := r.stories.InsertOne(ctx, s)
	if err != nil {
		return err
	}
	s.ID = insertedID(res)
	return nil
}

func (r *StoryRepo) FindLatestByOwner(ctx context.Context, owner primitive.ObjectID, now time.Time) (*models.Story, error) {
	return findOne[models.Story](ctx, r.stories,
		bson.M{"owner": owner, "expiresAt": live(now)},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
}

func (r *StoryRepo) FindStory(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Story, error) {
	return findOne[models.Story](ctx, r.stories, bson.M{"_id": id, "expiresAt": live(now)})
}

func (r *StoryRepo) LiveStoriesByOwners(ctx context.Context, owners []primitive.ObjectID, now time.Time) ([]models.Story, error) {
	return findAll[models.Story](ctx, r.stories,
		bson.M{"owner": bson.M{"$in": owners}, "expiresAt": live(now)},
		newest(),
	)
}

func (r *StoryRepo) SetStoryExpiry(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return updateMatched(ctx, r.stories, bson.M{"_id": id}, bson.M{"$set": bson.M{"expiresAt": at}})
}

// DeleteStory removes the story and whatever media the TTL monitor has not
// swept yet.
func (r *StoryRepo) DeleteStory(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.stories.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return err
	}
	_, err := r.media.DeleteMany(ctx, bson.M{"story": id})
	return err
}

func (r *StoryRepo) InsertMedia(ctx context.Context, media []models.StoryMedia) error {
	docs := make([]interface{}, 0, len(media))
	for i := range media {
		if media[i].ID.IsZero() {
			media[i].ID = primitive.NewObjectID()
		}
		docs = append(docs, media[i])
	}
	_, err := r.media.InsertMany(ctx, docs)
	return err
}

func (r *StoryRepo) LiveMedia(ctx context.Context, storyIDs []primitive.ObjectID, now time.Time) ([]models.StoryMedia, error) {
	return findAll[models.StoryMedia](ctx, r.media,
		bson.M{"story": bson.M{"$in": storyIDs}, "expiresAt": live(now)},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
}

func (r *StoryRepo) FindMedia(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.StoryMedia, error) {
	return findOne[models.StoryMedia](ctx, r.media, bson.M{"_id": id, "expiresAt": live(now)})
}

// AddViewer only matches media the user has not viewed, so concurrent views
// record one entry.
func (r *StoryRepo) AddViewer(ctx context.Context, mediaID primitive.ObjectID, v models.StoryViewer) (bool, error) {
	res, err := r.media.UpdateOne(ctx,
		bson.M{"_id": mediaID, "viewers.user": bson.M{"$ne": v.User}},
		bson.M{"$push": bson.M{"viewers": v}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *StoryRepo) SetMediaReaction(ctx context.Context, mediaID primitive.ObjectID, reaction models.Reaction) error {
	replace, add := reactionWrites(bson.M{"_id": mediaID}, "reactions", reaction, nil)
	return replaceOrAppend(ctx, r.media, replace, add)
}

func (r *StoryRepo) RemoveMediaReaction(ctx context.Context, mediaID, user primitive.ObjectID, typ string) error {
	return updateMatched(ctx, r.media, bson.M{"_id": mediaID}, bson.M{
		"$pull": bson.M{"reactions": bson.M{"user": user, "type": typ}},
	})
}

func (r *StoryRepo) DeleteMedia(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.media.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
