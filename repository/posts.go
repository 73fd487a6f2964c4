package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wayfarer/database"
	"wayfarer/models"
	"wayfarer/services"
)

type PostRepo struct {
	coll *mongo.Collection
}

func NewPostRepo(db *mongo.Database) *PostRepo {
	return &PostRepo{coll: db.Collection(database.Posts)}
}

// viewStages joins the author summary and the media documents.
func viewStages() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: database.Users},
			{Key: "localField", Value: "author"},
			{Key: "foreignField", Value: "_id"},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$project", Value: bson.D{
					{Key: "username", Value: 1},
					{Key: "name", Value: 1},
					{Key: "avatar", Value: 1},
				}}},
			}},
			{Key: "as", Value: "authorInfo"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$authorInfo"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: database.Media},
			{Key: "localField", Value: "media"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "mediaItems"},
		}}},
	}
}

// feedPipeline filters, sorts newest first and pages before joining, so the
// lookups only run for the returned page.
func feedPipeline(c services.FeedCriteria, skip, limit int64) mongo.Pipeline {
	p := mongo.Pipeline{
		{{Key: "$match", Value: c.BSON()}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$skip", Value: skip}},
		{{Key: "$limit", Value: limit}},
	}
	return append(p, viewStages()...)
}

func (r *PostRepo) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]models.PostView, error) {
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.PostView{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostRepo) Insert(ctx context.Context, p *models.Post) error {
	res, err := r.coll.InsertOne(ctx, p)
	if err != nil {
		return err
	}
	p.ID = insertedID(res)
	return nil
}

func (r *PostRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	return findOne[models.Post](ctx, r.coll, bson.M{"_id": id, "isDeleted": false})
}

func (r *PostRepo) FindView(ctx context.Context, id primitive.ObjectID) (*models.PostView, error) {
	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id, "isDeleted": false}}},
	}, viewStages()...)
	views, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return &views[0], nil
}

func (r *PostRepo) FindFeed(ctx context.Context, c services.FeedCriteria, skip, limit int64) ([]models.PostView, int64, error) {
	total, err := r.coll.CountDocuments(ctx, c.BSON())
	if err != nil {
		return nil, 0, err
	}
	if total == 0 || skip >= total {
		return []models.PostView{}, total, nil
	}
	views, err := r.aggregate(ctx, feedPipeline(c, skip, limit))
	return views, total, err
}

func (r *PostRepo) SetReaction(ctx context.Context, id primitive.ObjectID, reaction models.Reaction) error {
	replace, add := reactionWrites(bson.M{"_id": id}, "reactions", reaction, bson.M{"updatedAt": stamp()})
	return replaceOrAppend(ctx, r.coll, replace, add)
}

func (r *PostRepo) RemoveReaction(ctx context.Context, id, user primitive.ObjectID, typ string) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": id}, bson.M{
		"$pull": bson.M{"reactions": bson.M{"user": user, "type": typ}},
		"$set":  bson.M{"updatedAt": stamp()},
	})
}

func (r *PostRepo) AddComment(ctx context.Context, id primitive.ObjectID, c models.Comment) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"comments": c},
		"$set":  bson.M{"updatedAt": stamp()},
	})
}

// SetCommentReaction needs array filters for the replace because the
// positional $ operator only reaches one array level.
func (r *PostRepo) SetCommentReaction(ctx context.Context, postID, commentID primitive.ObjectID, reaction models.Reaction) error {
	replace := guardedUpdate{
		filter: bson.M{"_id": postID, "comments": bson.M{"$elemMatch": bson.M{"_id": commentID, "reactions.user": reaction.User}}},
		update: bson.M{"$set": bson.M{
			"comments.$[c].reactions.$[r].type":      reaction.Type,
			"comments.$[c].reactions.$[r].createdAt": reaction.CreatedAt,
		}},
		opts: []*options.UpdateOptions{options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"c._id": commentID}, bson.M{"r.user": reaction.User}},
		})},
	}
	add := guardedUpdate{
		filter: bson.M{"_id": postID, "comments": bson.M{"$elemMatch": bson.M{"_id": commentID, "reactions.user": bson.M{"$ne": reaction.User}}}},
		update: bson.M{"$push": bson.M{"comments.$.reactions": reaction}},
	}
	return replaceOrAppend(ctx, r.coll, replace, add)
}

func (r *PostRepo) RemoveCommentReaction(ctx context.Context, postID, commentID, user primitive.ObjectID, typ string) error {
	return updateMatched(ctx, r.coll,
		bson.M{"_id": postID, "comments._id": commentID},
		bson.M{"$pull": bson.M{"comments.$.reactions": bson.M{"user": user, "type": typ}}},
	)
}

func (r *PostRepo) IncShareCount(ctx context.Context, id primitive.ObjectID) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": id}, bson.M{"$inc": bson.M{"shareCount": 1}})
}

func (r *PostRepo) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	return updateMatched(ctx, r.coll, bson.M{"_id": id}, bson.M{"$set": bson.M{"isDeleted": true, "updatedAt": stamp()}})
}

// MediaRepo stores uploaded files referenced by posts.
type MediaRepo struct {
	coll *mongo.Collection
}

func NewMediaRepo(db *mongo.Database) *MediaRepo {
	return &MediaRepo{coll: db.Collection(database.Media)}
}

func (r *MediaRepo) Insert(ctx context.Context, m *models.Media) error {
	res, err := r.coll.InsertOne(ctx, m)
	if err != nil {
		return err
	}
	m.ID = insertedID(res)
	return nil
}

func (r *MediaRepo) FindOwned(ctx context.Context, owner primitive.ObjectID, ids []primitive.ObjectID) ([]models.Media, error) {
	return findAll[models.Media](ctx, r.coll, bson.M{"_id": bson.M{"$in": ids}, "owner": owner})
}

func (r *MediaRepo) Attach(ctx context.Context, ids []primitive.ObjectID) error {
	_, err := r.coll.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, bson.M{"$unset": bson.M{"expiresAt": ""}})
	return err
}
