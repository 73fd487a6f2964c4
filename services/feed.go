package services

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"wayfarer/apperr"
	"wayfarer/models"
)

const (
	defaultFeedLimit = 10
	maxFeedLimit     = 50
)

type FeedQuery struct {
	Viewer    *primitive.ObjectID
	MediaType string
	Hashtag   string
	PostType  string
	Page      int
	Limit     int
}

type FeedPage struct {
	Posts      []models.PostView `json:"posts"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	Total      int64             `json:"total"`
	TotalPages int64             `json:"totalPages"`
}

// FeedCriteria is the visibility filter for one viewer. BSON renders it for
// MongoDB; Matches applies the same rules to a single post in memory.
type FeedCriteria struct {
	Anonymous bool
	Viewer    primitive.ObjectID
	PostType  string
	Hashtag   string
	// Eligible is accepted connections, followed users and the viewer.
	Eligible []primitive.ObjectID
	// Connections is accepted connections and the viewer.
	Connections []primitive.ObjectID
	Blocked     []primitive.ObjectID
}

func (c FeedCriteria) BSON() bson.M {
	filter := bson.M{
		"isDeleted": false,
		"type":      c.postType(),
	}
	if c.Hashtag != "" {
		filter["hashtags"] = c.Hashtag
	}
	if c.Anonymous {
		filter["privacy"] = models.PrivacyPublic
		return filter
	}

	filter["author"] = bson.M{"$nin": nonNil(c.Blocked)}
	filter["$or"] = bson.A{
		bson.M{"author": bson.M{"$in": nonNil(c.Eligible)}, "privacy": models.PrivacyPublic},
		bson.M{"author": bson.M{"$in": nonNil(c.Connections)}, "privacy": models.PrivacyFriends},
		bson.M{"author": c.Viewer, "privacy": models.PrivacyPrivate},
	}
	return filter
}

func (c FeedCriteria) Matches(p *models.Post) bool {
	if p.IsDeleted || p.Type != c.postType() {
		return false
	}
	if c.Hashtag != "" && !containsString(p.Hashtags, c.Hashtag) {
		return false
	}
	if c.Anonymous {
		return p.Privacy == models.PrivacyPublic
	}
	if idIn(c.Blocked, p.Author) {
		return false
	}

	switch p.Privacy {
	case models.PrivacyPublic:
		return idIn(c.Eligible, p.Author)
	case models.PrivacyFriends:
		return idIn(c.Connections, p.Author)
	case models.PrivacyPrivate:
		return p.Author == c.Viewer
	}
	return false
}

func (c FeedCriteria) postType() string {
	if c.Anonymous || c.PostType == "" {
		return models.PostTypeUser
	}
	return c.PostType
}

type FeedService struct {
	posts PostStore
	graph GraphStore
}

func NewFeedService(posts PostStore, graph GraphStore) *FeedService {
	return &FeedService{posts: posts, graph: graph}
}

// Criteria builds the visibility filter for viewer. A nil viewer gets the
// anonymous filter.
func (s *FeedService) Criteria(ctx context.Context, viewer *primitive.ObjectID, postType, hashtag string) (FeedCriteria, error) {
	c := FeedCriteria{PostType: postType, Hashtag: models.NormalizeHashtag(hashtag)}
	if viewer == nil {
		c.Anonymous = true
		return c, nil
	}
	c.Viewer = *viewer

	connections, err := s.graph.AcceptedConnections(ctx, *viewer)
	if err != nil {
		return c, errors.Wrap(err, "load connections")
	}
	following, err := s.graph.Following(ctx, *viewer)
	if err != nil {
		return c, errors.Wrap(err, "load following")
	}
	blocked, err := s.graph.BlockedBy(ctx, *viewer)
	if err != nil {
		return c, errors.Wrap(err, "load blocked users")
	}

	c.Connections = unionIDs([]primitive.ObjectID{*viewer}, connections)
	c.Eligible = unionIDs(c.Connections, following)
	c.Blocked = blocked
	return c, nil
}

func (s *FeedService) Feed(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	switch q.PostType {
	case "", models.PostTypeUser, models.PostTypeGroup, models.PostTypeEvent:
	default:
		return nil, apperr.BadRequest("Invalid post type")
	}
	switch q.MediaType {
	case "", models.MediaImage, models.MediaVideo:
	default:
		return nil, apperr.BadRequest("Invalid media type")
	}

	page, limit := normalizePage(q.Page, q.Limit, defaultFeedLimit, maxFeedLimit)

	criteria, err := s.Criteria(ctx, q.Viewer, q.PostType, q.Hashtag)
	if err != nil {
		return nil, err
	}

	posts, total, err := s.posts.FindFeed(ctx, criteria, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, errors.Wrap(err, "find feed")
	}

	// The media filter runs on the fetched page, so totals only describe that page.
	if q.MediaType != "" {
		filtered := make([]models.PostView, 0, len(posts))
		for i := range posts {
			if posts[i].AllMediaOfType(q.MediaType) {
				filtered = append(filtered, posts[i])
			}
		}
		posts = filtered
		total = int64(len(filtered))
	}

	return &FeedPage{
		Posts:      posts,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages(total, limit),
	}, nil
}

func normalizePage(page, limit, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return page, limit
}

func totalPages(total int64, limit int) int64 {
	if total == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

func unionIDs(sets ...[]primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{})
	var out []primitive.ObjectID
	for _, set := range sets {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func nonNil(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return []primitive.ObjectID{}
	}
	return ids
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
