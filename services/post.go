package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"wayfarer/apperr"
	"wayfarer/logger"
	"wayfarer/models"
)

// unattachedMediaTTL is how long a registered upload survives without a post.
const unattachedMediaTTL = 24 * time.Hour

type CreatePostInput struct {
	Type     string
	Source   *primitive.ObjectID
	Content  string
	Media    []primitive.ObjectID
	Hashtags []string
	Privacy  string
}

type PostService struct {
	posts         PostStore
	media         MediaStore
	users         UserStore
	feed          *FeedService
	notifications *NotificationService
	now           func() time.Time
}

func NewPostService(posts PostStore, media MediaStore, users UserStore, feed *FeedService, notifications *NotificationService) *PostService {
	return &PostService{posts: posts, media: media, users: users, feed: feed, notifications: notifications, now: time.Now}
}

// RegisterMedia records an uploaded file so a later post can attach it.
// Until then it carries an expiry and the TTL monitor removes it.
func (s *PostService) RegisterMedia(ctx context.Context, owner primitive.ObjectID, url, typ string) (*models.Media, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, apperr.BadRequest("Media url is required")
	}
	if typ != models.MediaImage && typ != models.MediaVideo {
		return nil, apperr.BadRequest("Media type must be image or video")
	}
	now := s.now()
	expires := now.Add(unattachedMediaTTL)
	m := &models.Media{Owner: owner, URL: url, Type: typ, ExpiresAt: &expires, CreatedAt: now}
	if err := s.media.Insert(ctx, m); err != nil {
		return nil, errors.Wrap(err, "insert media")
	}
	return m, nil
}

func (s *PostService) Create(ctx context.Context, author primitive.ObjectID, in CreatePostInput) (*models.Post, error) {
	now := s.now()
	post := &models.Post{
		Author:    author,
		Type:      in.Type,
		Source:    in.Source,
		Content:   strings.TrimSpace(in.Content),
		Media:     unionIDs(in.Media),
		Hashtags:  models.NormalizeHashtags(in.Hashtags),
		Privacy:   in.Privacy,
		Reactions: []models.Reaction{},
		Comments:  []models.Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if post.Type == "" {
		post.Type = models.PostTypeUser
	}
	if post.Privacy == "" {
		post.Privacy = models.PrivacyPublic
	}
	if post.Media == nil {
		post.Media = []primitive.ObjectID{}
	}
	if err := post.Validate(); err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	if len(post.Media) > 0 {
		owned, err := s.media.FindOwned(ctx, author, post.Media)
		if err != nil {
			return nil, errors.Wrap(err, "load media")
		}
		if len(owned) != len(post.Media) {
			return nil, apperr.BadRequest("Unknown media attached")
		}
	}

	if err := s.posts.Insert(ctx, post); err != nil {
		return nil, errors.Wrap(err, "insert post")
	}
	if len(post.Media) > 0 {
		if err := s.media.Attach(ctx, post.Media); err != nil {
			return nil, errors.Wrap(err, "attach media")
		}
	}
	return post, nil
}

// Get returns a post if viewer may see it in a feed. Invisible posts are
// reported as missing.
func (s *PostService) Get(ctx context.Context, viewer *primitive.ObjectID, id primitive.ObjectID) (*models.PostView, error) {
	view, err := s.posts.FindView(ctx, id)
	if isNotFound(err) {
		return nil, apperr.NotFound("Post not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load post")
	}

	criteria, err := s.feed.Criteria(ctx, viewer, view.Type, "")
	if err != nil {
		return nil, err
	}
	if !criteria.Matches(&view.Post) {
		return nil, apperr.NotFound("Post not found")
	}
	return view, nil
}

// visible loads a post the viewer is allowed to interact with.
func (s *PostService) visible(ctx context.Context, viewer, id primitive.ObjectID) (*models.Post, error) {
	view, err := s.Get(ctx, &viewer, id)
	if err != nil {
		return nil, err
	}
	return &view.Post, nil
}

// React applies the toggle rule: the same type again removes the reaction,
// a different type replaces it.
func (s *PostService) React(ctx context.Context, user, id primitive.ObjectID, typ string) (models.ReactionOutcome, error) {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return 0, apperr.BadRequest("Reaction type is required")
	}
	post, err := s.visible(ctx, user, id)
	if err != nil {
		return 0, err
	}

	r := models.Reaction{User: user, Type: typ, CreatedAt: s.now()}
	_, outcome := models.ApplyReaction(post.Reactions, user, typ, r.CreatedAt)
	if outcome == models.ReactionRemoved {
		err = s.posts.RemoveReaction(ctx, id, user, typ)
	} else {
		err = s.posts.SetReaction(ctx, id, r)
	}
	if err != nil {
		return 0, errors.Wrap(err, "save reaction")
	}
	if outcome != models.ReactionRemoved {
		s.notify(ctx, user, post.Author, models.NotifyPost, "reacted to your post", "/posts/"+id.Hex())
	}
	return outcome, nil
}

func (s *PostService) Comment(ctx context.Context, user, id primitive.ObjectID, text string, mentions []primitive.ObjectID) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.BadRequest("Comment text is required")
	}
	post, err := s.visible(ctx, user, id)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		ID:        primitive.NewObjectID(),
		Author:    user,
		Text:      text,
		Mentions:  unionIDs(mentions),
		Reactions: []models.Reaction{},
		CreatedAt: s.now(),
	}
	if err := s.posts.AddComment(ctx, id, comment); err != nil {
		return nil, errors.Wrap(err, "add comment")
	}

	link := "/posts/" + id.Hex()
	s.notify(ctx, user, post.Author, models.NotifyComment, "commented on your post", link)
	for _, m := range comment.Mentions {
		if m != post.Author {
			s.notify(ctx, user, m, models.NotifyComment, "mentioned you in a comment", link)
		}
	}
	return &comment, nil
}

func (s *PostService) ReactToComment(ctx context.Context, user, postID, commentID primitive.ObjectID, typ string) (models.ReactionOutcome, error) {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return 0, apperr.BadRequest("Reaction type is required")
	}
	post, err := s.visible(ctx, user, postID)
	if err != nil {
		return 0, err
	}
	comment := post.FindComment(commentID)
	if comment == nil {
		return 0, apperr.NotFound("Comment not found")
	}

	r := models.Reaction{User: user, Type: typ, CreatedAt: s.now()}
	_, outcome := models.ApplyReaction(comment.Reactions, user, typ, r.CreatedAt)
	if outcome == models.ReactionRemoved {
		err = s.posts.RemoveCommentReaction(ctx, postID, commentID, user, typ)
	} else {
		err = s.posts.SetCommentReaction(ctx, postID, commentID, r)
	}
	if err != nil {
		return 0, errors.Wrap(err, "save comment reaction")
	}
	if outcome != models.ReactionRemoved {
		s.notify(ctx, user, comment.Author, models.NotifyComment, "reacted to your comment", "/posts/"+postID.Hex())
	}
	return outcome, nil
}

// Share creates a new post pointing at the original. Sharing a share points
// at the original post.
func (s *PostService) Share(ctx context.Context, user, id primitive.ObjectID, content, privacy string) (*models.Post, error) {
	origin, err := s.visible(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if origin.Share != nil {
		if origin, err = s.visible(ctx, user, origin.Share.Origin); err != nil {
			return nil, err
		}
	}

	if privacy == "" {
		privacy = models.PrivacyPublic
	}
	now := s.now()
	post := &models.Post{
		Author:    user,
		Type:      models.PostTypeUser,
		Content:   strings.TrimSpace(content),
		Media:     []primitive.ObjectID{},
		Privacy:   privacy,
		Reactions: []models.Reaction{},
		Comments:  []models.Comment{},
		Share:     &models.Share{Origin: origin.ID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := post.Validate(); err != nil {
		return nil, apperr.BadRequest(err.Error())
	}
	if err := s.posts.Insert(ctx, post); err != nil {
		return nil, errors.Wrap(err, "insert share")
	}
	if err := s.posts.IncShareCount(ctx, origin.ID); err != nil {
		return nil, errors.Wrap(err, "count share")
	}
	s.notify(ctx, user, origin.Author, models.NotifyPost, "shared your post", "/posts/"+origin.ID.Hex())
	return post, nil
}

func (s *PostService) Delete(ctx context.Context, user, id primitive.ObjectID) error {
	post, err := s.posts.FindByID(ctx, id)
	if isNotFound(err) || (err == nil && post.IsDeleted) {
		return apperr.NotFound("Post not found")
	}
	if err != nil {
		return errors.Wrap(err, "load post")
	}
	if post.Author != user {
		return apperr.Forbidden("You can only delete your own posts")
	}
	return errors.Wrap(s.posts.SoftDelete(ctx, id), "delete post")
}

func (s *PostService) notify(ctx context.Context, actor, receiver primitive.ObjectID, typ, action, link string) {
	if actor == receiver {
		return
	}
	name := "Someone"
	avatar := ""
	if u, err := s.users.FindByID(ctx, actor); err == nil {
		name, avatar = u.Name, u.Avatar
	}
	_, err := s.notifications.AddCustom(ctx, NotificationInput{
		Sender:   &actor,
		Receiver: &receiver,
		Title:    name + " " + action,
		Message:  name + " " + action,
		Image:    avatar,
		Type:     typ,
		Link:     link,
	})
	if err != nil {
		logger.Warn("notification failed", zap.String("type", typ), zap.Error(err))
	}
}
