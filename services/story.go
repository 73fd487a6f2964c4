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

const maxStoryMedia = 10

type StoryMediaInput struct {
	URL  string
	Type string
}

type CreateStoryInput struct {
	Privacy string
	Media   []StoryMediaInput
}

type StoryService struct {
	stories       StoryStore
	graph         GraphStore
	users         UserStore
	notifications *NotificationService
	tx            TxRunner
	ttl           time.Duration
	now           func() time.Time
}

func NewStoryService(stories StoryStore, graph GraphStore, users UserStore, notifications *NotificationService, tx TxRunner, ttl time.Duration) *StoryService {
	return &StoryService{
		stories:       stories,
		graph:         graph,
		users:         users,
		notifications: notifications,
		tx:            tx,
		ttl:           ttl,
		now:           time.Now,
	}
}

// Create adds media to the owner's story. Media posted on the same UTC day
// as the owner's live story joins it and pushes its expiry out. Joining
// media keeps the story's privacy: an empty Privacy inherits it and a
// different one is a conflict.
func (s *StoryService) Create(ctx context.Context, owner primitive.ObjectID, in CreateStoryInput) (*models.StoryView, error) {
	privacy := in.Privacy
	switch privacy {
	case "":
		privacy = models.StoryPublic
	case models.StoryPublic, models.StoryFollowers, models.StoryCustom:
	default:
		return nil, apperr.BadRequest("Privacy must be public, followers or custom")
	}
	if len(in.Media) == 0 || len(in.Media) > maxStoryMedia {
		return nil, apperr.BadRequest("A story needs between 1 and 10 media items")
	}
	for _, m := range in.Media {
		if strings.TrimSpace(m.URL) == "" {
			return nil, apperr.BadRequest("Media url is required")
		}
		if m.Type != models.MediaImage && m.Type != models.MediaVideo {
			return nil, apperr.BadRequest("Media type must be image or video")
		}
	}

	now := s.now()
	expires := now.Add(s.ttl)

	var story *models.Story
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		latest, err := s.stories.FindLatestByOwner(ctx, owner, now)
		switch {
		case err == nil && models.SameUTCDay(latest.CreatedAt, now):
			if in.Privacy != "" && in.Privacy != latest.Privacy {
				return apperr.Conflict("Today's story is " + latest.Privacy + "; new media must use the same privacy")
			}
			story = latest
		case err == nil || isNotFound(err):
			story = &models.Story{Owner: owner, Privacy: privacy, ExpiresAt: expires, CreatedAt: now}
			if err := s.stories.InsertStory(ctx, story); err != nil {
				return errors.Wrap(err, "insert story")
			}
		default:
			return errors.Wrap(err, "find latest story")
		}

		media := make([]models.StoryMedia, 0, len(in.Media))
		for _, m := range in.Media {
			media = append(media, models.StoryMedia{
				ID:        primitive.NewObjectID(),
				Story:     story.ID,
				Owner:     owner,
				URL:       strings.TrimSpace(m.URL),
				Type:      m.Type,
				ExpiresAt: expires,
				Viewers:   []models.StoryViewer{},
				Reactions: []models.Reaction{},
				CreatedAt: now,
			})
		}
		if err := s.stories.InsertMedia(ctx, media); err != nil {
			return errors.Wrap(err, "insert story media")
		}

		if expires.After(story.ExpiresAt) {
			if err := s.stories.SetStoryExpiry(ctx, story.ID, expires); err != nil {
				return errors.Wrap(err, "extend story")
			}
			story.ExpiresAt = expires
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.withMedia(ctx, story, now)
}

func (s *StoryService) withMedia(ctx context.Context, story *models.Story, now time.Time) (*models.StoryView, error) {
	media, err := s.stories.LiveMedia(ctx, []primitive.ObjectID{story.ID}, now)
	if err != nil {
		return nil, errors.Wrap(err, "load story media")
	}
	return &models.StoryView{Story: *story, Media: models.ActiveMedia(media, now)}, nil
}

// CanView applies the privacy tiers. Owners and public stories are always
// visible; followers stories need a connection or a follow either way;
// custom stories need a connection.
func (s *StoryService) CanView(ctx context.Context, viewer primitive.ObjectID, story *models.Story) (bool, error) {
	if story.Owner == viewer {
		return true, nil
	}
	blocked, err := s.graph.IsBlocked(ctx, viewer, story.Owner)
	if err != nil {
		return false, errors.Wrap(err, "check block")
	}
	if blocked {
		return false, nil
	}

	switch story.Privacy {
	case models.StoryPublic:
		return true, nil
	case models.StoryFollowers:
		connected, err := s.graph.AreConnected(ctx, viewer, story.Owner)
		if err != nil || connected {
			return connected, errors.Wrap(err, "check connection")
		}
		follows, err := s.graph.FollowsEither(ctx, viewer, story.Owner)
		return follows, errors.Wrap(err, "check follow")
	case models.StoryCustom:
		connected, err := s.graph.AreConnected(ctx, viewer, story.Owner)
		return connected, errors.Wrap(err, "check connection")
	}
	return false, nil
}

func (s *StoryService) visibleStory(ctx context.Context, viewer, id primitive.ObjectID, now time.Time) (*models.Story, error) {
	story, err := s.stories.FindStory(ctx, id, now)
	if isNotFound(err) || (err == nil && !story.ExpiresAt.After(now)) {
		return nil, apperr.NotFound("Story not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load story")
	}
	ok, err := s.CanView(ctx, viewer, story)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("You cannot view this story")
	}
	return story, nil
}

// GetStory returns a story with its unexpired media.
func (s *StoryService) GetStory(ctx context.Context, viewer, id primitive.ObjectID) (*models.StoryView, error) {
	now := s.now()
	story, err := s.visibleStory(ctx, viewer, id, now)
	if err != nil {
		return nil, err
	}
	view, err := s.withMedia(ctx, story, now)
	if err != nil {
		return nil, err
	}
	if len(view.Media) == 0 {
		return nil, apperr.NotFound("Story not found")
	}
	return view, nil
}

// GetStoryMedia returns one unexpired media item.
func (s *StoryService) GetStoryMedia(ctx context.Context, viewer, id primitive.ObjectID) (*models.StoryMedia, error) {
	now := s.now()
	media, err := s.stories.FindMedia(ctx, id, now)
	if isNotFound(err) || (err == nil && !media.Live(now)) {
		return nil, apperr.NotFound("Story media not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load story media")
	}
	if _, err := s.visibleStory(ctx, viewer, media.Story, now); err != nil {
		return nil, err
	}
	return media, nil
}

// ListVisible returns the live stories of the viewer and the people they are
// connected to or follow, filtered by privacy.
func (s *StoryService) ListVisible(ctx context.Context, viewer primitive.ObjectID) ([]models.StoryView, error) {
	now := s.now()

	connections, err := s.graph.AcceptedConnections(ctx, viewer)
	if err != nil {
		return nil, errors.Wrap(err, "load connections")
	}
	following, err := s.graph.Following(ctx, viewer)
	if err != nil {
		return nil, errors.Wrap(err, "load following")
	}
	owners := unionIDs([]primitive.ObjectID{viewer}, connections, following)

	stories, err := s.stories.LiveStoriesByOwners(ctx, owners, now)
	if err != nil {
		return nil, errors.Wrap(err, "load stories")
	}

	visible := make([]models.Story, 0, len(stories))
	ids := make([]primitive.ObjectID, 0, len(stories))
	for i := range stories {
		ok, err := s.CanView(ctx, viewer, &stories[i])
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, stories[i])
			ids = append(ids, stories[i].ID)
		}
	}
	if len(ids) == 0 {
		return []models.StoryView{}, nil
	}

	media, err := s.stories.LiveMedia(ctx, ids, now)
	if err != nil {
		return nil, errors.Wrap(err, "load story media")
	}
	byStory := make(map[primitive.ObjectID][]models.StoryMedia)
	for _, m := range models.ActiveMedia(media, now) {
		byStory[m.Story] = append(byStory[m.Story], m)
	}

	out := make([]models.StoryView, 0, len(visible))
	for _, st := range visible {
		if items := byStory[st.ID]; len(items) > 0 {
			out = append(out, models.StoryView{Story: st, Media: items})
		}
	}
	return out, nil
}

// View records that viewer saw the media. Repeated views are ignored and the
// owner's own views are not recorded.
func (s *StoryService) View(ctx context.Context, viewer, id primitive.ObjectID) (bool, error) {
	media, err := s.GetStoryMedia(ctx, viewer, id)
	if err != nil {
		return false, err
	}
	if media.Owner == viewer || media.ViewedBy(viewer) {
		return false, nil
	}
	added, err := s.stories.AddViewer(ctx, id, models.StoryViewer{User: viewer, ViewedAt: s.now()})
	return added, errors.Wrap(err, "record story view")
}

// React follows the post rule: the same type again removes the reaction, a
// different type replaces it.
func (s *StoryService) React(ctx context.Context, user, id primitive.ObjectID, typ string) (models.ReactionOutcome, error) {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return 0, apperr.BadRequest("Reaction type is required")
	}
	media, err := s.GetStoryMedia(ctx, user, id)
	if err != nil {
		return 0, err
	}

	r := models.Reaction{User: user, Type: typ, CreatedAt: s.now()}
	_, outcome := models.ApplyReaction(media.Reactions, user, typ, r.CreatedAt)
	if outcome == models.ReactionRemoved {
		err = s.stories.RemoveMediaReaction(ctx, id, user, typ)
	} else {
		err = s.stories.SetMediaReaction(ctx, id, r)
	}
	if err != nil {
		return 0, errors.Wrap(err, "save story reaction")
	}

	if outcome != models.ReactionRemoved && media.Owner != user {
		name := "Someone"
		if u, err := s.users.FindByID(ctx, user); err == nil {
			name = u.Name
		}
		_, err := s.notifications.AddCustom(ctx, NotificationInput{
			Sender:   &user,
			Receiver: &media.Owner,
			Title:    name + " reacted to your story",
			Message:  name + " reacted " + typ + " to your story",
			Type:     models.NotifyStory,
			Link:     "/stories/" + media.Story.Hex(),
		})
		if err != nil {
			logger.Warn("story notification failed", zap.Error(err))
		}
	}
	return outcome, nil
}

// Viewers lists who saw a media item. Only the owner may ask.
func (s *StoryService) Viewers(ctx context.Context, owner, id primitive.ObjectID) ([]models.StoryViewer, error) {
	media, err := s.GetStoryMedia(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if media.Owner != owner {
		return nil, apperr.Forbidden("Only the owner can see viewers")
	}
	if media.Viewers == nil {
		return []models.StoryViewer{}, nil
	}
	return media.Viewers, nil
}

// DeleteMedia removes one media item. A story left without live media is
// deleted; otherwise its expiry shrinks to the remaining media.
func (s *StoryService) DeleteMedia(ctx context.Context, owner, id primitive.ObjectID) error {
	now := s.now()
	media, err := s.stories.FindMedia(ctx, id, now)
	if isNotFound(err) {
		return apperr.NotFound("Story media not found")
	}
	if err != nil {
		return errors.Wrap(err, "load story media")
	}
	if media.Owner != owner {
		return apperr.Forbidden("You can only delete your own story")
	}

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.stories.DeleteMedia(ctx, id); err != nil {
			return errors.Wrap(err, "delete story media")
		}
		left, err := s.stories.LiveMedia(ctx, []primitive.ObjectID{media.Story}, now)
		if err != nil {
			return errors.Wrap(err, "load story media")
		}
		if len(left) == 0 {
			return errors.Wrap(s.stories.DeleteStory(ctx, media.Story), "delete story")
		}
		return errors.Wrap(s.stories.SetStoryExpiry(ctx, media.Story, models.EffectiveExpiry(left)), "shrink story")
	})
}
