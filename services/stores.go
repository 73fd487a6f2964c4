// Package services holds the business rules of wayfarer. Every dependency is
// declared here as a small interface and satisfied by the repository,
// realtime, presence and push packages.
package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"wayfarer/models"
	"wayfarer/presence"
	"wayfarer/push"
)

type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

type GraphStore interface {
	AcceptedConnections(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error)
	Following(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error)
	// BlockedBy lists the users blocker has blocked.
	BlockedBy(ctx context.Context, blocker primitive.ObjectID) ([]primitive.ObjectID, error)
	// IsBlocked is true when either user blocked the other.
	IsBlocked(ctx context.Context, a, b primitive.ObjectID) (bool, error)
	AreConnected(ctx context.Context, a, b primitive.ObjectID) (bool, error)
	FollowsEither(ctx context.Context, a, b primitive.ObjectID) (bool, error)

	FindConnection(ctx context.Context, a, b primitive.ObjectID) (*models.Connection, error)
	FindConnectionByID(ctx context.Context, id primitive.ObjectID) (*models.Connection, error)
	ListConnections(ctx context.Context, user primitive.ObjectID, status string) ([]models.Connection, error)
	CreateConnection(ctx context.Context, c *models.Connection) error
	AcceptConnection(ctx context.Context, id primitive.ObjectID, at time.Time) error
	DeleteConnection(ctx context.Context, a, b primitive.ObjectID) (bool, error)

	Follow(ctx context.Context, f *models.Follower) error
	Unfollow(ctx context.Context, follower, following primitive.ObjectID) (bool, error)
	Block(ctx context.Context, b *models.BlockedUser) error
	Unblock(ctx context.Context, blocker, blocked primitive.ObjectID) (bool, error)
}

type PostStore interface {
	Insert(ctx context.Context, p *models.Post) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	FindView(ctx context.Context, id primitive.ObjectID) (*models.PostView, error)
	FindFeed(ctx context.Context, c FeedCriteria, skip, limit int64) ([]models.PostView, int64, error)
	// SetReaction stores r as r.User's only reaction. Other users' entries
	// are left as they are.
	SetReaction(ctx context.Context, id primitive.ObjectID, r models.Reaction) error
	RemoveReaction(ctx context.Context, id, user primitive.ObjectID, typ string) error
	AddComment(ctx context.Context, id primitive.ObjectID, c models.Comment) error
	SetCommentReaction(ctx context.Context, postID, commentID primitive.ObjectID, r models.Reaction) error
	RemoveCommentReaction(ctx context.Context, postID, commentID, user primitive.ObjectID, typ string) error
	IncShareCount(ctx context.Context, id primitive.ObjectID) error
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
}

type MediaStore interface {
	Insert(ctx context.Context, m *models.Media) error
	FindOwned(ctx context.Context, owner primitive.ObjectID, ids []primitive.ObjectID) ([]models.Media, error)
	// Attach clears the upload expiry so the TTL monitor keeps the media.
	Attach(ctx context.Context, ids []primitive.ObjectID) error
}

type ChatStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error)
	FindDirect(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error)
	ListForUser(ctx context.Context, user primitive.ObjectID, skip, limit int64) ([]models.Chat, error)
	Insert(ctx context.Context, c *models.Chat) error
	SetLastMessage(ctx context.Context, chatID, messageID primitive.ObjectID, at time.Time) error
	AddParticipants(ctx context.Context, chatID primitive.ObjectID, ids []primitive.ObjectID) error
	RemoveParticipant(ctx context.Context, chatID, user primitive.ObjectID) error
	SoftDelete(ctx context.Context, chatID primitive.ObjectID) error
}

type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	ListByChat(ctx context.Context, chatID, viewer primitive.ObjectID, skip, limit int64) ([]models.Message, error)
	MarkSeen(ctx context.Context, id, user primitive.ObjectID) error
	// MarkChatSeen marks every message in the chat not sent by reader as seen by reader.
	MarkChatSeen(ctx context.Context, chatID, reader primitive.ObjectID) (int64, error)
	DeleteFor(ctx context.Context, id, user primitive.ObjectID) error
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
}

// NotificationScope selects a receiver's personal rows, or the admin-scoped rows.
type NotificationScope struct {
	Receiver primitive.ObjectID
	Admin    bool
}

type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, scope NotificationScope, skip, limit int64) ([]models.Notification, error)
	CountUnread(ctx context.Context, scope NotificationScope) (int64, error)
	MarkViewed(ctx context.Context, scope NotificationScope) (int64, error)
	// ViewFrom marks the receiver's unviewed rows of typ from sender as viewed.
	ViewFrom(ctx context.Context, receiver, sender primitive.ObjectID, typ string) error
	Delete(ctx context.Context, scope NotificationScope) (int64, error)
}

type StoryStore interface {
	InsertStory(ctx context.Context, s *models.Story) error
	// FindLatestByOwner returns the owner's newest story that is still live at now.
	FindLatestByOwner(ctx context.Context, owner primitive.ObjectID, now time.Time) (*models.Story, error)
	FindStory(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Story, error)
	LiveStoriesByOwners(ctx context.Context, owners []primitive.ObjectID, now time.Time) ([]models.Story, error)
	SetStoryExpiry(ctx context.Context, id primitive.ObjectID, at time.Time) error
	DeleteStory(ctx context.Context, id primitive.ObjectID) error

	InsertMedia(ctx context.Context, media []models.StoryMedia) error
	// LiveMedia returns media of the given stories with expiresAt after now, oldest first.
	LiveMedia(ctx context.Context, storyIDs []primitive.ObjectID, now time.Time) ([]models.StoryMedia, error)
	FindMedia(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.StoryMedia, error)
	// AddViewer appends v unless the user already viewed the media.
	AddViewer(ctx context.Context, mediaID primitive.ObjectID, v models.StoryViewer) (bool, error)
	SetMediaReaction(ctx context.Context, mediaID primitive.ObjectID, r models.Reaction) error
	RemoveMediaReaction(ctx context.Context, mediaID, user primitive.ObjectID, typ string) error
	DeleteMedia(ctx context.Context, id primitive.ObjectID) error
}

type InviteStore interface {
	InsertGroup(ctx context.Context, g *models.Group) error
	FindGroup(ctx context.Context, id primitive.ObjectID) (*models.Group, error)
	InsertEvent(ctx context.Context, e *models.Event) error
	FindEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error)

	InsertInvite(ctx context.Context, inv *models.Invite) error
	FindInvite(ctx context.Context, id primitive.ObjectID) (*models.Invite, error)
	ListPending(ctx context.Context, invitee primitive.ObjectID) ([]models.Invite, error)
	// SetInviteStatus answers a pending invite; it reports mongo.ErrNoDocuments
	// when the invite is no longer pending.
	SetInviteStatus(ctx context.Context, id primitive.ObjectID, status string, at time.Time) error

	AddPending(ctx context.Context, kind string, target, user primitive.ObjectID) error
	// AddMember moves user from the pending list to the members or attendees.
	AddMember(ctx context.Context, kind string, target, user primitive.ObjectID) error
	RemovePending(ctx context.Context, kind string, target, user primitive.ObjectID) error
}

// TxRunner runs fn inside a transaction when the deployment supports one.
// Stores must use the ctx handed to fn.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher delivers a named event to a realtime room. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
}

type PresenceReader interface {
	Status(ctx context.Context, user primitive.ObjectID) (presence.Status, error)
}

type Pusher interface {
	Send(ctx context.Context, user primitive.ObjectID, p push.Payload) error
}

func isNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func idIn(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
