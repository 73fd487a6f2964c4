package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"wayfarer/apperr"
	"wayfarer/logger"
	"wayfarer/models"
	"wayfarer/push"
	"wayfarer/realtime"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
	pushTimeout              = 15 * time.Second
)

type NotificationInput struct {
	Sender   *primitive.ObjectID
	Receiver *primitive.ObjectID
	Title    string
	Message  string
	Image    string
	Type     string
	Link     string
	// Admin addresses the row to every administrator instead of Receiver.
	Admin bool
}

type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
}

type NotificationService struct {
	store    NotificationStore
	pub      Publisher
	presence PresenceReader
	pusher   Pusher
	now      func() time.Time
}

// NewNotificationService wires the store with realtime delivery. pusher may be
// nil when web push is not configured.
func NewNotificationService(store NotificationStore, pub Publisher, presence PresenceReader, pusher Pusher) *NotificationService {
	return &NotificationService{store: store, pub: pub, presence: presence, pusher: pusher, now: time.Now}
}

func validNotificationType(t string) bool {
	switch t {
	case models.NotifyPost, models.NotifyStory, models.NotifyComment, models.NotifyEvent,
		models.NotifyGroup, models.NotifyConnection, models.NotifyMessage:
		return true
	}
	return false
}

func (s *NotificationService) build(in NotificationInput) (*models.Notification, error) {
	if !validNotificationType(in.Type) {
		return nil, apperr.BadRequest("Invalid notification type")
	}
	n := &models.Notification{
		Sender:    in.Sender,
		Title:     in.Title,
		Message:   in.Message,
		Image:     in.Image,
		Type:      in.Type,
		Link:      in.Link,
		Role:      models.RoleUser,
		CreatedAt: s.now(),
	}
	if in.Admin {
		n.Role = models.RoleAdmin
		return n, nil
	}
	if in.Receiver == nil || in.Receiver.IsZero() {
		return nil, apperr.BadRequest("Notification receiver is required")
	}
	n.Receiver = in.Receiver
	return n, nil
}

// Add persists a notification without realtime delivery.
func (s *NotificationService) Add(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	n, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return nil, errors.Wrap(err, "insert notification")
	}
	return n, nil
}

// AddCustom persists a notification and delivers it to the receiver's room,
// or to the admin room for admin-scoped rows. Offline receivers get a web push.
func (s *NotificationService) AddCustom(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	n, err := s.Add(ctx, in)
	if err != nil {
		return nil, err
	}
	s.deliver(ctx, n)
	return n, nil
}

// AddMessage records that sender wrote to receiver. Only one unviewed message
// notification exists per pair; a duplicate key means the receiver was
// already notified and is reported as created=false.
func (s *NotificationService) AddMessage(ctx context.Context, sender, receiver primitive.ObjectID, title, preview, link string) (bool, error) {
	n, err := s.build(NotificationInput{
		Sender:   &sender,
		Receiver: &receiver,
		Title:    title,
		Message:  preview,
		Type:     models.NotifyMessage,
		Link:     link,
	})
	if err != nil {
		return false, err
	}
	if err := s.store.Insert(ctx, n); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "insert message notification")
	}
	s.deliver(ctx, n)
	return true, nil
}

func (s *NotificationService) deliver(ctx context.Context, n *models.Notification) {
	if n.AdminScoped() {
		s.publish(ctx, realtime.AdminRoom, realtime.EventAdminNotification, n)
		return
	}

	receiver := *n.Receiver
	s.publish(ctx, realtime.UserRoom(receiver), realtime.NotificationEvent(n.Type, receiver), n)

	if s.pusher == nil {
		return
	}
	status, err := s.presence.Status(ctx, receiver)
	if err != nil {
		logger.Warn("presence lookup failed", zap.String("user", receiver.Hex()), zap.Error(err))
	}
	if status.Online {
		return
	}

	payload := push.Payload{Title: n.Title, Body: n.Message, Icon: n.Image, URL: n.Link, Type: n.Type}
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := s.pusher.Send(pctx, receiver, payload); err != nil {
			logger.Warn("web push failed", zap.String("user", receiver.Hex()), zap.Error(err))
		}
	}()
}

func (s *NotificationService) publish(ctx context.Context, room, event string, payload any) {
	if err := s.pub.Publish(ctx, room, event, payload); err != nil {
		logger.Warn("realtime publish failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
	}
}

func scopeFor(user primitive.ObjectID, role string) NotificationScope {
	if role == models.RoleAdmin {
		return NotificationScope{Admin: true}
	}
	return NotificationScope{Receiver: user}
}

// GetAll pages through the caller's notifications, newest first. Admins read
// the admin-scoped rows.
func (s *NotificationService) GetAll(ctx context.Context, user primitive.ObjectID, role string, page, limit int) (*NotificationPage, error) {
	page, limit = normalizePage(page, limit, defaultNotificationLimit, maxNotificationLimit)
	scope := scopeFor(user, role)

	list, err := s.store.List(ctx, scope, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	unread, err := s.store.CountUnread(ctx, scope)
	if err != nil {
		return nil, errors.Wrap(err, "count unread notifications")
	}
	if list == nil {
		list = []models.Notification{}
	}
	return &NotificationPage{Notifications: list, Unread: unread, Page: page, Limit: limit}, nil
}

func (s *NotificationService) ViewAll(ctx context.Context, user primitive.ObjectID, role string) (int64, error) {
	n, err := s.store.MarkViewed(ctx, scopeFor(user, role))
	return n, errors.Wrap(err, "view notifications")
}

// ViewMessagesFrom clears the receiver's message notification for sender.
func (s *NotificationService) ViewMessagesFrom(ctx context.Context, receiver, sender primitive.ObjectID) error {
	return errors.Wrap(s.store.ViewFrom(ctx, receiver, sender, models.NotifyMessage), "view message notifications")
}

// Clear deletes the caller's notifications. An admin clears every
// admin-scoped row instead of personal ones.
func (s *NotificationService) Clear(ctx context.Context, user primitive.ObjectID, role string) (int64, error) {
	n, err := s.store.Delete(ctx, scopeFor(user, role))
	return n, errors.Wrap(err, "clear notifications")
}
