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
)

type GraphService struct {
	graph         GraphStore
	users         UserStore
	notifications *NotificationService
	tx            TxRunner
	now           func() time.Time
}

func NewGraphService(graph GraphStore, users UserStore, notifications *NotificationService, tx TxRunner) *GraphService {
	return &GraphService{graph: graph, users: users, notifications: notifications, tx: tx, now: time.Now}
}

func (s *GraphService) target(ctx context.Context, actor, target primitive.ObjectID) (*models.User, error) {
	if actor == target {
		return nil, apperr.BadRequest("You cannot do this to yourself")
	}
	u, err := s.users.FindByID(ctx, target)
	if isNotFound(err) || (err == nil && !u.Active()) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	return u, nil
}

func (s *GraphService) ensureNotBlocked(ctx context.Context, a, b primitive.ObjectID) error {
	blocked, err := s.graph.IsBlocked(ctx, a, b)
	if err != nil {
		return errors.Wrap(err, "check block")
	}
	if blocked {
		return apperr.Forbidden("You cannot interact with this user")
	}
	return nil
}

// Connect sends a connection request. A pending request from the other side
// is accepted instead.
func (s *GraphService) Connect(ctx context.Context, requester, recipient primitive.ObjectID) (*models.Connection, error) {
	if _, err := s.target(ctx, requester, recipient); err != nil {
		return nil, err
	}
	if err := s.ensureNotBlocked(ctx, requester, recipient); err != nil {
		return nil, err
	}

	existing, err := s.graph.FindConnection(ctx, requester, recipient)
	switch {
	case err == nil && existing.Status == models.ConnectionAccepted:
		return nil, apperr.Conflict("You are already connected")
	case err == nil && existing.Requester == requester:
		return nil, apperr.Conflict("Connection request already sent")
	case err == nil:
		return s.Accept(ctx, requester, existing.ID)
	case !isNotFound(err):
		return nil, errors.Wrap(err, "find connection")
	}

	now := s.now()
	conn := &models.Connection{
		Requester: requester,
		Recipient: recipient,
		Status:    models.ConnectionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.graph.CreateConnection(ctx, conn); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("Connection request already sent")
		}
		return nil, errors.Wrap(err, "create connection")
	}
	s.notify(ctx, requester, recipient, "sent you a connection request")
	return conn, nil
}

// Accept is allowed to the recipient of a pending request.
func (s *GraphService) Accept(ctx context.Context, user, id primitive.ObjectID) (*models.Connection, error) {
	conn, err := s.graph.FindConnectionByID(ctx, id)
	if isNotFound(err) {
		return nil, apperr.NotFound("Connection request not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load connection")
	}
	if conn.Recipient != user {
		return nil, apperr.Forbidden("Only the recipient can accept this request")
	}
	if conn.Status != models.ConnectionPending {
		return nil, apperr.Conflict("Connection request already answered")
	}

	now := s.now()
	if err := s.graph.AcceptConnection(ctx, id, now); err != nil {
		return nil, errors.Wrap(err, "accept connection")
	}
	conn.Status = models.ConnectionAccepted
	conn.UpdatedAt = now
	s.notify(ctx, user, conn.Requester, "accepted your connection request")
	return conn, nil
}

func (s *GraphService) Connections(ctx context.Context, user primitive.ObjectID, status string) ([]models.Connection, error) {
	switch status {
	case "":
		status = models.ConnectionAccepted
	case models.ConnectionAccepted, models.ConnectionPending:
	default:
		return nil, apperr.BadRequest("Status must be pending or accepted")
	}
	list, err := s.graph.ListConnections(ctx, user, status)
	if err != nil {
		return nil, errors.Wrap(err, "list connections")
	}
	if list == nil {
		list = []models.Connection{}
	}
	return list, nil
}

// RemoveConnection deletes an accepted connection or withdraws/declines a request.
func (s *GraphService) RemoveConnection(ctx context.Context, user, other primitive.ObjectID) error {
	removed, err := s.graph.DeleteConnection(ctx, user, other)
	if err != nil {
		return errors.Wrap(err, "remove connection")
	}
	if !removed {
		return apperr.NotFound("Connection not found")
	}
	return nil
}

func (s *GraphService) Follow(ctx context.Context, follower, following primitive.ObjectID) error {
	if _, err := s.target(ctx, follower, following); err != nil {
		return err
	}
	if err := s.ensureNotBlocked(ctx, follower, following); err != nil {
		return err
	}
	err := s.graph.Follow(ctx, &models.Follower{Follower: follower, Following: following, CreatedAt: s.now()})
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("You already follow this user")
	}
	if err != nil {
		return errors.Wrap(err, "follow")
	}
	s.notify(ctx, follower, following, "started following you")
	return nil
}

func (s *GraphService) Unfollow(ctx context.Context, follower, following primitive.ObjectID) error {
	removed, err := s.graph.Unfollow(ctx, follower, following)
	if err != nil {
		return errors.Wrap(err, "unfollow")
	}
	if !removed {
		return apperr.NotFound("You do not follow this user")
	}
	return nil
}

// Block records the block and severs connections and follows both ways.
func (s *GraphService) Block(ctx context.Context, blocker, blocked primitive.ObjectID) error {
	if _, err := s.target(ctx, blocker, blocked); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		err := s.graph.Block(ctx, &models.BlockedUser{Blocker: blocker, Blocked: blocked, CreatedAt: s.now()})
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("User already blocked")
		}
		if err != nil {
			return errors.Wrap(err, "block")
		}
		if _, err := s.graph.DeleteConnection(ctx, blocker, blocked); err != nil {
			return errors.Wrap(err, "remove connection")
		}
		if _, err := s.graph.Unfollow(ctx, blocker, blocked); err != nil {
			return errors.Wrap(err, "remove follow")
		}
		_, err = s.graph.Unfollow(ctx, blocked, blocker)
		return errors.Wrap(err, "remove follow")
	})
}

func (s *GraphService) Unblock(ctx context.Context, blocker, blocked primitive.ObjectID) error {
	removed, err := s.graph.Unblock(ctx, blocker, blocked)
	if err != nil {
		return errors.Wrap(err, "unblock")
	}
	if !removed {
		return apperr.NotFound("User is not blocked")
	}
	return nil
}

func (s *GraphService) notify(ctx context.Context, actor, receiver primitive.ObjectID, action string) {
	name, avatar := "Someone", ""
	if u, err := s.users.FindByID(ctx, actor); err == nil {
		name, avatar = u.Name, u.Avatar
	}
	_, err := s.notifications.AddCustom(ctx, NotificationInput{
		Sender:   &actor,
		Receiver: &receiver,
		Title:    "New connection activity",
		Message:  name + " " + action,
		Image:    avatar,
		Type:     models.NotifyConnection,
		Link:     "/users/" + actor.Hex(),
	})
	if err != nil {
		logger.Warn("connection notification failed", zap.Error(err))
	}
}
