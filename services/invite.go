package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"wayfarer/apperr"
	"wayfarer/logger"
	"wayfarer/models"
)

type CreateGroupInput struct {
	Name        string
	Description string
}

type CreateEventInput struct {
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
}

type InviteService struct {
	store         InviteStore
	users         UserStore
	graph         GraphStore
	notifications *NotificationService
	tx            TxRunner
	now           func() time.Time
}

func NewInviteService(store InviteStore, users UserStore, graph GraphStore, notifications *NotificationService, tx TxRunner) *InviteService {
	return &InviteService{store: store, users: users, graph: graph, notifications: notifications, tx: tx, now: time.Now}
}

func (s *InviteService) CreateGroup(ctx context.Context, owner primitive.ObjectID, in CreateGroupInput) (*models.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.BadRequest("Group name is required")
	}
	g := &models.Group{
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		Owner:          owner,
		Members:        []primitive.ObjectID{owner},
		PendingInvites: []primitive.ObjectID{},
		CreatedAt:      s.now(),
	}
	if err := s.store.InsertGroup(ctx, g); err != nil {
		return nil, errors.Wrap(err, "create group")
	}
	return g, nil
}

func (s *InviteService) CreateEvent(ctx context.Context, organizer primitive.ObjectID, in CreateEventInput) (*models.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.BadRequest("Event title is required")
	}
	now := s.now()
	if !in.StartsAt.After(now) {
		return nil, apperr.BadRequest("Event must start in the future")
	}
	e := &models.Event{
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Location:       strings.TrimSpace(in.Location),
		Organizer:      organizer,
		StartsAt:       in.StartsAt,
		Attendees:      []primitive.ObjectID{organizer},
		PendingInvites: []primitive.ObjectID{},
		CreatedAt:      now,
	}
	if err := s.store.InsertEvent(ctx, e); err != nil {
		return nil, errors.Wrap(err, "create event")
	}
	return e, nil
}

// target checks that inviter belongs to the group or event and invitee does
// not, and returns its display name.
func (s *InviteService) target(ctx context.Context, kind string, id, inviter, invitee primitive.ObjectID) (string, error) {
	switch kind {
	case models.InviteGroup:
		g, err := s.store.FindGroup(ctx, id)
		if isNotFound(err) {
			return "", apperr.NotFound("Group not found")
		}
		if err != nil {
			return "", errors.Wrap(err, "load group")
		}
		if !g.IsMember(inviter) {
			return "", apperr.Forbidden("Only members can invite to this group")
		}
		if g.IsMember(invitee) {
			return "", apperr.Conflict("User is already a member")
		}
		return g.Name, nil

	case models.InviteEvent:
		e, err := s.store.FindEvent(ctx, id)
		if isNotFound(err) {
			return "", apperr.NotFound("Event not found")
		}
		if err != nil {
			return "", errors.Wrap(err, "load event")
		}
		if !e.IsAttendee(inviter) {
			return "", apperr.Forbidden("Only attendees can invite to this event")
		}
		if e.IsAttendee(invitee) {
			return "", apperr.Conflict("User is already attending")
		}
		return e.Title, nil
	}
	return "", apperr.BadRequest("Invite kind must be group or event")
}

// Invite records the invite and the pending entry on the target together.
func (s *InviteService) Invite(ctx context.Context, inviter primitive.ObjectID, kind string, target, invitee primitive.ObjectID) (*models.Invite, error) {
	if inviter == invitee {
		return nil, apperr.BadRequest("You cannot invite yourself")
	}
	u, err := s.users.FindByID(ctx, invitee)
	if isNotFound(err) || (err == nil && !u.Active()) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load invitee")
	}
	blocked, err := s.graph.IsBlocked(ctx, inviter, invitee)
	if err != nil {
		return nil, errors.Wrap(err, "check block")
	}
	if blocked {
		return nil, apperr.Forbidden("You cannot invite this user")
	}

	name, err := s.target(ctx, kind, target, inviter, invitee)
	if err != nil {
		return nil, err
	}

	now := s.now()
	inv := &models.Invite{
		Kind:      kind,
		Target:    target,
		Inviter:   inviter,
		Invitee:   invitee,
		Status:    models.InvitePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertInvite(ctx, inv); err != nil {
			return err
		}
		return errors.Wrap(s.store.AddPending(ctx, kind, target, invitee), "add pending invite")
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil, apperr.Conflict("User already has a pending invite")
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert invite")
	}

	s.notify(ctx, inviter, invitee, kind, "You have been invited to "+name)
	return inv, nil
}

func (s *InviteService) Pending(ctx context.Context, invitee primitive.ObjectID) ([]models.Invite, error) {
	list, err := s.store.ListPending(ctx, invitee)
	if err != nil {
		return nil, errors.Wrap(err, "list invites")
	}
	if list == nil {
		list = []models.Invite{}
	}
	return list, nil
}

// Respond accepts or declines a pending invite. Only the invitee may answer.
func (s *InviteService) Respond(ctx context.Context, user, id primitive.ObjectID, accept bool) (*models.Invite, error) {
	inv, err := s.store.FindInvite(ctx, id)
	if isNotFound(err) {
		return nil, apperr.NotFound("Invite not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load invite")
	}
	if inv.Invitee != user {
		return nil, apperr.Forbidden("Only the invitee can answer this invite")
	}
	if err := inv.Answer(accept, s.now()); err != nil {
		return nil, apperr.Conflict(err.Error())
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.SetInviteStatus(ctx, inv.ID, inv.Status, inv.UpdatedAt); err != nil {
			return errors.Wrap(err, "update invite")
		}
		if accept {
			return errors.Wrap(s.store.AddMember(ctx, inv.Kind, inv.Target, user), "add member")
		}
		return errors.Wrap(s.store.RemovePending(ctx, inv.Kind, inv.Target, user), "remove pending invite")
	})
	if isNotFound(err) {
		// Another request answered it first.
		return nil, apperr.Conflict(models.ErrInviteClosed.Error())
	}
	if err != nil {
		return nil, err
	}

	verb := "declined"
	if accept {
		verb = "accepted"
	}
	s.notify(ctx, user, inv.Inviter, inv.Kind, "Your invite was "+verb)
	return inv, nil
}

func (s *InviteService) notify(ctx context.Context, actor, receiver primitive.ObjectID, kind, message string) {
	typ := models.NotifyGroup
	if kind == models.InviteEvent {
		typ = models.NotifyEvent
	}
	_, err := s.notifications.AddCustom(ctx, NotificationInput{
		Sender:   &actor,
		Receiver: &receiver,
		Title:    "Invitation",
		Message:  message,
		Type:     typ,
		Link:     "/invites",
	})
	if err != nil {
		logger.Warn("invite notification failed", zap.Error(err))
	}
}
