package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"wayfarer/apperr"
	"wayfarer/models"
	"wayfarer/realtime"
)

type inviteFixture struct {
	svc   *InviteService
	store *fakeInvites
	users *fakeUsers
	graph *fakeGraph
	pub   *fakePublisher
}

func newInviteFixture() *inviteFixture {
	f := &inviteFixture{store: newFakeInvites(), users: newFakeUsers(), graph: &fakeGraph{}, pub: &fakePublisher{}}
	notes := NewNotificationService(&fakeNotifications{}, f.pub, newFakePresence(), nil)
	f.svc = NewInviteService(f.store, f.users, f.graph, notes, &fakeTx{})
	return f
}

func TestGroupInviteAccepted(t *testing.T) {
	f := newInviteFixture()
	ctx := context.Background()
	owner, guest := f.users.add("owner"), f.users.add("guest")

	group, err := f.svc.CreateGroup(ctx, owner, CreateGroupInput{Name: " Hikers "})
	require.NoError(t, err)
	assert.Equal(t, "Hikers", group.Name)

	inv, err := f.svc.Invite(ctx, owner, models.InviteGroup, group.ID, guest)
	require.NoError(t, err)
	assert.Equal(t, []string{realtime.NotificationEvent(models.NotifyGroup, guest)}, f.pub.to(realtime.UserRoom(guest)))

	_, err = f.svc.Invite(ctx, owner, models.InviteGroup, group.ID, guest)
	assert.Equal(t, 409, apperr.Translate(err).Status)

	pending, err := f.svc.Pending(ctx, guest)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = f.svc.Respond(ctx, owner, inv.ID, true)
	assert.Equal(t, 403, apperr.Translate(err).Status)

	answered, err := f.svc.Respond(ctx, guest, inv.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.InviteAccepted, answered.Status)

	stored, err := f.store.FindGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsMember(guest))
	assert.Empty(t, stored.PendingInvites)

	_, err = f.svc.Respond(ctx, guest, inv.ID, false)
	assert.Equal(t, 409, apperr.Translate(err).Status)

	_, err = f.svc.Invite(ctx, owner, models.InviteGroup, group.ID, guest)
	assert.Equal(t, 409, apperr.Translate(err).Status)
}

func TestEventInviteDeclined(t *testing.T) {
	f := newInviteFixture()
	ctx := context.Background()
	organizer, guest, outsider := f.users.add("org"), f.users.add("guest"), f.users.add("out")

	_, err := f.svc.CreateEvent(ctx, organizer, CreateEventInput{Title: "Past", StartsAt: time.Now().Add(-time.Hour)})
	assert.Equal(t, 400, apperr.Translate(err).Status)

	event, err := f.svc.CreateEvent(ctx, organizer, CreateEventInput{Title: "Meetup", StartsAt: time.Now().Add(48 * time.Hour)})
	require.NoError(t, err)

	_, err = f.svc.Invite(ctx, outsider, models.InviteEvent, event.ID, guest)
	assert.Equal(t, 403, apperr.Translate(err).Status)

	inv, err := f.svc.Invite(ctx, organizer, models.InviteEvent, event.ID, guest)
	require.NoError(t, err)

	answered, err := f.svc.Respond(ctx, guest, inv.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.InviteDeclined, answered.Status)

	stored, err := f.store.FindEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAttendee(guest))
	assert.Empty(t, stored.PendingInvites)
	assert.Equal(t, []string{realtime.NotificationEvent(models.NotifyEvent, organizer)}, f.pub.to(realtime.UserRoom(organizer)))
}

func TestInviteRejections(t *testing.T) {
	f := newInviteFixture()
	ctx := context.Background()
	owner, guest := f.users.add("owner"), f.users.add("guest")
	group, err := f.svc.CreateGroup(ctx, owner, CreateGroupInput{Name: "g"})
	require.NoError(t, err)

	_, err = f.svc.Invite(ctx, owner, models.InviteGroup, group.ID, owner)
	assert.Equal(t, 400, apperr.Translate(err).Status)

	_, err = f.svc.Invite(ctx, owner, models.InviteGroup, group.ID, primitive.NewObjectID())
	assert.Equal(t, 404, apperr.Translate(err).Status)

	_, err = f.svc.Invite(ctx, owner, "party", group.ID, guest)
	assert.Equal(t, 400, apperr.Translate(err).Status)

	_, err = f.svc.Invite(ctx, owner, models.InviteGroup, primitive.NewObjectID(), guest)
	assert.Equal(t, 404, apperr.Translate(err).Status)

	f.graph.block(guest, owner)
	_, err = f.svc.Invite(ctx, owner, models.InviteGroup, group.ID, guest)
	assert.Equal(t, 403, apperr.Translate(err).Status)
}

// staleInvites serves the invite as still pending after it has been answered.
type staleInvites struct {
	*fakeInvites
	snapshot models.Invite
}

func (s *staleInvites) FindInvite(context.Context, primitive.ObjectID) (*models.Invite, error) {
	cp := s.snapshot
	return &cp, nil
}

func TestRespondLosesRace(t *testing.T) {
	f := newInviteFixture()
	ctx := context.Background()
	owner, guest := f.users.add("owner"), f.users.add("guest")
	group, err := f.svc.CreateGroup(ctx, owner, CreateGroupInput{Name: "g"})
	require.NoError(t, err)
	inv, err := f.svc.Invite(ctx, owner, models.InviteGroup, group.ID, guest)
	require.NoError(t, err)

	stale := &staleInvites{fakeInvites: f.store, snapshot: *inv}
	f.svc.store = stale

	_, err = f.svc.Respond(ctx, guest, inv.ID, true)
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, guest, inv.ID, false)
	assert.Equal(t, 409, apperr.Translate(err).Status)

	stored, err := f.store.FindGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsMember(guest))
}
