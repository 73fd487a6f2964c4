package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	InviteGroup = "group"
	InviteEvent = "event"

	InvitePending  = "pending"
	InviteAccepted = "accepted"
	InviteDeclined = "declined"
)

var ErrInviteClosed = errors.New("invite already answered")

type Group struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name           string               `bson:"name" json:"name"`
	Description    string               `bson:"description,omitempty" json:"description,omitempty"`
	Owner          primitive.ObjectID   `bson:"owner" json:"owner"`
	Members        []primitive.ObjectID `bson:"members" json:"members"`
	PendingInvites []primitive.ObjectID `bson:"pendingInvites" json:"pendingInvites"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
}

type Event struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title          string               `bson:"title" json:"title"`
	Description    string               `bson:"description,omitempty" json:"description,omitempty"`
	Location       string               `bson:"location,omitempty" json:"location,omitempty"`
	Organizer      primitive.ObjectID   `bson:"organizer" json:"organizer"`
	StartsAt       time.Time            `bson:"startsAt" json:"startsAt"`
	Attendees      []primitive.ObjectID `bson:"attendees" json:"attendees"`
	PendingInvites []primitive.ObjectID `bson:"pendingInvites" json:"pendingInvites"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
}

type Invite struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind      string             `bson:"kind" json:"kind"`
	Target    primitive.ObjectID `bson:"target" json:"target"`
	Inviter   primitive.ObjectID `bson:"inviter" json:"inviter"`
	Invitee   primitive.ObjectID `bson:"invitee" json:"invitee"`
	Status    string             `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Answer moves a pending invite to accepted or declined.
func (i *Invite) Answer(accept bool, now time.Time) error {
	if i.Status != InvitePending {
		return ErrInviteClosed
	}
	if accept {
		i.Status = InviteAccepted
	} else {
		i.Status = InviteDeclined
	}
	i.UpdatedAt = now
	return nil
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (g *Group) IsMember(id primitive.ObjectID) bool {
	return g.Owner == id || containsID(g.Members, id)
}

func (e *Event) IsAttendee(id primitive.ObjectID) bool {
	return e.Organizer == id || containsID(e.Attendees, id)
}
