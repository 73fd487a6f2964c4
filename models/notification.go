package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotifyPost       = "post"
	NotifyStory      = "story"
	NotifyComment    = "comment"
	NotifyEvent      = "event"
	NotifyGroup      = "group"
	NotifyConnection = "connection"
	NotifyMessage    = "message"
)

type Notification struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Sender   *primitive.ObjectID `bson:"sender,omitempty" json:"sender,omitempty"`
	Receiver *primitive.ObjectID `bson:"receiver,omitempty" json:"receiver,omitempty"`
	Title    string              `bson:"title" json:"title"`
	Message  string              `bson:"message" json:"message"`
	Image    string              `bson:"image,omitempty" json:"image,omitempty"`
	Type     string              `bson:"type" json:"type"`
	Link     string              `bson:"link,omitempty" json:"link,omitempty"`
	// Role is RoleAdmin for rows addressed to every administrator.
	Role      string    `bson:"role" json:"role"`
	Viewed    bool      `bson:"viewed" json:"viewed"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func (n *Notification) AdminScoped() bool {
	return n.Role == RoleAdmin
}
