package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
)

type Connection struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Requester primitive.ObjectID `bson:"requester" json:"requester"`
	Recipient primitive.ObjectID `bson:"recipient" json:"recipient"`
	Status    string             `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Other returns the side of the connection that is not user.
func (c *Connection) Other(user primitive.ObjectID) primitive.ObjectID {
	if c.Requester == user {
		return c.Recipient
	}
	return c.Requester
}

type Follower struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Follower  primitive.ObjectID `bson:"follower" json:"follower"`
	Following primitive.ObjectID `bson:"following" json:"following"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type BlockedUser struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Blocker   primitive.ObjectID `bson:"blocker" json:"blocker"`
	Blocked   primitive.ObjectID `bson:"blocked" json:"blocked"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
