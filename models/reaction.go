package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Reaction struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Type      string             `bson:"type" json:"type"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type ReactionOutcome int

const (
	ReactionAdded ReactionOutcome = iota
	ReactionRemoved
	ReactionReplaced
)

func (o ReactionOutcome) String() string {
	switch o {
	case ReactionAdded:
		return "added"
	case ReactionRemoved:
		return "removed"
	default:
		return "replaced"
	}
}

// ApplyReaction returns the reaction list after user reacts with typ.
// The same type again removes the entry, a different type replaces it.
// The input slice is not modified.
func ApplyReaction(reactions []Reaction, user primitive.ObjectID, typ string, now time.Time) ([]Reaction, ReactionOutcome) {
	out := make([]Reaction, 0, len(reactions)+1)
	outcome := ReactionAdded
	for _, r := range reactions {
		if r.User != user {
			out = append(out, r)
			continue
		}
		if r.Type == typ {
			outcome = ReactionRemoved
			continue
		}
		if outcome == ReactionAdded {
			outcome = ReactionReplaced
			out = append(out, Reaction{User: user, Type: typ, CreatedAt: now})
		}
	}
	if outcome == ReactionAdded {
		out = append(out, Reaction{User: user, Type: typ, CreatedAt: now})
	}
	return out, outcome
}
