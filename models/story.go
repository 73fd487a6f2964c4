package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StoryPublic    = "public"
	StoryFollowers = "followers"
	StoryCustom    = "custom"
)

type Story struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner     primitive.ObjectID `bson:"owner" json:"owner"`
	Privacy   string             `bson:"privacy" json:"privacy"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type StoryViewer struct {
	User     primitive.ObjectID `bson:"user" json:"user"`
	ViewedAt time.Time          `bson:"viewedAt" json:"viewedAt"`
}

type StoryMedia struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Story     primitive.ObjectID `bson:"story" json:"story"`
	Owner     primitive.ObjectID `bson:"owner" json:"owner"`
	URL       string             `bson:"url" json:"url"`
	Type      string             `bson:"type" json:"type"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	Viewers   []StoryViewer      `bson:"viewers" json:"viewers"`
	Reactions []Reaction         `bson:"reactions" json:"reactions"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Live reports whether the media is still visible at now.
func (m *StoryMedia) Live(now time.Time) bool {
	return m.ExpiresAt.After(now)
}

func (m *StoryMedia) ViewedBy(user primitive.ObjectID) bool {
	for _, v := range m.Viewers {
		if v.User == user {
			return true
		}
	}
	return false
}

// StoryView is a story with its live media.
type StoryView struct {
	Story `bson:",inline"`
	Media []StoryMedia `bson:"media" json:"media"`
}

// ActiveMedia drops media whose expiry is at or before now. The TTL monitor
// runs about once a minute, so reads cannot rely on it alone.
func ActiveMedia(media []StoryMedia, now time.Time) []StoryMedia {
	out := make([]StoryMedia, 0, len(media))
	for _, m := range media {
		if m.Live(now) {
			out = append(out, m)
		}
	}
	return out
}

// EffectiveExpiry is the latest expiry across media, or the zero time.
func EffectiveExpiry(media []StoryMedia) time.Time {
	var latest time.Time
	for _, m := range media {
		if m.ExpiresAt.After(latest) {
			latest = m.ExpiresAt
		}
	}
	return latest
}

// SameUTCDay reports whether a and b fall on the same calendar day in UTC.
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
