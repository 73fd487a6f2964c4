package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash *string            `bson:"passwordHash,omitempty" json:"-"`
	Role         string             `bson:"role" json:"role"`

	Username string `bson:"username" json:"username"`
	Name     string `bson:"name" json:"name"`
	Avatar   string `bson:"avatar" json:"avatar"`
	Bio      string `bson:"bio" json:"bio"`

	IsDeleted bool       `bson:"isDeleted" json:"-"`
	IsBlocked bool       `bson:"isBlocked" json:"isBlocked"`
	IsBanned  bool       `bson:"isBanned" json:"isBanned"`
	BanUntil  *time.Time `bson:"banUntil,omitempty" json:"banUntil,omitempty"`

	IsOnline     bool      `bson:"isOnline" json:"isOnline"`
	InMessageBox bool      `bson:"inMessageBox" json:"-"`
	LastSeen     time.Time `bson:"lastSeen" json:"lastSeen"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// BanExpired reports whether a ban is set and its end time has passed.
func (u *User) BanExpired(now time.Time) bool {
	return u.IsBanned && u.BanUntil != nil && !u.BanUntil.After(now)
}

// Active is false for accounts other users must not interact with.
func (u *User) Active() bool {
	return !u.IsDeleted && !u.IsBlocked
}

// UserSummary is the author/participant shape embedded in responses.
type UserSummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Username string             `bson:"username" json:"username"`
	Name     string             `bson:"name" json:"name"`
	Avatar   string             `bson:"avatar" json:"avatar"`
}
