package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ChatSingle = "single"
	ChatGroup  = "group"

	ContentText  = "text"
	ContentMedia = "media"
	ContentMixed = "mixed"

	MaxMessageFiles = 10
)

var (
	ErrContentType   = errors.New("content type must be text, media or mixed")
	ErrContentText   = errors.New("text content needs text and no files")
	ErrContentMedia  = errors.New("media content needs files and no text")
	ErrContentMixed  = errors.New("mixed content needs both text and files")
	ErrTooManyFiles  = errors.New("a message carries at most 10 files")
	ErrContentFormat = errors.New("file urls must not be empty")
)

type Chat struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Type             string               `bson:"type" json:"type"`
	Participants     []primitive.ObjectID `bson:"participants" json:"participants"`
	DirectKey        string               `bson:"directKey,omitempty" json:"-"`
	LastMessage      *primitive.ObjectID  `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	LastMessageAt    *time.Time           `bson:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
	IsDeleted        bool                 `bson:"isDeleted" json:"-"`
	Name             string               `bson:"name,omitempty" json:"name,omitempty"`
	Admin            *primitive.ObjectID  `bson:"admin,omitempty" json:"admin,omitempty"`
	CanMembersAdd    bool                 `bson:"canMembersAdd" json:"canMembersAdd"`
	CanMembersRemove bool                 `bson:"canMembersRemove" json:"canMembersRemove"`
	CreatedAt        time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// DirectKey identifies the single chat between a and b regardless of order.
func DirectKey(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

func (c *Chat) HasParticipant(id primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

func (c *Chat) IsAdmin(id primitive.ObjectID) bool {
	return c.Admin != nil && *c.Admin == id
}

// Others returns every participant except id.
func (c *Chat) Others(id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != id {
			out = append(out, p)
		}
	}
	return out
}

type MessageContent struct {
	Type  string   `bson:"type" json:"type" binding:"required,oneof=text media mixed"`
	Text  string   `bson:"text,omitempty" json:"text,omitempty"`
	Files []string `bson:"files,omitempty" json:"files,omitempty"`
}

func (mc MessageContent) Validate() error {
	hasText := strings.TrimSpace(mc.Text) != ""
	hasFiles := len(mc.Files) > 0
	if len(mc.Files) > MaxMessageFiles {
		return ErrTooManyFiles
	}
	for _, f := range mc.Files {
		if strings.TrimSpace(f) == "" {
			return ErrContentFormat
		}
	}
	switch mc.Type {
	case ContentText:
		if !hasText || hasFiles {
			return ErrContentText
		}
	case ContentMedia:
		if hasText || !hasFiles {
			return ErrContentMedia
		}
	case ContentMixed:
		if !hasText || !hasFiles {
			return ErrContentMixed
		}
	default:
		return ErrContentType
	}
	return nil
}

type Message struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Sender     primitive.ObjectID   `bson:"sender" json:"sender"`
	Receiver   *primitive.ObjectID  `bson:"receiver,omitempty" json:"receiver,omitempty"`
	Chat       primitive.ObjectID   `bson:"chat" json:"chat"`
	Content    MessageContent       `bson:"content" json:"content"`
	SeenBy     []primitive.ObjectID `bson:"seenBy" json:"seenBy"`
	DeletedFor []primitive.ObjectID `bson:"deletedFor" json:"-"`
	IsDeleted  bool                 `bson:"isDeleted" json:"isDeleted"`
	CreatedAt  time.Time            `bson:"createdAt" json:"createdAt"`
}

func (m *Message) SeenByUser(id primitive.ObjectID) bool {
	for _, u := range m.SeenBy {
		if u == id {
			return true
		}
	}
	return false
}
