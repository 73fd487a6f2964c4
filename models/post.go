package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PostTypeUser  = "user"
	PostTypeGroup = "group"
	PostTypeEvent = "event"

	PrivacyPublic  = "public"
	PrivacyFriends = "friends"
	PrivacyPrivate = "private"

	MediaImage = "image"
	MediaVideo = "video"
)

var (
	ErrMissingSource  = errors.New("group and event posts need a source")
	ErrInvalidPrivacy = errors.New("privacy must be public, friends or private")
	ErrInvalidType    = errors.New("post type must be user, group or event")
	ErrEmptyPost      = errors.New("post needs content, media or a shared post")
)

type Media struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner primitive.ObjectID `bson:"owner" json:"owner"`
	URL   string             `bson:"url" json:"url"`
	Type  string             `bson:"type" json:"type"`
	// ExpiresAt is set while the upload is not attached to anything.
	ExpiresAt *time.Time `bson:"expiresAt,omitempty" json:"-"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
}

type Comment struct {
	ID        primitive.ObjectID   `bson:"_id" json:"id"`
	Author    primitive.ObjectID   `bson:"author" json:"author"`
	Text      string               `bson:"text" json:"text"`
	Mentions  []primitive.ObjectID `bson:"mentions,omitempty" json:"mentions,omitempty"`
	Reactions []Reaction           `bson:"reactions" json:"reactions"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
}

type Share struct {
	Origin primitive.ObjectID `bson:"origin" json:"origin"`
}

type Post struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Author     primitive.ObjectID   `bson:"author" json:"author"`
	Type       string               `bson:"type" json:"type"`
	Source     *primitive.ObjectID  `bson:"source,omitempty" json:"source,omitempty"`
	Content    string               `bson:"content" json:"content"`
	Media      []primitive.ObjectID `bson:"media" json:"media"`
	Hashtags   []string             `bson:"hashtags,omitempty" json:"hashtags,omitempty"`
	Privacy    string               `bson:"privacy" json:"privacy"`
	Reactions  []Reaction           `bson:"reactions" json:"reactions"`
	Comments   []Comment            `bson:"comments" json:"comments"`
	Share      *Share               `bson:"share,omitempty" json:"share,omitempty"`
	ShareCount int                  `bson:"shareCount" json:"shareCount"`
	IsDeleted  bool                 `bson:"isDeleted" json:"-"`
	CreatedAt  time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// PostView is a post with its author and media populated.
type PostView struct {
	Post       `bson:",inline"`
	AuthorInfo *UserSummary `bson:"authorInfo,omitempty" json:"authorInfo,omitempty"`
	MediaItems []Media      `bson:"mediaItems" json:"mediaItems"`
}

func (p *Post) Validate() error {
	switch p.Type {
	case PostTypeUser:
	case PostTypeGroup, PostTypeEvent:
		if p.Source == nil || p.Source.IsZero() {
			return ErrMissingSource
		}
	default:
		return ErrInvalidType
	}
	switch p.Privacy {
	case PrivacyPublic, PrivacyFriends, PrivacyPrivate:
	default:
		return ErrInvalidPrivacy
	}
	if strings.TrimSpace(p.Content) == "" && len(p.Media) == 0 && p.Share == nil {
		return ErrEmptyPost
	}
	return nil
}

// NormalizeHashtags lowercases tags, strips the leading '#' and drops duplicates.
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = NormalizeHashtag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func NormalizeHashtag(tag string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(tag), "#"))
}

// AllMediaOfType is false for posts without media.
func (v *PostView) AllMediaOfType(typ string) bool {
	if len(v.MediaItems) == 0 {
		return false
	}
	for _, m := range v.MediaItems {
		if m.Type != typ {
			return false
		}
	}
	return true
}

func (p *Post) FindComment(id primitive.ObjectID) *Comment {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return &p.Comments[i]
		}
	}
	return nil
}
