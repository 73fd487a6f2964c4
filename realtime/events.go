// Package realtime delivers named events to per-user websocket rooms.
package realtime

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AdminRoom = "admin"

	EventNewMessage        = "new-message"
	EventNewChat           = "new-chat"
	EventAdminNotification = "admin-notification"
	EventConnected         = "connected"
	EventPong              = "pong"
	EventError             = "error"
)

// UserRoom is the room every socket of user joins.
func UserRoom(user primitive.ObjectID) string { return user.Hex() }

func SeenEvent(chatID primitive.ObjectID) string   { return "message-seen::" + chatID.Hex() }
func TypingEvent(chatID primitive.ObjectID) string { return "typing::" + chatID.Hex() }
func DeletedEvent(chatID primitive.ObjectID) string {
	return "message-deleted::" + chatID.Hex()
}

// NotificationEvent is the event name for a notification of typ sent to receiver.
func NotificationEvent(typ string, receiver primitive.ObjectID) string {
	return typ + "::" + receiver.Hex()
}

// Envelope is the frame written to sockets and carried over NATS.
type Envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Time    time.Time       `json:"time"`
}

func NewEnvelope(room, event string, payload any) (Envelope, error) {
	env := Envelope{ID: uuid.NewString(), Type: event, Room: room, Time: time.Now().UTC()}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, err
	}
	env.Payload = raw
	return env, nil
}

var ErrStopped = errors.New("realtime hub stopped")

var (
	errBadPayload   = errors.New("invalid payload")
	errUnknownFrame = errors.New("unknown frame type")
)
