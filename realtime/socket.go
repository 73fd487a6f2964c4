package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"wayfarer/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 4096
	inboundTimeout = 10 * time.Second
)

// TokenParser resolves the ?token= query value to a user and role.
type TokenParser func(token string) (user primitive.ObjectID, role string, err error)

// PresenceWriter is told about every socket that opens or closes, and is
// touched on each pong while a socket stays alive.
type PresenceWriter interface {
	SetOnline(ctx context.Context, user primitive.ObjectID) error
	SetOffline(ctx context.Context, user primitive.ObjectID) error
	Touch(ctx context.Context, user primitive.ObjectID) error
}

// InboundHandler serves the frames a client may send.
type InboundHandler interface {
	Typing(ctx context.Context, user, chatID primitive.ObjectID) error
	Seen(ctx context.Context, user, chatID primitive.ObjectID) error
	MessageBox(ctx context.Context, user primitive.ObjectID, open bool) error
}

type HandlerConfig struct {
	Auth        TokenParser
	Presence    PresenceWriter
	Inbound     InboundHandler
	CheckOrigin func(r *http.Request) bool
}

type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type chatPayload struct {
	ChatID string `json:"chatId"`
}

type boxPayload struct {
	Open bool `json:"open"`
}

func WebSocketHandler(manager *Manager, cfg HandlerConfig) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin:     cfg.CheckOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}
		userID, role, err := cfg.Auth(token)
		if err != nil {
			logger.Debug("websocket rejected", zap.Error(err))
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		rooms := []string{UserRoom(userID)}
		if role == "admin" {
			rooms = append(rooms, AdminRoom)
		}
		client := newClient(manager, conn, userID, rooms)
		if !manager.Register(client) {
			_ = conn.Close()
			return
		}

		if cfg.Presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
			if err := cfg.Presence.SetOnline(ctx, userID); err != nil {
				logger.Warn("presence online failed", zap.String("user", userID.Hex()), zap.Error(err))
			}
			cancel()
		}

		client.sendEvent(EventConnected, map[string]interface{}{"userId": userID.Hex()})

		go client.writePump()
		go client.readPump(cfg)
	}
}

func (c *Client) readPump(cfg HandlerConfig) {
	defer func() {
		left := c.manager.Unregister(c)
		_ = c.conn.Close()
		logger.Debug("websocket closed", zap.String("user", c.userID.Hex()), zap.Int("localSockets", left))
		if cfg.Presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
			defer cancel()
			if err := cfg.Presence.SetOffline(ctx, c.userID); err != nil {
				logger.Warn("presence offline failed", zap.String("user", c.userID.Hex()), zap.Error(err))
			}
		}
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch(cfg)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", zap.String("user", c.userID.Hex()), zap.Error(err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.sendEvent(EventError, map[string]string{"message": "malformed frame"})
			continue
		}
		if err := c.handle(cfg, frame); err != nil {
			c.sendEvent(EventError, map[string]string{"type": frame.Type, "message": err.Error()})
		}
	}
}

func (c *Client) handle(cfg HandlerConfig, frame inboundFrame) error {
	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()

	switch frame.Type {
	case "ping":
		c.touch(cfg)
		c.sendEvent(EventPong, map[string]int64{"time": time.Now().Unix()})
		return nil

	case "typing", "seen":
		var p chatPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return errBadPayload
		}
		chatID, err := primitive.ObjectIDFromHex(p.ChatID)
		if err != nil {
			return errBadPayload
		}
		if cfg.Inbound == nil {
			return nil
		}
		if frame.Type == "typing" {
			return cfg.Inbound.Typing(ctx, c.userID, chatID)
		}
		return cfg.Inbound.Seen(ctx, c.userID, chatID)

	case "message-box":
		var p boxPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return errBadPayload
		}
		if cfg.Inbound == nil {
			return nil
		}
		return cfg.Inbound.MessageBox(ctx, c.userID, p.Open)
	}
	return errUnknownFrame
}

// touch renews the user's presence for as long as the socket answers pings.
func (c *Client) touch(cfg HandlerConfig) {
	if cfg.Presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()
	if err := cfg.Presence.Touch(ctx, c.userID); err != nil {
		logger.Warn("presence touch failed", zap.String("user", c.userID.Hex()), zap.Error(err))
	}
}

// sendEvent writes directly to this client, bypassing rooms. It never blocks.
func (c *Client) sendEvent(event string, payload any) {
	env, err := NewEnvelope(UserRoom(c.userID), event, payload)
	if err != nil {
		return
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.trySend(frame)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
