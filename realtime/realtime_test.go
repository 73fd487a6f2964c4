package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func readEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return Envelope{}
	}
}

func TestManager_DeliversToRoomOnly(t *testing.T) {
	m := startManager(t)
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	ca := newClient(m, nil, alice, []string{UserRoom(alice)})
	cb := newClient(m, nil, bob, []string{UserRoom(bob)})
	require.True(t, m.Register(ca))
	require.True(t, m.Register(cb))

	require.NoError(t, m.Publish(context.Background(), UserRoom(alice), EventNewMessage, map[string]string{"text": "hi"}))

	env := readEnvelope(t, ca)
	assert.Equal(t, EventNewMessage, env.Type)
	assert.Equal(t, UserRoom(alice), env.Room)
	assert.NotEmpty(t, env.ID)
	assert.JSONEq(t, `{"text":"hi"}`, string(env.Payload))

	select {
	case <-cb.send:
		t.Fatal("bob received alice's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_AdminRoom(t *testing.T) {
	m := startManager(t)
	admin := primitive.NewObjectID()
	c := newClient(m, nil, admin, []string{UserRoom(admin), AdminRoom})
	require.True(t, m.Register(c))

	require.NoError(t, m.Publish(context.Background(), AdminRoom, EventAdminNotification, nil))
	assert.Equal(t, EventAdminNotification, readEnvelope(t, c).Type)
}

func TestManager_UnregisterCountsSockets(t *testing.T) {
	m := startManager(t)
	u := primitive.NewObjectID()
	first := newClient(m, nil, u, []string{UserRoom(u)})
	second := newClient(m, nil, u, []string{UserRoom(u)})
	require.True(t, m.Register(first))
	require.True(t, m.Register(second))
	assert.True(t, m.Online(u))
	assert.Equal(t, 2, m.ConnectedClients())

	assert.Equal(t, 1, m.Unregister(first))
	assert.Equal(t, 0, m.Unregister(second))
	assert.False(t, m.Online(u))
	// Unregistering twice is harmless.
	assert.Equal(t, 0, m.Unregister(second))

	_, open := <-first.send
	assert.False(t, open)
}

func TestEventNames(t *testing.T) {
	id, _ := primitive.ObjectIDFromHex("64b000000000000000000001")

	assert.Equal(t, "message-seen::64b000000000000000000001", SeenEvent(id))
	assert.Equal(t, "typing::64b000000000000000000001", TypingEvent(id))
	assert.Equal(t, "comment::64b000000000000000000001", NotificationEvent("comment", id))
}

type recordingInbound struct {
	mu     sync.Mutex
	typing []primitive.ObjectID
	box    []bool
}

func (r *recordingInbound) Typing(_ context.Context, _, chatID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing = append(r.typing, chatID)
	return nil
}

func (r *recordingInbound) Seen(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return errors.New("not a participant")
}

func (r *recordingInbound) MessageBox(_ context.Context, _ primitive.ObjectID, open bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.box = append(r.box, open)
	return nil
}

func TestWebSocketHandler_EndToEnd(t *testing.T) {
	m := startManager(t)
	user := primitive.NewObjectID()
	inbound := &recordingInbound{}

	srv := httptest.NewServer(WebSocketHandler(m, HandlerConfig{
		Auth: func(token string) (primitive.ObjectID, string, error) {
			if token != "good" {
				return primitive.NilObjectID, "", errors.New("bad token")
			}
			return user, "user", nil
		},
		Inbound: inbound,
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=bad", nil)
	require.Error(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good", nil)
	require.NoError(t, err)
	defer conn.Close()

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, EventConnected, env.Type)

	require.NoError(t, m.Publish(context.Background(), UserRoom(user), EventNewChat, map[string]string{"id": "c1"}))
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, EventNewChat, env.Type)

	chatID := primitive.NewObjectID()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "typing", "payload": map[string]string{"chatId": chatID.Hex()}}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "message-box", "payload": map[string]bool{"open": true}}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "ping"}))
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, EventPong, env.Type)

	inbound.mu.Lock()
	assert.Equal(t, []primitive.ObjectID{chatID}, inbound.typing)
	assert.Equal(t, []bool{true}, inbound.box)
	inbound.mu.Unlock()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "seen", "payload": map[string]string{"chatId": chatID.Hex()}}))
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, EventError, env.Type)
	assert.Contains(t, string(env.Payload), "not a participant")
}

type countingPresence struct {
	mu      sync.Mutex
	online  int
	offline int
	touched int
}

func (p *countingPresence) SetOnline(context.Context, primitive.ObjectID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online++
	return nil
}

func (p *countingPresence) SetOffline(context.Context, primitive.ObjectID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline++
	return nil
}

func (p *countingPresence) Touch(context.Context, primitive.ObjectID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touched++
	return nil
}

func (p *countingPresence) counts() (int, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online, p.offline, p.touched
}

func TestWebSocketHandler_PresencePerSocket(t *testing.T) {
	m := startManager(t)
	user := primitive.NewObjectID()
	presence := &countingPresence{}

	srv := httptest.NewServer(WebSocketHandler(m, HandlerConfig{
		Auth: func(string) (primitive.ObjectID, string, error) {
			return user, "user", nil
		},
		Presence: presence,
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=t"

	dial := func() *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env))
		return conn
	}
	first, second := dial(), dial()
	defer second.Close()

	// A pong answers the server's keepalive ping and renews presence.
	require.NoError(t, first.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second)))
	assert.Eventually(t, func() bool {
		_, _, touched := presence.counts()
		return touched == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, first.Close())
	assert.Eventually(t, func() bool {
		online, offline, _ := presence.counts()
		return online == 2 && offline == 1
	}, time.Second, 10*time.Millisecond)
}
