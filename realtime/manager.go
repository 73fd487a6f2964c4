package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"wayfarer/logger"
)

const sendBuffer = 256

type Client struct {
	conn    *websocket.Conn
	userID  primitive.ObjectID
	rooms   []string
	send    chan []byte
	manager *Manager

	sendMu sync.Mutex
	closed bool
}

func newClient(m *Manager, conn *websocket.Conn, user primitive.ObjectID, rooms []string) *Client {
	return &Client{
		conn:    conn,
		userID:  user,
		rooms:   rooms,
		send:    make(chan []byte, sendBuffer),
		manager: m,
	}
}

// trySend queues frame without blocking. It is false when the buffer is
// full or the client is closed.
func (c *Client) trySend(frame []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

type unregisterReq struct {
	client    *Client
	remaining chan int
}

// Manager owns the room table. Only the Start goroutine mutates it; the
// mutex lets other goroutines read counts.
type Manager struct {
	clients    map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}
	users      map[primitive.ObjectID]int
	register   chan *Client
	unregister chan unregisterReq
	deliver    chan Envelope
	done       chan struct{}
	mu         sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		users:      make(map[primitive.ObjectID]int),
		register:   make(chan *Client),
		unregister: make(chan unregisterReq),
		deliver:    make(chan Envelope, 1024),
		done:       make(chan struct{}),
	}
}

// Start runs the hub until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return

		case client := <-m.register:
			m.add(client)
			logger.Debug("websocket client registered",
				zap.String("user", client.userID.Hex()), zap.Int("clients", m.ConnectedClients()))

		case req := <-m.unregister:
			req.remaining <- m.remove(req.client)

		case env := <-m.deliver:
			m.fanOut(env)
		}
	}
}

func (m *Manager) add(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c] = struct{}{}
	for _, room := range c.rooms {
		members, ok := m.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			m.rooms[room] = members
		}
		members[c] = struct{}{}
	}
	m.users[c.userID]++
}

// remove drops c from every room and returns how many sockets its user still holds.
func (m *Manager) remove(c *Client) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(c)
}

func (m *Manager) removeLocked(c *Client) int {
	if _, ok := m.clients[c]; !ok {
		return m.users[c.userID]
	}
	delete(m.clients, c)
	for _, room := range c.rooms {
		delete(m.rooms[room], c)
		if len(m.rooms[room]) == 0 {
			delete(m.rooms, room)
		}
	}
	c.close()
	m.users[c.userID]--
	left := m.users[c.userID]
	if left <= 0 {
		delete(m.users, c.userID)
	}
	return left
}

func (m *Manager) fanOut(env Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		logger.Error("encode realtime envelope", zap.String("event", env.Type), zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for client := range m.rooms[env.Room] {
		if !client.trySend(frame) {
			// Slow consumer; its pumps exit once send is closed.
			logger.Warn("dropping slow websocket client", zap.String("user", client.userID.Hex()))
			m.removeLocked(client)
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.clients {
		m.removeLocked(c)
	}
}

// Register adds c to the hub.
func (m *Manager) Register(c *Client) bool {
	select {
	case m.register <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes c and returns the number of sockets its user still holds.
func (m *Manager) Unregister(c *Client) int {
	req := unregisterReq{client: c, remaining: make(chan int, 1)}
	select {
	case m.unregister <- req:
		return <-req.remaining
	case <-m.done:
		return 0
	}
}

// Publish delivers event to every socket in room on this process.
func (m *Manager) Publish(ctx context.Context, room, event string, payload any) error {
	env, err := NewEnvelope(room, event, payload)
	if err != nil {
		return err
	}
	return m.Dispatch(ctx, env)
}

func (m *Manager) Dispatch(ctx context.Context, env Envelope) error {
	select {
	case m.deliver <- env:
		return nil
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) Online(user primitive.ObjectID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[user] > 0
}

func (m *Manager) ConnectedClients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.users {
		n += c
	}
	return n
}
