// Package presence tracks which users hold a live socket and whether they
// have the message box open.
package presence

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"wayfarer/logger"
)

type Status struct {
	Online       bool      `json:"online"`
	InMessageBox bool      `json:"inMessageBox"`
	LastSeen     time.Time `json:"lastSeen"`
}

// Tracker counts sockets per user. SetOnline and SetOffline are called once
// per socket; a user is online while the count is above zero.
type Tracker interface {
	SetOnline(ctx context.Context, user primitive.ObjectID) error
	SetOffline(ctx context.Context, user primitive.ObjectID) error
	SetMessageBox(ctx context.Context, user primitive.ObjectID, open bool) error
	// Touch renews the entry of a user with a live socket.
	Touch(ctx context.Context, user primitive.ObjectID) error
	Status(ctx context.Context, user primitive.ObjectID) (Status, error)
}

// Memory is a process-local Tracker.
type Memory struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]Status
	conns map[primitive.ObjectID]int
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[primitive.ObjectID]Status),
		conns: make(map[primitive.ObjectID]int),
		now:   time.Now,
	}
}

func (m *Memory) SetOnline(_ context.Context, user primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[user]++
	st := m.users[user]
	st.Online = true
	st.LastSeen = m.now()
	m.users[user] = st
	return nil
}

func (m *Memory) SetOffline(_ context.Context, user primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conns[user] > 1 {
		m.conns[user]--
		return nil
	}
	delete(m.conns, user)
	m.users[user] = Status{LastSeen: m.now()}
	return nil
}

// SetMessageBox is ignored for users who are not online.
func (m *Memory) SetMessageBox(_ context.Context, user primitive.ObjectID, open bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.users[user]
	if !ok || !st.Online {
		return nil
	}
	st.InMessageBox = open
	m.users[user] = st
	return nil
}

func (m *Memory) Touch(_ context.Context, user primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.users[user]; ok && st.Online {
		st.LastSeen = m.now()
		m.users[user] = st
	}
	return nil
}

func (m *Memory) Status(_ context.Context, user primitive.ObjectID) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[user], nil
}

// StatusWriter persists presence flags on the user document.
type StatusWriter interface {
	SetPresence(ctx context.Context, user primitive.ObjectID, online, inMessageBox bool, at time.Time) error
}

// Mirrored copies every state change of a Tracker onto the user documents
// so profile reads show isOnline and lastSeen. Mirror failures are logged.
type Mirrored struct {
	Tracker
	users StatusWriter
}

func NewMirrored(t Tracker, users StatusWriter) *Mirrored {
	return &Mirrored{Tracker: t, users: users}
}

func (m *Mirrored) SetOnline(ctx context.Context, user primitive.ObjectID) error {
	if err := m.Tracker.SetOnline(ctx, user); err != nil {
		return err
	}
	m.mirror(ctx, user)
	return nil
}

func (m *Mirrored) SetOffline(ctx context.Context, user primitive.ObjectID) error {
	if err := m.Tracker.SetOffline(ctx, user); err != nil {
		return err
	}
	m.mirror(ctx, user)
	return nil
}

func (m *Mirrored) SetMessageBox(ctx context.Context, user primitive.ObjectID, open bool) error {
	if err := m.Tracker.SetMessageBox(ctx, user, open); err != nil {
		return err
	}
	m.mirror(ctx, user)
	return nil
}

func (m *Mirrored) mirror(ctx context.Context, user primitive.ObjectID) {
	st, err := m.Tracker.Status(ctx, user)
	if err == nil {
		at := st.LastSeen
		if at.IsZero() {
			at = time.Now()
		}
		err = m.users.SetPresence(ctx, user, st.Online, st.InMessageBox, at)
	}
	if err != nil {
		logger.Warn("presence mirror failed", zap.String("user", user.Hex()), zap.Error(err))
	}
}
