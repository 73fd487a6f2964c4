package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"wayfarer/logger"
)

const subjectPrefix = "rt."

// NATSBridge publishes events on NATS so every process delivers them to its
// own sockets. Subjects are rt.<room>.
type NATSBridge struct {
	nc    *nats.Conn
	sub   *nats.Subscription
	local *Manager
}

func NewNATSBridge(url string, local *Manager) (*NATSBridge, error) {
	nc, err := nats.Connect(url,
		nats.Name("wayfarer-realtime"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return &NATSBridge{nc: nc, local: local}, nil
}

// Start subscribes to every room subject and hands envelopes to the local hub.
func (b *NATSBridge) Start() error {
	sub, err := b.nc.Subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			logger.Warn("dropping malformed realtime envelope", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		if env.Room == "" {
			env.Room = strings.TrimPrefix(msg.Subject, subjectPrefix)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := b.local.Dispatch(ctx, env); err != nil {
			logger.Warn("local dispatch failed", zap.String("room", env.Room), zap.Error(err))
		}
	})
	if err != nil {
		return errors.Wrap(err, "subscribe realtime subjects")
	}
	b.sub = sub
	logger.Info("realtime bridge subscribed", zap.String("subject", subjectPrefix+">"))
	return nil
}

func (b *NATSBridge) Publish(_ context.Context, room, event string, payload any) error {
	env, err := NewEnvelope(room, event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return errors.Wrap(b.nc.Publish(subjectPrefix+room, data), "publish realtime event")
}

func (b *NATSBridge) Close() error {
	if b.sub != nil {
		_ = b.sub.Drain()
	}
	return b.nc.Drain()
}
