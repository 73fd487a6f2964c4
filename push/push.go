// Package push delivers Web Push notifications to users without a live socket.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"wayfarer/logger"
	"wayfarer/models"
)

type Payload struct {
	Title string
	Body  string
	Icon  string
	URL   string
	Type  string
}

func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"title": p.Title,
		"body":  p.Body,
		"icon":  p.Icon,
		"data": map[string]interface{}{
			"url":       p.URL,
			"type":      p.Type,
			"timestamp": time.Now().Unix(),
		},
	})
}

type SubscriptionStore interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

type Config struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	TTL        int
}

type Sender struct {
	store  SubscriptionStore
	cfg    Config
	client webpush.HTTPClient
}

func NewSender(store SubscriptionStore, cfg Config) *Sender {
	if cfg.TTL == 0 {
		cfg.TTL = 30
	}
	// webpush adds the scheme itself.
	cfg.Subscriber = strings.TrimPrefix(cfg.Subscriber, "mailto:")
	return &Sender{store: store, cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

// Enabled is false until both VAPID keys are configured.
func (s *Sender) Enabled() bool {
	return s.cfg.PublicKey != "" && s.cfg.PrivateKey != ""
}

func (s *Sender) PublicKey() string { return s.cfg.PublicKey }

func (s *Sender) Subscribe(ctx context.Context, sub *models.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	return errors.Wrap(s.store.Upsert(ctx, sub), "save push subscription")
}

// Send pushes p to every subscription of user. Subscriptions the push
// service reports as gone are deleted.
func (s *Sender) Send(ctx context.Context, user primitive.ObjectID, p Payload) error {
	if !s.Enabled() {
		return nil
	}

	subs, err := s.store.ListByUser(ctx, user)
	if err != nil {
		return errors.Wrap(err, "load push subscriptions")
	}
	if len(subs) == 0 {
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode push payload")
	}

	var lastErr error
	for _, sub := range subs {
		if err := s.sendOne(ctx, sub, body); err != nil {
			lastErr = err
			logger.Warn("push delivery failed", zap.String("user", user.Hex()), zap.Error(err))
		}
	}
	return lastErr
}

func (s *Sender) sendOne(ctx context.Context, sub models.PushSubscription, body []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.PublicKey,
		VAPIDPrivateKey: s.cfg.PrivateKey,
		TTL:             s.cfg.TTL,
	})
	if err != nil {
		return errors.Wrap(err, "send push")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		logger.Info("push subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		return errors.Wrap(s.store.DeleteByEndpoint(ctx, sub.Endpoint), "delete expired subscription")
	case resp.StatusCode >= 300:
		return errors.Errorf("push service answered %d", resp.StatusCode)
	}
	return nil
}
