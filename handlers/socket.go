package handlers

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Inbound serves websocket frames with the same services as the REST routes.
type Inbound struct {
	h *Handler
}

func (h *Handler) Inbound() *Inbound {
	return &Inbound{h: h}
}

func (in *Inbound) Typing(ctx context.Context, user, chatID primitive.ObjectID) error {
	return in.h.Messages.Typing(ctx, user, chatID)
}

func (in *Inbound) Seen(ctx context.Context, user, chatID primitive.ObjectID) error {
	_, err := in.h.Messages.MarkChatSeen(ctx, user, chatID)
	return err
}

func (in *Inbound) MessageBox(ctx context.Context, user primitive.ObjectID, open bool) error {
	return errors.Wrap(in.h.Presence.SetMessageBox(ctx, user, open), "set message box")
}
