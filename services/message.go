package services

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"wayfarer/apperr"
	"wayfarer/logger"
	"wayfarer/models"
	"wayfarer/realtime"
)

const (
	defaultMessageLimit = 30
	maxMessageLimit     = 100
	previewLength       = 100
)

type SendInput struct {
	Sender   primitive.ObjectID
	Receiver primitive.ObjectID
	ChatID   *primitive.ObjectID
	Content  models.MessageContent
}

type SendResult struct {
	Message     *models.Message `json:"message"`
	Chat        *models.Chat    `json:"chat"`
	ChatCreated bool            `json:"chatCreated"`
}

type MessageDeps struct {
	Users         UserStore
	Graph         GraphStore
	Chats         ChatStore
	Messages      MessageStore
	Notifications *NotificationService
	Publisher     Publisher
	Presence      PresenceReader
	Tx            TxRunner
}

type MessageService struct {
	MessageDeps
	now func() time.Time
}

func NewMessageService(deps MessageDeps) *MessageService {
	return &MessageService{MessageDeps: deps, now: time.Now}
}

// Send stores a message and informs the receiver. A receiver with the
// message box open sees it at once; anyone else gets one message
// notification per sender until they view it.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	if err := in.Content.Validate(); err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	if in.ChatID != nil {
		chat, err := s.chat(ctx, *in.ChatID, in.Sender)
		if err != nil {
			return nil, err
		}
		if chat.Type == models.ChatGroup {
			return s.sendGroup(ctx, chat, in)
		}
		other := chat.Others(in.Sender)
		if len(other) != 1 || (!in.Receiver.IsZero() && other[0] != in.Receiver) {
			return nil, apperr.Forbidden("Receiver is not part of this chat")
		}
		in.Receiver = other[0]
	}

	if in.Receiver.IsZero() {
		return nil, apperr.BadRequest("Receiver is required")
	}
	if in.Receiver == in.Sender {
		return nil, apperr.BadRequest("You cannot message yourself")
	}

	blocked, err := s.Graph.IsBlocked(ctx, in.Sender, in.Receiver)
	if err != nil {
		return nil, errors.Wrap(err, "check block")
	}
	if blocked {
		return nil, apperr.Forbidden("You cannot message this user")
	}

	receiver, err := s.Users.FindByID(ctx, in.Receiver)
	if isNotFound(err) || (err == nil && !receiver.Active()) {
		return nil, apperr.NotFound("Receiver not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load receiver")
	}

	chat, created, err := s.directChat(ctx, in.Sender, in.Receiver)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		Sender:     in.Sender,
		Receiver:   &in.Receiver,
		Chat:       chat.ID,
		Content:    in.Content,
		SeenBy:     []primitive.ObjectID{},
		DeletedFor: []primitive.ObjectID{},
		CreatedAt:  s.now(),
	}
	if err := s.persist(ctx, chat, msg); err != nil {
		return nil, err
	}

	if created {
		s.publish(ctx, realtime.UserRoom(in.Receiver), realtime.EventNewChat, chat)
	}
	s.publish(ctx, realtime.UserRoom(in.Receiver), realtime.EventNewMessage, msg)
	s.inform(ctx, chat, msg, in.Receiver)

	return &SendResult{Message: msg, Chat: chat, ChatCreated: created}, nil
}

func (s *MessageService) sendGroup(ctx context.Context, chat *models.Chat, in SendInput) (*SendResult, error) {
	msg := &models.Message{
		Sender:     in.Sender,
		Chat:       chat.ID,
		Content:    in.Content,
		SeenBy:     []primitive.ObjectID{},
		DeletedFor: []primitive.ObjectID{},
		CreatedAt:  s.now(),
	}
	if err := s.persist(ctx, chat, msg); err != nil {
		return nil, err
	}

	for _, member := range chat.Others(in.Sender) {
		s.publish(ctx, realtime.UserRoom(member), realtime.EventNewMessage, msg)
		s.inform(ctx, chat, msg, member)
	}
	return &SendResult{Message: msg, Chat: chat}, nil
}

// directChat finds the single chat between a and b or creates it. A
// concurrent creation surfaces as a duplicate key and the winner is reloaded.
func (s *MessageService) directChat(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, bool, error) {
	chat, err := s.Chats.FindDirect(ctx, a, b)
	if err == nil {
		return chat, false, nil
	}
	if !isNotFound(err) {
		return nil, false, errors.Wrap(err, "find chat")
	}

	now := s.now()
	chat = &models.Chat{
		Type:         models.ChatSingle,
		Participants: []primitive.ObjectID{a, b},
		DirectKey:    models.DirectKey(a, b),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Chats.Insert(ctx, chat); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, ferr := s.Chats.FindDirect(ctx, a, b)
			return existing, false, errors.Wrap(ferr, "reload chat")
		}
		return nil, false, errors.Wrap(err, "create chat")
	}
	return chat, true, nil
}

// persist inserts msg and moves the chat pointer in one transaction.
func (s *MessageService) persist(ctx context.Context, chat *models.Chat, msg *models.Message) error {
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Messages.Insert(ctx, msg); err != nil {
			return errors.Wrap(err, "insert message")
		}
		return errors.Wrap(s.Chats.SetLastMessage(ctx, chat.ID, msg.ID, msg.CreatedAt), "update chat pointer")
	})
	if err != nil {
		return err
	}
	chat.LastMessage = &msg.ID
	at := msg.CreatedAt
	chat.LastMessageAt = &at
	return nil
}

// inform marks msg seen when receiver has the message box open, otherwise
// leaves a message notification.
func (s *MessageService) inform(ctx context.Context, chat *models.Chat, msg *models.Message, receiver primitive.ObjectID) {
	status, err := s.Presence.Status(ctx, receiver)
	if err != nil {
		logger.Warn("presence lookup failed", zap.String("user", receiver.Hex()), zap.Error(err))
	}

	if status.Online && status.InMessageBox {
		if err := s.Messages.MarkSeen(ctx, msg.ID, receiver); err != nil {
			logger.Warn("mark message seen failed", zap.String("message", msg.ID.Hex()), zap.Error(err))
			return
		}
		msg.SeenBy = append(msg.SeenBy, receiver)
		s.publish(ctx, realtime.UserRoom(msg.Sender), realtime.SeenEvent(chat.ID), map[string]interface{}{
			"chatId":     chat.ID.Hex(),
			"messageIds": []string{msg.ID.Hex()},
			"seenBy":     receiver.Hex(),
		})
		return
	}

	title := "New message"
	if sender, err := s.Users.FindByID(ctx, msg.Sender); err == nil && sender.Name != "" {
		title = sender.Name + " sent you a message"
	}
	if _, err := s.Notifications.AddMessage(ctx, msg.Sender, receiver, title, preview(msg.Content), "/chats/"+chat.ID.Hex()); err != nil {
		logger.Warn("message notification failed", zap.String("receiver", receiver.Hex()), zap.Error(err))
	}
}

func preview(c models.MessageContent) string {
	if c.Text == "" {
		return "Sent an attachment"
	}
	if utf8.RuneCountInString(c.Text) <= previewLength {
		return c.Text
	}
	return string([]rune(c.Text)[:previewLength]) + "..."
}

func (s *MessageService) publish(ctx context.Context, room, event string, payload any) {
	if err := s.Publisher.Publish(ctx, room, event, payload); err != nil {
		logger.Warn("realtime publish failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
	}
}

// chat loads a live chat the user participates in.
func (s *MessageService) chat(ctx context.Context, id, user primitive.ObjectID) (*models.Chat, error) {
	return loadChat(ctx, s.Chats, id, user)
}

func loadChat(ctx context.Context, chats ChatStore, id, user primitive.ObjectID) (*models.Chat, error) {
	chat, err := chats.FindByID(ctx, id)
	if isNotFound(err) || (err == nil && chat.IsDeleted) {
		return nil, apperr.NotFound("Chat not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load chat")
	}
	if !chat.HasParticipant(user) {
		return nil, apperr.Forbidden("Access denied to chat")
	}
	return chat, nil
}

func (s *MessageService) List(ctx context.Context, viewer, chatID primitive.ObjectID, page, limit int) ([]models.Message, error) {
	if _, err := s.chat(ctx, chatID, viewer); err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, defaultMessageLimit, maxMessageLimit)
	msgs, err := s.Messages.ListByChat(ctx, chatID, viewer, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// MarkChatSeen marks the chat read for reader, clears the matching message
// notifications and tells the other participants.
func (s *MessageService) MarkChatSeen(ctx context.Context, reader, chatID primitive.ObjectID) (int64, error) {
	chat, err := s.chat(ctx, chatID, reader)
	if err != nil {
		return 0, err
	}

	n, err := s.Messages.MarkChatSeen(ctx, chatID, reader)
	if err != nil {
		return 0, errors.Wrap(err, "mark chat seen")
	}

	for _, other := range chat.Others(reader) {
		if err := s.Notifications.ViewMessagesFrom(ctx, reader, other); err != nil {
			logger.Warn("view message notifications failed", zap.Error(err))
		}
		s.publish(ctx, realtime.UserRoom(other), realtime.SeenEvent(chatID), map[string]interface{}{
			"chatId": chatID.Hex(),
			"seenBy": reader.Hex(),
		})
	}
	return n, nil
}

func (s *MessageService) Typing(ctx context.Context, user, chatID primitive.ObjectID) error {
	chat, err := s.chat(ctx, chatID, user)
	if err != nil {
		return err
	}
	for _, other := range chat.Others(user) {
		s.publish(ctx, realtime.UserRoom(other), realtime.TypingEvent(chatID), map[string]string{
			"chatId": chatID.Hex(),
			"userId": user.Hex(),
		})
	}
	return nil
}

func (s *MessageService) message(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	msg, err := s.Messages.FindByID(ctx, id)
	if isNotFound(err) || (err == nil && msg.IsDeleted) {
		return nil, apperr.NotFound("Message not found")
	}
	return msg, errors.Wrap(err, "load message")
}

// DeleteForMe hides the message from user only.
func (s *MessageService) DeleteForMe(ctx context.Context, user, id primitive.ObjectID) error {
	msg, err := s.message(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.chat(ctx, msg.Chat, user); err != nil {
		return err
	}
	return errors.Wrap(s.Messages.DeleteFor(ctx, id, user), "delete message for user")
}

// DeleteForEveryone is allowed to the sender only.
func (s *MessageService) DeleteForEveryone(ctx context.Context, user, id primitive.ObjectID) error {
	msg, err := s.message(ctx, id)
	if err != nil {
		return err
	}
	if msg.Sender != user {
		return apperr.Forbidden("Only the sender can delete this message for everyone")
	}
	chat, err := s.chat(ctx, msg.Chat, user)
	if err != nil {
		return err
	}
	if err := s.Messages.SoftDelete(ctx, id); err != nil {
		return errors.Wrap(err, "delete message")
	}
	for _, other := range chat.Others(user) {
		s.publish(ctx, realtime.UserRoom(other), realtime.DeletedEvent(chat.ID), map[string]string{
			"chatId":    chat.ID.Hex(),
			"messageId": id.Hex(),
		})
	}
	return nil
}
