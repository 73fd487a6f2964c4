package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"wayfarer/apperr"
	"wayfarer/models"
	"wayfarer/realtime"
)

const (
	defaultChatLimit = 20
	maxChatLimit     = 50
)

type GroupChatInput struct {
	Name             string
	Members          []primitive.ObjectID
	CanMembersAdd    bool
	CanMembersRemove bool
}

type ChatService struct {
	chats ChatStore
	users UserStore
	pub   Publisher
	now   func() time.Time
}

func NewChatService(chats ChatStore, users UserStore, pub Publisher) *ChatService {
	return &ChatService{chats: chats, users: users, pub: pub, now: time.Now}
}

// List returns the user's chats, most recent activity first.
func (s *ChatService) List(ctx context.Context, user primitive.ObjectID, page, limit int) ([]models.Chat, error) {
	page, limit = normalizePage(page, limit, defaultChatLimit, maxChatLimit)
	chats, err := s.chats.ListForUser(ctx, user, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	return chats, nil
}

func (s *ChatService) Get(ctx context.Context, user, id primitive.ObjectID) (*models.Chat, error) {
	return loadChat(ctx, s.chats, id, user)
}

func (s *ChatService) CreateGroup(ctx context.Context, admin primitive.ObjectID, in GroupChatInput) (*models.Chat, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.BadRequest("Group name is required")
	}
	members := unionIDs([]primitive.ObjectID{admin}, in.Members)
	if len(members) < 2 {
		return nil, apperr.BadRequest("A group chat needs at least one other member")
	}
	if err := s.checkUsers(ctx, members[1:]); err != nil {
		return nil, err
	}

	now := s.now()
	chat := &models.Chat{
		Type:             models.ChatGroup,
		Participants:     members,
		Name:             name,
		Admin:            &admin,
		CanMembersAdd:    in.CanMembersAdd,
		CanMembersRemove: in.CanMembersRemove,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.chats.Insert(ctx, chat); err != nil {
		return nil, errors.Wrap(err, "create group chat")
	}
	for _, m := range members[1:] {
		_ = s.pub.Publish(ctx, realtime.UserRoom(m), realtime.EventNewChat, chat)
	}
	return chat, nil
}

func (s *ChatService) checkUsers(ctx context.Context, ids []primitive.ObjectID) error {
	for _, id := range ids {
		u, err := s.users.FindByID(ctx, id)
		if isNotFound(err) || (err == nil && !u.Active()) {
			return apperr.NotFound("User " + id.Hex() + " not found")
		}
		if err != nil {
			return errors.Wrap(err, "load member")
		}
	}
	return nil
}

func (s *ChatService) group(ctx context.Context, user, id primitive.ObjectID) (*models.Chat, error) {
	chat, err := loadChat(ctx, s.chats, id, user)
	if err != nil {
		return nil, err
	}
	if chat.Type != models.ChatGroup {
		return nil, apperr.BadRequest("Not a group chat")
	}
	return chat, nil
}

// AddMembers is allowed to the admin, or to any member when canMembersAdd is set.
func (s *ChatService) AddMembers(ctx context.Context, user, id primitive.ObjectID, members []primitive.ObjectID) (*models.Chat, error) {
	chat, err := s.group(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !chat.IsAdmin(user) && !chat.CanMembersAdd {
		return nil, apperr.Forbidden("Only the admin can add members")
	}

	var fresh []primitive.ObjectID
	for _, m := range unionIDs(members) {
		if !chat.HasParticipant(m) {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == 0 {
		return chat, nil
	}
	if err := s.checkUsers(ctx, fresh); err != nil {
		return nil, err
	}
	if err := s.chats.AddParticipants(ctx, id, fresh); err != nil {
		return nil, errors.Wrap(err, "add members")
	}
	chat.Participants = append(chat.Participants, fresh...)
	for _, m := range fresh {
		_ = s.pub.Publish(ctx, realtime.UserRoom(m), realtime.EventNewChat, chat)
	}
	return chat, nil
}

// RemoveMember is allowed to the admin, to members when canMembersRemove is
// set, and to anyone removing themselves. The admin cannot be removed.
func (s *ChatService) RemoveMember(ctx context.Context, user, id, member primitive.ObjectID) error {
	chat, err := s.group(ctx, user, id)
	if err != nil {
		return err
	}
	if chat.IsAdmin(member) {
		return apperr.Forbidden("The admin cannot be removed")
	}
	if member != user && !chat.IsAdmin(user) && !chat.CanMembersRemove {
		return apperr.Forbidden("Only the admin can remove members")
	}
	if !chat.HasParticipant(member) {
		return apperr.NotFound("Member not found")
	}
	return errors.Wrap(s.chats.RemoveParticipant(ctx, id, member), "remove member")
}

// Delete soft deletes a chat. Group chats can only be deleted by their admin.
func (s *ChatService) Delete(ctx context.Context, user, id primitive.ObjectID) error {
	chat, err := loadChat(ctx, s.chats, id, user)
	if err != nil {
		return err
	}
	if chat.Type == models.ChatGroup && !chat.IsAdmin(user) {
		return apperr.Forbidden("Only the admin can delete this chat")
	}
	return errors.Wrap(s.chats.SoftDelete(ctx, id), "delete chat")
}
