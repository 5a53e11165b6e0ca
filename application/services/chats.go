package services

import (
	"context"
	"sort"

	"socialcore/application/dispatch"
	"socialcore/application/ports"
	"socialcore/application/txn"
	"socialcore/domain/config"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

type MessageInput struct {
	MessageID string
	ChatID    string
	UserID    string
	Text      string
}

// ChatService manages chats, memberships and messages.
type ChatService struct {
	chats       ports.ChatRepository
	users       ports.UserRepository
	blocks      ports.BlockRepository
	coordinator *txn.Coordinator
	cfg         *config.DomainConfig
	publisher
}

func NewChatService(
	chats ports.ChatRepository,
	users ports.UserRepository,
	blocks ports.BlockRepository,
	coordinator *txn.Coordinator,
	cfg *config.DomainConfig,
	d *dispatch.Dispatcher,
	clock ports.Clock,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		chats:       chats,
		users:       users,
		blocks:      blocks,
		coordinator: coordinator,
		cfg:         cfg,
		publisher:   newPublisher(d, clock, logger),
	}
}

// CreateDirectChat opens the one chat two users share. The chat, the pair index and both
// memberships are written together or not at all.
func (s *ChatService) CreateDirectChat(ctx context.Context, chatID, userID, otherID string) (*entities.Chat, error) {
	if err := required("chatID", chatID, "userID", userID, "otherUserID", otherID); err != nil {
		return nil, err
	}
	if userID == otherID {
		return nil, pkgerrors.NewValidationError("a direct chat needs two different users")
	}
	if err := s.requireUser(ctx, otherID); err != nil {
		return nil, err
	}
	if err := ensureNotBlocked(ctx, s.blocks, userID, otherID); err != nil {
		return nil, err
	}

	now := s.now()
	pair := []string{userID, otherID}
	sort.Strings(pair)
	chat := &entities.Chat{
		ChatID:          chatID,
		ChatType:        entities.ChatDirect,
		CreatedByUserID: userID,
		ParticipantIDs:  pair,
		CreatedAt:       now,
	}
	members := [2]*entities.ChatMember{
		{ChatID: chatID, UserID: pair[0], JoinedAt: now},
		{ChatID: chatID, UserID: pair[1], JoinedAt: now},
	}
	ops, err := s.chats.DirectChatOps(chat, members)
	if err != nil {
		return nil, err
	}
	err = s.coordinator.WriteAll(ctx, ops,
		func() error { return pkgerrors.NewAlreadyExistsError("chat", chatID) },
		func() error { return pkgerrors.NewAlreadyExistsError("direct chat", pair...) },
		func() error { return pkgerrors.NewAlreadyExistsError("chat member", chatID, pair[0]) },
		func() error { return pkgerrors.NewAlreadyExistsError("chat member", chatID, pair[1]) },
	)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, events.EntityChat, chatID, nil, chat)
	for _, m := range members {
		publish(ctx, s.publisher, events.EntityChatMember, m.ID(), nil, m)
	}
	return chat, nil
}

// CreateGroupChat opens a named chat with its creator as the first member, then adds
// the invited users.
func (s *ChatService) CreateGroupChat(ctx context.Context, chatID, userID, name string, memberIDs []string) (*entities.Chat, error) {
	if err := required("chatID", chatID, "userID", userID, "name", name); err != nil {
		return nil, err
	}
	if err := maxLength("name", name, s.cfg.MaxChatNameLength); err != nil {
		return nil, err
	}
	if len(memberIDs)+1 > s.cfg.MaxGroupChatMembers {
		return nil, pkgerrors.NewValidationError("too many members")
	}

	now := s.now()
	chat := &entities.Chat{
		ChatID:          chatID,
		ChatType:        entities.ChatGroup,
		Name:            name,
		CreatedByUserID: userID,
		CreatedAt:       now,
	}
	creator := &entities.ChatMember{ChatID: chatID, UserID: userID, JoinedAt: now}
	ops, err := s.chats.GroupChatOps(chat, creator)
	if err != nil {
		return nil, err
	}
	err = s.coordinator.WriteAll(ctx, ops,
		func() error { return pkgerrors.NewAlreadyExistsError("chat", chatID) },
	)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityChat, chatID, nil, chat)
	publish(ctx, s.publisher, events.EntityChatMember, creator.ID(), nil, creator)

	for _, memberID := range memberIDs {
		if memberID == userID {
			continue
		}
		if _, err := s.AddMember(ctx, userID, chatID, memberID); err != nil {
			s.logger.Warn("Failed to add group chat member",
				zap.String("chatID", chatID),
				zap.String("userID", memberID),
				zap.Error(err),
			)
		}
	}
	return chat, nil
}

// AddMember lets a member of a group chat add another user.
func (s *ChatService) AddMember(ctx context.Context, actorID, chatID, userID string) (*entities.ChatMember, error) {
	chat, err := s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.ChatType != entities.ChatGroup {
		return nil, pkgerrors.NewValidationError("members can only be added to group chats")
	}
	if err := s.requireMember(ctx, chatID, actorID); err != nil {
		return nil, err
	}
	if chat.UserCount >= s.cfg.MaxGroupChatMembers {
		return nil, pkgerrors.NewValidationError("chat is full")
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := ensureNotBlocked(ctx, s.blocks, actorID, userID); err != nil {
		return nil, err
	}

	member := &entities.ChatMember{ChatID: chatID, UserID: userID, JoinedAt: s.now()}
	if err := s.chats.AddMember(ctx, member); err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityChatMember, member.ID(), nil, member)
	return member, nil
}

// LeaveChat removes the caller from a chat. The last member out deletes the chat.
func (s *ChatService) LeaveChat(ctx context.Context, userID, chatID string) error {
	old, err := s.chats.DeleteMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if old == nil {
		return pkgerrors.NewNotFoundError("chat member")
	}
	publish(ctx, s.publisher, events.EntityChatMember, old.ID(), old, nil)
	return nil
}

// DeleteChat removes a chat once it has no members left.
func (s *ChatService) DeleteChat(ctx context.Context, chatID string) error {
	old, err := s.chats.DeleteChat(ctx, chatID)
	if err != nil {
		return err
	}
	if old == nil {
		return pkgerrors.NewNotFoundError("chat")
	}
	publish(ctx, s.publisher, events.EntityChat, chatID, old, nil)
	return nil
}

func (s *ChatService) GetChat(ctx context.Context, chatID string) (*entities.Chat, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, pkgerrors.NewNotFoundError("chat")
	}
	return chat, nil
}

// ChatFor returns the chat when userID is one of its members.
func (s *ChatService) ChatFor(ctx context.Context, userID, chatID string) (*entities.Chat, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.GetChat(ctx, chatID)
}

func (s *ChatService) AddMessage(ctx context.Context, in MessageInput) (*entities.ChatMessage, error) {
	if err := required("messageID", in.MessageID, "chatID", in.ChatID, "text", in.Text); err != nil {
		return nil, err
	}
	if err := maxLength("text", in.Text, s.cfg.MaxMessageLength); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, in.ChatID, in.UserID); err != nil {
		return nil, err
	}

	message := &entities.ChatMessage{
		MessageID:    in.MessageID,
		ChatID:       in.ChatID,
		AuthorUserID: in.UserID,
		Text:         in.Text,
		CreatedAt:    s.now(),
	}
	if err := s.chats.CreateMessage(ctx, message); err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityChatMessage, message.MessageID, nil, message)
	return message, nil
}

// ViewChat marks every message of the chat as seen by the caller.
func (s *ChatService) ViewChat(ctx context.Context, userID, chatID string) (*entities.ChatMember, error) {
	old, current, err := s.chats.ResetUnviewed(ctx, chatID, userID, s.now())
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityChatMember, current.ID(), old, current)
	return current, nil
}

// DeleteMessage lets the author delete a message.
func (s *ChatService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	message, err := s.chats.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if message == nil {
		return pkgerrors.NewNotFoundError("message")
	}
	if message.AuthorUserID != userID {
		return pkgerrors.NewForbiddenError("message belongs to another user")
	}
	return s.RemoveMessage(ctx, messageID)
}

// RemoveMessage deletes a message without an authorship check.
func (s *ChatService) RemoveMessage(ctx context.Context, messageID string) error {
	old, err := s.chats.DeleteMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if old == nil {
		return pkgerrors.NewNotFoundError("message")
	}
	publish(ctx, s.publisher, events.EntityChatMessage, messageID, old, nil)
	return nil
}

// RemoveAllMessages deletes what is left of a deleted chat's history.
func (s *ChatService) RemoveAllMessages(ctx context.Context, chatID string) (int, error) {
	removed := 0
	for {
		messages, _, err := s.chats.PageMessages(ctx, chatID, 100, "")
		if err != nil {
			return removed, err
		}
		if len(messages) == 0 {
			return removed, nil
		}
		for _, m := range messages {
			if err := s.RemoveMessage(ctx, m.MessageID); err != nil && !pkgerrors.IsNotFound(err) {
				return removed, err
			}
			removed++
		}
	}
}

func (s *ChatService) PageMessages(ctx context.Context, userID, chatID string, limit int, cursor string) ([]*entities.ChatMessage, string, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, "", err
	}
	return s.chats.PageMessages(ctx, chatID, limit, cursor)
}

func (s *ChatService) MemberIDs(ctx context.Context, chatID string) ([]string, error) {
	return s.chats.MemberIDs(ctx, chatID)
}

func (s *ChatService) requireMember(ctx context.Context, chatID, userID string) error {
	member, err := s.chats.GetMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return pkgerrors.NewForbiddenError("not a member of the chat")
	}
	return nil
}

func (s *ChatService) requireUser(ctx context.Context, userID string) error {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return pkgerrors.NewNotFoundError("user")
	}
	return nil
}
