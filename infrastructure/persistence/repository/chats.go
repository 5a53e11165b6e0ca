package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialcore/application/keys"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

type chatItem struct {
	tableKeys
	entities.Chat
}

// directChatItem indexes a direct chat by its participant pair so a second chat between
// the same two users cannot be created.
type directChatItem struct {
	tableKeys
	ChatID string
}

type memberItem struct {
	tableKeys
	entities.ChatMember
}

type messageItem struct {
	tableKeys
	entities.ChatMessage
}

// ChatRepository stores chats, their members and their messages.
type ChatRepository struct {
	store
}

func NewChatRepository(kv ports.KeyValueStore, logger *zap.Logger) *ChatRepository {
	return &ChatRepository{store{kv: kv, logger: logger}}
}

func newMemberItem(m *entities.ChatMember) memberItem {
	item := memberItem{tableKeys: primary(keys.ChatMember(m.ChatID, m.UserID), kindChatMember), ChatMember: *m}
	item.GSI1PK = keys.MembershipsView(m.UserID)
	item.GSI1SK = keys.FormatTime(m.JoinedAt)
	return item
}

func (r *ChatRepository) GetChat(ctx context.Context, chatID string) (*entities.Chat, error) {
	item, err := r.get(ctx, keys.Chat(chatID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Chat](item)
}

// DirectChatID returns the id of the direct chat between two users, or "".
func (r *ChatRepository) DirectChatID(ctx context.Context, userA, userB string) (string, error) {
	item, err := r.get(ctx, keys.DirectChat(userA, userB))
	if err != nil || item == nil {
		return "", err
	}
	idx, err := decode[directChatItem](item)
	if err != nil {
		return "", err
	}
	return idx.ChatID, nil
}

// DirectChatOps returns the chat, the pair index and both memberships, in that order.
func (r *ChatRepository) DirectChatOps(chat *entities.Chat, members [2]*entities.ChatMember) ([]ports.WriteOp, error) {
	index := directChatItem{
		tableKeys: primary(keys.DirectChat(members[0].UserID, members[1].UserID), kindDirectChat),
		ChatID:    chat.ChatID,
	}
	return putOps(chatItem{tableKeys: primary(keys.Chat(chat.ChatID), kindChat), Chat: *chat},
		index, newMemberItem(members[0]), newMemberItem(members[1]))
}

// GroupChatOps returns the chat and the creator's membership, in that order.
func (r *ChatRepository) GroupChatOps(chat *entities.Chat, creator *entities.ChatMember) ([]ports.WriteOp, error) {
	return putOps(chatItem{tableKeys: primary(keys.Chat(chat.ChatID), kindChat), Chat: *chat}, newMemberItem(creator))
}

func putOps(items ...any) ([]ports.WriteOp, error) {
	ops := make([]ports.WriteOp, 0, len(items))
	for _, v := range items {
		item, err := marshalItem(v)
		if err != nil {
			return nil, err
		}
		ops = append(ops, ports.PutOp(item, ports.ItemNotExists()))
	}
	return ops, nil
}

// DeleteChat removes the chat and, for direct chats, its pair index.
func (r *ChatRepository) DeleteChat(ctx context.Context, chatID string) (*entities.Chat, error) {
	item, err := r.remove(ctx, keys.Chat(chatID))
	if err != nil || item == nil {
		return nil, err
	}
	chat, err := decode[entities.Chat](item)
	if err != nil {
		return nil, err
	}
	if chat.ChatType == entities.ChatDirect && len(chat.ParticipantIDs) == 2 {
		if _, err := r.remove(ctx, keys.DirectChat(chat.ParticipantIDs[0], chat.ParticipantIDs[1])); err != nil {
			return nil, err
		}
	}
	return chat, nil
}

func (r *ChatRepository) GetMember(ctx context.Context, chatID, userID string) (*entities.ChatMember, error) {
	item, err := r.get(ctx, keys.ChatMember(chatID, userID))
	if err != nil {
		return nil, err
	}
	return decode[entities.ChatMember](item)
}

func (r *ChatRepository) AddMember(ctx context.Context, member *entities.ChatMember) error {
	return r.create(ctx, newMemberItem(member), func() error {
		return pkgerrors.NewAlreadyExistsError("chat member", member.ChatID, member.UserID)
	})
}

func (r *ChatRepository) DeleteMember(ctx context.Context, chatID, userID string) (*entities.ChatMember, error) {
	item, err := r.remove(ctx, keys.ChatMember(chatID, userID))
	if err != nil {
		return nil, err
	}
	return decode[entities.ChatMember](item)
}

func (r *ChatRepository) MemberIDs(ctx context.Context, chatID string) ([]string, error) {
	items, err := r.queryAll(ctx, ports.Query{
		PartitionKey: keys.ChatPK(chatID),
		SortKey:      ports.BeginsWith(keys.PrefixMember),
	})
	if err != nil {
		return nil, err
	}
	members, err := decodeAll[entities.ChatMember](items)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}

func (r *ChatRepository) ResetUnviewed(ctx context.Context, chatID, userID string, now time.Time) (*entities.ChatMember, *entities.ChatMember, error) {
	key := keys.ChatMember(chatID, userID)
	existing, err := r.get(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if existing == nil {
		return nil, nil, pkgerrors.NewNotFoundError("chat member")
	}
	old, err := decode[entities.ChatMember](existing)
	if err != nil {
		return nil, nil, err
	}

	item, err := r.kv.Update(ctx, key, ports.Update{
		Set: map[string]any{
			entities.MemberMessagesUnviewedCount: 0,
			"LastViewedAt":                       now,
		},
	}, ports.ItemExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return nil, nil, pkgerrors.NewNotFoundError("chat member")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reset unviewed messages: %w", err)
	}
	current, err := decode[entities.ChatMember](item)
	if err != nil {
		return nil, nil, err
	}
	return old, current, nil
}

func (r *ChatRepository) CreateMessage(ctx context.Context, message *entities.ChatMessage) error {
	item := messageItem{tableKeys: primary(keys.Message(message.MessageID), kindChatMessage), ChatMessage: *message}
	item.GSI1PK = keys.MessagesView(message.ChatID)
	item.GSI1SK = keys.FormatTime(message.CreatedAt)
	return r.create(ctx, item, func() error {
		return pkgerrors.NewAlreadyExistsError("chat message", message.MessageID)
	})
}

func (r *ChatRepository) GetMessage(ctx context.Context, messageID string) (*entities.ChatMessage, error) {
	item, err := r.get(ctx, keys.Message(messageID))
	if err != nil {
		return nil, err
	}
	return decode[entities.ChatMessage](item)
}

func (r *ChatRepository) DeleteMessage(ctx context.Context, messageID string) (*entities.ChatMessage, error) {
	item, err := r.remove(ctx, keys.Message(messageID))
	if err != nil {
		return nil, err
	}
	return decode[entities.ChatMessage](item)
}

// PageMessages lists a chat's messages, newest first.
func (r *ChatRepository) PageMessages(ctx context.Context, chatID string, limit int, cursor string) ([]*entities.ChatMessage, string, error) {
	return page[entities.ChatMessage](ctx, r.store, ports.Query{
		Index:        ports.IndexGSI1,
		PartitionKey: keys.MessagesView(chatID),
		Descending:   true,
		Limit:        limit,
		Cursor:       cursor,
	})
}
