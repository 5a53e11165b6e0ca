package reactors

import (
	"context"

	"socialcore/application/keys"
	"socialcore/application/ledger"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// chatMessages deletes the history of a chat whose last member left.
func (r *reactors) chatMessages(ctx context.Context, c events.Change, n, o *entities.Chat) error {
	removed, err := r.Services.Chats.RemoveAllMessages(ctx, o.ChatID)
	r.Logger.Debug("Chat history removed", zap.String("chatID", o.ChatID), zap.Int("messages", removed))
	return err
}

// memberCounters keeps UserCount, ChatCount and the unviewed-chat count in line with
// memberships.
func (r *reactors) memberCounters(ctx context.Context, c events.Change, n, o *entities.ChatMember) error {
	switch {
	case o == nil:
		_, err1 := r.adjust(ctx, c, "member-counters", keys.Chat(n.ChatID), entities.ChatUserCount, 1)
		_, err2 := r.adjust(ctx, c, "member-counters", keys.User(n.UserID), entities.UserChatCount, 1)
		return multierr.Combine(err1, err2)

	case n == nil:
		res, err := r.adjust(ctx, c, "member-counters", keys.Chat(o.ChatID), entities.ChatUserCount, -1)
		errs := err
		_, err = r.adjust(ctx, c, "member-counters", keys.User(o.UserID), entities.UserChatCount, -1)
		errs = multierr.Append(errs, err)
		if o.MessagesUnviewedCount > 0 {
			errs = multierr.Append(errs, r.chatSeen(ctx, c, o.UserID))
		}
		if res.Applied && res.Value(entities.ChatUserCount) == 0 {
			if err := r.Services.Chats.DeleteChat(ctx, o.ChatID); err != nil && !pkgerrors.IsNotFound(err) {
				errs = multierr.Append(errs, err)
			}
		}
		return errs

	case o.MessagesUnviewedCount > 0 && n.MessagesUnviewedCount == 0:
		if err := r.chatSeen(ctx, c, n.UserID); err != nil {
			return err
		}
		r.notify(ctx, events.ViewChat, n.ChatID, n.UserID)
	}
	return nil
}

// chatSeen notes that one of the user's chats no longer has unviewed messages.
func (r *reactors) chatSeen(ctx context.Context, c events.Change, userID string) error {
	res, err := r.adjust(ctx, c, "member-counters", keys.User(userID), entities.UserChatsWithUnviewedMessagesCount, -1)
	if err != nil || !res.Applied {
		return err
	}
	if res.Value(entities.UserChatsWithUnviewedMessagesCount) == 0 {
		return r.Services.Cards.DeleteCard(ctx, entities.ChatActivityCardID(userID))
	}
	return nil
}

// messageCounters keeps the chat's message count and every other member's unviewed
// count, raising the CHAT_ACTIVITY card when a chat first has something unviewed.
func (r *reactors) messageCounters(ctx context.Context, c events.Change, n, o *entities.ChatMessage) error {
	if n == nil {
		_, err := r.adjust(ctx, c, "message-counters", keys.Chat(o.ChatID), entities.ChatMessagesCount, -1)
		return multierr.Append(err, r.Services.Flags.RemoveAll(ctx, entities.FlagChatMessage, o.MessageID))
	}

	_, err := r.Ledger.Adjust(ctx, ledger.Adjustment{
		Key:     keys.Chat(n.ChatID),
		Counter: entities.ChatMessagesCount,
		Delta:   1,
		Set:     map[string]any{entities.ChatLastMessageActivityAt: n.CreatedAt},
		Token:   c.Token("message-counters"),
	})
	if err != nil {
		return err
	}

	memberIDs, err := r.Chats.MemberIDs(ctx, n.ChatID)
	if err != nil {
		return err
	}
	var errs error
	var recipients []string
	for _, userID := range memberIDs {
		if userID == n.AuthorUserID {
			continue
		}
		recipients = append(recipients, userID)
		errs = multierr.Append(errs, r.unviewed(ctx, c, n, userID))
	}
	r.notify(ctx, events.ViewChat, n.ChatID, recipients...)
	return errs
}

func (r *reactors) unviewed(ctx context.Context, c events.Change, m *entities.ChatMessage, userID string) error {
	res, err := r.adjust(ctx, c, "message-counters", keys.ChatMember(m.ChatID, userID), entities.MemberMessagesUnviewedCount, 1)
	if err != nil || !res.Applied || res.Value(entities.MemberMessagesUnviewedCount) != 1 {
		return err
	}
	res, err = r.adjust(ctx, c, "message-counters", keys.User(userID), entities.UserChatsWithUnviewedMessagesCount, 1)
	if err != nil || !res.Applied {
		return err
	}
	return r.bumpCard(ctx, entities.Card{
		CardID:    entities.ChatActivityCardID(userID),
		UserID:    userID,
		Kind:      entities.CardChatActivity,
		Title:     "New messages",
		Action:    "/chats",
		SubjectID: m.ChatID,
	})
}

// cardNotify tells the card's owner their cards changed.
func (r *reactors) cardNotify(ctx context.Context, c events.Change, n, o *entities.Card) error {
	card := n
	if card == nil {
		card = o
	}
	r.notify(ctx, events.ViewCard, card.CardID, card.UserID)
	return nil
}
