// Package reactors registers the cascades that keep denormalized aggregates in line
// after a mutation commits. Every counter change carries an idempotency token derived
// from the change, so a replayed change adjusts nothing twice.
package reactors

import (
	"context"

	"socialcore/application/dispatch"
	"socialcore/application/fanout"
	"socialcore/application/ledger"
	"socialcore/application/ports"
	"socialcore/application/services"
	"socialcore/application/trending"
	"socialcore/domain/config"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"

	"go.uber.org/zap"
)

// Services are the aggregate APIs that cascades call back into.
type Services struct {
	Follows  *services.FollowService
	Posts    *services.PostService
	Likes    *services.LikeService
	Views    *services.ViewService
	Comments *services.CommentService
	Flags    *services.FlagService
	Chats    *services.ChatService
	Cards    *services.CardService
}

// Deps is everything the reactors need.
type Deps struct {
	Ledger     *ledger.Ledger
	Propagator *fanout.Propagator
	Trending   *trending.Tracker
	Sink       ports.NotificationSink
	Users      ports.UserRepository
	Posts      ports.PostReader
	Chats      ports.ChatRepository
	Services   Services
	Config     *config.DomainConfig
	Clock      ports.Clock
	Logger     *zap.Logger
}

type reactors struct {
	Deps
}

// Register wires every cascade into d. Reactors for one route run in the order they
// are registered here.
func Register(d *dispatch.Dispatcher, deps Deps) {
	r := &reactors{Deps: deps}

	dispatch.On(d, events.EntityUser, "user-privacy", r.userPrivacy, events.Edited)

	dispatch.On(d, events.EntityFollow, "follow-counters", r.followCounters, events.Added, events.Edited, events.Deleted)
	dispatch.On(d, events.EntityFollow, "follow-requests", r.followRequests, events.Added, events.Edited, events.Deleted)
	dispatch.On(d, events.EntityFollow, "follow-fanout", r.followFanout, events.Added, events.Edited, events.Deleted)

	dispatch.On(d, events.EntityBlock, "block-unfollow", r.blockUnfollow, events.Added)

	dispatch.On(d, events.EntityPost, "post-user-counters", r.postUserCounters, events.Added, events.Edited, events.Deleted)
	dispatch.On(d, events.EntityPost, "post-album", r.postAlbum, events.Added, events.Edited, events.Deleted)
	dispatch.On(d, events.EntityPost, "post-feed", r.postFeed, events.Added, events.Edited, events.Deleted)
	dispatch.On(d, events.EntityPost, "post-first-story", r.postFirstStory, events.Added, events.Edited, events.Deleted)
	dispatch.On(d, events.EntityPost, "post-cleanup", r.postCleanup, events.Deleted)

	dispatch.On(d, events.EntityAlbum, "album-members", r.albumMembers, events.Deleted)

	dispatch.On(d, events.EntityLike, "like-counters", r.likeCounters, events.Added, events.Deleted)
	dispatch.On(d, events.EntityPostView, "view-counters", r.viewCounters, events.Added, events.Edited)
	dispatch.On(d, events.EntityComment, "comment-counters", r.commentCounters, events.Added, events.Deleted)
	dispatch.On(d, events.EntityFlag, "flag-threshold", r.flagThreshold, events.Added)

	dispatch.On(d, events.EntityChat, "chat-messages", r.chatMessages, events.Deleted)
	dispatch.On(d, events.EntityChatMember, "member-counters", r.memberCounters, events.Added, events.Edited, events.Deleted)
	dispatch.On(d, events.EntityChatMessage, "message-counters", r.messageCounters, events.Added, events.Deleted)

	dispatch.On(d, events.EntityCard, "card-notify", r.cardNotify, events.Added, events.Edited, events.Deleted)
}

// adjust applies a tokened counter change.
func (r *reactors) adjust(ctx context.Context, c events.Change, reactor string, key ports.Key, counter string, delta int) (ledger.Result, error) {
	return r.Ledger.Adjust(ctx, ledger.Adjustment{
		Key:     key,
		Counter: counter,
		Delta:   delta,
		Token:   c.Token(reactor),
	})
}

func (r *reactors) notify(ctx context.Context, view events.View, subjectID string, userIDs ...string) {
	at := r.Clock.Now()
	ns := make([]events.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		ns = append(ns, events.Notification{UserID: userID, View: view, SubjectID: subjectID, OccurredAt: at})
	}
	if err := ports.NotifyAll(ctx, r.Sink, ns); err != nil {
		r.Logger.Warn("Failed to notify view change",
			zap.String("view", string(view)),
			zap.String("subjectID", subjectID),
			zap.Error(err),
		)
	}
}

// bumpCard creates a card or adds one to its count.
func (r *reactors) bumpCard(ctx context.Context, card entities.Card) error {
	card.Count = 1
	_, err := r.Services.Cards.UpsertCard(ctx, &card)
	return err
}
