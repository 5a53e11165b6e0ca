package reactors

import (
	"context"
	"fmt"

	"socialcore/application/fanout"
	"socialcore/application/keys"
	"socialcore/application/ledger"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// statusCounter names the user counter a post in status counts toward. Pending posts
// count toward nothing.
func statusCounter(p *entities.Post) string {
	if p == nil {
		return ""
	}
	switch p.Status {
	case entities.PostCompleted:
		return entities.UserPostCount
	case entities.PostArchived:
		return entities.UserPostArchivedCount
	}
	return ""
}

func (r *reactors) postUserCounters(ctx context.Context, c events.Change, n, o *entities.Post) error {
	before, after := statusCounter(o), statusCounter(n)
	if before == after {
		return nil
	}
	var errs error
	if before != "" {
		_, err := r.adjust(ctx, c, "post-user-counters", keys.User(o.PostedByUserID), before, -1)
		errs = multierr.Append(errs, err)
	}
	if after != "" {
		_, err := r.adjust(ctx, c, "post-user-counters", keys.User(n.PostedByUserID), after, 1)
		errs = multierr.Append(errs, err)
	}
	return errs
}

// memberOf returns the album the post is a ranked member of.
func memberOf(p *entities.Post) string {
	if !p.IsAlbumMember() {
		return ""
	}
	return p.AlbumID
}

func sameRank(a, b *entities.Post) bool {
	if a.AlbumRank == nil || b.AlbumRank == nil {
		return a.AlbumRank == b.AlbumRank
	}
	return *a.AlbumRank == *b.AlbumRank
}

// postAlbum keeps the album's PostCount and PostsLastUpdatedAt in line with its members.
func (r *reactors) postAlbum(ctx context.Context, c events.Change, n, o *entities.Post) error {
	before, after := memberOf(o), memberOf(n)
	now := r.Clock.Now()
	touched := func(albumID string, delta int) error {
		_, err := r.Ledger.Adjust(ctx, ledger.Adjustment{
			Key:     keys.Album(albumID),
			Counter: entities.AlbumPostCount,
			Delta:   delta,
			Set:     map[string]any{entities.AlbumPostsLastUpdatedAt: now},
			Token:   c.Token("post-album"),
		})
		return err
	}

	switch {
	case before == after && before == "":
		return nil
	case before == after:
		if sameRank(o, n) {
			return nil
		}
		if _, err := r.Ledger.SetExisting(ctx, keys.Album(after), map[string]any{entities.AlbumPostsLastUpdatedAt: now}); err != nil {
			return err
		}
		r.notify(ctx, events.ViewAlbumOrder, after, n.PostedByUserID)
		return nil
	}

	var errs error
	if before != "" {
		errs = multierr.Append(errs, touched(before, -1))
		r.notify(ctx, events.ViewAlbumOrder, before, o.PostedByUserID)
	}
	if after != "" {
		errs = multierr.Append(errs, touched(after, 1))
		r.notify(ctx, events.ViewAlbumOrder, after, n.PostedByUserID)
	}
	return errs
}

func (r *reactors) postFeed(ctx context.Context, c events.Change, n, o *entities.Post) error {
	return r.Propagator.PostVisibilityChanged(ctx, o, n)
}

func (r *reactors) postFirstStory(ctx context.Context, c events.Change, n, o *entities.Post) error {
	if !fanout.TouchesStories(o, n) {
		return nil
	}
	return r.Propagator.StoryChanged(ctx, o, n)
}

// postCleanup removes what hangs off a deleted post.
func (r *reactors) postCleanup(ctx context.Context, c events.Change, n, o *entities.Post) error {
	likes, err := r.Services.Likes.RemoveAll(ctx, o.PostID)
	errs := err
	comments, err := r.Services.Comments.RemoveAll(ctx, o.PostID)
	errs = multierr.Append(errs, err)
	errs = multierr.Append(errs, r.Services.Views.RemoveAll(ctx, o.PostID))
	errs = multierr.Append(errs, r.Services.Flags.RemoveAll(ctx, entities.FlagPost, o.PostID))
	errs = multierr.Append(errs, r.Services.Cards.DeleteCard(ctx, entities.CommentActivityCardID(o.PostID)))

	r.Logger.Debug("Post dependents removed",
		zap.String("postID", o.PostID),
		zap.Int("likes", likes),
		zap.Int("comments", comments),
	)
	return errs
}

// albumMembers takes the posts of a deleted album out of it.
func (r *reactors) albumMembers(ctx context.Context, c events.Change, n, o *entities.Album) error {
	var errs error
	for _, status := range []entities.PostStatus{entities.PostPending, entities.PostCompleted, entities.PostArchived} {
		posts, err := r.Posts.PostsByUser(ctx, o.OwnedByUserID, status)
		if err != nil {
			return err
		}
		for _, post := range posts {
			if post.AlbumID != o.AlbumID {
				continue
			}
			if _, err := r.Services.Posts.LeaveAlbum(ctx, post.PostID); err != nil && !pkgerrors.IsNotFound(err) {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func (r *reactors) likeCounters(ctx context.Context, c events.Change, n, o *entities.Like) error {
	if n == nil {
		_, err := r.adjust(ctx, c, "like-counters", keys.Post(o.PostID), o.Status.CounterName(), -1)
		return err
	}
	res, err := r.adjust(ctx, c, "like-counters", keys.Post(n.PostID), n.Status.CounterName(), 1)
	if err != nil || !res.Applied {
		return err
	}
	return r.bumpTrending(ctx, n.PostID, n.PostedByUserID, ports.TrendingLike)
}

// viewCounters counts distinct viewers. An owner view marks the post's comments seen.
func (r *reactors) viewCounters(ctx context.Context, c events.Change, n, o *entities.PostView) error {
	if n.IsOwnerView() {
		_, err := r.Ledger.Adjust(ctx, ledger.Adjustment{
			Key:     keys.Post(n.PostID),
			Counter: entities.PostCommentsUnviewedCount,
			Set:     map[string]any{entities.PostCommentsUnviewedCount: 0},
		})
		if err != nil {
			return err
		}
		return r.Services.Cards.DeleteCard(ctx, entities.CommentActivityCardID(n.PostID))
	}
	if o != nil {
		return nil
	}
	res, err := r.adjust(ctx, c, "view-counters", keys.Post(n.PostID), entities.PostViewedByCount, 1)
	if err != nil || !res.Applied {
		return err
	}
	return r.bumpTrending(ctx, n.PostID, n.PostedByUserID, ports.TrendingView)
}

func (r *reactors) bumpTrending(ctx context.Context, postID, userID string, event ports.TrendingEvent) error {
	return multierr.Combine(
		r.Trending.Bump(ctx, keys.Post(postID), event),
		r.Trending.Bump(ctx, keys.User(userID), event),
	)
}

// commentCounters keeps CommentCount, CommentsUnviewedCount and the owner's
// COMMENT_ACTIVITY card.
func (r *reactors) commentCounters(ctx context.Context, c events.Change, n, o *entities.Comment) error {
	if n == nil {
		_, err := r.adjust(ctx, c, "comment-counters", keys.Post(o.PostID), entities.PostCommentCount, -1)
		return err
	}
	if _, err := r.adjust(ctx, c, "comment-counters", keys.Post(n.PostID), entities.PostCommentCount, 1); err != nil {
		return err
	}
	if n.CommentedByUserID == n.PostedByUserID {
		return nil
	}
	res, err := r.adjust(ctx, c, "comment-counters", keys.Post(n.PostID), entities.PostCommentsUnviewedCount, 1)
	if err != nil || !res.Applied {
		return err
	}
	return r.bumpCard(ctx, entities.Card{
		CardID:    entities.CommentActivityCardID(n.PostID),
		UserID:    n.PostedByUserID,
		Kind:      entities.CardCommentActivity,
		Title:     "New comments on your post",
		Action:    "/posts/" + n.PostID,
		SubjectID: n.PostID,
	})
}

// flagThreshold counts flags and removes the item once its flags outnumber the ratio of
// its audience.
func (r *reactors) flagThreshold(ctx context.Context, c events.Change, n, o *entities.Flag) error {
	switch n.Kind {
	case entities.FlagPost:
		return r.flagPost(ctx, c, n)
	case entities.FlagChatMessage:
		return r.flagMessage(ctx, c, n)
	}
	return fmt.Errorf("unknown flag kind %q", n.Kind)
}

func (r *reactors) flagPost(ctx context.Context, c events.Change, f *entities.Flag) error {
	res, err := r.adjust(ctx, c, "flag-threshold", keys.Post(f.ItemID), entities.PostFlagCount, 1)
	if err != nil || !res.Applied {
		return err
	}
	post, err := r.Posts.GetPost(ctx, f.ItemID)
	if err != nil || post == nil {
		return err
	}
	owner, err := r.Users.GetUser(ctx, post.PostedByUserID)
	if err != nil || owner == nil {
		return err
	}
	if !r.exceeds(res.Value(entities.PostFlagCount), owner.FollowerCount) {
		return nil
	}
	r.Logger.Info("Flag threshold reached",
		zap.String("postID", post.PostID),
		zap.Int("followers", owner.FollowerCount),
	)
	_, err = r.Services.Posts.ForceArchive(ctx, post.PostID)
	if pkgerrors.IsConflict(err) {
		return nil
	}
	return err
}

func (r *reactors) flagMessage(ctx context.Context, c events.Change, f *entities.Flag) error {
	res, err := r.adjust(ctx, c, "flag-threshold", keys.Message(f.ItemID), entities.MessageFlagCount, 1)
	if err != nil || !res.Applied {
		return err
	}
	message, err := r.Chats.GetMessage(ctx, f.ItemID)
	if err != nil || message == nil {
		return err
	}
	chat, err := r.Chats.GetChat(ctx, message.ChatID)
	if err != nil || chat == nil {
		return err
	}
	if !r.exceeds(res.Value(entities.MessageFlagCount), chat.UserCount) {
		return nil
	}
	r.Logger.Info("Flag threshold reached",
		zap.String("messageID", message.MessageID),
		zap.Int("members", chat.UserCount),
	)
	err = r.Services.Chats.RemoveMessage(ctx, message.MessageID)
	if pkgerrors.IsNotFound(err) {
		return nil
	}
	return err
}

func (r *reactors) exceeds(flags, audience int) bool {
	return float64(flags) > r.Config.FlagThresholdRatio*float64(audience)
}
