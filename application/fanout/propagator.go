// Package fanout keeps the per-follower denormalized views in step with the content and
// follow edges they are derived from: every follower's feed, and every follower's
// pointer to the followed user's earliest-expiring story.
package fanout

import (
	"context"
	"fmt"

	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"
	"socialcore/pkg/observability"

	"go.uber.org/zap"
)

// Propagator writes fan-out records. All writes are overwrites or deletes keyed by
// (subscriber, subject), so replaying any operation converges to the same state.
type Propagator struct {
	follows ports.FollowEdgeReader
	posts   ports.PostReader
	feed    ports.FeedRepository
	stories ports.FirstStoryRepository
	sink    ports.NotificationSink
	clock   ports.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewPropagator(
	follows ports.FollowEdgeReader,
	posts ports.PostReader,
	feed ports.FeedRepository,
	stories ports.FirstStoryRepository,
	sink ports.NotificationSink,
	clock ports.Clock,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Propagator {
	return &Propagator{
		follows: follows,
		posts:   posts,
		feed:    feed,
		stories: stories,
		sink:    sink,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// StoryChanged recomputes the first-story pointer of every active follower of the post's
// owner after a story candidate appeared, disappeared or changed its expiry. Either
// snapshot may be nil, but at least one must be a story candidate.
func (p *Propagator) StoryChanged(ctx context.Context, oldPost, newPost *entities.Post) error {
	prev, now := candidate(oldPost), candidate(newPost)
	subject := newPost
	if subject == nil {
		subject = oldPost
	}
	if subject == nil {
		return pkgerrors.NewInvariantError("story change with neither snapshot")
	}

	// The mutated post is judged from the snapshots only; the view may not reflect the
	// write yet.
	stored, err := p.posts.StoryCandidates(ctx, subject.PostedByUserID, 2)
	if err != nil {
		return fmt.Errorf("failed to load story candidates: %w", err)
	}
	var other *entities.Post
	for _, c := range stored {
		if c.PostID != subject.PostID {
			other = c
			break
		}
	}

	prevWinner, nowWinner := earliest(other, prev), earliest(other, now)
	switch {
	case prevWinner == nil && nowWinner == nil:
		err := pkgerrors.NewInvariantError("story change with no winner before or after")
		p.logger.Error("First-story recomputation found no winner",
			zap.String("postID", subject.PostID),
			zap.String("userID", subject.PostedByUserID),
		)
		return err
	case nowWinner == nil:
		return p.clearFirstStories(ctx, subject.PostedByUserID)
	case prevWinner == nil || !sameStory(prevWinner, nowWinner):
		return p.setFirstStories(ctx, nowWinner)
	}
	return nil
}

// FollowActivated copies the followed user's visible posts into the follower's feed and
// points the follower at the followed user's first story.
func (p *Propagator) FollowActivated(ctx context.Context, followerID, followedID string) error {
	posts, err := p.posts.PostsByUser(ctx, followedID, entities.PostCompleted)
	if err != nil {
		return fmt.Errorf("failed to load posts of %s: %w", followedID, err)
	}
	entries := make([]*entities.FeedEntry, len(posts))
	for i, post := range posts {
		entries[i] = feedEntry(followerID, post)
	}
	if err := p.feed.PutFeedEntries(ctx, entries); err != nil {
		return err
	}
	p.metrics.FanoutWritten("feed", "put", len(entries))

	first, err := p.posts.StoryCandidates(ctx, followedID, 1)
	if err != nil {
		return fmt.Errorf("failed to load story candidates: %w", err)
	}
	if len(first) > 0 {
		if err := p.stories.PutFirstStories(ctx, []*entities.FirstStory{pointer(followerID, first[0])}); err != nil {
			return err
		}
		p.metrics.FanoutWritten("first_story", "put", 1)
		p.notify(ctx, events.ViewFirstStory, followedID, followerID)
	}
	if len(entries) > 0 {
		p.notify(ctx, events.ViewFeed, followedID, followerID)
	}
	return nil
}

// FollowDeactivated removes everything the followed user contributed to the follower's
// views.
func (p *Propagator) FollowDeactivated(ctx context.Context, followerID, followedID string) error {
	n, err := p.feed.DeleteFeedEntriesByPoster(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	p.metrics.FanoutWritten("feed", "delete", n)

	if err := p.stories.DeleteFirstStories(ctx, followedID, []string{followerID}); err != nil {
		return err
	}
	p.metrics.FanoutWritten("first_story", "delete", 1)
	p.notify(ctx, events.ViewFeed, followedID, followerID)
	p.notify(ctx, events.ViewFirstStory, followedID, followerID)
	return nil
}

// PostVisibilityChanged fans a post out to its owner and every active follower when it
// becomes visible, and pulls it from every feed when it stops being visible.
func (p *Propagator) PostVisibilityChanged(ctx context.Context, oldPost, newPost *entities.Post) error {
	was, is := oldPost.IsFeedVisible(), newPost.IsFeedVisible()
	switch {
	case !was && is:
		followers, err := p.follows.FollowerIDs(ctx, newPost.PostedByUserID, entities.FollowFollowing)
		if err != nil {
			return fmt.Errorf("failed to load followers: %w", err)
		}
		owners := append([]string{newPost.PostedByUserID}, followers...)
		entries := make([]*entities.FeedEntry, len(owners))
		for i, userID := range owners {
			entries[i] = feedEntry(userID, newPost)
		}
		if err := p.feed.PutFeedEntries(ctx, entries); err != nil {
			return err
		}
		p.metrics.FanoutWritten("feed", "put", len(entries))
		p.notify(ctx, events.ViewFeed, newPost.PostID, owners...)
	case was && !is:
		owners, err := p.feed.DeleteFeedEntriesByPost(ctx, oldPost.PostID)
		if err != nil {
			return err
		}
		p.metrics.FanoutWritten("feed", "delete", len(owners))
		p.notify(ctx, events.ViewFeed, oldPost.PostID, owners...)
	}
	return nil
}

func (p *Propagator) setFirstStories(ctx context.Context, winner *entities.Post) error {
	followers, err := p.follows.FollowerIDs(ctx, winner.PostedByUserID, entities.FollowFollowing)
	if err != nil {
		return fmt.Errorf("failed to load followers: %w", err)
	}
	pointers := make([]*entities.FirstStory, len(followers))
	for i, f := range followers {
		pointers[i] = pointer(f, winner)
	}
	if err := p.stories.PutFirstStories(ctx, pointers); err != nil {
		return err
	}
	p.metrics.FanoutWritten("first_story", "put", len(pointers))
	p.notify(ctx, events.ViewFirstStory, winner.PostedByUserID, followers...)
	return nil
}

func (p *Propagator) clearFirstStories(ctx context.Context, userID string) error {
	followers, err := p.follows.FollowerIDs(ctx, userID, entities.FollowFollowing)
	if err != nil {
		return fmt.Errorf("failed to load followers: %w", err)
	}
	if err := p.stories.DeleteFirstStories(ctx, userID, followers); err != nil {
		return err
	}
	p.metrics.FanoutWritten("first_story", "delete", len(followers))
	p.notify(ctx, events.ViewFirstStory, userID, followers...)
	return nil
}

func (p *Propagator) notify(ctx context.Context, view events.View, subjectID string, userIDs ...string) {
	at := p.clock.Now()
	ns := make([]events.Notification, len(userIDs))
	for i, userID := range userIDs {
		ns[i] = events.Notification{UserID: userID, View: view, SubjectID: subjectID, OccurredAt: at}
	}
	if err := ports.NotifyAll(ctx, p.sink, ns); err != nil {
		p.logger.Warn("Failed to notify view change",
			zap.String("view", string(view)),
			zap.String("subjectID", subjectID),
			zap.Int("subscribers", len(ns)),
			zap.Error(err),
		)
	}
}

// TouchesStories reports whether a post change can move first-story pointers.
func TouchesStories(oldPost, newPost *entities.Post) bool {
	return oldPost.IsStoryCandidate() || newPost.IsStoryCandidate()
}

func candidate(post *entities.Post) *entities.Post {
	if post.IsStoryCandidate() {
		return post
	}
	return nil
}

func earliest(a, b *entities.Post) *entities.Post {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.ExpiresBefore(a):
		return b
	default:
		return a
	}
}

func sameStory(a, b *entities.Post) bool {
	return a.PostID == b.PostID && a.ExpiresAt.Equal(*b.ExpiresAt)
}

func feedEntry(userID string, post *entities.Post) *entities.FeedEntry {
	return &entities.FeedEntry{
		FeedUserID:     userID,
		PostID:         post.PostID,
		PostedByUserID: post.PostedByUserID,
		PostedAt:       post.PostedAt,
	}
}

func pointer(followerID string, post *entities.Post) *entities.FirstStory {
	return &entities.FirstStory{
		FollowerUserID: followerID,
		FollowedUserID: post.PostedByUserID,
		PostID:         post.PostID,
		ExpiresAt:      *post.ExpiresAt,
	}
}
