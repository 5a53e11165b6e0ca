package fanout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	"socialcore/infrastructure/messaging"
	"socialcore/infrastructure/persistence/memory"
	"socialcore/infrastructure/persistence/repository"
	pkgerrors "socialcore/pkg/errors"
	"socialcore/pkg/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	prop    *Propagator
	follows *repository.FollowRepository
	posts   *repository.PostRepository
	feed    *repository.FeedRepository
	stories *repository.FirstStoryRepository
	sink    *messaging.RecordingSink
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		follows: repository.NewFollowRepository(store, zap.NewNop()),
		posts:   repository.NewPostRepository(store, zap.NewNop()),
		feed:    repository.NewFeedRepository(store, zap.NewNop()),
		stories: repository.NewFirstStoryRepository(store, zap.NewNop()),
		sink:    messaging.NewRecordingSink(),
		metrics: observability.NewMetrics("test"),
	}
	clock := ports.ClockFunc(func() time.Time { return now })
	f.prop = NewPropagator(f.follows, f.posts, f.feed, f.stories, f.sink, clock, zap.NewNop(), f.metrics)
	return f
}

func (f *fixture) follow(t *testing.T, follower, followed string, status entities.FollowStatus) {
	t.Helper()
	require.NoError(t, f.follows.CreateFollow(context.Background(), &entities.Follow{
		FollowerUserID: follower,
		FollowedUserID: followed,
		Status:         status,
		FollowedAt:     now,
	}))
}

func (f *fixture) story(t *testing.T, id string, ttl time.Duration) *entities.Post {
	t.Helper()
	expires := now.Add(ttl)
	post, err := entities.NewPost(id, "star", entities.PostTypeText, "hi", &expires, now)
	require.NoError(t, err)
	require.NoError(t, f.posts.CreatePost(context.Background(), post))
	return post
}

func (f *fixture) pointers(t *testing.T, followers ...string) map[string]string {
	t.Helper()
	got := make(map[string]string)
	for _, follower := range followers {
		fs, err := f.stories.GetFirstStory(context.Background(), follower, "star")
		require.NoError(t, err)
		if fs != nil {
			got[follower] = fs.PostID
		}
	}
	return got
}

func TestStoryChanged_PointsEveryActiveFollower(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var followers []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("fan%d", i)
		followers = append(followers, id)
		f.follow(t, id, "star", entities.FollowFollowing)
	}
	f.follow(t, "asking", "star", entities.FollowRequested)

	s := f.story(t, "s1", time.Hour)
	require.NoError(t, f.prop.StoryChanged(ctx, nil, s))

	got := f.pointers(t, append(followers, "asking")...)
	assert.Len(t, got, 5)
	for _, id := range followers {
		assert.Equal(t, "s1", got[id])
	}
	assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.FanoutWrites.WithLabelValues("first_story", "put")))
	assert.Len(t, f.sink.For(events.ViewFirstStory), 5)

	_, err := f.posts.DeletePost(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, f.prop.StoryChanged(ctx, s, nil))
	assert.Empty(t, f.pointers(t, followers...))
}

func TestStoryChanged_EarliestExpiryWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.follow(t, "fan", "star", entities.FollowFollowing)

	late := f.story(t, "late", 3*time.Hour)
	require.NoError(t, f.prop.StoryChanged(ctx, nil, late))
	assert.Equal(t, "late", f.pointers(t, "fan")["fan"])

	early := f.story(t, "early", time.Hour)
	require.NoError(t, f.prop.StoryChanged(ctx, nil, early))
	assert.Equal(t, "early", f.pointers(t, "fan")["fan"])

	// a later story does not displace the winner
	mid := f.story(t, "mid", 2*time.Hour)
	require.NoError(t, f.prop.StoryChanged(ctx, nil, mid))
	assert.Equal(t, "early", f.pointers(t, "fan")["fan"])

	_, err := f.posts.DeletePost(ctx, "early")
	require.NoError(t, err)
	require.NoError(t, f.prop.StoryChanged(ctx, early, nil))
	assert.Equal(t, "mid", f.pointers(t, "fan")["fan"])

	// extending the winner past the runner-up hands the pointer over
	extended := mid.Clone()
	later := now.Add(4 * time.Hour)
	extended.ExpiresAt = &later
	_, err = f.posts.UpdatePost(ctx, extended)
	require.NoError(t, err)
	require.NoError(t, f.prop.StoryChanged(ctx, mid, extended))
	assert.Equal(t, "late", f.pointers(t, "fan")["fan"])
}

func TestStoryChanged_NoCandidateIsInvariantViolation(t *testing.T) {
	f := newFixture(t)
	post, err := entities.NewPost("p", "star", entities.PostTypeText, "plain", nil, now)
	require.NoError(t, err)

	assert.False(t, TouchesStories(nil, post))
	err = f.prop.StoryChanged(context.Background(), nil, post)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvariant))
}

func TestFollowActivatedAndDeactivated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	text, err := entities.NewPost("t1", "star", entities.PostTypeText, "hello", nil, now)
	require.NoError(t, err)
	require.NoError(t, f.posts.CreatePost(ctx, text))
	pending, err := entities.NewPost("img", "star", entities.PostTypeImage, "", nil, now)
	require.NoError(t, err)
	require.NoError(t, f.posts.CreatePost(ctx, pending))
	f.story(t, "s1", time.Hour)

	require.NoError(t, f.prop.FollowActivated(ctx, "fan", "star"))

	feed, _, err := f.feed.PageFeed(ctx, "fan", 10, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "s1"}, feedPostIDs(feed))
	assert.Equal(t, "s1", f.pointers(t, "fan")["fan"])

	// replays converge
	require.NoError(t, f.prop.FollowActivated(ctx, "fan", "star"))
	feed, _, err = f.feed.PageFeed(ctx, "fan", 10, "")
	require.NoError(t, err)
	assert.Len(t, feed, 2)

	require.NoError(t, f.prop.FollowDeactivated(ctx, "fan", "star"))
	feed, _, err = f.feed.PageFeed(ctx, "fan", 10, "")
	require.NoError(t, err)
	assert.Empty(t, feed)
	assert.Empty(t, f.pointers(t, "fan"))
}

func TestPostVisibilityChanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.follow(t, "fan", "star", entities.FollowFollowing)
	f.follow(t, "asking", "star", entities.FollowRequested)

	pending, err := entities.NewPost("img", "star", entities.PostTypeImage, "", nil, now)
	require.NoError(t, err)
	completed := pending.Clone()
	completed.Status = entities.PostCompleted

	require.NoError(t, f.prop.PostVisibilityChanged(ctx, nil, pending))
	feed, _, err := f.feed.PageFeed(ctx, "fan", 10, "")
	require.NoError(t, err)
	assert.Empty(t, feed, "pending posts stay out of feeds")

	require.NoError(t, f.prop.PostVisibilityChanged(ctx, pending, completed))
	for user, want := range map[string]int{"star": 1, "fan": 1, "asking": 0} {
		feed, _, err := f.feed.PageFeed(ctx, user, 10, "")
		require.NoError(t, err)
		assert.Len(t, feed, want, user)
	}

	archived := completed.Clone()
	archived.Status = entities.PostArchived
	f.sink.Reset()
	require.NoError(t, f.prop.PostVisibilityChanged(ctx, completed, archived))
	for _, user := range []string{"star", "fan"} {
		feed, _, err := f.feed.PageFeed(ctx, user, 10, "")
		require.NoError(t, err)
		assert.Empty(t, feed, user)
	}
	assert.Len(t, f.sink.For(events.ViewFeed), 2)
}

func feedPostIDs(entries []*entities.FeedEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.PostID
	}
	return ids
}
