package dispatch

import (
	"context"
	"errors"
	"testing"

	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"
	"socialcore/pkg/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDispatcher() (*Dispatcher, *observability.Metrics) {
	metrics := observability.NewMetrics("test")
	return NewDispatcher(zap.NewNop(), metrics, nil), metrics
}

func TestDispatch_RunsInRegistrationOrder(t *testing.T) {
	d, _ := newTestDispatcher()
	var order []string
	for _, name := range []string{"counters", "feed", "first-story"} {
		name := name
		On(d, events.EntityFollow, name, func(ctx context.Context, c events.Change, n, o *entities.Follow) error {
			order = append(order, name)
			return nil
		}, events.Edited)
	}

	old := &entities.Follow{FollowerUserID: "a", FollowedUserID: "b", Status: entities.FollowRequested}
	err := Publish(context.Background(), d, events.EntityFollow, old.ID(), old, old.WithStatus(entities.FollowFollowing))
	require.NoError(t, err)
	assert.Equal(t, []string{"counters", "feed", "first-story"}, order)
	assert.Equal(t, order, d.Reactors(events.EntityFollow, events.Edited))
}

func TestDispatch_PassesTypedSnapshots(t *testing.T) {
	d, _ := newTestDispatcher()
	var got events.Transition
	var gotNew, gotOld *entities.Like
	On(d, events.EntityLike, "likes", func(ctx context.Context, c events.Change, n, o *entities.Like) error {
		got, gotNew, gotOld = c.Transition, n, o
		return nil
	})

	like := &entities.Like{PostID: "p", LikedByUserID: "u", Status: entities.LikeOnymous}
	require.NoError(t, Publish(context.Background(), d, events.EntityLike, like.ID(), nil, like))
	assert.Equal(t, events.Added, got)
	assert.Same(t, like, gotNew)
	assert.Nil(t, gotOld)

	require.NoError(t, Publish(context.Background(), d, events.EntityLike, like.ID(), like, nil))
	assert.Equal(t, events.Deleted, got)
	assert.Nil(t, gotNew)
	assert.Same(t, like, gotOld)
}

func TestDispatch_FailuresDoNotStopLaterReactors(t *testing.T) {
	d, metrics := newTestDispatcher()
	boom := errors.New("store unavailable")
	ran := false

	On(d, events.EntityPost, "fails", func(ctx context.Context, c events.Change, n, o *entities.Post) error {
		return boom
	})
	On(d, events.EntityPost, "panics", func(ctx context.Context, c events.Change, n, o *entities.Post) error {
		panic("nil map")
	})
	On(d, events.EntityPost, "runs", func(ctx context.Context, c events.Change, n, o *entities.Post) error {
		ran = true
		return nil
	})

	err := Publish(context.Background(), d, events.EntityPost, "p", nil, &entities.Post{PostID: "p"})
	require.Error(t, err)
	assert.True(t, ran)

	var cascade *CascadeError
	require.ErrorAs(t, err, &cascade)
	assert.Len(t, cascade.Failures(), 2)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, events.Added, cascade.Change.Transition)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReactorRuns.WithLabelValues("POST", "ADDED", "fails", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReactorRuns.WithLabelValues("POST", "ADDED", "runs", "ok")))
}

func TestDispatch_WrongSnapshotType(t *testing.T) {
	d, _ := newTestDispatcher()
	On(d, events.EntityPost, "posts", func(ctx context.Context, c events.Change, n, o *entities.Post) error {
		return nil
	})

	err := d.Dispatch(context.Background(), events.Change{
		EntityType: events.EntityPost,
		Transition: events.Added,
		New:        &entities.Album{},
	})
	assert.Error(t, err)
}

func TestPublish_BothSnapshotsAbsent(t *testing.T) {
	d, _ := newTestDispatcher()
	err := Publish[entities.Post](context.Background(), d, events.EntityPost, "p", nil, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvariant))
}

func TestChangeToken_Deterministic(t *testing.T) {
	f := &entities.Follow{FollowerUserID: "a", FollowedUserID: "b", Status: entities.FollowFollowing}
	c1 := events.Change{EntityType: events.EntityFollow, Transition: events.Added, EntityID: f.ID(), New: f}
	c2 := events.Change{EntityType: events.EntityFollow, Transition: events.Added, EntityID: f.ID(), New: f.WithStatus(entities.FollowFollowing)}

	assert.Equal(t, c1.Token("counters"), c2.Token("counters"))
	assert.NotEqual(t, c1.Token("counters"), c1.Token("feed"))
}
