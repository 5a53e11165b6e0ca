package trending

import (
	"context"
	"testing"
	"time"

	"socialcore/application/keys"
	"socialcore/application/ledger"
	"socialcore/application/ports"
	"socialcore/domain/config"
	"socialcore/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

func newTracker(t *testing.T, scorer ports.TrendingScorer) (*Tracker, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	clock := ports.ClockFunc(func() time.Time { return now })
	cfg := config.DefaultDomainConfig()
	cfg.TrendingViewMultiplier = 0.5
	l := ledger.NewLedger(store, zap.NewNop(), nil, clock, cfg)
	return NewTracker(store, l, scorer, clock, cfg, zap.NewNop()), store
}

func seedPost(t *testing.T, store *memory.Store, postID string) {
	t.Helper()
	key := keys.Post(postID)
	pk, err := ports.AttributeValueOf(key.PK)
	require.NoError(t, err)
	sk, err := ports.AttributeValueOf(key.SK)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), ports.Item{ports.AttrPK: pk, ports.AttrSK: sk}, nil))
}

func currentScore(t *testing.T, store *memory.Store, postID string) float64 {
	t.Helper()
	item, err := store.Get(context.Background(), keys.Post(postID), ports.StronglyConsistent)
	require.NoError(t, err)
	return score(item)
}

func TestTracker_AddsMultipliers(t *testing.T) {
	ctx := context.Background()
	tracker, store := newTracker(t, AdditiveScorer{})
	seedPost(t, store, "p")

	require.NoError(t, tracker.Bump(ctx, keys.Post("p"), ports.TrendingLike))
	require.NoError(t, tracker.Bump(ctx, keys.Post("p"), ports.TrendingLike))
	require.NoError(t, tracker.Bump(ctx, keys.Post("p"), ports.TrendingView))

	assert.InDelta(t, 2.5, currentScore(t, store, "p"), 1e-9)
}

func TestTracker_SkipsMissingAggregate(t *testing.T) {
	tracker, store := newTracker(t, AdditiveScorer{})
	require.NoError(t, tracker.Bump(context.Background(), keys.Post("gone"), ports.TrendingLike))
	assert.Equal(t, 0, store.Len())
}

type halvingScorer struct{}

func (halvingScorer) Score(current float64, _ ports.TrendingEvent, multiplier float64, _ time.Time) float64 {
	return current/2 + multiplier
}

func TestTracker_PluggableScorer(t *testing.T) {
	ctx := context.Background()
	tracker, store := newTracker(t, halvingScorer{})
	seedPost(t, store, "p")

	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.Bump(ctx, keys.Post("p"), ports.TrendingLike))
	}
	// 0 -> 1 -> 1.5 -> 1.75
	assert.InDelta(t, 1.75, currentScore(t, store, "p"), 1e-9)
}
