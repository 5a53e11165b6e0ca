package ledger

import (
	"context"
	"testing"
	"time"

	"socialcore/application/keys"
	"socialcore/application/ports"
	"socialcore/domain/config"
	"socialcore/infrastructure/persistence/memory"
	"socialcore/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const counter = "FollowerCount"

func newTestLedger(t *testing.T) (*Ledger, *memory.Store, *observability.Metrics) {
	t.Helper()
	store := memory.NewStore()
	metrics := observability.NewMetrics("test")
	clock := ports.ClockFunc(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) })
	return NewLedger(store, zap.NewNop(), metrics, clock, config.DefaultDomainConfig()), store, metrics
}

func seed(t *testing.T, store *memory.Store, key ports.Key) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), ports.Item{
		ports.AttrPK: mustAV(t, key.PK),
		ports.AttrSK: mustAV(t, key.SK),
	}, nil))
}

func mustAV(t *testing.T, v any) types.AttributeValue {
	t.Helper()
	av, err := ports.AttributeValueOf(v)
	require.NoError(t, err)
	return av
}

func TestLedger_NeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)
	key := keys.User("u")
	seed(t, store, key)

	ops := []int{+1, -1, -1, +1, +1, -1, -1, -1, +1}
	want := 0
	var last Result
	for _, op := range ops {
		var err error
		if op > 0 {
			last, err = l.Increment(ctx, key, counter)
		} else {
			last, err = l.Decrement(ctx, key, counter)
		}
		require.NoError(t, err)
		if op > 0 || want > 0 {
			assert.True(t, last.Applied)
			want += op
		} else {
			assert.False(t, last.Applied)
		}
	}

	item, err := store.Get(ctx, key, ports.StronglyConsistent)
	require.NoError(t, err)
	assert.Equal(t, want, Result{Item: item}.Value(counter))
	assert.Equal(t, 1, want)
}

func TestLedger_MissingAggregateIsNoOp(t *testing.T) {
	ctx := context.Background()
	l, store, metrics := newTestLedger(t)

	res, err := l.Increment(ctx, keys.User("ghost"), counter)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LedgerNoops.WithLabelValues(counter)))
}

func TestLedger_SetRidesAlong(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)
	key := keys.Album("a")
	seed(t, store, key)

	res, err := l.Adjust(ctx, Adjustment{
		Key:     key,
		Counter: "PostCount",
		Delta:   1,
		Set:     map[string]any{"PostsLastUpdatedAt": "2024-01-01T00:00:00Z"},
	})
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.Equal(t, 1, res.Value("PostCount"))
	assert.Contains(t, res.Item, "PostsLastUpdatedAt")
}

func TestLedger_TokenMakesAdjustmentIdempotent(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)
	key := keys.User("u")
	seed(t, store, key)

	adj := Adjustment{Key: key, Counter: counter, Delta: 1, Token: "follow-accepted"}
	first, err := l.Adjust(ctx, adj)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, 1, first.Value(counter))

	replay, err := l.Adjust(ctx, adj)
	require.NoError(t, err)
	assert.False(t, replay.Applied)

	other, err := l.Adjust(ctx, Adjustment{Key: key, Counter: counter, Delta: 1, Token: "another"})
	require.NoError(t, err)
	assert.True(t, other.Applied)
	assert.Equal(t, 2, other.Value(counter))
}

func TestLedger_TokenedDecrementStillFailsSoft(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)
	key := keys.User("u")
	seed(t, store, key)

	res, err := l.Adjust(ctx, Adjustment{Key: key, Counter: counter, Delta: -1, Token: "t"})
	require.NoError(t, err)
	assert.False(t, res.Applied)

	// the failed transaction left no marker behind
	res, err = l.Increment(ctx, key, counter)
	require.NoError(t, err)
	require.True(t, res.Applied)
	res, err = l.Adjust(ctx, Adjustment{Key: key, Counter: counter, Delta: -1, Token: "t"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 0, res.Value(counter))
}

func TestLedger_SetAttributesUpserts(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)
	key := keys.Post("p")

	item, err := l.SetAttributes(ctx, key, map[string]any{"Name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", item["Name"].(*types.AttributeValueMemberS).Value)

	stored, err := store.Get(ctx, key, ports.StronglyConsistent)
	require.NoError(t, err)
	require.NotNil(t, stored, "absent item is created")
	assert.Equal(t, "x", stored["Name"].(*types.AttributeValueMemberS).Value)

	item, err = l.SetAttributes(ctx, key, map[string]any{"TrendingScore": 2.5})
	require.NoError(t, err)
	assert.Equal(t, "2.5", item["TrendingScore"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "x", item["Name"].(*types.AttributeValueMemberS).Value, "existing attributes are kept")
	assert.Equal(t, 1, store.Len())
}

func TestLedger_SetExistingSkipsMissing(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)

	item, err := l.SetExisting(ctx, keys.Album("a"), map[string]any{"PostsLastUpdatedAt": "now"})
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, 0, store.Len())

	seed(t, store, keys.Album("a"))
	item, err = l.SetExisting(ctx, keys.Album("a"), map[string]any{"PostsLastUpdatedAt": "now"})
	require.NoError(t, err)
	assert.Equal(t, "now", item["PostsLastUpdatedAt"].(*types.AttributeValueMemberS).Value)
}
