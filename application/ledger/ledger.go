// Package ledger maintains the numeric counters denormalized onto aggregates.
//
// Every adjustment is a single conditional update: increments require the aggregate to
// exist, decrements additionally require the counter to cover the decrement. A failed
// precondition is not an error. It is logged and reported as a no-op so the caller can
// carry on, since the aggregate being adjusted is usually someone else's.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"socialcore/application/keys"
	"socialcore/application/ports"
	"socialcore/domain/config"
	"socialcore/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Adjustment describes one counter change. Set attributes are written in the same update.
// A non-empty Token makes the adjustment idempotent: replays with the same token, key and
// counter are no-ops.
type Adjustment struct {
	Key     ports.Key
	Counter string
	Delta   int
	Set     map[string]any
	Token   string
}

// Result reports whether the adjustment was applied and the aggregate afterwards.
type Result struct {
	Applied bool
	Item    ports.Item
}

// Value reads a numeric attribute from the adjusted aggregate. Missing counters read as 0.
func (r Result) Value(counter string) int {
	n, ok := r.Item[counter].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0
	}
	return int(v)
}

// markerItem records an applied idempotent adjustment until the TTL reaps it.
type markerItem struct {
	PK         string
	SK         string
	EntityType string
	Counter    string
	TTL        int64
}

// Ledger applies counter adjustments against the store.
type Ledger struct {
	store     ports.KeyValueStore
	logger    *zap.Logger
	metrics   *observability.Metrics
	clock     ports.Clock
	markerTTL time.Duration
}

func NewLedger(store ports.KeyValueStore, logger *zap.Logger, metrics *observability.Metrics, clock ports.Clock, cfg *config.DomainConfig) *Ledger {
	return &Ledger{
		store:     store,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		markerTTL: cfg.AppliedMarkerTTL,
	}
}

// Increment adds one to counter on the aggregate at key.
func (l *Ledger) Increment(ctx context.Context, key ports.Key, counter string) (Result, error) {
	return l.Adjust(ctx, Adjustment{Key: key, Counter: counter, Delta: 1})
}

// Decrement subtracts one from counter unless it is already zero.
func (l *Ledger) Decrement(ctx context.Context, key ports.Key, counter string) (Result, error) {
	return l.Adjust(ctx, Adjustment{Key: key, Counter: counter, Delta: -1})
}

// Adjust applies an adjustment. The returned error is only ever an infrastructure failure;
// unmet preconditions come back as Result{Applied: false}.
func (l *Ledger) Adjust(ctx context.Context, adj Adjustment) (Result, error) {
	upd := ports.Update{Set: adj.Set}
	if adj.Delta != 0 {
		upd.Add = map[string]int{adj.Counter: adj.Delta}
	}
	if upd.IsEmpty() {
		return Result{}, fmt.Errorf("empty adjustment of %s on %s", adj.Counter, adj.Key)
	}
	cond := precondition(adj)

	if adj.Token != "" {
		return l.adjustOnce(ctx, adj, upd, cond)
	}

	item, err := l.store.Update(ctx, adj.Key, upd, cond)
	if errors.Is(err, ports.ErrConditionFailed) {
		l.skipped(adj)
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to adjust %s on %s: %w", adj.Counter, adj.Key, err)
	}
	l.metrics.CounterAdjusted(adj.Counter, true)
	return Result{Applied: true, Item: item}, nil
}

// adjustOnce submits the update together with a conditional put of the applied marker.
func (l *Ledger) adjustOnce(ctx context.Context, adj Adjustment, upd ports.Update, cond ports.Condition) (Result, error) {
	markerKey := keys.AppliedMarker(adj.Token, adj.Key, adj.Counter)
	marker, err := attributevalue.MarshalMap(markerItem{
		PK:         markerKey.PK,
		SK:         markerKey.SK,
		EntityType: "APPLIED_MARKER",
		Counter:    adj.Counter,
		TTL:        l.clock.Now().Add(l.markerTTL).Unix(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal applied marker: %w", err)
	}

	err = l.store.TransactWrite(ctx, []ports.WriteOp{
		ports.PutOp(ports.Item(marker), ports.ItemNotExists()),
		ports.UpdateOp(adj.Key, upd, cond),
	})
	var canceled *ports.TransactionCanceledError
	switch {
	case err == nil:
	case errors.As(err, &canceled) && canceled.Failed(0):
		l.logger.Debug("Counter adjustment already applied",
			zap.String("key", adj.Key.String()),
			zap.String("counter", adj.Counter),
		)
		l.metrics.CounterAdjusted(adj.Counter, false)
		return Result{}, nil
	case errors.As(err, &canceled) && canceled.Failed(1):
		l.skipped(adj)
		return Result{}, nil
	default:
		return Result{}, fmt.Errorf("failed to adjust %s on %s: %w", adj.Counter, adj.Key, err)
	}

	l.metrics.CounterAdjusted(adj.Counter, true)
	item, err := l.store.Get(ctx, adj.Key, ports.StronglyConsistent)
	if err != nil {
		return Result{Applied: true}, fmt.Errorf("failed to read %s after adjustment: %w", adj.Key, err)
	}
	return Result{Applied: true, Item: item}, nil
}

// SetAttributes upserts non-counter attributes: the item is created when absent and
// merged otherwise.
func (l *Ledger) SetAttributes(ctx context.Context, key ports.Key, attrs map[string]any) (ports.Item, error) {
	return l.setAttributes(ctx, key, attrs, nil)
}

// SetExisting writes non-counter attributes only on an existing aggregate. A missing
// aggregate is a no-op and returns a nil item.
func (l *Ledger) SetExisting(ctx context.Context, key ports.Key, attrs map[string]any) (ports.Item, error) {
	item, err := l.setAttributes(ctx, key, attrs, ports.ItemExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		l.logger.Warn("Attribute update on missing aggregate, skipping", zap.String("key", key.String()))
		return nil, nil
	}
	return item, err
}

func (l *Ledger) setAttributes(ctx context.Context, key ports.Key, attrs map[string]any, cond ports.Condition) (ports.Item, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	item, err := l.store.Update(ctx, key, ports.Update{Set: attrs}, cond)
	if errors.Is(err, ports.ErrConditionFailed) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set attributes on %s: %w", key, err)
	}
	return item, nil
}

func (l *Ledger) skipped(adj Adjustment) {
	l.logger.Warn("Counter adjustment precondition failed, skipping",
		zap.String("key", adj.Key.String()),
		zap.String("counter", adj.Counter),
		zap.Int("delta", adj.Delta),
	)
	l.metrics.CounterAdjusted(adj.Counter, false)
}

func precondition(adj Adjustment) ports.Condition {
	if adj.Delta >= 0 {
		return ports.ItemExists()
	}
	return ports.And{
		ports.ItemExists(),
		ports.Compare{Name: adj.Counter, Op: ports.OpGreaterOrEqual, Value: -adj.Delta},
	}
}
