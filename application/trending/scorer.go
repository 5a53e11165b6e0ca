// Package trending keeps the trending score on users and posts. Scores are plain
// attributes rather than ledger counters: two concurrent bumps may lose one of them.
package trending

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"socialcore/application/ports"
	"socialcore/domain/config"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Attribute is the score attribute on users and posts.
const Attribute = "TrendingScore"

// AdditiveScorer adds the event multiplier and never decays.
type AdditiveScorer struct{}

func (AdditiveScorer) Score(current float64, _ ports.TrendingEvent, multiplier float64, _ time.Time) float64 {
	return current + multiplier
}

// Attributes is the write capability the tracker needs.
type Attributes interface {
	SetExisting(ctx context.Context, key ports.Key, attrs map[string]any) (ports.Item, error)
}

// Tracker reads an aggregate's score, rescales it and writes it back.
type Tracker struct {
	store  ports.KeyValueStore
	attrs  Attributes
	scorer ports.TrendingScorer
	clock  ports.Clock
	cfg    *config.DomainConfig
	logger *zap.Logger
}

func NewTracker(store ports.KeyValueStore, attrs Attributes, scorer ports.TrendingScorer, clock ports.Clock, cfg *config.DomainConfig, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, attrs: attrs, scorer: scorer, clock: clock, cfg: cfg, logger: logger}
}

// Bump applies event to the aggregate at key. Missing aggregates are skipped.
func (t *Tracker) Bump(ctx context.Context, key ports.Key, event ports.TrendingEvent) error {
	item, err := t.store.Get(ctx, key, ports.EventuallyConsistent)
	if err != nil {
		return fmt.Errorf("failed to read trending score of %s: %w", key, err)
	}
	if item == nil {
		return nil
	}

	current := score(item)
	next := t.scorer.Score(current, event, t.multiplier(event), t.clock.Now())
	if next == current {
		return nil
	}
	_, err = t.attrs.SetExisting(ctx, key, map[string]any{Attribute: next})
	return err
}

func (t *Tracker) multiplier(event ports.TrendingEvent) float64 {
	switch event {
	case ports.TrendingLike:
		return t.cfg.TrendingLikeMultiplier
	case ports.TrendingView:
		return t.cfg.TrendingViewMultiplier
	}
	t.logger.Warn("Unknown trending event", zap.String("event", string(event)))
	return 0
}

func score(item ports.Item) float64 {
	n, ok := item[Attribute].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, _ := strconv.ParseFloat(n.Value, 64)
	return v
}
