package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialcore/application/keys"
	"socialcore/application/ports"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// RateLimiter decides whether a subject may make another request
type RateLimiter interface {
	Allow(ctx context.Context, subject string) (Decision, error)
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// rateWindowEntry is a fixed-window counter item in the table
type rateWindowEntry struct {
	Count     int    `dynamodbav:"Count"`
	WindowEnd string `dynamodbav:"WindowEnd"`
	TTL       int64  `dynamodbav:"TTL"`
}

// StoreRateLimiter counts requests per subject in fixed windows kept in the key-value
// store, so every API instance shares the same budget.
type StoreRateLimiter struct {
	store  ports.KeyValueStore
	limit  int
	window time.Duration
	clock  ports.Clock
}

// NewStoreRateLimiter creates a limiter allowing limit requests per window
func NewStoreRateLimiter(store ports.KeyValueStore, limit int, window time.Duration, clock ports.Clock) *StoreRateLimiter {
	return &StoreRateLimiter{
		store:  store,
		limit:  limit,
		window: window,
		clock:  clock,
	}
}

// Allow increments the subject's counter for the current window when it is below the
// limit. Store errors fail open and are returned alongside an allowing decision.
func (r *StoreRateLimiter) Allow(ctx context.Context, subject string) (Decision, error) {
	now := r.clock.Now()
	windowStart := now.Truncate(r.window)
	windowEnd := windowStart.Add(r.window)
	decision := Decision{Allowed: true, Limit: r.limit, Remaining: r.limit, ResetAt: windowEnd}

	if r.store == nil || r.limit <= 0 {
		return decision, nil
	}

	item, err := r.store.Update(ctx,
		keys.RateWindow(subject, windowStart.Unix()),
		ports.Update{
			Add: map[string]int{"Count": 1},
			Set: map[string]any{
				"WindowEnd": windowEnd.Format(time.RFC3339),
				"TTL":       windowEnd.Add(time.Hour).Unix(),
			},
		},
		ports.Or{
			ports.AttributeNotExists{Name: "Count"},
			ports.Compare{Name: "Count", Op: ports.OpLessThan, Value: r.limit},
		},
	)
	if errors.Is(err, ports.ErrConditionFailed) {
		decision.Allowed = false
		decision.Remaining = 0
		return decision, nil
	}
	if err != nil {
		return decision, fmt.Errorf("rate limiter error (failing open): %w", err)
	}

	var entry rateWindowEntry
	if err := attributevalue.UnmarshalMap(item, &entry); err != nil {
		return decision, fmt.Errorf("failed to parse rate limit entry (failing open): %w", err)
	}
	decision.Remaining = r.limit - entry.Count
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	return decision, nil
}

// Limit returns the configured rate limit
func (r *StoreRateLimiter) Limit() int {
	return r.limit
}

// Window returns the configured time window
func (r *StoreRateLimiter) Window() time.Duration {
	return r.window
}
