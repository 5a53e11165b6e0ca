package ports

import (
	"context"
	"time"

	"socialcore/domain/events"

	"go.uber.org/multierr"
)

// NotificationSink tells external subscribers that a denormalized view changed.
// Delivery is fire-and-forget: callers log failures and never retry.
type NotificationSink interface {
	Notify(ctx context.Context, n events.Notification) error
}

// BatchNotificationSink is implemented by sinks that deliver many notifications per call.
type BatchNotificationSink interface {
	NotificationSink
	NotifyBatch(ctx context.Context, ns []events.Notification) error
}

// NotifyAll delivers ns through the sink's batch path when it has one. Every
// notification is attempted; failures are combined.
func NotifyAll(ctx context.Context, sink NotificationSink, ns []events.Notification) error {
	if sink == nil || len(ns) == 0 {
		return nil
	}
	if bs, ok := sink.(BatchNotificationSink); ok {
		return bs.NotifyBatch(ctx, ns)
	}
	var errs error
	for _, n := range ns {
		errs = multierr.Append(errs, sink.Notify(ctx, n))
	}
	return errs
}

// TrendingEvent names the engagement that moved a trending score.
type TrendingEvent string

const (
	TrendingLike TrendingEvent = "LIKE"
	TrendingView TrendingEvent = "VIEW"
)

// TrendingScorer computes a new trending score. The decay policy is pluggable.
type TrendingScorer interface {
	Score(current float64, event TrendingEvent, multiplier float64, now time.Time) float64
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
