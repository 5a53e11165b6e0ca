package messaging

import (
	"context"
	"time"

	"socialcore/application/ports"
	"socialcore/domain/events"
	"socialcore/pkg/observability"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig tunes the circuit breaker around a remote sink.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerSink stops calling a failing sink until it has had time to recover. While the
// circuit is open notifications are dropped with gobreaker.ErrOpenState.
type BreakerSink struct {
	next    ports.NotificationSink
	cb      *gobreaker.CircuitBreaker
	name    string
	metrics *observability.Metrics
}

func NewBreakerSink(next ports.NotificationSink, cfg BreakerConfig, logger *zap.Logger, metrics *observability.Metrics) *BreakerSink {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Sink circuit breaker changed state",
				zap.String("sink", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerSink{next: next, cb: cb, name: cfg.Name, metrics: metrics}
}

func (b *BreakerSink) Notify(ctx context.Context, n events.Notification) error {
	return b.execute(func() error { return b.next.Notify(ctx, n) })
}

func (b *BreakerSink) NotifyBatch(ctx context.Context, ns []events.Notification) error {
	return b.execute(func() error { return ports.NotifyAll(ctx, b.next, ns) })
}

// State reports the breaker state.
func (b *BreakerSink) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerSink) execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		b.metrics.SinkFailed(b.name)
	}
	return err
}
