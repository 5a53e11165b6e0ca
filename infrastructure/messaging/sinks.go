// Package messaging delivers view-change notifications to subscribers outside the
// process. Every sink is fire-and-forget: a failed delivery is reported to the caller,
// which logs it and moves on.
package messaging

import (
	"context"
	"sync"

	"socialcore/application/ports"
	"socialcore/domain/events"

	"go.uber.org/multierr"
)

// NoopSink drops every notification.
type NoopSink struct{}

func (NoopSink) Notify(context.Context, events.Notification) error { return nil }

// MultiSink delivers to every wrapped sink. One sink failing does not stop the others.
type MultiSink struct {
	sinks []ports.NotificationSink
}

func NewMultiSink(sinks ...ports.NotificationSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Notify(ctx context.Context, n events.Notification) error {
	var errs error
	for _, s := range m.sinks {
		errs = multierr.Append(errs, s.Notify(ctx, n))
	}
	return errs
}

func (m *MultiSink) NotifyBatch(ctx context.Context, ns []events.Notification) error {
	var errs error
	for _, s := range m.sinks {
		errs = multierr.Append(errs, ports.NotifyAll(ctx, s, ns))
	}
	return errs
}

// RecordingSink keeps every notification in memory.
type RecordingSink struct {
	mu  sync.Mutex
	got []events.Notification
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (r *RecordingSink) Notify(_ context.Context, n events.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

// Notifications returns a copy of everything recorded so far.
func (r *RecordingSink) Notifications() []events.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Notification(nil), r.got...)
}

// For filters the recorded notifications by view.
func (r *RecordingSink) For(view events.View) []events.Notification {
	var out []events.Notification
	for _, n := range r.Notifications() {
		if n.View == view {
			out = append(out, n)
		}
	}
	return out
}

func (r *RecordingSink) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = nil
}
