// Package dispatch runs change reactors after a mutation has committed.
//
// There is no queue. The code that performed a mutation calls Dispatch with the before
// and after snapshots, and every reactor registered for that entity type and transition
// runs synchronously, in registration order. Reactor failures never undo the mutation:
// they are logged, counted and handed back as a CascadeError.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"
	"socialcore/pkg/observability"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Handler reacts to one committed change.
type Handler func(ctx context.Context, change events.Change) error

type route struct {
	entity     events.EntityType
	transition events.Transition
}

type reactor struct {
	name    string
	handler Handler
}

// Dispatcher is the registry of change reactors
type Dispatcher struct {
	mu       sync.RWMutex
	reactors map[route][]reactor

	logger  *zap.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	now     func() time.Time
}

// NewDispatcher creates an empty registry
func NewDispatcher(logger *zap.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Dispatcher {
	return &Dispatcher{
		reactors: make(map[route][]reactor),
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a reactor for one entity type and transition.
func (d *Dispatcher) Register(entity events.EntityType, transition events.Transition, name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := route{entity: entity, transition: transition}
	d.reactors[r] = append(d.reactors[r], reactor{name: name, handler: h})
}

// Reactors lists the names registered for a route, in run order.
func (d *Dispatcher) Reactors(entity events.EntityType, transition events.Transition) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	regs := d.reactors[route{entity: entity, transition: transition}]
	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = r.name
	}
	return names
}

// TypedHandler receives the snapshots as the aggregate's own type. Either may be nil.
type TypedHandler[T any] func(ctx context.Context, change events.Change, newSnap, oldSnap *T) error

// On registers a typed reactor. Without transitions it is registered for all of them.
func On[T any](d *Dispatcher, entity events.EntityType, name string, fn TypedHandler[T], transitions ...events.Transition) {
	if len(transitions) == 0 {
		transitions = []events.Transition{events.Added, events.Edited, events.Deleted}
	}
	h := func(ctx context.Context, change events.Change) error {
		newSnap, err := snapshot[T](change.New)
		if err != nil {
			return err
		}
		oldSnap, err := snapshot[T](change.Old)
		if err != nil {
			return err
		}
		return fn(ctx, change, newSnap, oldSnap)
	}
	for _, t := range transitions {
		d.Register(entity, t, name, h)
	}
}

func snapshot[T any](v any) (*T, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(*T)
	if !ok {
		var zero T
		return nil, fmt.Errorf("snapshot is %T, reactor expects %T", v, &zero)
	}
	return s, nil
}

// Publish dispatches a typed change. The transition is derived from which snapshots are
// present; both absent is a programming error.
func Publish[T any](ctx context.Context, d *Dispatcher, entity events.EntityType, id string, oldSnap, newSnap *T) error {
	if oldSnap == nil && newSnap == nil {
		return pkgerrors.NewInvariantError(fmt.Sprintf("%s %s changed with neither snapshot", entity, id))
	}
	change := events.Change{
		EntityType: entity,
		Transition: events.TransitionFor(oldSnap, newSnap),
		EntityID:   id,
		OccurredAt: d.now(),
	}
	if oldSnap != nil {
		change.Old = oldSnap
	}
	if newSnap != nil {
		change.New = newSnap
	}
	return d.Dispatch(ctx, change)
}

// Dispatch runs every reactor registered for the change's route. A failing reactor does
// not stop the ones after it.
func (d *Dispatcher) Dispatch(ctx context.Context, change events.Change) error {
	d.mu.RLock()
	regs := d.reactors[route{entity: change.EntityType, transition: change.Transition}]
	d.mu.RUnlock()

	if len(regs) == 0 {
		return nil
	}

	var errs error
	_ = d.tracer.TraceFunction(ctx, "dispatch."+strings.ToLower(string(change.EntityType)), func(ctx context.Context) error {
		for _, r := range regs {
			err := d.run(ctx, r, change)
			d.metrics.ReactorRan(string(change.EntityType), string(change.Transition), r.name, err)
			if err != nil {
				d.logger.Warn("Reactor failed",
					zap.String("entityType", string(change.EntityType)),
					zap.String("transition", string(change.Transition)),
					zap.String("entityID", change.EntityID),
					zap.String("reactor", r.name),
					zap.Error(err),
				)
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.name, err))
			}
		}
		return errs
	})

	if errs != nil {
		return &CascadeError{Change: change, Err: errs}
	}
	return nil
}

func (d *Dispatcher) run(ctx context.Context, r reactor, change events.Change) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reactor panicked: %v", rec)
		}
	}()
	d.logger.Debug("Running reactor",
		zap.String("reactor", r.name),
		zap.String("entityID", change.EntityID),
	)
	return r.handler(ctx, change)
}

// CascadeError collects the reactor failures of one dispatch. The mutation that
// triggered it has already committed.
type CascadeError struct {
	Change events.Change
	Err    error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("%d reactor(s) failed for %s %s %s: %v",
		len(multierr.Errors(e.Err)), e.Change.EntityType, e.Change.Transition, e.Change.EntityID, e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}

// Failures lists the individual reactor errors.
func (e *CascadeError) Failures() []error {
	return multierr.Errors(e.Err)
}
