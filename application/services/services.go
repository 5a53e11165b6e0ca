// Package services holds the aggregate APIs. Each mutation is written with its own
// preconditions, then published to the dispatcher so registered reactors can bring the
// denormalized aggregates in line. Cascade failures are logged and never fail the
// mutation that caused them.
package services

import (
	"context"
	"errors"
	"time"

	"socialcore/application/dispatch"
	"socialcore/application/ports"
	"socialcore/domain/core/valueobjects"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

// publisher hands committed changes to the dispatcher.
type publisher struct {
	dispatcher *dispatch.Dispatcher
	clock      ports.Clock
	logger     *zap.Logger
}

func newPublisher(d *dispatch.Dispatcher, clock ports.Clock, logger *zap.Logger) publisher {
	return publisher{dispatcher: d, clock: clock, logger: logger}
}

func (p publisher) now() time.Time {
	return p.clock.Now()
}

// publish dispatches a change and absorbs cascade failures.
func publish[T any](ctx context.Context, p publisher, entity events.EntityType, id string, oldSnap, newSnap *T) {
	err := dispatch.Publish(ctx, p.dispatcher, entity, id, oldSnap, newSnap)
	if err == nil {
		return
	}
	var cascade *dispatch.CascadeError
	if errors.As(err, &cascade) {
		p.logger.Warn("Cascade incomplete",
			zap.String("entityType", string(entity)),
			zap.String("entityID", id),
			zap.Int("failures", len(cascade.Failures())),
			zap.Error(err),
		)
		return
	}
	p.logger.Error("Failed to publish change",
		zap.String("entityType", string(entity)),
		zap.String("entityID", id),
		zap.Error(err),
	)
}

// required takes name/value pairs and rejects the first empty value.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return pkgerrors.NewValidationError(pairs[i] + " is required")
		}
	}
	return nil
}

func maxLength(field, v string, max int) error {
	_, err := valueobjects.NormalizeText(field, v, max, false)
	return err
}

// ensureNotBlocked refuses interactions between users when either blocks the other.
func ensureNotBlocked(ctx context.Context, blocks ports.BlockRepository, a, b string) error {
	if a == b {
		return nil
	}
	blocked, err := blocks.EitherBlocks(ctx, a, b)
	if err != nil {
		return err
	}
	if blocked {
		return pkgerrors.NewForbiddenError("interaction blocked")
	}
	return nil
}
