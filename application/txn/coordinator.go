// Package txn submits multi-aggregate writes atomically and translates per-item
// condition failures into the caller's domain errors.
package txn

import (
	"context"
	"errors"
	"fmt"

	"socialcore/application/ports"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrorFactory builds the error reported when its write's condition fails.
type ErrorFactory func() error

// Coordinator wraps the store's atomic multi-item write.
type Coordinator struct {
	store  ports.KeyValueStore
	logger *zap.Logger
}

func NewCoordinator(store ports.KeyValueStore, logger *zap.Logger) *Coordinator {
	return &Coordinator{store: store, logger: logger}
}

// WriteAll applies every op or none. factories is parallel to ops and may be shorter or
// contain nils. When the store cancels the write, each failed op contributes the error
// from its factory, or a transaction-failed error naming its index when it has none.
// Failures that are not cancellations propagate unchanged.
func (c *Coordinator) WriteAll(ctx context.Context, ops []ports.WriteOp, factories ...ErrorFactory) error {
	if len(ops) > ports.MaxTransactItems {
		return pkgerrors.NewValidationError(fmt.Sprintf("a transaction takes at most %d items, got %d", ports.MaxTransactItems, len(ops)))
	}

	err := c.store.TransactWrite(ctx, ops)
	if err == nil {
		return nil
	}
	var canceled *ports.TransactionCanceledError
	if !errors.As(err, &canceled) {
		return err
	}

	var out error
	failed := canceled.FailedIndexes()
	for _, i := range failed {
		if i < len(factories) && factories[i] != nil {
			out = multierr.Append(out, factories[i]())
			continue
		}
		out = multierr.Append(out, pkgerrors.NewTransactionFailedError(i, canceled))
	}
	if out == nil {
		// cancelled without a conditional failure, e.g. a conflicting transaction
		return pkgerrors.NewTransactionFailedError(-1, canceled)
	}

	c.logger.Debug("Transaction cancelled",
		zap.Ints("failedIndexes", failed),
		zap.Int("items", len(ops)),
	)
	return out
}
