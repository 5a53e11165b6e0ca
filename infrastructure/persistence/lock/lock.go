// Package lock provides leases on the key-value store so that only one process runs a
// singleton job at a time. A lease that is not released expires on its own.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialcore/application/keys"
	"socialcore/application/ports"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrHeld is returned when another owner holds an unexpired lease.
var ErrHeld = errors.New("lock already held")

type record struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	LockID     string `dynamodbav:"LockID"`
	Owner      string `dynamodbav:"Owner"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  string `dynamodbav:"ExpiresAt"`
	TTL        int64  `dynamodbav:"TTL"`
}

// DistributedLock hands out leases
type DistributedLock struct {
	store  ports.KeyValueStore
	clock  ports.Clock
	logger *zap.Logger
}

// NewDistributedLock creates a new distributed lock instance
func NewDistributedLock(store ports.KeyValueStore, clock ports.Clock, logger *zap.Logger) *DistributedLock {
	return &DistributedLock{store: store, clock: clock, logger: logger}
}

// Acquire takes the lease on resource for d, or returns ErrHeld.
func (dl *DistributedLock) Acquire(ctx context.Context, resource, owner string, d time.Duration) (*Lock, error) {
	now := dl.clock.Now()
	expiresAt := now.Add(d)
	key := keys.Lock(resource)
	rec := record{
		PK:         key.PK,
		SK:         key.SK,
		LockID:     uuid.New().String(),
		Owner:      owner,
		AcquiredAt: keys.FormatTime(now),
		ExpiresAt:  keys.FormatTime(expiresAt),
		TTL:        expiresAt.Add(time.Hour).Unix(),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	err = dl.store.Put(ctx, item, ports.Or{
		ports.ItemNotExists(),
		ports.Compare{Name: "ExpiresAt", Op: ports.OpLessThan, Value: keys.FormatTime(now)},
	})
	if errors.Is(err, ports.ErrConditionFailed) {
		dl.logger.Debug("Lock held elsewhere", zap.String("resource", resource), zap.String("owner", owner))
		return nil, ErrHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", resource, err)
	}

	dl.logger.Debug("Lock acquired",
		zap.String("resource", resource),
		zap.String("owner", owner),
		zap.Duration("duration", d),
	)
	return &Lock{dl: dl, resource: resource, lockID: rec.LockID, expiresAt: expiresAt}, nil
}

// Lock is a held lease
type Lock struct {
	dl        *DistributedLock
	resource  string
	lockID    string
	expiresAt time.Time
}

// Release gives the lease up. Releasing a lease that was already taken over is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	_, err := l.dl.store.Delete(ctx, keys.Lock(l.resource), ports.Equal("LockID", l.lockID))
	if errors.Is(err, ports.ErrConditionFailed) {
		l.dl.logger.Warn("Lock already released or taken over", zap.String("resource", l.resource))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.resource, err)
	}
	return nil
}

// ExpiresAt reports when the lease lapses
func (l *Lock) ExpiresAt() time.Time {
	return l.expiresAt
}
