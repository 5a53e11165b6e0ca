package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	pkgerrors "socialcore/pkg/errors"
	"socialcore/pkg/observability"
)

// Query represents a read-only query
type Query interface {
	Validate() error
}

// QueryHandler handles a specific query type
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryHandlerFunc is an adapter to allow functions to be used as handlers
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

// Handle implements QueryHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// QueryBus dispatches queries to their handlers
type QueryBus struct {
	handlers map[reflect.Type]QueryHandler
	metrics  *observability.Metrics
	mu       sync.RWMutex
}

// NewQueryBus creates a new query bus
func NewQueryBus(metrics *observability.Metrics) *QueryBus {
	return &QueryBus{
		handlers: make(map[reflect.Type]QueryHandler),
		metrics:  metrics,
	}
}

// Register registers a handler for a query type
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, exists := b.handlers[t]; exists {
		return pkgerrors.NewConflictError("handler already registered for query type " + t.Name())
	}

	b.handlers[t] = handler
	return nil
}

// Handle registers a typed handler function for queries of type Q.
func Handle[Q Query, R any](b *QueryBus, fn func(ctx context.Context, query Q) (R, error)) error {
	var zero Q
	return b.Register(zero, QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		return fn(ctx, query.(Q))
	}))
}

// Ask dispatches a query to its handler and returns the result
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()

	if !exists {
		return nil, ErrHandlerNotFound
	}

	result, err := handler.Handle(ctx, query)
	b.metrics.BusHandled("query", reflect.TypeOf(query).Name(), err)
	return result, err
}

// Cache is the store behind CachingMiddleware
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// CachingMiddleware adds caching to query handlers
type CachingMiddleware struct {
	cache Cache
	ttl   time.Duration
}

// NewCachingMiddleware creates a new caching middleware
func NewCachingMiddleware(cache Cache, ttl time.Duration) *CachingMiddleware {
	return &CachingMiddleware{
		cache: cache,
		ttl:   ttl,
	}
}

// Wrap wraps a query handler with caching
func (m *CachingMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		cacheKey := fmt.Sprintf("%T:%+v", query, query)
		if cached, found := m.cache.Get(ctx, cacheKey); found {
			return cached, nil
		}

		result, err := next.Handle(ctx, query)
		if err != nil {
			return nil, err
		}
		m.cache.Set(ctx, cacheKey, result, m.ttl)
		return result, nil
	})
}

// Errors
var (
	ErrHandlerNotFound = errors.New("query handler not found")
)
