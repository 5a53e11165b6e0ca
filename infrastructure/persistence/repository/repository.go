// Package repository maps the engine's aggregates onto the single table. Every
// repository works against ports.KeyValueStore, so the same code runs over DynamoDB in
// production and over the in-memory store in tests.
package repository

import (
	"context"
	"errors"
	"fmt"

	"socialcore/application/ports"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"
)

// Item kinds stored in the EntityType attribute.
const (
	kindUser        = "USER"
	kindFollow      = "FOLLOW"
	kindBlock       = "BLOCK"
	kindPost        = "POST"
	kindAlbum       = "ALBUM"
	kindLike        = "LIKE"
	kindPostView    = "POST_VIEW"
	kindComment     = "COMMENT"
	kindFlag        = "FLAG"
	kindChat        = "CHAT"
	kindDirectChat  = "DIRECT_CHAT"
	kindChatMember  = "CHAT_MEMBER"
	kindChatMessage = "CHAT_MESSAGE"
	kindCard        = "CARD"
	kindFeedEntry   = "FEED_ENTRY"
	kindFirstStory  = "FIRST_STORY"
	kindConnection  = "CONNECTION"
)

// Attribute names written next to the entity fields.
const (
	attrEntityType = "EntityType"
	attrGSI1PK     = "GSI1PK"
	attrGSI1SK     = "GSI1SK"
	attrGSI2PK     = "GSI2PK"
	attrGSI2SK     = "GSI2SK"
	attrGSI3PK     = "GSI3PK"
	attrGSI3SK     = "GSI3SK"
	attrTTL        = "TTL"
)

// tableKeys is embedded into every item struct; attributevalue flattens it next to the
// embedded entity.
type tableKeys struct {
	PK         string
	SK         string
	GSI1PK     string   `dynamodbav:",omitempty"`
	GSI1SK     string   `dynamodbav:",omitempty"`
	GSI2PK     string   `dynamodbav:",omitempty"`
	GSI2SK     string   `dynamodbav:",omitempty"`
	GSI3PK     string   `dynamodbav:",omitempty"`
	GSI3SK     *float64 `dynamodbav:",omitempty"`
	EntityType string
	TTL        int64 `dynamodbav:",omitempty"`
}

func primary(key ports.Key, kind string) tableKeys {
	return tableKeys{PK: key.PK, SK: key.SK, EntityType: kind}
}

func (k tableKeys) key() ports.Key {
	return ports.Key{PK: k.PK, SK: k.SK}
}

func marshalItem(v any) (ports.Item, error) {
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return ports.Item(av), nil
}

// decode unmarshals an item into an entity. A nil item decodes to nil.
func decode[T any](item ports.Item) (*T, error) {
	if item == nil {
		return nil, nil
	}
	var out T
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return &out, nil
}

func decodeAll[T any](items []ports.Item) ([]*T, error) {
	out := make([]*T, 0, len(items))
	for _, item := range items {
		v, err := decode[T](item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// store wraps the table with the helpers every repository shares.
type store struct {
	kv     ports.KeyValueStore
	logger *zap.Logger
}

func (s store) get(ctx context.Context, key ports.Key) (ports.Item, error) {
	item, err := s.kv.Get(ctx, key, ports.StronglyConsistent)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return item, nil
}

// create puts an item that must not exist yet. conflict builds the error reported when
// it does.
func (s store) create(ctx context.Context, v any, conflict func() error) error {
	item, err := marshalItem(v)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, item, ports.ItemNotExists()); err != nil {
		if errors.Is(err, ports.ErrConditionFailed) {
			return conflict()
		}
		return fmt.Errorf("failed to create %s: %w", item.Key(), err)
	}
	return nil
}

// remove deletes an item and returns what was there.
func (s store) remove(ctx context.Context, key ports.Key) (ports.Item, error) {
	old, err := s.kv.Delete(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return old, nil
}

func (s store) queryAll(ctx context.Context, q ports.Query) ([]ports.Item, error) {
	items, err := ports.QueryAll(ctx, s.kv, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.PartitionKey, err)
	}
	return items, nil
}

// removeAll deletes every item a query returns and reports how many it removed.
func (s store) removeAll(ctx context.Context, q ports.Query) ([]ports.Item, error) {
	items, err := s.queryAll(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	keys := make([]ports.Key, len(items))
	for i, item := range items {
		keys[i] = item.Key()
	}
	if err := s.kv.BatchDelete(ctx, keys); err != nil {
		return nil, fmt.Errorf("failed to delete %d items: %w", len(keys), err)
	}
	return items, nil
}

// page runs a single page of a view query and decodes it.
func page[T any](ctx context.Context, s store, q ports.Query) ([]*T, string, error) {
	p, err := s.kv.Query(ctx, q)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query %s: %w", q.PartitionKey, err)
	}
	out, err := decodeAll[T](p.Items)
	if err != nil {
		return nil, "", err
	}
	return out, p.Cursor, nil
}
