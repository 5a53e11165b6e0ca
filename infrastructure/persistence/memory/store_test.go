package memory

import (
	"context"
	"errors"
	"testing"

	"socialcore/application/ports"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func num(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func TestStore_ConditionalPut(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	item := ports.Item{"PK": str("USER#a"), "SK": str("PROFILE")}

	require.NoError(t, store.Put(ctx, item, ports.ItemNotExists()))
	err := store.Put(ctx, item, ports.ItemNotExists())
	assert.ErrorIs(t, err, ports.ErrConditionFailed)

	assert.Error(t, store.Put(ctx, ports.Item{"PK": str("USER#a")}, nil))
	assert.Equal(t, 1, store.Len())
}

func TestStore_UpdateAddsFromZeroAndHonorsCondition(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	key := ports.Key{PK: "POST#p", SK: "METADATA"}

	_, err := store.Update(ctx, key, ports.Update{Add: map[string]int{"LikeCount": 1}}, ports.ItemExists())
	assert.ErrorIs(t, err, ports.ErrConditionFailed)

	item, err := store.Update(ctx, key, ports.Update{
		Add: map[string]int{"LikeCount": 2},
		Set: map[string]any{"Title": "hi"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, num("2"), item["LikeCount"])
	assert.Equal(t, str("hi"), item["Title"])

	_, err = store.Update(ctx, key, ports.Update{Add: map[string]int{"LikeCount": -3}},
		ports.Compare{Name: "LikeCount", Op: ports.OpGreaterOrEqual, Value: 3})
	assert.ErrorIs(t, err, ports.ErrConditionFailed)

	item, err = store.Update(ctx, key, ports.Update{Remove: []string{"Title"}}, ports.ItemExists())
	require.NoError(t, err)
	assert.NotContains(t, item, "Title")
}

func TestStore_ReturnedItemsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	key := ports.Key{PK: "USER#a", SK: "PROFILE"}
	require.NoError(t, store.Put(ctx, ports.Item{"PK": str(key.PK), "SK": str(key.SK)}, nil))

	got, err := store.Get(ctx, key, ports.EventuallyConsistent)
	require.NoError(t, err)
	got["Extra"] = str("x")

	again, err := store.Get(ctx, key, ports.StronglyConsistent)
	require.NoError(t, err)
	assert.NotContains(t, again, "Extra")
}

func TestStore_DeleteReturnsPreviousItem(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	key := ports.Key{PK: "LOCK#job", SK: "LOCK"}
	require.NoError(t, store.Put(ctx, ports.Item{"PK": str(key.PK), "SK": str(key.SK), "LockID": str("1")}, nil))

	_, err := store.Delete(ctx, key, ports.Equal("LockID", "2"))
	assert.ErrorIs(t, err, ports.ErrConditionFailed)

	old, err := store.Delete(ctx, key, ports.Equal("LockID", "1"))
	require.NoError(t, err)
	assert.Equal(t, str("1"), old["LockID"])
	assert.Equal(t, 0, store.Len())
}

func TestStore_QueryIndexPagesInOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for _, sk := range []string{"c", "a", "b", "d"} {
		require.NoError(t, store.Put(ctx, ports.Item{
			"PK":     str("POST#" + sk),
			"SK":     str("METADATA"),
			"GSI1PK": str("POSTS#u"),
			"GSI1SK": str(sk),
		}, nil))
	}
	require.NoError(t, store.Put(ctx, ports.Item{"PK": str("POST#z"), "SK": str("METADATA")}, nil))

	var seen []string
	cursor := ""
	for {
		page, err := store.Query(ctx, ports.Query{
			Index:        ports.IndexGSI1,
			PartitionKey: "POSTS#u",
			SortKey:      ports.SortCompare(ports.SortGreaterThan, "a"),
			Descending:   true,
			Limit:        2,
			Cursor:       cursor,
		})
		require.NoError(t, err)
		for _, item := range page.Items {
			seen = append(seen, item["GSI1SK"].(*types.AttributeValueMemberS).Value)
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	assert.Equal(t, []string{"d", "c", "b"}, seen)
}

func TestStore_QueryAppliesFilterAfterLimit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for i, status := range []string{"OPEN", "DONE", "OPEN"} {
		require.NoError(t, store.Put(ctx, ports.Item{
			"PK":     str("USER#u"),
			"SK":     str(string(rune('a' + i))),
			"Status": str(status),
		}, nil))
	}

	page, err := store.Query(ctx, ports.Query{
		PartitionKey: "USER#u",
		Filter:       ports.Equal("Status", "DONE"),
		Limit:        1,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotEmpty(t, page.Cursor)

	page, err = store.Query(ctx, ports.Query{PartitionKey: "USER#u", SortKey: ports.BeginsWith("b")})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestStore_TransactWriteIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	existing := ports.Item{"PK": str("CHAT#c"), "SK": str("METADATA")}
	require.NoError(t, store.Put(ctx, existing, nil))

	err := store.TransactWrite(ctx, []ports.WriteOp{
		ports.PutOp(ports.Item{"PK": str("CHAT#d"), "SK": str("METADATA")}, ports.ItemNotExists()),
		ports.PutOp(existing, ports.ItemNotExists()),
	})
	var canceled *ports.TransactionCanceledError
	require.True(t, errors.As(err, &canceled))
	assert.Equal(t, []int{1}, canceled.FailedIndexes())
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.TransactWrite(ctx, []ports.WriteOp{
		ports.PutOp(ports.Item{"PK": str("CHAT#d"), "SK": str("METADATA")}, ports.ItemNotExists()),
		ports.UpdateOp(existing.Key(), ports.Update{Add: map[string]int{"UserCount": 1}}, ports.ItemExists()),
		ports.CheckOp(existing.Key(), ports.ItemExists()),
	}))
	assert.Error(t, store.TransactWrite(ctx, []ports.WriteOp{
		ports.CheckOp(existing.Key(), ports.ItemExists()),
		ports.DeleteOp(existing.Key(), nil),
	}))

	item, err := store.Get(ctx, existing.Key(), ports.EventuallyConsistent)
	require.NoError(t, err)
	assert.Equal(t, num("1"), item["UserCount"])
}
