package repository

import (
	"context"
	"fmt"

	"socialcore/application/keys"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

type followItem struct {
	tableKeys
	entities.Follow
}

func newFollowItem(f *entities.Follow) followItem {
	item := followItem{tableKeys: primary(keys.Follow(f.FollowerUserID, f.FollowedUserID), kindFollow), Follow: *f}
	item.GSI1PK = keys.FollowersView(f.FollowedUserID)
	item.GSI1SK = keys.StatusSortKey(string(f.Status), f.FollowedAt)
	item.GSI2PK = keys.FollowedView(f.FollowerUserID)
	item.GSI2SK = keys.StatusSortKey(string(f.Status), f.FollowedAt)
	return item
}

// FollowRepository stores follow edges under the followed user's partition, with the
// followers and followed lists projected into views ordered by status then time.
type FollowRepository struct {
	store
}

func NewFollowRepository(kv ports.KeyValueStore, logger *zap.Logger) *FollowRepository {
	return &FollowRepository{store{kv: kv, logger: logger}}
}

func (r *FollowRepository) GetFollow(ctx context.Context, followerID, followedID string) (*entities.Follow, error) {
	item, err := r.get(ctx, keys.Follow(followerID, followedID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Follow](item)
}

func (r *FollowRepository) CreateFollow(ctx context.Context, follow *entities.Follow) error {
	return r.create(ctx, newFollowItem(follow), func() error {
		return pkgerrors.NewAlreadyExistsError("follow", follow.FollowerUserID, follow.FollowedUserID)
	})
}

func (r *FollowRepository) UpdateFollowStatus(ctx context.Context, old *entities.Follow, status entities.FollowStatus) (*entities.Follow, error) {
	next := newFollowItem(old.WithStatus(status))
	item, err := r.kv.Update(ctx, next.tableKeys.key(), ports.Update{
		Set: map[string]any{
			"Status":   string(status),
			attrGSI1SK: next.GSI1SK,
			attrGSI2SK: next.GSI2SK,
		},
	}, ports.Equal("Status", string(old.Status)))
	if err != nil {
		return nil, fmt.Errorf("failed to move follow %s to %s: %w", old.ID(), status, err)
	}
	return decode[entities.Follow](item)
}

func (r *FollowRepository) DeleteFollow(ctx context.Context, followerID, followedID string) (*entities.Follow, error) {
	item, err := r.remove(ctx, keys.Follow(followerID, followedID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Follow](item)
}

// FollowerIDs lists the users following followedID with the given status.
func (r *FollowRepository) FollowerIDs(ctx context.Context, followedID string, status entities.FollowStatus) ([]string, error) {
	follows, err := r.list(ctx, ports.IndexGSI1, keys.FollowersView(followedID), status)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(follows))
	for i, f := range follows {
		ids[i] = f.FollowerUserID
	}
	return ids, nil
}

// FollowedIDs lists the users followerID follows with the given status.
func (r *FollowRepository) FollowedIDs(ctx context.Context, followerID string, status entities.FollowStatus) ([]string, error) {
	follows, err := r.list(ctx, ports.IndexGSI2, keys.FollowedView(followerID), status)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(follows))
	for i, f := range follows {
		ids[i] = f.FollowedUserID
	}
	return ids, nil
}

func (r *FollowRepository) PageFollowers(ctx context.Context, followedID string, status entities.FollowStatus, limit int, cursor string) ([]*entities.Follow, string, error) {
	return page[entities.Follow](ctx, r.store, ports.Query{
		Index:        ports.IndexGSI1,
		PartitionKey: keys.FollowersView(followedID),
		SortKey:      ports.BeginsWith(string(status) + "#"),
		Limit:        limit,
		Cursor:       cursor,
	})
}

func (r *FollowRepository) list(ctx context.Context, index, partition string, status entities.FollowStatus) ([]*entities.Follow, error) {
	items, err := r.queryAll(ctx, ports.Query{
		Index:        index,
		PartitionKey: partition,
		SortKey:      ports.BeginsWith(string(status) + "#"),
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Follow](items)
}

type blockItem struct {
	tableKeys
	entities.Block
}

// BlockRepository stores blocks under the blocked user's partition.
type BlockRepository struct {
	store
}

func NewBlockRepository(kv ports.KeyValueStore, logger *zap.Logger) *BlockRepository {
	return &BlockRepository{store{kv: kv, logger: logger}}
}

func (r *BlockRepository) GetBlock(ctx context.Context, blockerID, blockedID string) (*entities.Block, error) {
	item, err := r.get(ctx, keys.Block(blockerID, blockedID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Block](item)
}

func (r *BlockRepository) CreateBlock(ctx context.Context, block *entities.Block) error {
	item := blockItem{tableKeys: primary(keys.Block(block.BlockerUserID, block.BlockedUserID), kindBlock), Block: *block}
	item.GSI1PK = keys.BlockedView(block.BlockerUserID)
	item.GSI1SK = keys.FormatTime(block.BlockedAt)
	return r.create(ctx, item, func() error {
		return pkgerrors.NewAlreadyExistsError("block", block.BlockerUserID, block.BlockedUserID)
	})
}

func (r *BlockRepository) DeleteBlock(ctx context.Context, blockerID, blockedID string) (*entities.Block, error) {
	item, err := r.remove(ctx, keys.Block(blockerID, blockedID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Block](item)
}

// EitherBlocks reports whether a blocks b or b blocks a.
func (r *BlockRepository) EitherBlocks(ctx context.Context, a, b string) (bool, error) {
	items, err := r.kv.BatchGet(ctx, []ports.Key{keys.Block(a, b), keys.Block(b, a)})
	if err != nil {
		return false, fmt.Errorf("failed to read blocks: %w", err)
	}
	return len(items) > 0, nil
}
