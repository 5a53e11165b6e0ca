package repository

import (
	"context"
	"errors"
	"fmt"

	"socialcore/application/keys"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

type likeItem struct {
	tableKeys
	entities.Like
}

// LikeRepository stores likes in the liked post's partition.
type LikeRepository struct {
	store
}

func NewLikeRepository(kv ports.KeyValueStore, logger *zap.Logger) *LikeRepository {
	return &LikeRepository{store{kv: kv, logger: logger}}
}

func (r *LikeRepository) CreateLike(ctx context.Context, like *entities.Like) error {
	item := likeItem{tableKeys: primary(keys.Like(like.PostID, like.LikedByUserID), kindLike), Like: *like}
	item.GSI1PK = keys.LikerView(like.LikedByUserID)
	item.GSI1SK = keys.FormatTime(like.LikedAt)
	return r.create(ctx, item, func() error {
		return pkgerrors.NewAlreadyExistsError("like", like.PostID, like.LikedByUserID)
	})
}

func (r *LikeRepository) DeleteLike(ctx context.Context, postID, userID string) (*entities.Like, error) {
	item, err := r.remove(ctx, keys.Like(postID, userID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Like](item)
}

func (r *LikeRepository) LikesByPost(ctx context.Context, postID string) ([]*entities.Like, error) {
	items, err := r.queryAll(ctx, ports.Query{
		PartitionKey: keys.PostPK(postID),
		SortKey:      ports.BeginsWith(keys.PrefixLike),
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Like](items)
}

type viewItem struct {
	tableKeys
	entities.PostView
}

// ViewRepository stores one view record per (post, viewer).
type ViewRepository struct {
	store
}

func NewViewRepository(kv ports.KeyValueStore, logger *zap.Logger) *ViewRepository {
	return &ViewRepository{store{kv: kv, logger: logger}}
}

// RecordView creates the record on the first view and bumps ViewCount on later ones. old
// is nil exactly when this call created the record.
func (r *ViewRepository) RecordView(ctx context.Context, view *entities.PostView) (*entities.PostView, *entities.PostView, error) {
	key := keys.View(view.PostID, view.ViewedByUserID)
	existing, err := r.get(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	if existing == nil {
		first := *view
		first.ViewCount = 1
		first.FirstViewedAt = view.LastViewedAt
		item, err := marshalItem(viewItem{tableKeys: primary(key, kindPostView), PostView: first})
		if err != nil {
			return nil, nil, err
		}
		err = r.kv.Put(ctx, item, ports.ItemNotExists())
		if err == nil {
			return nil, &first, nil
		}
		if !errors.Is(err, ports.ErrConditionFailed) {
			return nil, nil, fmt.Errorf("failed to record view: %w", err)
		}
		// a concurrent first view won the put
		if existing, err = r.get(ctx, key); err != nil {
			return nil, nil, err
		}
	}

	old, err := decode[entities.PostView](existing)
	if err != nil {
		return nil, nil, err
	}
	item, err := r.kv.Update(ctx, key, ports.Update{
		Add: map[string]int{"ViewCount": 1},
		Set: map[string]any{"LastViewedAt": view.LastViewedAt},
	}, ports.ItemExists())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bump view: %w", err)
	}
	current, err := decode[entities.PostView](item)
	if err != nil {
		return nil, nil, err
	}
	return old, current, nil
}

func (r *ViewRepository) DeleteViews(ctx context.Context, postID string) error {
	_, err := r.removeAll(ctx, ports.Query{
		PartitionKey: keys.PostPK(postID),
		SortKey:      ports.BeginsWith(keys.PrefixView),
	})
	return err
}

type commentItem struct {
	tableKeys
	entities.Comment
}

// CommentRepository stores comments, listed per post by time.
type CommentRepository struct {
	store
}

func NewCommentRepository(kv ports.KeyValueStore, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{store{kv: kv, logger: logger}}
}

func (r *CommentRepository) CreateComment(ctx context.Context, comment *entities.Comment) error {
	item := commentItem{tableKeys: primary(keys.Comment(comment.CommentID), kindComment), Comment: *comment}
	item.GSI1PK = keys.CommentsView(comment.PostID)
	item.GSI1SK = keys.FormatTime(comment.CommentedAt)
	return r.create(ctx, item, func() error {
		return pkgerrors.NewAlreadyExistsError("comment", comment.CommentID)
	})
}

func (r *CommentRepository) GetComment(ctx context.Context, commentID string) (*entities.Comment, error) {
	item, err := r.get(ctx, keys.Comment(commentID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Comment](item)
}

func (r *CommentRepository) DeleteComment(ctx context.Context, commentID string) (*entities.Comment, error) {
	item, err := r.remove(ctx, keys.Comment(commentID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Comment](item)
}

func (r *CommentRepository) CommentsByPost(ctx context.Context, postID string) ([]*entities.Comment, error) {
	items, err := r.queryAll(ctx, ports.Query{
		Index:        ports.IndexGSI1,
		PartitionKey: keys.CommentsView(postID),
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Comment](items)
}

type flagItem struct {
	tableKeys
	entities.Flag
}

// FlagRepository stores flags next to the flagged item's id.
type FlagRepository struct {
	store
}

func NewFlagRepository(kv ports.KeyValueStore, logger *zap.Logger) *FlagRepository {
	return &FlagRepository{store{kv: kv, logger: logger}}
}

func (r *FlagRepository) CreateFlag(ctx context.Context, flag *entities.Flag) error {
	item := flagItem{tableKeys: primary(keys.Flag(string(flag.Kind), flag.ItemID, flag.FlaggerUserID), kindFlag), Flag: *flag}
	return r.create(ctx, item, func() error {
		return pkgerrors.NewAlreadyExistsError("flag", flag.ItemID, flag.FlaggerUserID)
	})
}

func (r *FlagRepository) DeleteFlags(ctx context.Context, kind entities.FlagKind, itemID string) error {
	_, err := r.removeAll(ctx, ports.Query{
		PartitionKey: keys.FlaggedPK(string(kind), itemID),
		SortKey:      ports.BeginsWith(keys.PrefixFlag),
	})
	return err
}
