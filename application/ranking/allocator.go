// Package ranking assigns fractional ranks to members of user-ordered collections.
//
// Placing a member never touches any other member. Edge placements draw from the
// collection's rankCount, which grows on every placement and never shrinks, so each new
// edge rank lies beyond every rank handed out before it. Placements between two members
// take the midpoint and fail with a rank-exhausted error once no float lies strictly
// between the neighbours.
package ranking

import (
	"context"

	"socialcore/application/keys"
	"socialcore/application/ledger"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	"socialcore/domain/core/valueobjects"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

// Counters is the ledger capability the allocator needs.
type Counters interface {
	Adjust(ctx context.Context, adj ledger.Adjustment) (ledger.Result, error)
}

// Placement says where a member goes.
type Placement struct {
	Front       bool
	AfterPostID string
}

// AtBack appends.
func AtBack() Placement { return Placement{} }

// AtFront prepends.
func AtFront() Placement { return Placement{Front: true} }

// After places a member immediately after a sibling.
func After(postID string) Placement { return Placement{AfterPostID: postID} }

// Allocator hands out album ranks.
type Allocator struct {
	members  ports.AlbumMemberReader
	counters Counters
	logger   *zap.Logger
}

func NewAllocator(members ports.AlbumMemberReader, counters Counters, logger *zap.Logger) *Allocator {
	return &Allocator{members: members, counters: counters, logger: logger}
}

// Allocate returns the rank for post in its album. The post may already be a member,
// in which case it is being moved and is ignored as a neighbour.
func (a *Allocator) Allocate(ctx context.Context, post *entities.Post, p Placement) (float64, error) {
	albumID := post.AlbumID
	if albumID == "" {
		return 0, pkgerrors.NewValidationError("post is not in an album")
	}

	var sibling *entities.Post
	if p.AfterPostID != "" {
		var err error
		if sibling, err = a.sibling(ctx, albumID, post.PostID, p.AfterPostID); err != nil {
			return 0, err
		}
	}

	// RankCount only moves once the rank is settled.
	if sibling != nil {
		next, err := a.next(ctx, albumID, *sibling.AlbumRank, post.PostID)
		if err != nil {
			return 0, err
		}
		if next != nil {
			rank, err := valueobjects.RankBetween(*sibling.AlbumRank, *next.AlbumRank)
			if err != nil {
				return 0, err
			}
			if _, err := a.count(ctx, albumID); err != nil {
				return 0, err
			}
			return rank, nil
		}
		n, err := a.count(ctx, albumID)
		if err != nil {
			return 0, err
		}
		return valueobjects.BackRank(n), nil
	}

	first, err := a.next(ctx, albumID, valueobjects.MinRank, post.PostID)
	if err != nil {
		return 0, err
	}
	n, err := a.count(ctx, albumID)
	if err != nil {
		return 0, err
	}
	switch {
	case first == nil:
		return valueobjects.FirstRank, nil
	case p.Front:
		return valueobjects.FrontRank(n), nil
	default:
		return valueobjects.BackRank(n), nil
	}
}

// count bumps the album's RankCount and returns the new value.
func (a *Allocator) count(ctx context.Context, albumID string) (int, error) {
	res, err := a.counters.Adjust(ctx, ledger.Adjustment{
		Key:     keys.Album(albumID),
		Counter: entities.AlbumRankCount,
		Delta:   1,
	})
	if err != nil {
		return 0, err
	}
	if !res.Applied {
		return 0, pkgerrors.NewNotFoundError("album")
	}
	return res.Value(entities.AlbumRankCount), nil
}

// sibling loads and validates the member a placement is relative to.
func (a *Allocator) sibling(ctx context.Context, albumID, postID, siblingID string) (*entities.Post, error) {
	if siblingID == postID {
		return nil, pkgerrors.NewInvalidReferenceError("sibling post", siblingID)
	}
	sibling, err := a.members.GetPost(ctx, siblingID)
	if err != nil {
		return nil, err
	}
	if sibling == nil || sibling.AlbumID != albumID || !sibling.IsAlbumMember() || sibling.AlbumRank == nil {
		return nil, pkgerrors.NewInvalidReferenceError("sibling post", siblingID)
	}
	return sibling, nil
}

// next returns the member ranked right after rank, skipping the post being placed.
func (a *Allocator) next(ctx context.Context, albumID string, rank float64, skipID string) (*entities.Post, error) {
	for {
		next, err := a.members.NextAlbumMember(ctx, albumID, rank)
		if err != nil || next == nil {
			return nil, err
		}
		if next.PostID != skipID {
			return next, nil
		}
		rank = *next.AlbumRank
	}
}

// GenerateInOrder lists an album's member ids in display order.
func (a *Allocator) GenerateInOrder(ctx context.Context, albumID string) ([]string, error) {
	members, err := a.members.AlbumMembers(ctx, albumID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.PostID
	}
	return ids, nil
}
