package services

import (
	"context"
	"errors"

	"socialcore/application/dispatch"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

// FollowService manages follow edges. Every status change is a conditional write on the
// status it was read in, so two racing transitions cannot both succeed.
type FollowService struct {
	users   ports.UserRepository
	follows ports.FollowRepository
	blocks  ports.BlockRepository
	publisher
}

func NewFollowService(
	users ports.UserRepository,
	follows ports.FollowRepository,
	blocks ports.BlockRepository,
	d *dispatch.Dispatcher,
	clock ports.Clock,
	logger *zap.Logger,
) *FollowService {
	return &FollowService{
		users:     users,
		follows:   follows,
		blocks:    blocks,
		publisher: newPublisher(d, clock, logger),
	}
}

// Follow requests to follow a user. Private users get a request; public users are
// followed right away.
func (s *FollowService) Follow(ctx context.Context, followerID, followedID string) (*entities.Follow, error) {
	if err := required("followerID", followerID, "followedID", followedID); err != nil {
		return nil, err
	}
	if followerID == followedID {
		return nil, pkgerrors.NewValidationError("users cannot follow themselves")
	}
	followed, err := s.users.GetUser(ctx, followedID)
	if err != nil {
		return nil, err
	}
	if followed == nil {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	if err := ensureNotBlocked(ctx, s.blocks, followerID, followedID); err != nil {
		return nil, err
	}

	status := entities.FollowFollowing
	if followed.IsPrivate() {
		status = entities.FollowRequested
	}
	follow := &entities.Follow{
		FollowerUserID: followerID,
		FollowedUserID: followedID,
		Status:         status,
		FollowedAt:     s.now(),
	}
	if err := s.follows.CreateFollow(ctx, follow); err != nil {
		return nil, err
	}
	s.logger.Debug("Follow created",
		zap.String("followerID", followerID),
		zap.String("followedID", followedID),
		zap.String("status", string(status)),
	)
	publish(ctx, s.publisher, events.EntityFollow, follow.ID(), nil, follow)
	return follow, nil
}

// Accept turns a pending request into an active follow.
func (s *FollowService) Accept(ctx context.Context, followedID, followerID string) (*entities.Follow, error) {
	return s.transition(ctx, followerID, followedID, entities.FollowRequested, entities.FollowFollowing)
}

// Deny refuses a pending request. The denied edge stays so the request is not repeated.
func (s *FollowService) Deny(ctx context.Context, followedID, followerID string) (*entities.Follow, error) {
	return s.transition(ctx, followerID, followedID, entities.FollowRequested, entities.FollowDenied)
}

func (s *FollowService) transition(ctx context.Context, followerID, followedID string, from, to entities.FollowStatus) (*entities.Follow, error) {
	old, err := s.follows.GetFollow(ctx, followerID, followedID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, pkgerrors.NewNotFoundError("follow request")
	}
	if old.Status != from {
		return nil, pkgerrors.NewConflictError("follow is " + string(old.Status))
	}
	follow, err := s.follows.UpdateFollowStatus(ctx, old, to)
	if errors.Is(err, ports.ErrConditionFailed) {
		return nil, pkgerrors.NewConflictError("follow changed concurrently")
	}
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityFollow, follow.ID(), old, follow)
	return follow, nil
}

// Unfollow removes the edge in whatever status it is.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followedID string) error {
	old, err := s.follows.DeleteFollow(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if old == nil {
		return pkgerrors.NewNotFoundError("follow")
	}
	publish(ctx, s.publisher, events.EntityFollow, old.ID(), old, nil)
	return nil
}

// ForceUnfollow removes the edge if there is one.
func (s *FollowService) ForceUnfollow(ctx context.Context, followerID, followedID string) error {
	err := s.Unfollow(ctx, followerID, followedID)
	if pkgerrors.IsNotFound(err) {
		return nil
	}
	return err
}

// AcceptAll accepts every pending request to followedID and returns how many it accepted.
func (s *FollowService) AcceptAll(ctx context.Context, followedID string) (int, error) {
	requested, err := s.follows.FollowerIDs(ctx, followedID, entities.FollowRequested)
	if err != nil {
		return 0, err
	}
	accepted := 0
	for _, followerID := range requested {
		_, err := s.Accept(ctx, followedID, followerID)
		switch {
		case err == nil:
			accepted++
		case pkgerrors.IsNotFound(err) || pkgerrors.IsConflict(err):
			// withdrawn or answered meanwhile
		default:
			return accepted, err
		}
	}
	return accepted, nil
}

func (s *FollowService) PageFollowers(ctx context.Context, followedID string, status entities.FollowStatus, limit int, cursor string) ([]*entities.Follow, string, error) {
	return s.follows.PageFollowers(ctx, followedID, status, limit, cursor)
}

// BlockService manages blocks. Blocking cuts every follow edge between the two users.
type BlockService struct {
	users  ports.UserRepository
	blocks ports.BlockRepository
	publisher
}

func NewBlockService(users ports.UserRepository, blocks ports.BlockRepository, d *dispatch.Dispatcher, clock ports.Clock, logger *zap.Logger) *BlockService {
	return &BlockService{users: users, blocks: blocks, publisher: newPublisher(d, clock, logger)}
}

func (s *BlockService) Block(ctx context.Context, blockerID, blockedID string) (*entities.Block, error) {
	if err := required("blockerID", blockerID, "blockedID", blockedID); err != nil {
		return nil, err
	}
	if blockerID == blockedID {
		return nil, pkgerrors.NewValidationError("users cannot block themselves")
	}
	blocked, err := s.users.GetUser(ctx, blockedID)
	if err != nil {
		return nil, err
	}
	if blocked == nil {
		return nil, pkgerrors.NewNotFoundError("user")
	}

	block := &entities.Block{BlockerUserID: blockerID, BlockedUserID: blockedID, BlockedAt: s.now()}
	if err := s.blocks.CreateBlock(ctx, block); err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityBlock, block.ID(), nil, block)
	return block, nil
}

func (s *BlockService) Unblock(ctx context.Context, blockerID, blockedID string) error {
	old, err := s.blocks.DeleteBlock(ctx, blockerID, blockedID)
	if err != nil {
		return err
	}
	if old == nil {
		return pkgerrors.NewNotFoundError("block")
	}
	publish(ctx, s.publisher, events.EntityBlock, old.ID(), old, nil)
	return nil
}
