package reactors

import (
	"context"

	"socialcore/application/keys"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// userPrivacy accepts every pending request when a private user goes public.
func (r *reactors) userPrivacy(ctx context.Context, c events.Change, n, o *entities.User) error {
	if !o.IsPrivate() || n.IsPrivate() {
		return nil
	}
	accepted, err := r.Services.Follows.AcceptAll(ctx, n.UserID)
	if accepted > 0 {
		r.Logger.Info("Pending follow requests accepted",
			zap.String("userID", n.UserID),
			zap.Int("count", accepted),
		)
	}
	return err
}

func isActive(f *entities.Follow) bool {
	return f != nil && f.IsActive()
}

func isRequested(f *entities.Follow) bool {
	return f != nil && f.Status == entities.FollowRequested
}

// edge returns whichever snapshot is present; both carry the same pair of users.
func edge(n, o *entities.Follow) *entities.Follow {
	if n != nil {
		return n
	}
	return o
}

// followCounters keeps FollowerCount and FollowedCount equal to the active edges.
func (r *reactors) followCounters(ctx context.Context, c events.Change, n, o *entities.Follow) error {
	was, is := isActive(o), isActive(n)
	if was == is {
		return nil
	}
	delta := 1
	if was {
		delta = -1
	}
	f := edge(n, o)
	_, err1 := r.adjust(ctx, c, "follow-counters", keys.User(f.FollowedUserID), entities.UserFollowerCount, delta)
	_, err2 := r.adjust(ctx, c, "follow-counters", keys.User(f.FollowerUserID), entities.UserFollowedCount, delta)
	if err := multierr.Combine(err1, err2); err != nil {
		return err
	}
	r.notify(ctx, events.ViewFollowers, f.FollowerUserID, f.FollowedUserID)
	return nil
}

// followRequests keeps FollowersRequestedCount and the REQUESTED_FOLLOWERS card.
func (r *reactors) followRequests(ctx context.Context, c events.Change, n, o *entities.Follow) error {
	was, is := isRequested(o), isRequested(n)
	if was == is {
		return nil
	}
	f := edge(n, o)
	cardID := entities.RequestedFollowersCardID(f.FollowedUserID)

	if is {
		res, err := r.adjust(ctx, c, "follow-requests", keys.User(f.FollowedUserID), entities.UserFollowersRequestedCount, 1)
		if err != nil || !res.Applied {
			return err
		}
		return r.bumpCard(ctx, entities.Card{
			CardID:    cardID,
			UserID:    f.FollowedUserID,
			Kind:      entities.CardRequestedFollowers,
			Title:     "New follow requests",
			Action:    "/follow-requests",
			SubjectID: f.FollowerUserID,
		})
	}

	res, err := r.adjust(ctx, c, "follow-requests", keys.User(f.FollowedUserID), entities.UserFollowersRequestedCount, -1)
	if err != nil || !res.Applied {
		return err
	}
	if res.Value(entities.UserFollowersRequestedCount) == 0 {
		return r.Services.Cards.DeleteCard(ctx, cardID)
	}
	return nil
}

// followFanout copies or withdraws the followed user's posts and first story.
func (r *reactors) followFanout(ctx context.Context, c events.Change, n, o *entities.Follow) error {
	was, is := isActive(o), isActive(n)
	f := edge(n, o)
	switch {
	case is && !was:
		return r.Propagator.FollowActivated(ctx, f.FollowerUserID, f.FollowedUserID)
	case was && !is:
		return r.Propagator.FollowDeactivated(ctx, f.FollowerUserID, f.FollowedUserID)
	}
	return nil
}

// blockUnfollow cuts the follow edges between the two users in both directions.
func (r *reactors) blockUnfollow(ctx context.Context, c events.Change, n, o *entities.Block) error {
	return multierr.Combine(
		r.Services.Follows.ForceUnfollow(ctx, n.BlockerUserID, n.BlockedUserID),
		r.Services.Follows.ForceUnfollow(ctx, n.BlockedUserID, n.BlockerUserID),
	)
}
