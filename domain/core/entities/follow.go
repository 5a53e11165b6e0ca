package entities

import "time"

// FollowStatus is the state of a follow edge. An absent edge means not following.
type FollowStatus string

const (
	FollowRequested FollowStatus = "REQUESTED"
	FollowFollowing FollowStatus = "FOLLOWING"
	FollowDenied    FollowStatus = "DENIED"
)

// Follow is the edge from a follower to a followed user.
type Follow struct {
	FollowerUserID string       `json:"followerUserId"`
	FollowedUserID string       `json:"followedUserId"`
	Status         FollowStatus `json:"status"`
	FollowedAt     time.Time    `json:"followedAt"`
}

// ID identifies the edge in change notifications.
func (f *Follow) ID() string {
	return f.FollowerUserID + "#" + f.FollowedUserID
}

// IsActive reports whether the edge grants access to the followed user's content.
func (f *Follow) IsActive() bool {
	return f != nil && f.Status == FollowFollowing
}

// WithStatus returns a copy of the edge in the given status.
func (f Follow) WithStatus(status FollowStatus) *Follow {
	f.Status = status
	return &f
}

// Block hides two users from each other.
type Block struct {
	BlockerUserID string    `json:"blockerUserId"`
	BlockedUserID string    `json:"blockedUserId"`
	BlockedAt     time.Time `json:"blockedAt"`
}

func (b *Block) ID() string {
	return b.BlockerUserID + "#" + b.BlockedUserID
}
