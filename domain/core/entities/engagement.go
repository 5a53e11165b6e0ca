package entities

import "time"

// LikeStatus records whether the liker chose to be visible
type LikeStatus string

const (
	LikeOnymous   LikeStatus = "ONYMOUSLY_LIKED"
	LikeAnonymous LikeStatus = "ANONYMOUSLY_LIKED"
)

// CounterName returns the post counter a like of this status contributes to.
func (s LikeStatus) CounterName() string {
	if s == LikeAnonymous {
		return PostAnonymousLikeCount
	}
	return PostOnymousLikeCount
}

type Like struct {
	PostID         string     `json:"postId"`
	LikedByUserID  string     `json:"likedByUserId"`
	PostedByUserID string     `json:"postedByUserId"`
	Status         LikeStatus `json:"status"`
	LikedAt        time.Time  `json:"likedAt"`
}

func (l *Like) ID() string { return l.PostID + "#" + l.LikedByUserID }

// PostView is created on a user's first view of a post and bumped on later views.
type PostView struct {
	PostID         string    `json:"postId"`
	ViewedByUserID string    `json:"viewedByUserId"`
	PostedByUserID string    `json:"postedByUserId"`
	ViewCount      int       `json:"viewCount"`
	FirstViewedAt  time.Time `json:"firstViewedAt"`
	LastViewedAt   time.Time `json:"lastViewedAt"`
}

func (v *PostView) ID() string { return v.PostID + "#" + v.ViewedByUserID }

// IsOwnerView reports whether the poster viewed their own post.
func (v *PostView) IsOwnerView() bool {
	return v != nil && v.ViewedByUserID == v.PostedByUserID
}

type Comment struct {
	CommentID         string    `json:"commentId"`
	PostID            string    `json:"postId"`
	PostedByUserID    string    `json:"postedByUserId"`
	CommentedByUserID string    `json:"commentedByUserId"`
	Text              string    `json:"text"`
	CommentedAt       time.Time `json:"commentedAt"`
}

// FlagKind names the kind of flaggable item
type FlagKind string

const (
	FlagPost        FlagKind = "POST"
	FlagChatMessage FlagKind = "CHAT_MESSAGE"
)

// Flag is one user's report of an item.
type Flag struct {
	Kind          FlagKind  `json:"kind"`
	ItemID        string    `json:"itemId"`
	FlaggerUserID string    `json:"flaggerUserId"`
	FlaggedAt     time.Time `json:"flaggedAt"`
}

func (f *Flag) ID() string { return string(f.Kind) + "#" + f.ItemID + "#" + f.FlaggerUserID }
