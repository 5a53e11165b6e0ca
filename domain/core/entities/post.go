package entities

import (
	"strings"
	"time"

	"socialcore/domain/core/valueobjects"
	pkgerrors "socialcore/pkg/errors"
)

// PostType is the media kind of a post
type PostType string

const (
	PostTypeText  PostType = "TEXT"
	PostTypeImage PostType = "IMAGE"
	PostTypeVideo PostType = "VIDEO"
)

// PostStatus is the lifecycle state of a post
type PostStatus string

const (
	PostPending   PostStatus = "PENDING"
	PostCompleted PostStatus = "COMPLETED"
	PostArchived  PostStatus = "ARCHIVED"
)

// Counters maintained on the post aggregate.
const (
	PostOnymousLikeCount      = "OnymousLikeCount"
	PostAnonymousLikeCount    = "AnonymousLikeCount"
	PostViewedByCount         = "ViewedByCount"
	PostCommentCount          = "CommentCount"
	PostCommentsUnviewedCount = "CommentsUnviewedCount"
	PostFlagCount             = "FlagCount"
)

// Post is a piece of user content. A completed post with an expiry is a story.
type Post struct {
	PostID         string     `json:"postId"`
	PostedByUserID string     `json:"postedByUserId"`
	PostType       PostType   `json:"postType"`
	Status         PostStatus `json:"status"`
	Text           string     `json:"text,omitempty" dynamodbav:",omitempty"`
	AlbumID        string     `json:"albumId,omitempty" dynamodbav:",omitempty"`
	AlbumRank      *float64   `json:"albumRank,omitempty" dynamodbav:",omitempty"`
	PostedAt       time.Time  `json:"postedAt"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty" dynamodbav:",omitempty"`

	OnymousLikeCount      int     `json:"onymousLikeCount"`
	AnonymousLikeCount    int     `json:"anonymousLikeCount"`
	ViewedByCount         int     `json:"viewedByCount"`
	CommentCount          int     `json:"commentCount"`
	CommentsUnviewedCount int     `json:"commentsUnviewedCount"`
	FlagCount             int     `json:"flagCount"`
	TrendingScore         float64 `json:"trendingScore"`
}

// NewPost creates a post. Text posts complete immediately; media posts wait for upload.
func NewPost(postID, userID string, postType PostType, text string, expiresAt *time.Time, now time.Time) (*Post, error) {
	if err := valueobjects.ValidateID("postID", postID); err != nil {
		return nil, err
	}
	if err := valueobjects.ValidateID("userID", userID); err != nil {
		return nil, err
	}
	switch postType {
	case PostTypeText, PostTypeImage, PostTypeVideo:
	default:
		return nil, pkgerrors.NewValidationError("unknown post type")
	}
	text = strings.TrimSpace(text)
	if postType == PostTypeText && text == "" {
		return nil, pkgerrors.NewValidationError("text posts need text")
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, pkgerrors.NewValidationError("expiresAt must be in the future")
	}

	status := PostPending
	if postType == PostTypeText {
		status = PostCompleted
	}
	return &Post{
		PostID:         postID,
		PostedByUserID: userID,
		PostType:       postType,
		Status:         status,
		Text:           text,
		PostedAt:       now,
		ExpiresAt:      expiresAt,
	}, nil
}

// IsFeedVisible reports whether the post belongs in follower feeds.
func (p *Post) IsFeedVisible() bool {
	return p != nil && p.Status == PostCompleted
}

// IsStoryCandidate reports whether the post competes for a follower's first-story pointer.
func (p *Post) IsStoryCandidate() bool {
	return p.IsFeedVisible() && p.ExpiresAt != nil
}

// IsAlbumMember reports whether the post is a rank-eligible member of its album.
func (p *Post) IsAlbumMember() bool {
	return p.IsFeedVisible() && p.AlbumID != ""
}

// IsExpired reports whether a story's expiry has passed.
func (p *Post) IsExpired(now time.Time) bool {
	return p != nil && p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// ExpiresBefore orders story candidates by expiry, then by id.
func (p *Post) ExpiresBefore(other *Post) bool {
	if !p.ExpiresAt.Equal(*other.ExpiresAt) {
		return p.ExpiresAt.Before(*other.ExpiresAt)
	}
	return p.PostID < other.PostID
}

// Clone returns a copy safe to mutate for an "after" snapshot.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	if p.AlbumRank != nil {
		r := *p.AlbumRank
		c.AlbumRank = &r
	}
	if p.ExpiresAt != nil {
		e := *p.ExpiresAt
		c.ExpiresAt = &e
	}
	return &c
}

// Album is an ordered collection of a user's posts.
type Album struct {
	AlbumID            string     `json:"albumId"`
	OwnedByUserID      string     `json:"ownedByUserId"`
	Name               string     `json:"name"`
	PostCount          int        `json:"postCount"`
	RankCount          int        `json:"rankCount"`
	PostsLastUpdatedAt *time.Time `json:"postsLastUpdatedAt,omitempty" dynamodbav:",omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Counters maintained on the album aggregate.
const (
	AlbumPostCount = "PostCount"
	AlbumRankCount = "RankCount"
)

// Album attributes set alongside counters.
const AlbumPostsLastUpdatedAt = "PostsLastUpdatedAt"
