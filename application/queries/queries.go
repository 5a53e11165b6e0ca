// Package queries defines the read-side requests served from the denormalized views.
package queries

import (
	"socialcore/domain/core/entities"
	"socialcore/pkg/utils"
)

// PageRequest carries cursor pagination parameters.
type PageRequest struct {
	Limit  int    `json:"limit" validate:"gte=0,lte=100"`
	Cursor string `json:"cursor,omitempty"`
}

// Page is one page of results with the cursor for the next.
type Page[T any] struct {
	Items  []T    `json:"items"`
	Cursor string `json:"cursor,omitempty"`
}

type GetUserQuery struct {
	UserID string `validate:"required"`
}

func (q GetUserQuery) Validate() error { return utils.ValidateStruct(q) }

type GetPostQuery struct {
	PostID string `validate:"required"`
}

func (q GetPostQuery) Validate() error { return utils.ValidateStruct(q) }

// UserPostsQuery lists a user's posts in one status, newest first.
type UserPostsQuery struct {
	UserID string              `validate:"required"`
	Status entities.PostStatus `validate:"required,oneof=PENDING COMPLETED ARCHIVED"`
	PageRequest
}

func (q UserPostsQuery) Validate() error { return utils.ValidateStruct(q) }

type FollowersQuery struct {
	UserID string                `validate:"required"`
	Status entities.FollowStatus `validate:"required,oneof=REQUESTED FOLLOWING DENIED"`
	PageRequest
}

func (q FollowersQuery) Validate() error { return utils.ValidateStruct(q) }

type FeedQuery struct {
	UserID string `validate:"required"`
	PageRequest
}

func (q FeedQuery) Validate() error { return utils.ValidateStruct(q) }

type FirstStoriesQuery struct {
	UserID string `validate:"required"`
}

func (q FirstStoriesQuery) Validate() error { return utils.ValidateStruct(q) }

type AlbumsQuery struct {
	UserID string `validate:"required"`
}

func (q AlbumsQuery) Validate() error { return utils.ValidateStruct(q) }

// AlbumOrderQuery returns the post ids of an album in rank order.
type AlbumOrderQuery struct {
	AlbumID string `validate:"required"`
}

func (q AlbumOrderQuery) Validate() error { return utils.ValidateStruct(q) }

type CommentsQuery struct {
	PostID string `validate:"required"`
}

func (q CommentsQuery) Validate() error { return utils.ValidateStruct(q) }

type CardsQuery struct {
	UserID string `validate:"required"`
	PageRequest
}

func (q CardsQuery) Validate() error { return utils.ValidateStruct(q) }

// ChatQuery returns a chat the user belongs to.
type ChatQuery struct {
	UserID string `validate:"required"`
	ChatID string `validate:"required"`
}

func (q ChatQuery) Validate() error { return utils.ValidateStruct(q) }

type MessagesQuery struct {
	UserID string `validate:"required"`
	ChatID string `validate:"required"`
	PageRequest
}

func (q MessagesQuery) Validate() error { return utils.ValidateStruct(q) }
