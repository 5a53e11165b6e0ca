// Package commands defines the state-changing requests accepted by the engine. Each
// command is validated with struct tags before its handler runs.
package commands

import (
	"time"

	"socialcore/domain/core/entities"
	"socialcore/pkg/utils"
)

// Users

type CreateUserCommand struct {
	UserID   string           `json:"userId" validate:"required"`
	Username string           `json:"username" validate:"required,max=64"`
	Privacy  entities.Privacy `json:"privacy" validate:"omitempty,oneof=PUBLIC PRIVATE"`
}

func (c CreateUserCommand) Validate() error { return utils.ValidateStruct(c) }

type SetPrivacyCommand struct {
	UserID  string           `json:"userId" validate:"required"`
	Privacy entities.Privacy `json:"privacy" validate:"required,oneof=PUBLIC PRIVATE"`
}

func (c SetPrivacyCommand) Validate() error { return utils.ValidateStruct(c) }

// Follows and blocks

type FollowCommand struct {
	FollowerID string `json:"followerId" validate:"required"`
	FollowedID string `json:"followedId" validate:"required,nefield=FollowerID"`
}

func (c FollowCommand) Validate() error { return utils.ValidateStruct(c) }

// AcceptFollowCommand is issued by the followed user.
type AcceptFollowCommand struct {
	FollowedID string `json:"followedId" validate:"required"`
	FollowerID string `json:"followerId" validate:"required"`
}

func (c AcceptFollowCommand) Validate() error { return utils.ValidateStruct(c) }

type DenyFollowCommand struct {
	FollowedID string `json:"followedId" validate:"required"`
	FollowerID string `json:"followerId" validate:"required"`
}

func (c DenyFollowCommand) Validate() error { return utils.ValidateStruct(c) }

type UnfollowCommand struct {
	FollowerID string `json:"followerId" validate:"required"`
	FollowedID string `json:"followedId" validate:"required"`
}

func (c UnfollowCommand) Validate() error { return utils.ValidateStruct(c) }

type BlockCommand struct {
	BlockerID string `json:"blockerId" validate:"required"`
	BlockedID string `json:"blockedId" validate:"required,nefield=BlockerID"`
}

func (c BlockCommand) Validate() error { return utils.ValidateStruct(c) }

type UnblockCommand struct {
	BlockerID string `json:"blockerId" validate:"required"`
	BlockedID string `json:"blockedId" validate:"required"`
}

func (c UnblockCommand) Validate() error { return utils.ValidateStruct(c) }

// Posts and albums

// Placement positions a post in an album: at the front, right after AfterPostID, or at
// the back when both are empty.
type Placement struct {
	Front       bool   `json:"front,omitempty"`
	AfterPostID string `json:"afterPostId,omitempty"`
}

type CreatePostCommand struct {
	PostID    string            `json:"postId" validate:"required"`
	UserID    string            `json:"userId" validate:"required"`
	PostType  entities.PostType `json:"postType" validate:"required,oneof=TEXT IMAGE VIDEO"`
	Text      string            `json:"text"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
	AlbumID   string            `json:"albumId,omitempty"`
	Placement Placement         `json:"placement"`
}

func (c CreatePostCommand) Validate() error { return utils.ValidateStruct(c) }

// PostLifecycleCommand moves a post through its lifecycle.
type PostLifecycleCommand struct {
	UserID string `json:"userId" validate:"required"`
	PostID string `json:"postId" validate:"required"`
	Action string `json:"action" validate:"required,oneof=complete archive restore"`
}

func (c PostLifecycleCommand) Validate() error { return utils.ValidateStruct(c) }

type DeletePostCommand struct {
	UserID string `json:"userId" validate:"required"`
	PostID string `json:"postId" validate:"required"`
}

func (c DeletePostCommand) Validate() error { return utils.ValidateStruct(c) }

// SetAlbumCommand moves a post into AlbumID, or out of any album when AlbumID is empty.
type SetAlbumCommand struct {
	UserID    string    `json:"userId" validate:"required"`
	PostID    string    `json:"postId" validate:"required"`
	AlbumID   string    `json:"albumId"`
	Placement Placement `json:"placement"`
}

func (c SetAlbumCommand) Validate() error { return utils.ValidateStruct(c) }

type MovePostCommand struct {
	UserID    string    `json:"userId" validate:"required"`
	PostID    string    `json:"postId" validate:"required"`
	Placement Placement `json:"placement"`
}

func (c MovePostCommand) Validate() error { return utils.ValidateStruct(c) }

type SetExpiryCommand struct {
	UserID    string     `json:"userId" validate:"required"`
	PostID    string     `json:"postId" validate:"required"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (c SetExpiryCommand) Validate() error { return utils.ValidateStruct(c) }

type ExpirePostsCommand struct {
	Now time.Time `json:"now" validate:"required"`
}

func (c ExpirePostsCommand) Validate() error { return utils.ValidateStruct(c) }

type CreateAlbumCommand struct {
	AlbumID string `json:"albumId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
	Name    string `json:"name" validate:"required"`
}

func (c CreateAlbumCommand) Validate() error { return utils.ValidateStruct(c) }

type DeleteAlbumCommand struct {
	UserID  string `json:"userId" validate:"required"`
	AlbumID string `json:"albumId" validate:"required"`
}

func (c DeleteAlbumCommand) Validate() error { return utils.ValidateStruct(c) }

// Engagement

type LikePostCommand struct {
	UserID    string `json:"userId" validate:"required"`
	PostID    string `json:"postId" validate:"required"`
	Anonymous bool   `json:"anonymous"`
}

func (c LikePostCommand) Validate() error { return utils.ValidateStruct(c) }

type DislikePostCommand struct {
	UserID string `json:"userId" validate:"required"`
	PostID string `json:"postId" validate:"required"`
}

func (c DislikePostCommand) Validate() error { return utils.ValidateStruct(c) }

type ViewPostCommand struct {
	UserID string `json:"userId" validate:"required"`
	PostID string `json:"postId" validate:"required"`
}

func (c ViewPostCommand) Validate() error { return utils.ValidateStruct(c) }

type AddCommentCommand struct {
	CommentID string `json:"commentId" validate:"required"`
	PostID    string `json:"postId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Text      string `json:"text" validate:"required"`
}

func (c AddCommentCommand) Validate() error { return utils.ValidateStruct(c) }

type DeleteCommentCommand struct {
	UserID    string `json:"userId" validate:"required"`
	CommentID string `json:"commentId" validate:"required"`
}

func (c DeleteCommentCommand) Validate() error { return utils.ValidateStruct(c) }

type FlagPostCommand struct {
	UserID string `json:"userId" validate:"required"`
	PostID string `json:"postId" validate:"required"`
}

func (c FlagPostCommand) Validate() error { return utils.ValidateStruct(c) }

type FlagMessageCommand struct {
	UserID    string `json:"userId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

func (c FlagMessageCommand) Validate() error { return utils.ValidateStruct(c) }

// Chats

type CreateDirectChatCommand struct {
	ChatID      string `json:"chatId" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
	OtherUserID string `json:"otherUserId" validate:"required,nefield=UserID"`
}

func (c CreateDirectChatCommand) Validate() error { return utils.ValidateStruct(c) }

type CreateGroupChatCommand struct {
	ChatID    string   `json:"chatId" validate:"required"`
	UserID    string   `json:"userId" validate:"required"`
	Name      string   `json:"name" validate:"required"`
	MemberIDs []string `json:"memberIds" validate:"dive,required"`
}

func (c CreateGroupChatCommand) Validate() error { return utils.ValidateStruct(c) }

type AddChatMemberCommand struct {
	ActorID string `json:"actorId" validate:"required"`
	ChatID  string `json:"chatId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
}

func (c AddChatMemberCommand) Validate() error { return utils.ValidateStruct(c) }

type LeaveChatCommand struct {
	UserID string `json:"userId" validate:"required"`
	ChatID string `json:"chatId" validate:"required"`
}

func (c LeaveChatCommand) Validate() error { return utils.ValidateStruct(c) }

type SendMessageCommand struct {
	MessageID string `json:"messageId" validate:"required"`
	ChatID    string `json:"chatId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Text      string `json:"text" validate:"required"`
}

func (c SendMessageCommand) Validate() error { return utils.ValidateStruct(c) }

type ViewChatCommand struct {
	UserID string `json:"userId" validate:"required"`
	ChatID string `json:"chatId" validate:"required"`
}

func (c ViewChatCommand) Validate() error { return utils.ValidateStruct(c) }

type DeleteMessageCommand struct {
	UserID    string `json:"userId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

func (c DeleteMessageCommand) Validate() error { return utils.ValidateStruct(c) }

// Cards

type DismissCardCommand struct {
	UserID string `json:"userId" validate:"required"`
	CardID string `json:"cardId" validate:"required"`
}

func (c DismissCardCommand) Validate() error { return utils.ValidateStruct(c) }
