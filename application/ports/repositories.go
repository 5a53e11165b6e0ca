package ports

import (
	"context"
	"time"

	"socialcore/domain/core/entities"
)

// Repositories return nil, nil from single-item reads when the item is absent.

// UserRepository persists user profiles
type UserRepository interface {
	CreateUser(ctx context.Context, user *entities.User) error
	GetUser(ctx context.Context, userID string) (*entities.User, error)
	GetUsers(ctx context.Context, userIDs []string) ([]*entities.User, error)
	SetPrivacy(ctx context.Context, userID string, privacy entities.Privacy) (*entities.User, error)
}

// FollowEdgeReader is the read capability fan-out needs from follow edges.
type FollowEdgeReader interface {
	GetFollow(ctx context.Context, followerID, followedID string) (*entities.Follow, error)
	FollowerIDs(ctx context.Context, followedID string, status entities.FollowStatus) ([]string, error)
	FollowedIDs(ctx context.Context, followerID string, status entities.FollowStatus) ([]string, error)
}

// FollowRepository persists follow edges
type FollowRepository interface {
	FollowEdgeReader
	CreateFollow(ctx context.Context, follow *entities.Follow) error
	// UpdateFollowStatus moves an edge out of old.Status, failing with ErrConditionFailed
	// when the stored status no longer matches.
	UpdateFollowStatus(ctx context.Context, old *entities.Follow, status entities.FollowStatus) (*entities.Follow, error)
	DeleteFollow(ctx context.Context, followerID, followedID string) (*entities.Follow, error)
	PageFollowers(ctx context.Context, followedID string, status entities.FollowStatus, limit int, cursor string) ([]*entities.Follow, string, error)
}

// BlockRepository persists blocks
type BlockRepository interface {
	GetBlock(ctx context.Context, blockerID, blockedID string) (*entities.Block, error)
	CreateBlock(ctx context.Context, block *entities.Block) error
	DeleteBlock(ctx context.Context, blockerID, blockedID string) (*entities.Block, error)
	EitherBlocks(ctx context.Context, a, b string) (bool, error)
}

// PostReader is the read capability fan-out needs from posts.
type PostReader interface {
	GetPost(ctx context.Context, postID string) (*entities.Post, error)
	PostsByUser(ctx context.Context, userID string, status entities.PostStatus) ([]*entities.Post, error)
	// StoryCandidates lists a user's story candidates, earliest expiry first.
	StoryCandidates(ctx context.Context, userID string, limit int) ([]*entities.Post, error)
}

// AlbumMemberReader is the read capability rank allocation needs.
type AlbumMemberReader interface {
	GetPost(ctx context.Context, postID string) (*entities.Post, error)
	// AlbumMembers lists an album's ranked members in rank order.
	AlbumMembers(ctx context.Context, albumID string) ([]*entities.Post, error)
	// NextAlbumMember returns the member ranked immediately after rank, or nil.
	NextAlbumMember(ctx context.Context, albumID string, rank float64) (*entities.Post, error)
}

// PostRepository persists posts
type PostRepository interface {
	PostReader
	AlbumMemberReader
	CreatePost(ctx context.Context, post *entities.Post) error
	// UpdatePost writes the post's non-counter attributes and returns the stored result.
	UpdatePost(ctx context.Context, post *entities.Post) (*entities.Post, error)
	DeletePost(ctx context.Context, postID string) (*entities.Post, error)
	PagePosts(ctx context.Context, userID string, status entities.PostStatus, limit int, cursor string) ([]*entities.Post, string, error)
	// ExpiredStories pages through completed posts whose expiry is not after now.
	ExpiredStories(ctx context.Context, now time.Time, cursor string) ([]*entities.Post, string, error)
}

// AlbumRepository persists albums
type AlbumRepository interface {
	CreateAlbum(ctx context.Context, album *entities.Album) error
	GetAlbum(ctx context.Context, albumID string) (*entities.Album, error)
	DeleteAlbum(ctx context.Context, albumID string) (*entities.Album, error)
	AlbumsByOwner(ctx context.Context, userID string) ([]*entities.Album, error)
}

// LikeRepository persists likes
type LikeRepository interface {
	CreateLike(ctx context.Context, like *entities.Like) error
	DeleteLike(ctx context.Context, postID, userID string) (*entities.Like, error)
	LikesByPost(ctx context.Context, postID string) ([]*entities.Like, error)
}

// ViewRepository persists post views
type ViewRepository interface {
	// RecordView creates the view on first sight and bumps it afterwards.
	RecordView(ctx context.Context, view *entities.PostView) (old, current *entities.PostView, err error)
	DeleteViews(ctx context.Context, postID string) error
}

// CommentRepository persists comments
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *entities.Comment) error
	GetComment(ctx context.Context, commentID string) (*entities.Comment, error)
	DeleteComment(ctx context.Context, commentID string) (*entities.Comment, error)
	CommentsByPost(ctx context.Context, postID string) ([]*entities.Comment, error)
}

// FlagRepository persists flags
type FlagRepository interface {
	CreateFlag(ctx context.Context, flag *entities.Flag) error
	DeleteFlags(ctx context.Context, kind entities.FlagKind, itemID string) error
}

// ChatRepository persists chats, memberships and messages
type ChatRepository interface {
	GetChat(ctx context.Context, chatID string) (*entities.Chat, error)
	DirectChatID(ctx context.Context, userA, userB string) (string, error)
	// DirectChatOps and GroupChatOps build the atomic writes that create a chat.
	DirectChatOps(chat *entities.Chat, members [2]*entities.ChatMember) ([]WriteOp, error)
	GroupChatOps(chat *entities.Chat, creator *entities.ChatMember) ([]WriteOp, error)
	DeleteChat(ctx context.Context, chatID string) (*entities.Chat, error)

	GetMember(ctx context.Context, chatID, userID string) (*entities.ChatMember, error)
	AddMember(ctx context.Context, member *entities.ChatMember) error
	DeleteMember(ctx context.Context, chatID, userID string) (*entities.ChatMember, error)
	MemberIDs(ctx context.Context, chatID string) ([]string, error)
	// ResetUnviewed marks a member's messages as read and returns both snapshots.
	ResetUnviewed(ctx context.Context, chatID, userID string, now time.Time) (old, current *entities.ChatMember, err error)

	CreateMessage(ctx context.Context, message *entities.ChatMessage) error
	GetMessage(ctx context.Context, messageID string) (*entities.ChatMessage, error)
	DeleteMessage(ctx context.Context, messageID string) (*entities.ChatMessage, error)
	PageMessages(ctx context.Context, chatID string, limit int, cursor string) ([]*entities.ChatMessage, string, error)
}

// CardRepository persists notification cards
type CardRepository interface {
	// UpsertCard creates the card or bumps its count. A card id owned by another user
	// fails with ErrConditionFailed.
	UpsertCard(ctx context.Context, card *entities.Card) (*entities.Card, error)
	GetCard(ctx context.Context, cardID string) (*entities.Card, error)
	DeleteCard(ctx context.Context, cardID string) (*entities.Card, error)
	PageCards(ctx context.Context, userID string, limit int, cursor string) ([]*entities.Card, string, error)
}

// FeedRepository persists feed entries
type FeedRepository interface {
	PutFeedEntries(ctx context.Context, entries []*entities.FeedEntry) error
	// DeleteFeedEntriesByPoster removes everything posterID contributed to feedUserID's feed.
	DeleteFeedEntriesByPoster(ctx context.Context, feedUserID, posterID string) (int, error)
	// DeleteFeedEntriesByPost removes a post from every feed and returns the feed owners.
	DeleteFeedEntriesByPost(ctx context.Context, postID string) ([]string, error)
	PageFeed(ctx context.Context, userID string, limit int, cursor string) ([]*entities.FeedEntry, string, error)
}

// FirstStoryRepository persists first-story pointers
type FirstStoryRepository interface {
	PutFirstStories(ctx context.Context, stories []*entities.FirstStory) error
	DeleteFirstStories(ctx context.Context, followedID string, followerIDs []string) error
	GetFirstStory(ctx context.Context, followerID, followedID string) (*entities.FirstStory, error)
	FirstStoriesFor(ctx context.Context, followerID string) ([]*entities.FirstStory, error)
}

// ConnectionRepository persists live websocket connections
type ConnectionRepository interface {
	PutConnection(ctx context.Context, conn *entities.Connection, ttl time.Duration) error
	DeleteConnection(ctx context.Context, connectionID string) (*entities.Connection, error)
	ConnectionsForUser(ctx context.Context, userID string) ([]*entities.Connection, error)
}
