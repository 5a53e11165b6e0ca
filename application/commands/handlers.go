package commands

import (
	"context"

	"socialcore/application/commands/bus"
	"socialcore/application/ranking"
	"socialcore/application/services"
	"socialcore/domain/core/entities"

	"go.uber.org/multierr"
)

// Handlers routes commands to the aggregate services.
type Handlers struct {
	Users    *services.UserService
	Follows  *services.FollowService
	Blocks   *services.BlockService
	Posts    *services.PostService
	Albums   *services.AlbumService
	Likes    *services.LikeService
	Views    *services.ViewService
	Comments *services.CommentService
	Flags    *services.FlagService
	Chats    *services.ChatService
	Cards    *services.CardService
}

// Deleted is the result of commands that remove something.
type Deleted struct {
	ID string `json:"id"`
}

// Expired is the result of an expiry sweep.
type Expired struct {
	Posts int `json:"posts"`
}

func (p Placement) ranking() ranking.Placement {
	return ranking.Placement{Front: p.Front, AfterPostID: p.AfterPostID}
}

// Register installs a handler for every command on b.
func (h *Handlers) Register(b *bus.CommandBus) error {
	var errs error
	add := func(err error) { errs = multierr.Append(errs, err) }

	add(bus.Handle(b, func(ctx context.Context, c CreateUserCommand) (interface{}, error) {
		return h.Users.CreateUser(ctx, c.UserID, c.Username, c.Privacy)
	}))
	add(bus.Handle(b, func(ctx context.Context, c SetPrivacyCommand) (interface{}, error) {
		return h.Users.SetPrivacy(ctx, c.UserID, c.Privacy)
	}))

	add(bus.Handle(b, func(ctx context.Context, c FollowCommand) (interface{}, error) {
		return h.Follows.Follow(ctx, c.FollowerID, c.FollowedID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c AcceptFollowCommand) (interface{}, error) {
		return h.Follows.Accept(ctx, c.FollowedID, c.FollowerID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c DenyFollowCommand) (interface{}, error) {
		return h.Follows.Deny(ctx, c.FollowedID, c.FollowerID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c UnfollowCommand) (interface{}, error) {
		return Deleted{ID: c.FollowedID}, h.Follows.Unfollow(ctx, c.FollowerID, c.FollowedID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c BlockCommand) (interface{}, error) {
		return h.Blocks.Block(ctx, c.BlockerID, c.BlockedID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c UnblockCommand) (interface{}, error) {
		return Deleted{ID: c.BlockedID}, h.Blocks.Unblock(ctx, c.BlockerID, c.BlockedID)
	}))

	add(bus.Handle(b, func(ctx context.Context, c CreatePostCommand) (interface{}, error) {
		return h.Posts.CreatePost(ctx, services.CreatePostInput{
			PostID:    c.PostID,
			UserID:    c.UserID,
			PostType:  c.PostType,
			Text:      c.Text,
			ExpiresAt: c.ExpiresAt,
			AlbumID:   c.AlbumID,
			Placement: c.Placement.ranking(),
		})
	}))
	add(bus.Handle(b, func(ctx context.Context, c PostLifecycleCommand) (interface{}, error) {
		switch c.Action {
		case "complete":
			return h.Posts.CompletePost(ctx, c.UserID, c.PostID)
		case "archive":
			return h.Posts.ArchivePost(ctx, c.UserID, c.PostID)
		default:
			return h.Posts.RestorePost(ctx, c.UserID, c.PostID)
		}
	}))
	add(bus.Handle(b, func(ctx context.Context, c DeletePostCommand) (interface{}, error) {
		return Deleted{ID: c.PostID}, h.Posts.DeletePost(ctx, c.UserID, c.PostID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c SetAlbumCommand) (interface{}, error) {
		return h.Posts.SetAlbum(ctx, c.UserID, c.PostID, c.AlbumID, c.Placement.ranking())
	}))
	add(bus.Handle(b, func(ctx context.Context, c MovePostCommand) (interface{}, error) {
		return h.Posts.MovePost(ctx, c.UserID, c.PostID, c.Placement.ranking())
	}))
	add(bus.Handle(b, func(ctx context.Context, c SetExpiryCommand) (interface{}, error) {
		return h.Posts.SetExpiry(ctx, c.UserID, c.PostID, c.ExpiresAt)
	}))
	add(bus.Handle(b, func(ctx context.Context, c ExpirePostsCommand) (interface{}, error) {
		n, err := h.Posts.ExpirePosts(ctx, c.Now)
		return Expired{Posts: n}, err
	}))
	add(bus.Handle(b, func(ctx context.Context, c CreateAlbumCommand) (interface{}, error) {
		return h.Albums.CreateAlbum(ctx, c.AlbumID, c.UserID, c.Name)
	}))
	add(bus.Handle(b, func(ctx context.Context, c DeleteAlbumCommand) (interface{}, error) {
		return Deleted{ID: c.AlbumID}, h.Albums.DeleteAlbum(ctx, c.UserID, c.AlbumID)
	}))

	add(bus.Handle(b, func(ctx context.Context, c LikePostCommand) (interface{}, error) {
		status := entities.LikeOnymous
		if c.Anonymous {
			status = entities.LikeAnonymous
		}
		return h.Likes.Like(ctx, c.UserID, c.PostID, status)
	}))
	add(bus.Handle(b, func(ctx context.Context, c DislikePostCommand) (interface{}, error) {
		return Deleted{ID: c.PostID}, h.Likes.Dislike(ctx, c.UserID, c.PostID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c ViewPostCommand) (interface{}, error) {
		return h.Views.RecordView(ctx, c.UserID, c.PostID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c AddCommentCommand) (interface{}, error) {
		return h.Comments.AddComment(ctx, services.CommentInput{
			CommentID: c.CommentID,
			PostID:    c.PostID,
			UserID:    c.UserID,
			Text:      c.Text,
		})
	}))
	add(bus.Handle(b, func(ctx context.Context, c DeleteCommentCommand) (interface{}, error) {
		return Deleted{ID: c.CommentID}, h.Comments.DeleteComment(ctx, c.UserID, c.CommentID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c FlagPostCommand) (interface{}, error) {
		return h.Flags.FlagPost(ctx, c.UserID, c.PostID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c FlagMessageCommand) (interface{}, error) {
		return h.Flags.FlagMessage(ctx, c.UserID, c.MessageID)
	}))

	add(bus.Handle(b, func(ctx context.Context, c CreateDirectChatCommand) (interface{}, error) {
		return h.Chats.CreateDirectChat(ctx, c.ChatID, c.UserID, c.OtherUserID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c CreateGroupChatCommand) (interface{}, error) {
		return h.Chats.CreateGroupChat(ctx, c.ChatID, c.UserID, c.Name, c.MemberIDs)
	}))
	add(bus.Handle(b, func(ctx context.Context, c AddChatMemberCommand) (interface{}, error) {
		return h.Chats.AddMember(ctx, c.ActorID, c.ChatID, c.UserID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c LeaveChatCommand) (interface{}, error) {
		return Deleted{ID: c.ChatID}, h.Chats.LeaveChat(ctx, c.UserID, c.ChatID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c SendMessageCommand) (interface{}, error) {
		return h.Chats.AddMessage(ctx, services.MessageInput{
			MessageID: c.MessageID,
			ChatID:    c.ChatID,
			UserID:    c.UserID,
			Text:      c.Text,
		})
	}))
	add(bus.Handle(b, func(ctx context.Context, c ViewChatCommand) (interface{}, error) {
		return h.Chats.ViewChat(ctx, c.UserID, c.ChatID)
	}))
	add(bus.Handle(b, func(ctx context.Context, c DeleteMessageCommand) (interface{}, error) {
		return Deleted{ID: c.MessageID}, h.Chats.DeleteMessage(ctx, c.UserID, c.MessageID)
	}))

	add(bus.Handle(b, func(ctx context.Context, c DismissCardCommand) (interface{}, error) {
		return Deleted{ID: c.CardID}, h.Cards.DismissCard(ctx, c.UserID, c.CardID)
	}))

	return errs
}
