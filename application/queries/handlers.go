package queries

import (
	"context"

	"socialcore/application/ports"
	"socialcore/application/queries/bus"
	"socialcore/application/services"
	"socialcore/domain/core/entities"

	"go.uber.org/multierr"
)

// Handlers answers queries from the services and the denormalized views.
type Handlers struct {
	Users    *services.UserService
	Follows  *services.FollowService
	Posts    *services.PostService
	Albums   *services.AlbumService
	Comments *services.CommentService
	Chats    *services.ChatService
	Cards    *services.CardService
	Feed     ports.FeedRepository
	Stories  ports.FirstStoryRepository

	// ProfileCache, when set, caches user lookups.
	ProfileCache *bus.CachingMiddleware
}

func page[T any](items []T, cursor string, err error) (Page[T], error) {
	if err != nil {
		return Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Cursor: cursor}, nil
}

// Register installs a handler for every query on b.
func (h *Handlers) Register(b *bus.QueryBus) error {
	var errs error
	add := func(err error) { errs = multierr.Append(errs, err) }

	var getUser bus.QueryHandler = bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		return h.Users.GetUser(ctx, q.(GetUserQuery).UserID)
	})
	if h.ProfileCache != nil {
		getUser = h.ProfileCache.Wrap(getUser)
	}
	add(b.Register(GetUserQuery{}, getUser))

	add(bus.Handle(b, func(ctx context.Context, q GetPostQuery) (*entities.Post, error) {
		return h.Posts.GetPost(ctx, q.PostID)
	}))
	add(bus.Handle(b, func(ctx context.Context, q UserPostsQuery) (Page[*entities.Post], error) {
		return page[*entities.Post](h.Posts.PagePosts(ctx, q.UserID, q.Status, q.Limit, q.Cursor))
	}))
	add(bus.Handle(b, func(ctx context.Context, q FollowersQuery) (Page[*entities.Follow], error) {
		return page[*entities.Follow](h.Follows.PageFollowers(ctx, q.UserID, q.Status, q.Limit, q.Cursor))
	}))
	add(bus.Handle(b, func(ctx context.Context, q FeedQuery) (Page[*entities.FeedEntry], error) {
		return page[*entities.FeedEntry](h.Feed.PageFeed(ctx, q.UserID, q.Limit, q.Cursor))
	}))
	add(bus.Handle(b, func(ctx context.Context, q FirstStoriesQuery) ([]*entities.FirstStory, error) {
		return h.Stories.FirstStoriesFor(ctx, q.UserID)
	}))
	add(bus.Handle(b, func(ctx context.Context, q AlbumsQuery) ([]*entities.Album, error) {
		return h.Albums.AlbumsByOwner(ctx, q.UserID)
	}))
	add(bus.Handle(b, func(ctx context.Context, q AlbumOrderQuery) ([]string, error) {
		return h.Albums.GenerateInOrder(ctx, q.AlbumID)
	}))
	add(bus.Handle(b, func(ctx context.Context, q CommentsQuery) ([]*entities.Comment, error) {
		return h.Comments.CommentsByPost(ctx, q.PostID)
	}))
	add(bus.Handle(b, func(ctx context.Context, q CardsQuery) (Page[*entities.Card], error) {
		return page[*entities.Card](h.Cards.PageCards(ctx, q.UserID, q.Limit, q.Cursor))
	}))
	add(bus.Handle(b, func(ctx context.Context, q ChatQuery) (*entities.Chat, error) {
		return h.Chats.ChatFor(ctx, q.UserID, q.ChatID)
	}))
	add(bus.Handle(b, func(ctx context.Context, q MessagesQuery) (Page[*entities.ChatMessage], error) {
		return page[*entities.ChatMessage](h.Chats.PageMessages(ctx, q.UserID, q.ChatID, q.Limit, q.Cursor))
	}))

	return errs
}
