package services

import (
	"context"
	"time"

	"socialcore/application/dispatch"
	"socialcore/application/ports"
	"socialcore/application/ranking"
	"socialcore/domain/config"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

// CreatePostInput carries a new post. Placement only matters when AlbumID is set.
type CreatePostInput struct {
	PostID    string
	UserID    string
	PostType  entities.PostType
	Text      string
	ExpiresAt *time.Time
	AlbumID   string
	Placement ranking.Placement
}

type PostService struct {
	users     ports.UserRepository
	posts     ports.PostRepository
	albums    ports.AlbumRepository
	allocator *ranking.Allocator
	cfg       *config.DomainConfig
	publisher
}

func NewPostService(
	users ports.UserRepository,
	posts ports.PostRepository,
	albums ports.AlbumRepository,
	allocator *ranking.Allocator,
	cfg *config.DomainConfig,
	d *dispatch.Dispatcher,
	clock ports.Clock,
	logger *zap.Logger,
) *PostService {
	return &PostService{
		users:     users,
		posts:     posts,
		albums:    albums,
		allocator: allocator,
		cfg:       cfg,
		publisher: newPublisher(d, clock, logger),
	}
}

// CreatePost stores a new post. Text posts are complete at once; media posts wait for
// CompletePost. A completed post in an album gets its rank immediately.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*entities.Post, error) {
	if err := maxLength("text", in.Text, s.cfg.MaxPostTextLength); err != nil {
		return nil, err
	}
	post, err := entities.NewPost(in.PostID, in.UserID, in.PostType, in.Text, in.ExpiresAt, s.now())
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	if in.AlbumID != "" {
		if err := s.ownAlbum(ctx, in.UserID, in.AlbumID); err != nil {
			return nil, err
		}
		post.AlbumID = in.AlbumID
		if err := s.rank(ctx, post, in.Placement); err != nil {
			return nil, err
		}
	}

	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	s.logger.Debug("Post created",
		zap.String("postID", post.PostID),
		zap.String("status", string(post.Status)),
	)
	publish(ctx, s.publisher, events.EntityPost, post.PostID, nil, post)
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, postID string) (*entities.Post, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, pkgerrors.NewNotFoundError("post")
	}
	return post, nil
}

func (s *PostService) PagePosts(ctx context.Context, userID string, status entities.PostStatus, limit int, cursor string) ([]*entities.Post, string, error) {
	return s.posts.PagePosts(ctx, userID, status, limit, cursor)
}

// CompletePost marks an uploaded media post as complete.
func (s *PostService) CompletePost(ctx context.Context, userID, postID string) (*entities.Post, error) {
	old, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if old.Status != entities.PostPending {
		return nil, pkgerrors.NewConflictError("post is " + string(old.Status))
	}
	next := old.Clone()
	next.Status = entities.PostCompleted
	if err := s.rank(ctx, next, ranking.AtBack()); err != nil {
		return nil, err
	}
	return s.update(ctx, old, next)
}

// ArchivePost hides a completed post from feeds and albums.
func (s *PostService) ArchivePost(ctx context.Context, userID, postID string) (*entities.Post, error) {
	old, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	return s.archive(ctx, old)
}

// ForceArchive archives a post on behalf of moderation.
func (s *PostService) ForceArchive(ctx context.Context, postID string) (*entities.Post, error) {
	old, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if old.Status == entities.PostArchived {
		return old, nil
	}
	s.logger.Info("Archiving post on behalf of moderation", zap.String("postID", postID))
	return s.archive(ctx, old)
}

func (s *PostService) archive(ctx context.Context, old *entities.Post) (*entities.Post, error) {
	if old.Status != entities.PostCompleted {
		return nil, pkgerrors.NewConflictError("post is " + string(old.Status))
	}
	next := old.Clone()
	next.Status = entities.PostArchived
	return s.update(ctx, old, next)
}

// RestorePost brings an archived post back. Album members return to their old rank.
func (s *PostService) RestorePost(ctx context.Context, userID, postID string) (*entities.Post, error) {
	old, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if old.Status != entities.PostArchived {
		return nil, pkgerrors.NewConflictError("post is " + string(old.Status))
	}
	next := old.Clone()
	next.Status = entities.PostCompleted
	if err := s.rank(ctx, next, ranking.AtBack()); err != nil {
		return nil, err
	}
	return s.update(ctx, old, next)
}

// DeletePost deletes the caller's post. Likes, comments, views and feed entries follow
// through the cascade.
func (s *PostService) DeletePost(ctx context.Context, userID, postID string) error {
	if _, err := s.owned(ctx, userID, postID); err != nil {
		return err
	}
	return s.RemovePost(ctx, postID)
}

// RemovePost deletes a post without an ownership check.
func (s *PostService) RemovePost(ctx context.Context, postID string) error {
	old, err := s.posts.DeletePost(ctx, postID)
	if err != nil {
		return err
	}
	if old == nil {
		return pkgerrors.NewNotFoundError("post")
	}
	publish(ctx, s.publisher, events.EntityPost, postID, old, nil)
	return nil
}

// SetAlbum moves a post into an album, or out of any album when albumID is empty.
func (s *PostService) SetAlbum(ctx context.Context, userID, postID, albumID string, placement ranking.Placement) (*entities.Post, error) {
	old, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	next := old.Clone()
	next.AlbumID, next.AlbumRank = albumID, nil
	if albumID != "" {
		if err := s.ownAlbum(ctx, userID, albumID); err != nil {
			return nil, err
		}
		if err := s.rank(ctx, next, placement); err != nil {
			return nil, err
		}
	}
	return s.update(ctx, old, next)
}

// MovePost changes a member's position within its album.
func (s *PostService) MovePost(ctx context.Context, userID, postID string, placement ranking.Placement) (*entities.Post, error) {
	old, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !old.IsAlbumMember() {
		return nil, pkgerrors.NewValidationError("post is not a member of an album")
	}
	next := old.Clone()
	next.AlbumRank = nil
	if err := s.rank(ctx, next, placement); err != nil {
		return nil, err
	}
	return s.update(ctx, old, next)
}

// LeaveAlbum drops a post from its album, as when the album is deleted.
func (s *PostService) LeaveAlbum(ctx context.Context, postID string) (*entities.Post, error) {
	old, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if old.AlbumID == "" {
		return old, nil
	}
	next := old.Clone()
	next.AlbumID, next.AlbumRank = "", nil
	return s.update(ctx, old, next)
}

// SetExpiry turns a post into a story, changes its expiry, or with nil makes it permanent.
func (s *PostService) SetExpiry(ctx context.Context, userID, postID string, expiresAt *time.Time) (*entities.Post, error) {
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return nil, pkgerrors.NewValidationError("expiresAt must be in the future")
	}
	old, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	next := old.Clone()
	next.ExpiresAt = expiresAt
	return s.update(ctx, old, next)
}

// ExpirePosts deletes every story whose expiry has passed and reports how many it removed.
func (s *PostService) ExpirePosts(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	cursor := ""
	for {
		expired, next, err := s.posts.ExpiredStories(ctx, now, cursor)
		if err != nil {
			return removed, err
		}
		for _, post := range expired {
			err := s.RemovePost(ctx, post.PostID)
			switch {
			case err == nil:
				removed++
			case pkgerrors.IsNotFound(err):
			default:
				return removed, err
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	if removed > 0 {
		s.logger.Info("Expired stories removed", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *PostService) owned(ctx context.Context, userID, postID string) (*entities.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.PostedByUserID != userID {
		return nil, pkgerrors.NewForbiddenError("post belongs to another user")
	}
	return post, nil
}

func (s *PostService) ownAlbum(ctx context.Context, userID, albumID string) error {
	album, err := s.albums.GetAlbum(ctx, albumID)
	if err != nil {
		return err
	}
	if album == nil {
		return pkgerrors.NewNotFoundError("album")
	}
	if album.OwnedByUserID != userID {
		return pkgerrors.NewForbiddenError("album belongs to another user")
	}
	return nil
}

// rank gives a completed post in an album a rank if it has none. Pending and archived
// posts keep whatever they have.
func (s *PostService) rank(ctx context.Context, post *entities.Post, placement ranking.Placement) error {
	if !post.IsAlbumMember() || post.AlbumRank != nil {
		return nil
	}
	rank, err := s.allocator.Allocate(ctx, post, placement)
	if err != nil {
		return err
	}
	post.AlbumRank = &rank
	return nil
}

func (s *PostService) update(ctx context.Context, old, next *entities.Post) (*entities.Post, error) {
	post, err := s.posts.UpdatePost(ctx, next)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityPost, post.PostID, old, post)
	return post, nil
}

type AlbumService struct {
	users     ports.UserRepository
	albums    ports.AlbumRepository
	allocator *ranking.Allocator
	cfg       *config.DomainConfig
	publisher
}

func NewAlbumService(
	users ports.UserRepository,
	albums ports.AlbumRepository,
	allocator *ranking.Allocator,
	cfg *config.DomainConfig,
	d *dispatch.Dispatcher,
	clock ports.Clock,
	logger *zap.Logger,
) *AlbumService {
	return &AlbumService{
		users:     users,
		albums:    albums,
		allocator: allocator,
		cfg:       cfg,
		publisher: newPublisher(d, clock, logger),
	}
}

func (s *AlbumService) CreateAlbum(ctx context.Context, albumID, userID, name string) (*entities.Album, error) {
	if err := required("albumID", albumID, "userID", userID, "name", name); err != nil {
		return nil, err
	}
	if err := maxLength("name", name, s.cfg.MaxAlbumNameLength); err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.NewNotFoundError("user")
	}

	album := &entities.Album{AlbumID: albumID, OwnedByUserID: userID, Name: name, CreatedAt: s.now()}
	if err := s.albums.CreateAlbum(ctx, album); err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityAlbum, albumID, nil, album)
	return album, nil
}

func (s *AlbumService) GetAlbum(ctx context.Context, albumID string) (*entities.Album, error) {
	album, err := s.albums.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, pkgerrors.NewNotFoundError("album")
	}
	return album, nil
}

func (s *AlbumService) AlbumsByOwner(ctx context.Context, userID string) ([]*entities.Album, error) {
	return s.albums.AlbumsByOwner(ctx, userID)
}

// DeleteAlbum deletes an album. Its posts stay and leave the album through the cascade.
func (s *AlbumService) DeleteAlbum(ctx context.Context, userID, albumID string) error {
	album, err := s.GetAlbum(ctx, albumID)
	if err != nil {
		return err
	}
	if album.OwnedByUserID != userID {
		return pkgerrors.NewForbiddenError("album belongs to another user")
	}
	old, err := s.albums.DeleteAlbum(ctx, albumID)
	if err != nil {
		return err
	}
	if old == nil {
		return pkgerrors.NewNotFoundError("album")
	}
	publish(ctx, s.publisher, events.EntityAlbum, albumID, old, nil)
	return nil
}

// GenerateInOrder lists the album's member post ids in display order.
func (s *AlbumService) GenerateInOrder(ctx context.Context, albumID string) ([]string, error) {
	if _, err := s.GetAlbum(ctx, albumID); err != nil {
		return nil, err
	}
	return s.allocator.GenerateInOrder(ctx, albumID)
}
