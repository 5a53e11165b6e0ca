package services

import (
	"context"

	"socialcore/application/dispatch"
	"socialcore/application/ports"
	"socialcore/domain/config"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

// visiblePost loads a post that others may interact with.
func visiblePost(ctx context.Context, posts ports.PostReader, postID string) (*entities.Post, error) {
	post, err := posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsFeedVisible() {
		return nil, pkgerrors.NewNotFoundError("post")
	}
	return post, nil
}

type LikeService struct {
	likes  ports.LikeRepository
	posts  ports.PostReader
	blocks ports.BlockRepository
	publisher
}

func NewLikeService(likes ports.LikeRepository, posts ports.PostReader, blocks ports.BlockRepository, d *dispatch.Dispatcher, clock ports.Clock, logger *zap.Logger) *LikeService {
	return &LikeService{likes: likes, posts: posts, blocks: blocks, publisher: newPublisher(d, clock, logger)}
}

// Like records a like. status chooses whether the liker is shown.
func (s *LikeService) Like(ctx context.Context, userID, postID string, status entities.LikeStatus) (*entities.Like, error) {
	if status != entities.LikeOnymous && status != entities.LikeAnonymous {
		return nil, pkgerrors.NewValidationError("unknown like status")
	}
	post, err := visiblePost(ctx, s.posts, postID)
	if err != nil {
		return nil, err
	}
	if err := ensureNotBlocked(ctx, s.blocks, userID, post.PostedByUserID); err != nil {
		return nil, err
	}

	like := &entities.Like{
		PostID:         postID,
		LikedByUserID:  userID,
		PostedByUserID: post.PostedByUserID,
		Status:         status,
		LikedAt:        s.now(),
	}
	if err := s.likes.CreateLike(ctx, like); err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityLike, like.ID(), nil, like)
	return like, nil
}

// Dislike withdraws a like.
func (s *LikeService) Dislike(ctx context.Context, userID, postID string) error {
	old, err := s.likes.DeleteLike(ctx, postID, userID)
	if err != nil {
		return err
	}
	if old == nil {
		return pkgerrors.NewNotFoundError("like")
	}
	publish(ctx, s.publisher, events.EntityLike, old.ID(), old, nil)
	return nil
}

// RemoveAll deletes every like of a post.
func (s *LikeService) RemoveAll(ctx context.Context, postID string) (int, error) {
	likes, err := s.likes.LikesByPost(ctx, postID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, like := range likes {
		if err := s.Dislike(ctx, like.LikedByUserID, postID); err != nil && !pkgerrors.IsNotFound(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

type ViewService struct {
	views ports.ViewRepository
	posts ports.PostReader
	publisher
}

func NewViewService(views ports.ViewRepository, posts ports.PostReader, d *dispatch.Dispatcher, clock ports.Clock, logger *zap.Logger) *ViewService {
	return &ViewService{views: views, posts: posts, publisher: newPublisher(d, clock, logger)}
}

// RecordView notes that userID saw the post. The first view creates the view record;
// later ones bump it.
func (s *ViewService) RecordView(ctx context.Context, userID, postID string) (*entities.PostView, error) {
	post, err := visiblePost(ctx, s.posts, postID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	old, current, err := s.views.RecordView(ctx, &entities.PostView{
		PostID:         postID,
		ViewedByUserID: userID,
		PostedByUserID: post.PostedByUserID,
		FirstViewedAt:  now,
		LastViewedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityPostView, current.ID(), old, current)
	return current, nil
}

// RemoveAll deletes a post's view records. They are bookkeeping only and have no
// reactors.
func (s *ViewService) RemoveAll(ctx context.Context, postID string) error {
	return s.views.DeleteViews(ctx, postID)
}

type CommentInput struct {
	CommentID string
	PostID    string
	UserID    string
	Text      string
}

type CommentService struct {
	comments ports.CommentRepository
	posts    ports.PostReader
	blocks   ports.BlockRepository
	cfg      *config.DomainConfig
	publisher
}

func NewCommentService(
	comments ports.CommentRepository,
	posts ports.PostReader,
	blocks ports.BlockRepository,
	cfg *config.DomainConfig,
	d *dispatch.Dispatcher,
	clock ports.Clock,
	logger *zap.Logger,
) *CommentService {
	return &CommentService{comments: comments, posts: posts, blocks: blocks, cfg: cfg, publisher: newPublisher(d, clock, logger)}
}

func (s *CommentService) AddComment(ctx context.Context, in CommentInput) (*entities.Comment, error) {
	if err := required("commentID", in.CommentID, "userID", in.UserID, "text", in.Text); err != nil {
		return nil, err
	}
	if err := maxLength("text", in.Text, s.cfg.MaxCommentLength); err != nil {
		return nil, err
	}
	post, err := visiblePost(ctx, s.posts, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := ensureNotBlocked(ctx, s.blocks, in.UserID, post.PostedByUserID); err != nil {
		return nil, err
	}

	comment := &entities.Comment{
		CommentID:         in.CommentID,
		PostID:            in.PostID,
		PostedByUserID:    post.PostedByUserID,
		CommentedByUserID: in.UserID,
		Text:              in.Text,
		CommentedAt:       s.now(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityComment, comment.CommentID, nil, comment)
	return comment, nil
}

// DeleteComment lets the commenter or the post's owner delete a comment.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID string) error {
	comment, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment == nil {
		return pkgerrors.NewNotFoundError("comment")
	}
	if userID != comment.CommentedByUserID && userID != comment.PostedByUserID {
		return pkgerrors.NewForbiddenError("comment belongs to another user")
	}
	return s.remove(ctx, commentID)
}

func (s *CommentService) remove(ctx context.Context, commentID string) error {
	old, err := s.comments.DeleteComment(ctx, commentID)
	if err != nil {
		return err
	}
	if old == nil {
		return pkgerrors.NewNotFoundError("comment")
	}
	publish(ctx, s.publisher, events.EntityComment, commentID, old, nil)
	return nil
}

func (s *CommentService) CommentsByPost(ctx context.Context, postID string) ([]*entities.Comment, error) {
	return s.comments.CommentsByPost(ctx, postID)
}

// RemoveAll deletes every comment of a post.
func (s *CommentService) RemoveAll(ctx context.Context, postID string) (int, error) {
	comments, err := s.comments.CommentsByPost(ctx, postID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, c := range comments {
		if err := s.remove(ctx, c.CommentID); err != nil && !pkgerrors.IsNotFound(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

type FlagService struct {
	flags ports.FlagRepository
	posts ports.PostReader
	chats ports.ChatRepository
	publisher
}

func NewFlagService(flags ports.FlagRepository, posts ports.PostReader, chats ports.ChatRepository, d *dispatch.Dispatcher, clock ports.Clock, logger *zap.Logger) *FlagService {
	return &FlagService{flags: flags, posts: posts, chats: chats, publisher: newPublisher(d, clock, logger)}
}

// FlagPost reports a post. Users cannot flag their own posts.
func (s *FlagService) FlagPost(ctx context.Context, userID, postID string) (*entities.Flag, error) {
	post, err := visiblePost(ctx, s.posts, postID)
	if err != nil {
		return nil, err
	}
	if post.PostedByUserID == userID {
		return nil, pkgerrors.NewValidationError("users cannot flag their own posts")
	}
	return s.flag(ctx, entities.FlagPost, postID, userID)
}

// FlagMessage reports a chat message. Only other members of the chat can flag it.
func (s *FlagService) FlagMessage(ctx context.Context, userID, messageID string) (*entities.Flag, error) {
	message, err := s.chats.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, pkgerrors.NewNotFoundError("message")
	}
	if message.AuthorUserID == userID {
		return nil, pkgerrors.NewValidationError("users cannot flag their own messages")
	}
	member, err := s.chats.GetMember(ctx, message.ChatID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, pkgerrors.NewForbiddenError("not a member of the chat")
	}
	return s.flag(ctx, entities.FlagChatMessage, messageID, userID)
}

func (s *FlagService) flag(ctx context.Context, kind entities.FlagKind, itemID, userID string) (*entities.Flag, error) {
	flag := &entities.Flag{Kind: kind, ItemID: itemID, FlaggerUserID: userID, FlaggedAt: s.now()}
	if err := s.flags.CreateFlag(ctx, flag); err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityFlag, flag.ID(), nil, flag)
	return flag, nil
}

// RemoveAll deletes every flag of an item that no longer exists.
func (s *FlagService) RemoveAll(ctx context.Context, kind entities.FlagKind, itemID string) error {
	return s.flags.DeleteFlags(ctx, kind, itemID)
}
