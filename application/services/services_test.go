package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"socialcore/application/dispatch"
	"socialcore/application/ledger"
	"socialcore/application/ports"
	"socialcore/application/ranking"
	"socialcore/application/txn"
	"socialcore/domain/config"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	"socialcore/infrastructure/persistence/memory"
	"socialcore/infrastructure/persistence/repository"
	pkgerrors "socialcore/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 4, 2, 15, 0, 0, 0, time.UTC)

type fixture struct {
	dispatcher *dispatch.Dispatcher
	chatRepo   *repository.ChatRepository
	users      *UserService
	follows    *FollowService
	blocks     *BlockService
	posts      *PostService
	comments   *CommentService
	flags      *FlagService
	chats      *ChatService
	cards      *CardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	cfg := config.DefaultDomainConfig()
	clock := ports.ClockFunc(func() time.Time { return now })
	d := dispatch.NewDispatcher(logger, nil, nil)

	userRepo := repository.NewUserRepository(store, logger)
	followRepo := repository.NewFollowRepository(store, logger)
	blockRepo := repository.NewBlockRepository(store, logger)
	postRepo := repository.NewPostRepository(store, logger)
	albumRepo := repository.NewAlbumRepository(store, logger)
	chatRepo := repository.NewChatRepository(store, logger)
	allocator := ranking.NewAllocator(postRepo, ledger.NewLedger(store, logger, nil, clock, cfg), logger)

	f := &fixture{
		dispatcher: d,
		chatRepo:   chatRepo,
		users:      NewUserService(userRepo, d, clock, logger),
		follows:    NewFollowService(userRepo, followRepo, blockRepo, d, clock, logger),
		blocks:     NewBlockService(userRepo, blockRepo, d, clock, logger),
		posts:      NewPostService(userRepo, postRepo, albumRepo, allocator, cfg, d, clock, logger),
		comments:   NewCommentService(repository.NewCommentRepository(store, logger), postRepo, blockRepo, cfg, d, clock, logger),
		flags:      NewFlagService(repository.NewFlagRepository(store, logger), postRepo, chatRepo, d, clock, logger),
		chats:      NewChatService(chatRepo, userRepo, blockRepo, txn.NewCoordinator(store, logger), cfg, d, clock, logger),
		cards:      NewCardService(repository.NewCardRepository(store, logger), d, clock, logger),
	}
	for _, u := range []struct {
		id      string
		privacy entities.Privacy
	}{{"alice", entities.PrivacyPublic}, {"bob", entities.PrivacyPublic}, {"carol", entities.PrivacyPrivate}} {
		_, err := f.users.CreateUser(context.Background(), u.id, u.id, u.privacy)
		require.NoError(t, err)
	}
	return f
}

func TestUserService_CreateUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.CreateUser(context.Background(), "alice", "again", entities.PrivacyPublic)
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	_, err = f.users.CreateUser(context.Background(), "dave", " ", entities.PrivacyPublic)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.users.GetUser(context.Background(), "nobody")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestFollowService_Follow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name     string
		follower string
		followed string
		check    func(t *testing.T, err error)
	}{
		{"self", "alice", "alice", func(t *testing.T, err error) { assert.True(t, pkgerrors.IsValidation(err)) }},
		{"missing user", "alice", "nobody", func(t *testing.T, err error) { assert.True(t, pkgerrors.IsNotFound(err)) }},
		{"empty id", "", "bob", func(t *testing.T, err error) { assert.True(t, pkgerrors.IsValidation(err)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.follows.Follow(ctx, tt.follower, tt.followed)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	public, err := f.follows.Follow(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, entities.FollowFollowing, public.Status)

	private, err := f.follows.Follow(ctx, "alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, entities.FollowRequested, private.Status)

	_, err = f.follows.Follow(ctx, "alice", "carol")
	assert.True(t, pkgerrors.IsAlreadyExists(err))
}

func TestFollowService_Transitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.follows.Follow(ctx, "alice", "carol")
	require.NoError(t, err)

	_, err = f.follows.Accept(ctx, "carol", "bob")
	assert.True(t, pkgerrors.IsNotFound(err))

	denied, err := f.follows.Deny(ctx, "carol", "alice")
	require.NoError(t, err)
	assert.Equal(t, entities.FollowDenied, denied.Status)

	_, err = f.follows.Accept(ctx, "carol", "alice")
	assert.True(t, pkgerrors.IsConflict(err))

	require.NoError(t, f.follows.Unfollow(ctx, "alice", "carol"))
	assert.True(t, pkgerrors.IsNotFound(f.follows.Unfollow(ctx, "alice", "carol")))
	assert.NoError(t, f.follows.ForceUnfollow(ctx, "alice", "carol"))
}

func TestBlockService_BlocksInteraction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.blocks.Block(ctx, "alice", "alice")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.blocks.Block(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.blocks.Block(ctx, "alice", "bob")
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	// either direction is refused
	_, err = f.follows.Follow(ctx, "bob", "alice")
	assert.True(t, pkgerrors.IsForbidden(err))
	_, err = f.chats.CreateDirectChat(ctx, "c1", "alice", "bob")
	assert.True(t, pkgerrors.IsForbidden(err))

	require.NoError(t, f.blocks.Unblock(ctx, "alice", "bob"))
	_, err = f.follows.Follow(ctx, "bob", "alice")
	assert.NoError(t, err)
}

func TestPostService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	post, err := f.posts.CreatePost(ctx, CreatePostInput{PostID: "img", UserID: "alice", PostType: entities.PostTypeImage})
	require.NoError(t, err)
	assert.Equal(t, entities.PostPending, post.Status)

	_, err = f.posts.ArchivePost(ctx, "alice", "img")
	assert.True(t, pkgerrors.IsConflict(err))
	_, err = f.posts.CompletePost(ctx, "bob", "img")
	assert.True(t, pkgerrors.IsForbidden(err))

	post, err = f.posts.CompletePost(ctx, "alice", "img")
	require.NoError(t, err)
	assert.Equal(t, entities.PostCompleted, post.Status)

	post, err = f.posts.ArchivePost(ctx, "alice", "img")
	require.NoError(t, err)
	assert.Equal(t, entities.PostArchived, post.Status)
	post, err = f.posts.RestorePost(ctx, "alice", "img")
	require.NoError(t, err)
	assert.Equal(t, entities.PostCompleted, post.Status)

	past := now.Add(-time.Minute)
	_, err = f.posts.SetExpiry(ctx, "alice", "img", &past)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.posts.SetAlbum(ctx, "alice", "img", "missing", ranking.AtBack())
	assert.True(t, pkgerrors.IsNotFound(err))

	assert.True(t, pkgerrors.IsForbidden(f.posts.DeletePost(ctx, "bob", "img")))
	require.NoError(t, f.posts.DeletePost(ctx, "alice", "img"))
	_, err = f.posts.GetPost(ctx, "img")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCommentService_DeletePermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.posts.CreatePost(ctx, CreatePostInput{PostID: "p", UserID: "alice", PostType: entities.PostTypeText, Text: "hello"})
	require.NoError(t, err)

	for _, id := range []string{"c1", "c2"} {
		_, err := f.comments.AddComment(ctx, CommentInput{CommentID: id, PostID: "p", UserID: "bob", Text: "hi"})
		require.NoError(t, err)
	}

	assert.True(t, pkgerrors.IsForbidden(f.comments.DeleteComment(ctx, "carol", "c1")))
	require.NoError(t, f.comments.DeleteComment(ctx, "bob", "c1"))
	require.NoError(t, f.comments.DeleteComment(ctx, "alice", "c2"))
	assert.True(t, pkgerrors.IsNotFound(f.comments.DeleteComment(ctx, "alice", "c2")))

	_, err = f.comments.AddComment(ctx, CommentInput{CommentID: "c3", PostID: "nope", UserID: "bob", Text: "hi"})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestFlagService_Rules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.posts.CreatePost(ctx, CreatePostInput{PostID: "p", UserID: "alice", PostType: entities.PostTypeText, Text: "hello"})
	require.NoError(t, err)

	_, err = f.flags.FlagPost(ctx, "alice", "p")
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = f.flags.FlagPost(ctx, "bob", "p")
	require.NoError(t, err)
	_, err = f.flags.FlagPost(ctx, "bob", "p")
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	_, err = f.chats.CreateDirectChat(ctx, "chat", "alice", "bob")
	require.NoError(t, err)
	_, err = f.chats.AddMessage(ctx, MessageInput{MessageID: "m", ChatID: "chat", UserID: "alice", Text: "yo"})
	require.NoError(t, err)

	_, err = f.flags.FlagMessage(ctx, "carol", "m")
	assert.True(t, pkgerrors.IsForbidden(err))
	_, err = f.flags.FlagMessage(ctx, "alice", "m")
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = f.flags.FlagMessage(ctx, "bob", "m")
	assert.NoError(t, err)
}

func TestChatService_DirectChatIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chat, err := f.chats.CreateDirectChat(ctx, "c1", "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, chat.ParticipantIDs)

	// the same pair under a new id collides on the pair index and writes nothing
	_, err = f.chats.CreateDirectChat(ctx, "c2", "alice", "bob")
	assert.True(t, pkgerrors.IsAlreadyExists(err))
	stray, err := f.chatRepo.GetChat(ctx, "c2")
	require.NoError(t, err)
	assert.Nil(t, stray)
	member, err := f.chatRepo.GetMember(ctx, "c2", "alice")
	require.NoError(t, err)
	assert.Nil(t, member)

	_, err = f.chats.CreateDirectChat(ctx, "c3", "alice", "alice")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.chats.AddMember(ctx, "alice", "c1", "carol")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestChatService_GroupMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.chats.CreateGroupChat(ctx, "g", "alice", "crew", []string{"bob"})
	require.NoError(t, err)
	ids, err := f.chats.MemberIDs(ctx, "g")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)

	_, err = f.chats.AddMember(ctx, "carol", "g", "carol")
	assert.True(t, pkgerrors.IsForbidden(err))

	_, err = f.chats.AddMessage(ctx, MessageInput{MessageID: "m", ChatID: "g", UserID: "carol", Text: "hi"})
	assert.True(t, pkgerrors.IsForbidden(err))
	_, err = f.chats.AddMessage(ctx, MessageInput{MessageID: "m", ChatID: "g", UserID: "bob", Text: "hi"})
	require.NoError(t, err)

	assert.True(t, pkgerrors.IsForbidden(f.chats.DeleteMessage(ctx, "alice", "m")))
	require.NoError(t, f.chats.DeleteMessage(ctx, "bob", "m"))

	require.NoError(t, f.chats.LeaveChat(ctx, "bob", "g"))
	assert.True(t, pkgerrors.IsNotFound(f.chats.LeaveChat(ctx, "bob", "g")))
}

func TestCardService_OwnershipAndBump(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	card := &entities.Card{CardID: "alice:X", UserID: "alice", Kind: entities.CardChatActivity, Title: "t"}

	first, err := f.cards.UpsertCard(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count)
	second, err := f.cards.UpsertCard(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Count)

	_, err = f.cards.UpsertCard(ctx, &entities.Card{CardID: "alice:X", UserID: "bob"})
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	assert.True(t, pkgerrors.IsForbidden(f.cards.DismissCard(ctx, "bob", "alice:X")))
	require.NoError(t, f.cards.DismissCard(ctx, "alice", "alice:X"))
	assert.True(t, pkgerrors.IsNotFound(f.cards.DismissCard(ctx, "alice", "alice:X")))
}

func TestPublish_CascadeFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var seen []events.Transition
	dispatch.On(f.dispatcher, events.EntityBlock, "broken", func(ctx context.Context, c events.Change, n, o *entities.Block) error {
		seen = append(seen, c.Transition)
		return errors.New("downstream unavailable")
	}, events.Added, events.Deleted)

	_, err := f.blocks.Block(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, f.blocks.Unblock(ctx, "alice", "bob"))
	assert.Equal(t, []events.Transition{events.Added, events.Deleted}, seen)
}
