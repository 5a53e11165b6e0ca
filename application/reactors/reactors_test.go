package reactors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"socialcore/application/dispatch"
	"socialcore/application/fanout"
	"socialcore/application/ledger"
	"socialcore/application/ports"
	"socialcore/application/ranking"
	"socialcore/application/services"
	"socialcore/application/trending"
	"socialcore/application/txn"
	"socialcore/domain/config"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	"socialcore/infrastructure/messaging"
	"socialcore/infrastructure/persistence/memory"
	"socialcore/infrastructure/persistence/repository"
	"socialcore/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	dispatcher *dispatch.Dispatcher
	sink       *messaging.RecordingSink

	users    *repository.UserRepository
	posts    *repository.PostRepository
	albums   *repository.AlbumRepository
	likes    *repository.LikeRepository
	comments *repository.CommentRepository
	chats    *repository.ChatRepository
	cards    *repository.CardRepository
	feed     *repository.FeedRepository
	stories  *repository.FirstStoryRepository

	userSvc    *services.UserService
	followSvc  *services.FollowService
	blockSvc   *services.BlockService
	postSvc    *services.PostService
	albumSvc   *services.AlbumService
	likeSvc    *services.LikeService
	viewSvc    *services.ViewService
	commentSvc *services.CommentService
	flagSvc    *services.FlagService
	chatSvc    *services.ChatService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	metrics := observability.NewMetrics("test")
	cfg := config.DefaultDomainConfig()
	clock := ports.ClockFunc(func() time.Time { return now })

	h := &harness{
		sink:     messaging.NewRecordingSink(),
		users:    repository.NewUserRepository(store, logger),
		posts:    repository.NewPostRepository(store, logger),
		albums:   repository.NewAlbumRepository(store, logger),
		likes:    repository.NewLikeRepository(store, logger),
		comments: repository.NewCommentRepository(store, logger),
		chats:    repository.NewChatRepository(store, logger),
		cards:    repository.NewCardRepository(store, logger),
		feed:     repository.NewFeedRepository(store, logger),
		stories:  repository.NewFirstStoryRepository(store, logger),
	}
	follows := repository.NewFollowRepository(store, logger)
	blocks := repository.NewBlockRepository(store, logger)
	views := repository.NewViewRepository(store, logger)
	flags := repository.NewFlagRepository(store, logger)

	l := ledger.NewLedger(store, logger, metrics, clock, cfg)
	allocator := ranking.NewAllocator(h.posts, l, logger)
	propagator := fanout.NewPropagator(follows, h.posts, h.feed, h.stories, h.sink, clock, logger, metrics)
	tracker := trending.NewTracker(store, l, trending.AdditiveScorer{}, clock, cfg, logger)
	h.dispatcher = dispatch.NewDispatcher(logger, metrics, nil)
	d := h.dispatcher

	h.userSvc = services.NewUserService(h.users, d, clock, logger)
	h.followSvc = services.NewFollowService(h.users, follows, blocks, d, clock, logger)
	h.blockSvc = services.NewBlockService(h.users, blocks, d, clock, logger)
	h.postSvc = services.NewPostService(h.users, h.posts, h.albums, allocator, cfg, d, clock, logger)
	h.albumSvc = services.NewAlbumService(h.users, h.albums, allocator, cfg, d, clock, logger)
	h.likeSvc = services.NewLikeService(h.likes, h.posts, blocks, d, clock, logger)
	h.viewSvc = services.NewViewService(views, h.posts, d, clock, logger)
	h.commentSvc = services.NewCommentService(h.comments, h.posts, blocks, cfg, d, clock, logger)
	h.flagSvc = services.NewFlagService(flags, h.posts, h.chats, d, clock, logger)
	h.chatSvc = services.NewChatService(h.chats, h.users, blocks, txn.NewCoordinator(store, logger), cfg, d, clock, logger)
	cardSvc := services.NewCardService(h.cards, d, clock, logger)

	Register(d, Deps{
		Ledger:     l,
		Propagator: propagator,
		Trending:   tracker,
		Sink:       h.sink,
		Users:      h.users,
		Posts:      h.posts,
		Chats:      h.chats,
		Services: Services{
			Follows:  h.followSvc,
			Posts:    h.postSvc,
			Likes:    h.likeSvc,
			Views:    h.viewSvc,
			Comments: h.commentSvc,
			Flags:    h.flagSvc,
			Chats:    h.chatSvc,
			Cards:    cardSvc,
		},
		Config: cfg,
		Clock:  clock,
		Logger: logger,
	})
	return h
}

func (h *harness) user(t *testing.T, id string, privacy entities.Privacy) {
	t.Helper()
	_, err := h.userSvc.CreateUser(context.Background(), id, id, privacy)
	require.NoError(t, err)
}

func (h *harness) profile(t *testing.T, id string) *entities.User {
	t.Helper()
	u, err := h.users.GetUser(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func (h *harness) post(t *testing.T, id string) *entities.Post {
	t.Helper()
	p, err := h.posts.GetPost(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (h *harness) textPost(t *testing.T, id, userID, albumID string) *entities.Post {
	t.Helper()
	p, err := h.postSvc.CreatePost(context.Background(), services.CreatePostInput{
		PostID:   id,
		UserID:   userID,
		PostType: entities.PostTypeText,
		Text:     "post " + id,
		AlbumID:  albumID,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) card(t *testing.T, id string) *entities.Card {
	t.Helper()
	c, err := h.cards.GetCard(context.Background(), id)
	require.NoError(t, err)
	return c
}

func TestFollowRequest_AcceptFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPrivate)
	h.user(t, "bob", entities.PrivacyPublic)

	follow, err := h.followSvc.Follow(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, entities.FollowRequested, follow.Status)
	assert.Equal(t, 1, h.profile(t, "alice").FollowersRequestedCount)
	assert.Equal(t, 0, h.profile(t, "alice").FollowerCount)

	card := h.card(t, entities.RequestedFollowersCardID("alice"))
	require.NotNil(t, card)
	assert.Equal(t, 1, card.Count)
	assert.Equal(t, "alice", card.UserID)
	assert.NotEmpty(t, h.sink.For(events.ViewCard))

	_, err = h.followSvc.Accept(ctx, "alice", "bob")
	require.NoError(t, err)
	alice, bob := h.profile(t, "alice"), h.profile(t, "bob")
	assert.Equal(t, 1, alice.FollowerCount)
	assert.Equal(t, 0, alice.FollowersRequestedCount)
	assert.Equal(t, 1, bob.FollowedCount)
	assert.Nil(t, h.card(t, entities.RequestedFollowersCardID("alice")))

	// answering twice is a conflict and leaves the counters alone
	_, err = h.followSvc.Accept(ctx, "alice", "bob")
	assert.Error(t, err)
	assert.Equal(t, 1, h.profile(t, "alice").FollowerCount)

	require.NoError(t, h.followSvc.Unfollow(ctx, "bob", "alice"))
	assert.Equal(t, 0, h.profile(t, "alice").FollowerCount)
	assert.Equal(t, 0, h.profile(t, "bob").FollowedCount)
}

func TestFollowRequest_DenyClearsCard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPrivate)
	h.user(t, "bob", entities.PrivacyPublic)
	h.user(t, "carol", entities.PrivacyPublic)

	_, err := h.followSvc.Follow(ctx, "bob", "alice")
	require.NoError(t, err)
	_, err = h.followSvc.Follow(ctx, "carol", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, h.profile(t, "alice").FollowersRequestedCount)
	assert.Equal(t, 2, h.card(t, entities.RequestedFollowersCardID("alice")).Count)

	_, err = h.followSvc.Deny(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, h.profile(t, "alice").FollowersRequestedCount)
	assert.NotNil(t, h.card(t, entities.RequestedFollowersCardID("alice")))

	require.NoError(t, h.followSvc.Unfollow(ctx, "carol", "alice"))
	assert.Equal(t, 0, h.profile(t, "alice").FollowersRequestedCount)
	assert.Nil(t, h.card(t, entities.RequestedFollowersCardID("alice")))
	assert.Equal(t, 0, h.profile(t, "alice").FollowerCount)
}

func TestReplayedChange_AppliesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPublic)
	h.user(t, "bob", entities.PrivacyPublic)
	h.textPost(t, "p1", "alice", "")

	like, err := h.likeSvc.Like(ctx, "bob", "p1", entities.LikeOnymous)
	require.NoError(t, err)
	assert.Equal(t, 1, h.post(t, "p1").OnymousLikeCount)
	score := h.post(t, "p1").TrendingScore

	replay := events.Change{
		EntityType: events.EntityLike,
		Transition: events.Added,
		EntityID:   like.ID(),
		New:        like,
		OccurredAt: now,
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, h.dispatcher.Dispatch(ctx, replay))
	}
	assert.Equal(t, 1, h.post(t, "p1").OnymousLikeCount)
	assert.Equal(t, score, h.post(t, "p1").TrendingScore)

	require.NoError(t, h.likeSvc.Dislike(ctx, "bob", "p1"))
	assert.Equal(t, 0, h.post(t, "p1").OnymousLikeCount)
}

func TestLikes_CountPerStatusAndTrend(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPublic)
	h.user(t, "bob", entities.PrivacyPublic)
	h.user(t, "carol", entities.PrivacyPublic)
	h.textPost(t, "p1", "alice", "")

	_, err := h.likeSvc.Like(ctx, "bob", "p1", entities.LikeOnymous)
	require.NoError(t, err)
	_, err = h.likeSvc.Like(ctx, "carol", "p1", entities.LikeAnonymous)
	require.NoError(t, err)

	p := h.post(t, "p1")
	assert.Equal(t, 1, p.OnymousLikeCount)
	assert.Equal(t, 1, p.AnonymousLikeCount)
	assert.Equal(t, 2.0, p.TrendingScore)
	assert.Equal(t, 2.0, h.profile(t, "alice").TrendingScore)

	// the first view counts, a repeat does not
	_, err = h.viewSvc.RecordView(ctx, "bob", "p1")
	require.NoError(t, err)
	_, err = h.viewSvc.RecordView(ctx, "bob", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, h.post(t, "p1").ViewedByCount)
}

func TestAlbum_MembershipCountsAndOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPublic)
	_, err := h.albumSvc.CreateAlbum(ctx, "trip", "alice", "Trip")
	require.NoError(t, err)

	h.textPost(t, "a", "alice", "trip")
	h.textPost(t, "b", "alice", "trip")
	_, err = h.postSvc.CreatePost(ctx, services.CreatePostInput{
		PostID: "c", UserID: "alice", PostType: entities.PostTypeText, Text: "c",
		AlbumID: "trip", Placement: ranking.AtFront(),
	})
	require.NoError(t, err)

	album, err := h.albums.GetAlbum(ctx, "trip")
	require.NoError(t, err)
	assert.Equal(t, 3, album.PostCount)
	require.NotNil(t, album.PostsLastUpdatedAt)

	order, err := h.albumSvc.GenerateInOrder(ctx, "trip")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, order)

	_, err = h.postSvc.MovePost(ctx, "alice", "c", ranking.After("b"))
	require.NoError(t, err)
	order, err = h.albumSvc.GenerateInOrder(ctx, "trip")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.NotEmpty(t, h.sink.For(events.ViewAlbumOrder))

	_, err = h.postSvc.ArchivePost(ctx, "alice", "a")
	require.NoError(t, err)
	album, err = h.albums.GetAlbum(ctx, "trip")
	require.NoError(t, err)
	assert.Equal(t, 2, album.PostCount)
	assert.Equal(t, 2, h.profile(t, "alice").PostCount)
	assert.Equal(t, 1, h.profile(t, "alice").PostArchivedCount)

	require.NoError(t, h.albumSvc.DeleteAlbum(ctx, "alice", "trip"))
	for _, id := range []string{"a", "b", "c"} {
		assert.Empty(t, h.post(t, id).AlbumID, id)
		assert.Nil(t, h.post(t, id).AlbumRank, id)
	}
}

func TestPostDelete_RemovesDependents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPublic)
	h.user(t, "bob", entities.PrivacyPublic)
	_, err := h.followSvc.Follow(ctx, "bob", "alice")
	require.NoError(t, err)
	h.textPost(t, "p1", "alice", "")

	entries, _, err := h.feed.PageFeed(ctx, "bob", 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p1", entries[0].PostID)

	_, err = h.likeSvc.Like(ctx, "bob", "p1", entities.LikeOnymous)
	require.NoError(t, err)
	_, err = h.commentSvc.AddComment(ctx, services.CommentInput{CommentID: "c1", PostID: "p1", UserID: "bob", Text: "nice"})
	require.NoError(t, err)

	p := h.post(t, "p1")
	assert.Equal(t, 1, p.CommentCount)
	assert.Equal(t, 1, p.CommentsUnviewedCount)
	activity := h.card(t, entities.CommentActivityCardID("p1"))
	require.NotNil(t, activity)
	assert.Equal(t, "alice", activity.UserID)

	// the owner looking at the post marks its comments seen
	_, err = h.viewSvc.RecordView(ctx, "alice", "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, h.post(t, "p1").CommentsUnviewedCount)
	assert.Equal(t, 0, h.post(t, "p1").ViewedByCount)
	assert.Nil(t, h.card(t, entities.CommentActivityCardID("p1")))

	_, err = h.commentSvc.AddComment(ctx, services.CommentInput{CommentID: "c2", PostID: "p1", UserID: "bob", Text: "again"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.profile(t, "alice").PostCount)

	require.NoError(t, h.postSvc.DeletePost(ctx, "alice", "p1"))
	assert.Nil(t, h.post(t, "p1"))
	likes, err := h.likes.LikesByPost(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, likes)
	comments, err := h.comments.CommentsByPost(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, comments)
	assert.Nil(t, h.card(t, entities.CommentActivityCardID("p1")))
	entries, _, err = h.feed.PageFeed(ctx, "bob", 10, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, h.profile(t, "alice").PostCount)
}

func TestFlagThreshold_ArchivesPost(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPublic)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("fan%d", i)
		h.user(t, id, entities.PrivacyPublic)
		_, err := h.followSvc.Follow(ctx, id, "alice")
		require.NoError(t, err)
	}
	assert.Equal(t, 10, h.profile(t, "alice").FollowerCount)
	h.textPost(t, "p1", "alice", "")

	// ratio 0.1 of 10 followers: the second flag crosses it
	_, err := h.flagSvc.FlagPost(ctx, "fan0", "p1")
	require.NoError(t, err)
	assert.Equal(t, entities.PostCompleted, h.post(t, "p1").Status)
	assert.Equal(t, 1, h.post(t, "p1").FlagCount)

	_, err = h.flagSvc.FlagPost(ctx, "fan1", "p1")
	require.NoError(t, err)
	p := h.post(t, "p1")
	assert.Equal(t, entities.PostArchived, p.Status)
	assert.Equal(t, 2, p.FlagCount)
	assert.Equal(t, 1, h.profile(t, "alice").PostArchivedCount)

	entries, _, err := h.feed.PageFeed(ctx, "fan5", 10, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChat_UnviewedFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPublic)
	h.user(t, "bob", entities.PrivacyPublic)

	_, err := h.chatSvc.CreateDirectChat(ctx, "chat1", "alice", "bob")
	require.NoError(t, err)
	chat, err := h.chats.GetChat(ctx, "chat1")
	require.NoError(t, err)
	assert.Equal(t, 2, chat.UserCount)
	assert.Equal(t, 1, h.profile(t, "alice").ChatCount)
	assert.Equal(t, 1, h.profile(t, "bob").ChatCount)

	for _, id := range []string{"m1", "m2"} {
		_, err := h.chatSvc.AddMessage(ctx, services.MessageInput{MessageID: id, ChatID: "chat1", UserID: "alice", Text: id})
		require.NoError(t, err)
	}
	chat, err = h.chats.GetChat(ctx, "chat1")
	require.NoError(t, err)
	assert.Equal(t, 2, chat.MessagesCount)
	require.NotNil(t, chat.LastMessageActivityAt)

	member, err := h.chats.GetMember(ctx, "chat1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, member.MessagesUnviewedCount)
	assert.Equal(t, 1, h.profile(t, "bob").ChatsWithUnviewedMessagesCount)
	assert.Equal(t, 0, h.profile(t, "alice").ChatsWithUnviewedMessagesCount)
	activity := h.card(t, entities.ChatActivityCardID("bob"))
	require.NotNil(t, activity)
	assert.Equal(t, 1, activity.Count)

	_, err = h.chatSvc.ViewChat(ctx, "bob", "chat1")
	require.NoError(t, err)
	assert.Equal(t, 0, h.profile(t, "bob").ChatsWithUnviewedMessagesCount)
	assert.Nil(t, h.card(t, entities.ChatActivityCardID("bob")))

	require.NoError(t, h.chatSvc.LeaveChat(ctx, "alice", "chat1"))
	require.NoError(t, h.chatSvc.LeaveChat(ctx, "bob", "chat1"))
	gone, err := h.chats.GetChat(ctx, "chat1")
	require.NoError(t, err)
	assert.Nil(t, gone)
	messages, _, err := h.chats.PageMessages(ctx, "chat1", 10, "")
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Equal(t, 0, h.profile(t, "bob").ChatCount)
}

func TestPrivacy_GoingPublicAcceptsRequests(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPrivate)
	h.user(t, "bob", entities.PrivacyPublic)
	h.user(t, "carol", entities.PrivacyPublic)
	for _, id := range []string{"bob", "carol"} {
		_, err := h.followSvc.Follow(ctx, id, "alice")
		require.NoError(t, err)
	}

	_, err := h.userSvc.SetPrivacy(ctx, "alice", entities.PrivacyPublic)
	require.NoError(t, err)
	alice := h.profile(t, "alice")
	assert.Equal(t, 2, alice.FollowerCount)
	assert.Equal(t, 0, alice.FollowersRequestedCount)
	assert.Nil(t, h.card(t, entities.RequestedFollowersCardID("alice")))
}

func TestBlock_CutsFollowsBothWays(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPublic)
	h.user(t, "bob", entities.PrivacyPublic)
	_, err := h.followSvc.Follow(ctx, "bob", "alice")
	require.NoError(t, err)
	_, err = h.followSvc.Follow(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = h.blockSvc.Block(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, h.profile(t, "alice").FollowerCount)
	assert.Equal(t, 0, h.profile(t, "alice").FollowedCount)
	assert.Equal(t, 0, h.profile(t, "bob").FollowerCount)

	_, err = h.followSvc.Follow(ctx, "bob", "alice")
	assert.Error(t, err)
}

func TestStories_FollowerSeesEarliest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "alice", entities.PrivacyPublic)
	h.user(t, "bob", entities.PrivacyPublic)

	later, sooner := now.Add(10*time.Hour), now.Add(2*time.Hour)
	for id, expires := range map[string]time.Time{"late": later, "soon": sooner} {
		expires := expires
		_, err := h.postSvc.CreatePost(ctx, services.CreatePostInput{
			PostID: id, UserID: "alice", PostType: entities.PostTypeText, Text: id, ExpiresAt: &expires,
		})
		require.NoError(t, err)
	}

	_, err := h.followSvc.Follow(ctx, "bob", "alice")
	require.NoError(t, err)
	fs, err := h.stories.GetFirstStory(ctx, "bob", "alice")
	require.NoError(t, err)
	require.NotNil(t, fs)
	assert.Equal(t, "soon", fs.PostID)

	require.NoError(t, h.postSvc.DeletePost(ctx, "alice", "soon"))
	fs, err = h.stories.GetFirstStory(ctx, "bob", "alice")
	require.NoError(t, err)
	require.NotNil(t, fs)
	assert.Equal(t, "late", fs.PostID)

	removed, err := h.postSvc.ExpirePosts(ctx, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	fs, err = h.stories.GetFirstStory(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Nil(t, fs)
}
