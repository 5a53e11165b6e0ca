package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	"socialcore/infrastructure/persistence/memory"
	pkgerrors "socialcore/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFollowRepository_StatusViews(t *testing.T) {
	ctx := context.Background()
	repo := NewFollowRepository(memory.NewStore(), zap.NewNop())

	req := &entities.Follow{FollowerUserID: "a", FollowedUserID: "b", Status: entities.FollowRequested, FollowedAt: epoch}
	require.NoError(t, repo.CreateFollow(ctx, req))

	err := repo.CreateFollow(ctx, req)
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	requested, err := repo.FollowerIDs(ctx, "b", entities.FollowRequested)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, requested)

	accepted, err := repo.UpdateFollowStatus(ctx, req, entities.FollowFollowing)
	require.NoError(t, err)
	assert.Equal(t, entities.FollowFollowing, accepted.Status)

	// a second transition from the stale status is refused
	_, err = repo.UpdateFollowStatus(ctx, req, entities.FollowDenied)
	assert.True(t, errors.Is(err, ports.ErrConditionFailed))

	following, err := repo.FollowerIDs(ctx, "b", entities.FollowFollowing)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, following)
	followed, err := repo.FollowedIDs(ctx, "a", entities.FollowFollowing)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, followed)
	requested, err = repo.FollowerIDs(ctx, "b", entities.FollowRequested)
	require.NoError(t, err)
	assert.Empty(t, requested)

	old, err := repo.DeleteFollow(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, entities.FollowFollowing, old.Status)
	gone, err := repo.GetFollow(ctx, "a", "b")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestBlockRepository_EitherBlocks(t *testing.T) {
	ctx := context.Background()
	repo := NewBlockRepository(memory.NewStore(), zap.NewNop())

	blocked, err := repo.EitherBlocks(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, repo.CreateBlock(ctx, &entities.Block{BlockerUserID: "b", BlockedUserID: "a", BlockedAt: epoch}))
	blocked, err = repo.EitherBlocks(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func story(id, user string, expires time.Time) *entities.Post {
	p, _ := entities.NewPost(id, user, entities.PostTypeText, "hello", &expires, epoch)
	return p
}

func TestPostRepository_StoryCandidatesOrderedByExpiry(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(memory.NewStore(), zap.NewNop())

	require.NoError(t, repo.CreatePost(ctx, story("p2", "u", epoch.Add(2*time.Hour))))
	require.NoError(t, repo.CreatePost(ctx, story("p1", "u", epoch.Add(time.Hour))))
	require.NoError(t, repo.CreatePost(ctx, story("p0", "u", epoch.Add(time.Hour))))

	pending, err := entities.NewPost("p3", "u", entities.PostTypeImage, "", ptr(epoch.Add(time.Minute)), epoch)
	require.NoError(t, err)
	require.NoError(t, repo.CreatePost(ctx, pending))

	candidates, err := repo.StoryCandidates(ctx, "u", 0)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, []string{"p0", "p1", "p2"}, postIDs(candidates))

	first, err := repo.StoryCandidates(ctx, "u", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p0"}, postIDs(first))

	// completing the pending post turns it into the earliest candidate
	pending.Status = entities.PostCompleted
	_, err = repo.UpdatePost(ctx, pending)
	require.NoError(t, err)
	first, err = repo.StoryCandidates(ctx, "u", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, postIDs(first))

	// dropping the expiry removes it from the view
	pending.ExpiresAt = nil
	_, err = repo.UpdatePost(ctx, pending)
	require.NoError(t, err)
	first, err = repo.StoryCandidates(ctx, "u", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p0"}, postIDs(first))
}

func TestPostRepository_UpdateKeepsCounters(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	repo := NewPostRepository(kv, zap.NewNop())

	p := story("p", "u", epoch.Add(time.Hour))
	require.NoError(t, repo.CreatePost(ctx, p))
	_, err := kv.Update(ctx, ports.Key{PK: "POST#p", SK: "METADATA"},
		ports.Update{Add: map[string]int{entities.PostCommentCount: 3}}, ports.ItemExists())
	require.NoError(t, err)

	p.Text = "edited"
	updated, err := repo.UpdatePost(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Text)
	assert.Equal(t, 3, updated.CommentCount)

	_, err = repo.UpdatePost(ctx, story("missing", "u", epoch.Add(time.Hour)))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestPostRepository_AlbumMembersByRank(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(memory.NewStore(), zap.NewNop())

	for id, rank := range map[string]float64{"back": 1.0 / 3, "first": 0, "front": -1.0 / 3, "mid": 1.0 / 6} {
		p, err := entities.NewPost(id, "u", entities.PostTypeText, "x", nil, epoch)
		require.NoError(t, err)
		p.AlbumID = "al"
		p.AlbumRank = ptr(rank)
		require.NoError(t, repo.CreatePost(ctx, p))
	}

	members, err := repo.AlbumMembers(ctx, "al")
	require.NoError(t, err)
	assert.Equal(t, []string{"front", "first", "mid", "back"}, postIDs(members))

	next, err := repo.NextAlbumMember(ctx, "al", 0)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "mid", next.PostID)

	next, err = repo.NextAlbumMember(ctx, "al", 1.0/3)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestPostRepository_ExpiredStories(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(memory.NewStore(), zap.NewNop())

	require.NoError(t, repo.CreatePost(ctx, story("old", "u", epoch.Add(time.Hour))))
	require.NoError(t, repo.CreatePost(ctx, story("edge", "u", epoch.Add(2*time.Hour))))
	require.NoError(t, repo.CreatePost(ctx, story("fresh", "u", epoch.Add(3*time.Hour))))

	var expired []*entities.Post
	cursor := ""
	for {
		page, next, err := repo.ExpiredStories(ctx, epoch.Add(2*time.Hour), cursor)
		require.NoError(t, err)
		expired = append(expired, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	assert.ElementsMatch(t, []string{"old", "edge"}, postIDs(expired))
}

func TestViewRepository_RecordView(t *testing.T) {
	ctx := context.Background()
	repo := NewViewRepository(memory.NewStore(), zap.NewNop())

	view := &entities.PostView{PostID: "p", ViewedByUserID: "v", PostedByUserID: "u", LastViewedAt: epoch}
	old, current, err := repo.RecordView(ctx, view)
	require.NoError(t, err)
	assert.Nil(t, old)
	assert.Equal(t, 1, current.ViewCount)

	view.LastViewedAt = epoch.Add(time.Minute)
	old, current, err = repo.RecordView(ctx, view)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, 1, old.ViewCount)
	assert.Equal(t, 2, current.ViewCount)
	assert.True(t, current.FirstViewedAt.Equal(epoch))
}

func TestCardRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewCardRepository(memory.NewStore(), zap.NewNop())

	card := &entities.Card{
		CardID: entities.RequestedFollowersCardID("u"), UserID: "u", Kind: entities.CardRequestedFollowers,
		Title: "1 follow request", Count: 1, CreatedAt: epoch, UpdatedAt: epoch,
	}
	created, err := repo.UpsertCard(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, 1, created.Count)

	card.Title = "2 follow requests"
	card.UpdatedAt = epoch.Add(time.Minute)
	bumped, err := repo.UpsertCard(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, 2, bumped.Count)
	assert.Equal(t, "2 follow requests", bumped.Title)
	assert.True(t, bumped.CreatedAt.Equal(epoch))

	stolen := *card
	stolen.UserID = "other"
	_, err = repo.UpsertCard(ctx, &stolen)
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	cards, cursor, err := repo.PageCards(ctx, "u", 10, "")
	require.NoError(t, err)
	assert.Empty(t, cursor)
	assert.Len(t, cards, 1)
}

// deletingStore removes the addressed item right before the first Update reaches it.
type deletingStore struct {
	ports.KeyValueStore
	done bool
}

func (s *deletingStore) Update(ctx context.Context, key ports.Key, upd ports.Update, cond ports.Condition) (ports.Item, error) {
	if !s.done {
		s.done = true
		if _, err := s.KeyValueStore.Delete(ctx, key, nil); err != nil {
			return nil, err
		}
	}
	return s.KeyValueStore.Update(ctx, key, upd, cond)
}

func TestCardRepository_UpsertRecreatesCardDeletedMidway(t *testing.T) {
	ctx := context.Background()
	store := &deletingStore{KeyValueStore: memory.NewStore()}
	repo := NewCardRepository(store, zap.NewNop())

	card := &entities.Card{
		CardID: entities.RequestedFollowersCardID("u"), UserID: "u", Kind: entities.CardRequestedFollowers,
		Title: "1 follow request", Count: 1, CreatedAt: epoch, UpdatedAt: epoch,
	}
	_, err := repo.UpsertCard(ctx, card)
	require.NoError(t, err)

	upserted, err := repo.UpsertCard(ctx, card)
	require.NoError(t, err)
	assert.True(t, store.done)
	assert.Equal(t, 1, upserted.Count)

	stored, err := repo.GetCard(ctx, card.CardID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "u", stored.UserID)
}

func TestFeedRepository_DeleteByPosterAndPost(t *testing.T) {
	ctx := context.Background()
	repo := NewFeedRepository(memory.NewStore(), zap.NewNop())

	require.NoError(t, repo.PutFeedEntries(ctx, []*entities.FeedEntry{
		{FeedUserID: "f", PostID: "p1", PostedByUserID: "a", PostedAt: epoch},
		{FeedUserID: "f", PostID: "p2", PostedByUserID: "a", PostedAt: epoch.Add(time.Minute)},
		{FeedUserID: "f", PostID: "p3", PostedByUserID: "b", PostedAt: epoch.Add(2 * time.Minute)},
		{FeedUserID: "g", PostID: "p3", PostedByUserID: "b", PostedAt: epoch.Add(2 * time.Minute)},
	}))

	feed, _, err := repo.PageFeed(ctx, "f", 10, "")
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, "p3", feed[0].PostID)

	n, err := repo.DeleteFeedEntriesByPoster(ctx, "f", "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	owners, err := repo.DeleteFeedEntriesByPost(ctx, "p3")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f", "g"}, owners)

	feed, _, err = repo.PageFeed(ctx, "f", 10, "")
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestChatRepository_DirectChatOps(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	repo := NewChatRepository(kv, zap.NewNop())

	chat := &entities.Chat{ChatID: "c", ChatType: entities.ChatDirect, ParticipantIDs: []string{"a", "b"}, CreatedAt: epoch}
	ops, err := repo.DirectChatOps(chat, [2]*entities.ChatMember{
		{ChatID: "c", UserID: "a", JoinedAt: epoch},
		{ChatID: "c", UserID: "b", JoinedAt: epoch},
	})
	require.NoError(t, err)
	require.Len(t, ops, 4)
	require.NoError(t, kv.TransactWrite(ctx, ops))

	id, err := repo.DirectChatID(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, "c", id)

	members, err := repo.MemberIDs(ctx, "c")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	deleted, err := repo.DeleteChat(ctx, "c")
	require.NoError(t, err)
	require.NotNil(t, deleted)
	id, err = repo.DirectChatID(ctx, "a", "b")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func ptr[T any](v T) *T { return &v }

func postIDs(posts []*entities.Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.PostID
	}
	return ids
}
