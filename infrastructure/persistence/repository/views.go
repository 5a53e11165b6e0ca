package repository

import (
	"context"
	"fmt"
	"time"

	"socialcore/application/keys"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"

	"go.uber.org/zap"
)

type feedItem struct {
	tableKeys
	entities.FeedEntry
}

// FeedRepository stores feed entries in the post's partition so a post can be pulled
// from every feed with one query. Feeds are read through GSI1, and GSI2 groups a feed's
// entries by poster.
type FeedRepository struct {
	store
}

func NewFeedRepository(kv ports.KeyValueStore, logger *zap.Logger) *FeedRepository {
	return &FeedRepository{store{kv: kv, logger: logger}}
}

func (r *FeedRepository) PutFeedEntries(ctx context.Context, entries []*entities.FeedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	items := make([]ports.Item, 0, len(entries))
	for _, e := range entries {
		fi := feedItem{tableKeys: primary(keys.FeedEntry(e.PostID, e.FeedUserID), kindFeedEntry), FeedEntry: *e}
		fi.GSI1PK = keys.FeedView(e.FeedUserID)
		fi.GSI1SK = keys.FormatTime(e.PostedAt)
		fi.GSI2PK = keys.FeedByPosterView(e.FeedUserID, e.PostedByUserID)
		fi.GSI2SK = keys.FormatTime(e.PostedAt)
		item, err := marshalItem(fi)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	if err := r.kv.BatchPut(ctx, items); err != nil {
		return fmt.Errorf("failed to put %d feed entries: %w", len(items), err)
	}
	return nil
}

func (r *FeedRepository) DeleteFeedEntriesByPoster(ctx context.Context, feedUserID, posterID string) (int, error) {
	removed, err := r.removeAll(ctx, ports.Query{
		Index:        ports.IndexGSI2,
		PartitionKey: keys.FeedByPosterView(feedUserID, posterID),
	})
	return len(removed), err
}

func (r *FeedRepository) DeleteFeedEntriesByPost(ctx context.Context, postID string) ([]string, error) {
	removed, err := r.removeAll(ctx, ports.Query{
		PartitionKey: keys.PostPK(postID),
		SortKey:      ports.BeginsWith(keys.PrefixFeed),
	})
	if err != nil {
		return nil, err
	}
	entries, err := decodeAll[entities.FeedEntry](removed)
	if err != nil {
		return nil, err
	}
	owners := make([]string, len(entries))
	for i, e := range entries {
		owners[i] = e.FeedUserID
	}
	return owners, nil
}

// PageFeed lists a user's feed, newest first.
func (r *FeedRepository) PageFeed(ctx context.Context, userID string, limit int, cursor string) ([]*entities.FeedEntry, string, error) {
	return page[entities.FeedEntry](ctx, r.store, ports.Query{
		Index:        ports.IndexGSI1,
		PartitionKey: keys.FeedView(userID),
		Descending:   true,
		Limit:        limit,
		Cursor:       cursor,
	})
}

type firstStoryItem struct {
	tableKeys
	entities.FirstStory
}

// FirstStoryRepository stores first-story pointers in the followed user's partition and
// lists them per follower by expiry.
type FirstStoryRepository struct {
	store
}

func NewFirstStoryRepository(kv ports.KeyValueStore, logger *zap.Logger) *FirstStoryRepository {
	return &FirstStoryRepository{store{kv: kv, logger: logger}}
}

func (r *FirstStoryRepository) PutFirstStories(ctx context.Context, stories []*entities.FirstStory) error {
	if len(stories) == 0 {
		return nil
	}
	items := make([]ports.Item, 0, len(stories))
	for _, s := range stories {
		fi := firstStoryItem{tableKeys: primary(keys.FirstStory(s.FollowerUserID, s.FollowedUserID), kindFirstStory), FirstStory: *s}
		fi.GSI1PK = keys.FirstStoriesView(s.FollowerUserID)
		fi.GSI1SK = keys.StorySortKey(s.ExpiresAt, s.PostID)
		item, err := marshalItem(fi)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	if err := r.kv.BatchPut(ctx, items); err != nil {
		return fmt.Errorf("failed to put %d first stories: %w", len(items), err)
	}
	return nil
}

func (r *FirstStoryRepository) DeleteFirstStories(ctx context.Context, followedID string, followerIDs []string) error {
	if len(followerIDs) == 0 {
		return nil
	}
	ks := make([]ports.Key, len(followerIDs))
	for i, id := range followerIDs {
		ks[i] = keys.FirstStory(id, followedID)
	}
	if err := r.kv.BatchDelete(ctx, ks); err != nil {
		return fmt.Errorf("failed to delete %d first stories: %w", len(ks), err)
	}
	return nil
}

func (r *FirstStoryRepository) GetFirstStory(ctx context.Context, followerID, followedID string) (*entities.FirstStory, error) {
	item, err := r.get(ctx, keys.FirstStory(followerID, followedID))
	if err != nil {
		return nil, err
	}
	return decode[entities.FirstStory](item)
}

// FirstStoriesFor lists a follower's pointers, earliest expiry first.
func (r *FirstStoryRepository) FirstStoriesFor(ctx context.Context, followerID string) ([]*entities.FirstStory, error) {
	items, err := r.queryAll(ctx, ports.Query{
		Index:        ports.IndexGSI1,
		PartitionKey: keys.FirstStoriesView(followerID),
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.FirstStory](items)
}

type connectionItem struct {
	tableKeys
	entities.Connection
}

// ConnectionRepository stores websocket connections. Items carry a TTL so connections
// that never disconnected cleanly age out.
type ConnectionRepository struct {
	store
}

func NewConnectionRepository(kv ports.KeyValueStore, logger *zap.Logger) *ConnectionRepository {
	return &ConnectionRepository{store{kv: kv, logger: logger}}
}

func (r *ConnectionRepository) PutConnection(ctx context.Context, conn *entities.Connection, ttl time.Duration) error {
	ci := connectionItem{tableKeys: primary(keys.Connection(conn.ConnectionID), kindConnection), Connection: *conn}
	ci.GSI1PK = keys.ConnectionsView(conn.UserID)
	ci.GSI1SK = keys.FormatTime(conn.ConnectedAt)
	if ttl > 0 {
		ci.TTL = conn.ConnectedAt.Add(ttl).Unix()
	}
	item, err := marshalItem(ci)
	if err != nil {
		return err
	}
	if err := r.kv.Put(ctx, item, nil); err != nil {
		return fmt.Errorf("failed to store connection %s: %w", conn.ConnectionID, err)
	}
	return nil
}

func (r *ConnectionRepository) DeleteConnection(ctx context.Context, connectionID string) (*entities.Connection, error) {
	item, err := r.remove(ctx, keys.Connection(connectionID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Connection](item)
}

func (r *ConnectionRepository) ConnectionsForUser(ctx context.Context, userID string) ([]*entities.Connection, error) {
	items, err := r.queryAll(ctx, ports.Query{
		Index:        ports.IndexGSI1,
		PartitionKey: keys.ConnectionsView(userID),
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Connection](items)
}
