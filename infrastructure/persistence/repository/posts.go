package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialcore/application/keys"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

type postItem struct {
	tableKeys
	entities.Post
}

// newPostItem projects a post into its views: every post is listed under its owner by
// status, story candidates under the owner's stories by expiry, and ranked album members
// under the album by rank.
func newPostItem(p *entities.Post) postItem {
	item := postItem{tableKeys: primary(keys.Post(p.PostID), kindPost), Post: *p}
	item.GSI1PK = keys.PostsView(p.PostedByUserID)
	item.GSI1SK = keys.StatusSortKey(string(p.Status), p.PostedAt)
	if p.IsStoryCandidate() {
		item.GSI2PK = keys.StoriesView(p.PostedByUserID)
		item.GSI2SK = keys.StorySortKey(*p.ExpiresAt, p.PostID)
	}
	if p.IsAlbumMember() && p.AlbumRank != nil {
		item.GSI3PK = keys.AlbumMembersView(p.AlbumID)
		rank := *p.AlbumRank
		item.GSI3SK = &rank
	}
	return item
}

// PostRepository stores posts and serves the views derived from them.
type PostRepository struct {
	store
}

func NewPostRepository(kv ports.KeyValueStore, logger *zap.Logger) *PostRepository {
	return &PostRepository{store{kv: kv, logger: logger}}
}

func (r *PostRepository) CreatePost(ctx context.Context, post *entities.Post) error {
	return r.create(ctx, newPostItem(post), func() error {
		return pkgerrors.NewAlreadyExistsError("post", post.PostID)
	})
}

func (r *PostRepository) GetPost(ctx context.Context, postID string) (*entities.Post, error) {
	item, err := r.get(ctx, keys.Post(postID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Post](item)
}

// UpdatePost rewrites the mutable attributes and view keys of a post. Counters are left
// to the ledger so concurrent adjustments are not overwritten.
func (r *PostRepository) UpdatePost(ctx context.Context, post *entities.Post) (*entities.Post, error) {
	next := newPostItem(post)
	upd := ports.Update{Set: map[string]any{
		"PostType": string(post.PostType),
		"Status":   string(post.Status),
		attrGSI1SK: next.GSI1SK,
	}}

	optional := []struct {
		name    string
		present bool
		value   any
	}{
		{"Text", post.Text != "", post.Text},
		{"AlbumID", post.AlbumID != "", post.AlbumID},
		{"AlbumRank", post.AlbumRank != nil, post.AlbumRank},
		{"ExpiresAt", post.ExpiresAt != nil, post.ExpiresAt},
		{attrGSI2PK, next.GSI2PK != "", next.GSI2PK},
		{attrGSI2SK, next.GSI2SK != "", next.GSI2SK},
		{attrGSI3PK, next.GSI3PK != "", next.GSI3PK},
		{attrGSI3SK, next.GSI3SK != nil, next.GSI3SK},
	}
	for _, attr := range optional {
		if attr.present {
			upd.Set[attr.name] = attr.value
		} else {
			upd.Remove = append(upd.Remove, attr.name)
		}
	}

	item, err := r.kv.Update(ctx, keys.Post(post.PostID), upd, ports.ItemExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return nil, pkgerrors.NewNotFoundError("post")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post %s: %w", post.PostID, err)
	}
	return decode[entities.Post](item)
}

func (r *PostRepository) DeletePost(ctx context.Context, postID string) (*entities.Post, error) {
	item, err := r.remove(ctx, keys.Post(postID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Post](item)
}

// PostsByUser lists a user's posts in the given status, oldest first.
func (r *PostRepository) PostsByUser(ctx context.Context, userID string, status entities.PostStatus) ([]*entities.Post, error) {
	items, err := r.queryAll(ctx, ports.Query{
		Index:        ports.IndexGSI1,
		PartitionKey: keys.PostsView(userID),
		SortKey:      ports.BeginsWith(string(status) + "#"),
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Post](items)
}

func (r *PostRepository) PagePosts(ctx context.Context, userID string, status entities.PostStatus, limit int, cursor string) ([]*entities.Post, string, error) {
	return page[entities.Post](ctx, r.store, ports.Query{
		Index:        ports.IndexGSI1,
		PartitionKey: keys.PostsView(userID),
		SortKey:      ports.BeginsWith(string(status) + "#"),
		Descending:   true,
		Limit:        limit,
		Cursor:       cursor,
	})
}

func (r *PostRepository) StoryCandidates(ctx context.Context, userID string, limit int) ([]*entities.Post, error) {
	q := ports.Query{
		Index:        ports.IndexGSI2,
		PartitionKey: keys.StoriesView(userID),
		Limit:        limit,
	}
	if limit > 0 {
		posts, _, err := page[entities.Post](ctx, r.store, q)
		return posts, err
	}
	items, err := r.queryAll(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Post](items)
}

func (r *PostRepository) AlbumMembers(ctx context.Context, albumID string) ([]*entities.Post, error) {
	items, err := r.queryAll(ctx, ports.Query{
		Index:        ports.IndexGSI3,
		PartitionKey: keys.AlbumMembersView(albumID),
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Post](items)
}

func (r *PostRepository) NextAlbumMember(ctx context.Context, albumID string, rank float64) (*entities.Post, error) {
	posts, _, err := page[entities.Post](ctx, r.store, ports.Query{
		Index:        ports.IndexGSI3,
		PartitionKey: keys.AlbumMembersView(albumID),
		SortKey:      ports.SortCompare(ports.SortGreaterThan, rank),
		Limit:        1,
	})
	if err != nil || len(posts) == 0 {
		return nil, err
	}
	return posts[0], nil
}

// ExpiredStories scans for story candidates whose expiry is not after now. Pages may be
// empty while the cursor is not; callers keep paging until the cursor is exhausted.
func (r *PostRepository) ExpiredStories(ctx context.Context, now time.Time, cursor string) ([]*entities.Post, string, error) {
	p, err := r.kv.Scan(ctx, ports.Scan{
		Filter: ports.And{
			ports.Equal(attrEntityType, kindPost),
			ports.AttributeExists{Name: attrGSI2SK},
			ports.Compare{Name: attrGSI2SK, Op: ports.OpLessThan, Value: keys.StorySortKeyCeiling(now)},
		},
		Limit:  scanPageSize,
		Cursor: cursor,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to scan for expired stories: %w", err)
	}
	posts, err := decodeAll[entities.Post](p.Items)
	if err != nil {
		return nil, "", err
	}
	return posts, p.Cursor, nil
}

const scanPageSize = 500

type albumItem struct {
	tableKeys
	entities.Album
}

// AlbumRepository stores albums.
type AlbumRepository struct {
	store
}

func NewAlbumRepository(kv ports.KeyValueStore, logger *zap.Logger) *AlbumRepository {
	return &AlbumRepository{store{kv: kv, logger: logger}}
}

func (r *AlbumRepository) CreateAlbum(ctx context.Context, album *entities.Album) error {
	item := albumItem{tableKeys: primary(keys.Album(album.AlbumID), kindAlbum), Album: *album}
	item.GSI1PK = keys.AlbumsView(album.OwnedByUserID)
	item.GSI1SK = keys.FormatTime(album.CreatedAt)
	return r.create(ctx, item, func() error {
		return pkgerrors.NewAlreadyExistsError("album", album.AlbumID)
	})
}

func (r *AlbumRepository) GetAlbum(ctx context.Context, albumID string) (*entities.Album, error) {
	item, err := r.get(ctx, keys.Album(albumID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Album](item)
}

func (r *AlbumRepository) DeleteAlbum(ctx context.Context, albumID string) (*entities.Album, error) {
	item, err := r.remove(ctx, keys.Album(albumID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Album](item)
}

func (r *AlbumRepository) AlbumsByOwner(ctx context.Context, userID string) ([]*entities.Album, error) {
	items, err := r.queryAll(ctx, ports.Query{
		Index:        ports.IndexGSI1,
		PartitionKey: keys.AlbumsView(userID),
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Album](items)
}
