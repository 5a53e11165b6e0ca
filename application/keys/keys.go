// Package keys defines the single-table layout: primary keys and view keys for every
// item kind the engine stores.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"socialcore/application/ports"
)

// TimeLayout is fixed-width so that lexical order equals time order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Sort key constants for singleton items.
const (
	SKProfile  = "PROFILE"
	SKMetadata = "METADATA"
	SKMarker   = "MARKER"
)

// Sort key prefixes for child items.
const (
	PrefixFollower   = "FOLLOWER#"
	PrefixBlocker    = "BLOCKER#"
	PrefixLike       = "LIKE#"
	PrefixView       = "VIEW#"
	PrefixFlag       = "FLAG#"
	PrefixFeed       = "FEED#"
	PrefixFirstStory = "FIRSTSTORY#"
	PrefixMember     = "MEMBER#"
)

// FormatTime renders a timestamp for use inside a key.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func UserPK(userID string) string          { return "USER#" + userID }
func PostPK(postID string) string          { return "POST#" + postID }
func AlbumPK(albumID string) string        { return "ALBUM#" + albumID }
func CommentPK(commentID string) string    { return "COMMENT#" + commentID }
func ChatPK(chatID string) string          { return "CHAT#" + chatID }
func MessagePK(messageID string) string    { return "MESSAGE#" + messageID }
func CardPK(cardID string) string          { return "CARD#" + cardID }
func ConnectionPK(connID string) string    { return "CONNECTION#" + connID }
func FlaggedPK(kind, itemID string) string { return kind + "#" + itemID }

func User(userID string) ports.Key {
	return ports.Key{PK: UserPK(userID), SK: SKProfile}
}

func Post(postID string) ports.Key {
	return ports.Key{PK: PostPK(postID), SK: SKMetadata}
}

func Album(albumID string) ports.Key {
	return ports.Key{PK: AlbumPK(albumID), SK: SKMetadata}
}

func Comment(commentID string) ports.Key {
	return ports.Key{PK: CommentPK(commentID), SK: SKMetadata}
}

func Chat(chatID string) ports.Key {
	return ports.Key{PK: ChatPK(chatID), SK: SKMetadata}
}

func Message(messageID string) ports.Key {
	return ports.Key{PK: MessagePK(messageID), SK: SKMetadata}
}

func Card(cardID string) ports.Key {
	return ports.Key{PK: CardPK(cardID), SK: SKMetadata}
}

func Connection(connID string) ports.Key {
	return ports.Key{PK: ConnectionPK(connID), SK: SKMetadata}
}

// Follow is keyed under the followed user so a user's followers share a partition.
func Follow(followerID, followedID string) ports.Key {
	return ports.Key{PK: UserPK(followedID), SK: PrefixFollower + followerID}
}

func Block(blockerID, blockedID string) ports.Key {
	return ports.Key{PK: UserPK(blockedID), SK: PrefixBlocker + blockerID}
}

func Like(postID, userID string) ports.Key {
	return ports.Key{PK: PostPK(postID), SK: PrefixLike + userID}
}

func View(postID, userID string) ports.Key {
	return ports.Key{PK: PostPK(postID), SK: PrefixView + userID}
}

func Flag(kind, itemID, userID string) ports.Key {
	return ports.Key{PK: FlaggedPK(kind, itemID), SK: PrefixFlag + userID}
}

func FeedEntry(postID, feedUserID string) ports.Key {
	return ports.Key{PK: PostPK(postID), SK: PrefixFeed + feedUserID}
}

func FirstStory(followerID, followedID string) ports.Key {
	return ports.Key{PK: UserPK(followedID), SK: PrefixFirstStory + followerID}
}

func ChatMember(chatID, userID string) ports.Key {
	return ports.Key{PK: ChatPK(chatID), SK: PrefixMember + userID}
}

// DirectChat indexes a direct chat by its unordered pair of participants.
func DirectChat(userA, userB string) ports.Key {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return ports.Key{PK: "DIRECTCHAT#" + strings.Join(pair, "#"), SK: SKMetadata}
}

// AppliedMarker records that an idempotent counter adjustment already happened.
func AppliedMarker(token string, key ports.Key, counter string) ports.Key {
	sum := sha256.Sum256([]byte(token + "|" + key.String() + "|" + counter))
	return ports.Key{PK: "APPLIED#" + hex.EncodeToString(sum[:]), SK: SKMarker}
}

// Lock is the lease item guarding a singleton job.
func Lock(resource string) ports.Key {
	return ports.Key{PK: "LOCK#" + resource, SK: "LOCK"}
}

func RateWindow(subject string, window int64) ports.Key {
	return ports.Key{PK: "RATELIMIT#" + subject + "#" + strconv.FormatInt(window, 10), SK: SKMetadata}
}

// View partition keys.
func FollowersView(followedID string) string          { return "FOLLOWERS#" + followedID }
func FollowedView(followerID string) string           { return "FOLLOWED#" + followerID }
func BlockedView(blockerID string) string             { return "BLOCKED#" + blockerID }
func PostsView(userID string) string                  { return "POSTS#" + userID }
func StoriesView(userID string) string                { return "STORIES#" + userID }
func AlbumMembersView(albumID string) string          { return "ALBUM#" + albumID }
func AlbumsView(userID string) string                 { return "ALBUMS#" + userID }
func LikerView(userID string) string                  { return "LIKER#" + userID }
func CommentsView(postID string) string               { return "COMMENTS#" + postID }
func FeedView(userID string) string                   { return "FEED#" + userID }
func FeedByPosterView(userID, posterID string) string { return "FEED#" + userID + "#" + posterID }
func FirstStoriesView(followerID string) string       { return "FIRSTSTORIES#" + followerID }
func MembershipsView(userID string) string            { return "MEMBER#" + userID }
func MessagesView(chatID string) string               { return "MESSAGES#" + chatID }
func CardsView(userID string) string                  { return "CARDS#" + userID }
func ConnectionsView(userID string) string            { return "CONNECTIONS#" + userID }

// StatusSortKey prefixes a timestamp with a status so a view can be filtered by status
// with begins_with and still be ordered by time.
func StatusSortKey(status string, t time.Time) string {
	return status + "#" + FormatTime(t)
}

// StorySortKey orders story candidates by expiry with the post id as tie-break.
func StorySortKey(expiresAt time.Time, postID string) string {
	return FormatTime(expiresAt) + "#" + postID
}

// StorySortKeyCeiling sorts after every StorySortKey expiring at or before t.
func StorySortKeyCeiling(t time.Time) string {
	return FormatTime(t) + "#~"
}
