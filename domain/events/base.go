package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// EntityType names an aggregate kind whose changes can be reacted to.
type EntityType string

const (
	EntityUser        EntityType = "USER"
	EntityFollow      EntityType = "FOLLOW"
	EntityBlock       EntityType = "BLOCK"
	EntityPost        EntityType = "POST"
	EntityAlbum       EntityType = "ALBUM"
	EntityLike        EntityType = "LIKE"
	EntityComment     EntityType = "COMMENT"
	EntityFlag        EntityType = "FLAG"
	EntityPostView    EntityType = "POST_VIEW"
	EntityChat        EntityType = "CHAT"
	EntityChatMember  EntityType = "CHAT_MEMBER"
	EntityChatMessage EntityType = "CHAT_MESSAGE"
	EntityCard        EntityType = "CARD"
)

// Transition is the kind of change an aggregate went through.
type Transition string

const (
	Added   Transition = "ADDED"
	Edited  Transition = "EDITED"
	Deleted Transition = "DELETED"
)

// TransitionFor derives the transition from the presence of the snapshots.
func TransitionFor[T any](old, new *T) Transition {
	switch {
	case old == nil && new != nil:
		return Added
	case old != nil && new == nil:
		return Deleted
	default:
		return Edited
	}
}

// Change describes one committed mutation. Old is nil for creations, New for deletions.
type Change struct {
	EntityType EntityType `json:"entity_type"`
	Transition Transition `json:"transition"`
	EntityID   string     `json:"entity_id"`
	Old        any        `json:"old"`
	New        any        `json:"new"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Token derives a deterministic idempotency token for one reactor's handling of the
// change. Replaying the same snapshots yields the same token.
func (c Change) Token(reactor string) string {
	oldJSON, _ := json.Marshal(c.Old)
	newJSON, _ := json.Marshal(c.New)

	h := sha256.New()
	for _, part := range [][]byte{
		[]byte(c.EntityType), []byte(c.Transition), []byte(c.EntityID),
		oldJSON, newJSON, []byte(reactor),
	} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// View names a denormalized view whose subscribers get notified when it changes.
type View string

const (
	ViewFeed       View = "FEED"
	ViewFirstStory View = "FIRST_STORY"
	ViewCard       View = "CARD"
	ViewChat       View = "CHAT"
	ViewFollowers  View = "FOLLOWERS"
	ViewAlbumOrder View = "ALBUM_ORDER"
)

// Notification tells a subscriber that one of their views changed.
type Notification struct {
	UserID     string    `json:"user_id"`
	View       View      `json:"view"`
	SubjectID  string    `json:"subject_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventType is the event-bus detail type for notifications.
const EventType = "view.changed"
