package entities

import (
	"strings"
	"time"

	"socialcore/domain/core/valueobjects"
	pkgerrors "socialcore/pkg/errors"
)

// Privacy controls whether follow requests need approval
type Privacy string

const (
	PrivacyPublic  Privacy = "PUBLIC"
	PrivacyPrivate Privacy = "PRIVATE"
)

// Counters maintained on the user aggregate.
const (
	UserFollowerCount                  = "FollowerCount"
	UserFollowedCount                  = "FollowedCount"
	UserFollowersRequestedCount        = "FollowersRequestedCount"
	UserPostCount                      = "PostCount"
	UserPostArchivedCount              = "PostArchivedCount"
	UserChatCount                      = "ChatCount"
	UserChatsWithUnviewedMessagesCount = "ChatsWithUnviewedMessagesCount"
)

// User is the profile aggregate. Counter fields are read-only snapshots of values
// maintained by the ledger.
type User struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Privacy  Privacy `json:"privacy"`

	FollowerCount                  int `json:"followerCount"`
	FollowedCount                  int `json:"followedCount"`
	FollowersRequestedCount        int `json:"followersRequestedCount"`
	PostCount                      int `json:"postCount"`
	PostArchivedCount              int `json:"postArchivedCount"`
	ChatCount                      int `json:"chatCount"`
	ChatsWithUnviewedMessagesCount int `json:"chatsWithUnviewedMessagesCount"`

	TrendingScore float64   `json:"trendingScore"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewUser creates a user with validated identity fields
func NewUser(userID, username string, privacy Privacy, now time.Time) (*User, error) {
	if err := valueobjects.ValidateID("userID", userID); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, pkgerrors.NewValidationError("username cannot be empty")
	}
	if privacy == "" {
		privacy = PrivacyPublic
	}
	if privacy != PrivacyPublic && privacy != PrivacyPrivate {
		return nil, pkgerrors.NewValidationError("privacy must be PUBLIC or PRIVATE")
	}
	return &User{
		UserID:    userID,
		Username:  username,
		Privacy:   privacy,
		CreatedAt: now,
	}, nil
}

// IsPrivate reports whether follows to this user start as requests.
func (u *User) IsPrivate() bool {
	return u != nil && u.Privacy == PrivacyPrivate
}
