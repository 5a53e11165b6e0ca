package entities

import (
	"fmt"
	"time"
)

// CardKind names the condition a card reports
type CardKind string

const (
	CardRequestedFollowers CardKind = "REQUESTED_FOLLOWERS"
	CardCommentActivity    CardKind = "COMMENT_ACTIVITY"
	CardChatActivity       CardKind = "CHAT_ACTIVITY"
)

// Card is a pending in-app notice. Its id is derived from the triggering condition so
// repeated triggers bump one card instead of creating duplicates.
type Card struct {
	CardID    string    `json:"cardId"`
	UserID    string    `json:"userId"`
	Kind      CardKind  `json:"kind"`
	Title     string    `json:"title"`
	Action    string    `json:"action"`
	SubjectID string    `json:"subjectId,omitempty" dynamodbav:",omitempty"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RequestedFollowersCardID is the card listing pending follow requests for a user.
func RequestedFollowersCardID(userID string) string {
	return fmt.Sprintf("%s:%s", userID, CardRequestedFollowers)
}

// CommentActivityCardID is the card announcing unviewed comments on a post.
func CommentActivityCardID(postID string) string {
	return fmt.Sprintf("%s:%s", postID, CardCommentActivity)
}

// ChatActivityCardID is the card announcing chats with unviewed messages.
func ChatActivityCardID(userID string) string {
	return fmt.Sprintf("%s:%s", userID, CardChatActivity)
}
