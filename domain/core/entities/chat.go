package entities

import "time"

type ChatType string

const (
	ChatDirect ChatType = "DIRECT"
	ChatGroup  ChatType = "GROUP"
)

// Counters maintained on chat aggregates.
const (
	ChatUserCount               = "UserCount"
	ChatMessagesCount           = "MessagesCount"
	ChatLastMessageActivityAt   = "LastMessageActivityAt"
	MemberMessagesUnviewedCount = "MessagesUnviewedCount"
	MessageFlagCount            = "FlagCount"
)

type Chat struct {
	ChatID                string     `json:"chatId"`
	ChatType              ChatType   `json:"chatType"`
	Name                  string     `json:"name,omitempty" dynamodbav:",omitempty"`
	CreatedByUserID       string     `json:"createdByUserId"`
	ParticipantIDs        []string   `json:"participantIds,omitempty" dynamodbav:",omitempty"`
	UserCount             int        `json:"userCount"`
	MessagesCount         int        `json:"messagesCount"`
	LastMessageActivityAt *time.Time `json:"lastMessageActivityAt,omitempty" dynamodbav:",omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// ChatMember is one user's membership of a chat.
type ChatMember struct {
	ChatID                string     `json:"chatId"`
	UserID                string     `json:"userId"`
	JoinedAt              time.Time  `json:"joinedAt"`
	MessagesUnviewedCount int        `json:"messagesUnviewedCount"`
	LastViewedAt          *time.Time `json:"lastViewedAt,omitempty" dynamodbav:",omitempty"`
}

func (m *ChatMember) ID() string { return m.ChatID + "#" + m.UserID }

type ChatMessage struct {
	MessageID    string    `json:"messageId"`
	ChatID       string    `json:"chatId"`
	AuthorUserID string    `json:"authorUserId"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
	FlagCount    int       `json:"flagCount"`
}
