package entities

import "time"

// FeedEntry is a denormalized copy of a post in one user's feed.
type FeedEntry struct {
	FeedUserID     string    `json:"feedUserId"`
	PostID         string    `json:"postId"`
	PostedByUserID string    `json:"postedByUserId"`
	PostedAt       time.Time `json:"postedAt"`
}

// FirstStory points a follower at the followed user's earliest-expiring story.
type FirstStory struct {
	FollowerUserID string    `json:"followerUserId"`
	FollowedUserID string    `json:"followedUserId"`
	PostID         string    `json:"postId"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Connection is a live websocket connection of a user.
type Connection struct {
	ConnectionID string    `json:"connectionId"`
	UserID       string    `json:"userId"`
	ConnectedAt  time.Time `json:"connectedAt"`
}
