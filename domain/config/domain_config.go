package config

import "time"

// DomainConfig holds the engine's business rules and limits
type DomainConfig struct {
	// Moderation
	FlagThresholdRatio float64

	// Idempotency markers expire after this long
	AppliedMarkerTTL time.Duration

	// Text limits
	MaxPostTextLength   int
	MaxCommentLength    int
	MaxMessageLength    int
	MaxChatNameLength   int
	MaxAlbumNameLength  int
	MaxGroupChatMembers int

	// Trending multipliers per engagement event
	TrendingLikeMultiplier float64
	TrendingViewMultiplier float64
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		FlagThresholdRatio: 0.1,
		AppliedMarkerTTL:   7 * 24 * time.Hour,

		MaxPostTextLength:   2000,
		MaxCommentLength:    1000,
		MaxMessageLength:    4000,
		MaxChatNameLength:   100,
		MaxAlbumNameLength:  100,
		MaxGroupChatMembers: 100,

		TrendingLikeMultiplier: 1,
		TrendingViewMultiplier: 1,
	}
}
