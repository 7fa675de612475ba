package models

import "time"

// CardInvite is the reusable join token for a game. One per game; many
// distinct players redeem the same token until it expires or the game ends.
type CardInvite struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	GameID    uint      `json:"game_id" gorm:"not null;uniqueIndex"`
	Token     string    `json:"token" gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Game Game `json:"game,omitempty"`
}
