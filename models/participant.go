package models

import "time"

// GameParticipant links a user to a game. The (game_id, display_name) unique
// index is the race guard for concurrent invite redemptions, and the
// (game_id, user_id) index keeps one participation per user per game.
type GameParticipant struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	GameID      uint   `json:"game_id" gorm:"not null;uniqueIndex:uq_participants_game_user;uniqueIndex:uq_participants_game_name"`
	UserID      uint   `json:"user_id" gorm:"not null;uniqueIndex:uq_participants_game_user"`
	DisplayName string `json:"display_name" gorm:"not null;uniqueIndex:uq_participants_game_name"`

	JoinedAt time.Time `json:"joined_at"`

	// WonAt is set exactly once by a successful bingo claim.
	WonAt *time.Time `json:"won_at"`
	// ReachedAt is set exactly once by a successful reach notification.
	ReachedAt *time.Time `json:"reached_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Game Game `json:"game,omitempty"`
	User User `json:"user,omitempty"`
}
