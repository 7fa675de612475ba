package models

import "time"

// RouletteResult is a winner's claimed post-game award. The unique indexes
// guarantee an award value is handed out once per game and a participant
// claims at most one award.
type RouletteResult struct {
	ID            uint `json:"id" gorm:"primaryKey"`
	GameID        uint `json:"game_id" gorm:"not null;uniqueIndex:uq_roulette_game_award;uniqueIndex:uq_roulette_game_participant"`
	ParticipantID uint `json:"participant_id" gorm:"not null;uniqueIndex:uq_roulette_game_participant"`
	Award         int  `json:"award" gorm:"not null;uniqueIndex:uq_roulette_game_award"`

	ClaimedAt time.Time `json:"claimed_at"`

	// Relationships
	Game        Game            `json:"game,omitempty"`
	Participant GameParticipant `json:"participant,omitempty" gorm:"foreignKey:ParticipantID"`
}
