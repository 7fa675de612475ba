package models

import "time"

// GameDraw records one drawn number. The two unique indexes are the commit
// guards for concurrent draws: a number can be drawn once per game and a
// draw-order slot can be filled once per game.
type GameDraw struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	GameID    uint `json:"game_id" gorm:"not null;index;uniqueIndex:uq_draws_game_number;uniqueIndex:uq_draws_game_order"`
	Number    int  `json:"number" gorm:"not null;uniqueIndex:uq_draws_game_number"`
	DrawOrder int  `json:"draw_order" gorm:"not null;uniqueIndex:uq_draws_game_order"`

	DrawnAt time.Time `json:"drawn_at"`

	// Relationships
	Game Game `json:"game,omitempty"`
}
