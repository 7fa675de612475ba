package models

import "time"

// Card is a participant's 5x5 bingo card. One per (game, user).
type Card struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	GameID   uint `json:"game_id" gorm:"not null;uniqueIndex:uq_cards_game_user"`
	UserID   uint `json:"user_id" gorm:"not null;uniqueIndex:uq_cards_game_user"`
	IssuedAt time.Time `json:"issued_at"`

	// Relationships
	Game  Game       `json:"game,omitempty"`
	User  User       `json:"user,omitempty"`
	Cells []CardCell `json:"cells,omitempty" gorm:"foreignKey:CardID"`
}

// CardCell is one cell of a card. Rows and columns are 0-4; the (2,2) cell is
// the free space and is always treated as marked.
type CardCell struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	CardID uint `json:"card_id" gorm:"not null;index;uniqueIndex:uq_card_cells_card_row_col"`
	Row    int  `json:"row" gorm:"not null;uniqueIndex:uq_card_cells_card_row_col"`
	Col    int  `json:"col" gorm:"not null;uniqueIndex:uq_card_cells_card_row_col"`
	Number int  `json:"number" gorm:"not null"`
}
