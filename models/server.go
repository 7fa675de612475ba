package models

import "time"

// Server is the group a game belongs to (e.g. one community or venue).
type Server struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Games []Game `json:"games,omitempty" gorm:"foreignKey:ServerID"`
}
