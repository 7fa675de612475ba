package models

import "time"

type User struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	DisplayName string    `json:"display_name" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`

	// Relationships
	Participations []GameParticipant `json:"participations,omitempty" gorm:"foreignKey:UserID"`
	Cards          []Card            `json:"cards,omitempty" gorm:"foreignKey:UserID"`
}
