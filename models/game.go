package models

import "time"

// Game lifecycle statuses.
const (
	StatusWaiting = "waiting"
	StatusRunning = "running"
	StatusEnded   = "ended"
)

type Game struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	ServerID uint   `json:"server_id" gorm:"not null;index"`
	Status   string `json:"status" gorm:"not null;default:'waiting'"` // waiting, running, ended

	// HostToken is the secret credential of the game's host. Never exposed
	// through public state endpoints.
	HostToken string `json:"-" gorm:"uniqueIndex;not null"`

	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`

	// AwardMin/AwardMax bound the roulette award pool. Both set or both null.
	AwardMin *int `json:"award_min"`
	AwardMax *int `json:"award_max"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Server       Server            `json:"server,omitempty"`
	Participants []GameParticipant `json:"participants,omitempty" gorm:"foreignKey:GameID"`
	Draws        []GameDraw        `json:"draws,omitempty" gorm:"foreignKey:GameID"`
	Cards        []Card            `json:"cards,omitempty" gorm:"foreignKey:GameID"`
}
