package models

import (
	"time"

	"gorm.io/gorm"
)

type Game struct {
	ID        string     `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string     `json:"name" gorm:"size:120;not null"`
	HostID    string     `json:"host_id" gorm:"type:uuid;index;not null"`
	Status    string     `json:"status" gorm:"size:16;index;not null;default:'WAITING'"` // WAITING, STARTED, COMPLETED
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Relationships
	Host      User       `json:"host,omitempty" gorm:"foreignKey:HostID"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:GameID"`
	Players   []Player   `json:"players,omitempty" gorm:"foreignKey:GameID"`
	Answers   []Answer   `json:"answers,omitempty" gorm:"foreignKey:GameID"`
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	newID(&g.ID)
	return nil
}
