package models

import (
	"time"

	"gorm.io/gorm"
)

type PlayerRequest struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	GameID    string    `json:"game_id" gorm:"type:uuid;not null;uniqueIndex:idx_player_requests_game_user"`
	UserID    string    `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_player_requests_game_user"`
	Status    string    `json:"status" gorm:"size:16;not null;default:'PENDING'"` // PENDING, APPROVED, REJECTED, CANCELLED
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Game Game `json:"game,omitempty" gorm:"foreignKey:GameID"`
}

func (r *PlayerRequest) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}
