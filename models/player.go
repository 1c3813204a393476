package models

import (
	"time"

	"gorm.io/gorm"
)

// Player is an approved participant. Score only moves through atomic increments.
type Player struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	GameID    string    `json:"game_id" gorm:"type:uuid;not null;uniqueIndex:idx_players_user_game"`
	UserID    string    `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_players_user_game"`
	Score     int       `json:"score" gorm:"not null;default:0"`
	JoinedAt  time.Time `json:"joined_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (p *Player) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}
