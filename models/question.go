package models

import (
	"time"

	"gorm.io/gorm"
)

// Question order within a game is creation order; there is no index column.
type Question struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	GameID      string    `json:"game_id" gorm:"type:uuid;index;not null"`
	Text        string    `json:"text" gorm:"not null"`
	Explanation string    `json:"explanation" gorm:"not null;default:''"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Options []Option `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	newID(&q.ID)
	return nil
}
