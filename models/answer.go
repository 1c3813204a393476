package models

import (
	"time"

	"gorm.io/gorm"
)

// Answer is immutable once created; (user_id, question_id) is unique.
type Answer struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	GameID     string    `json:"game_id" gorm:"type:uuid;not null;index:idx_answers_user_game"`
	UserID     string    `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_answers_user_question;index:idx_answers_user_game"`
	QuestionID string    `json:"question_id" gorm:"type:uuid;not null;uniqueIndex:idx_answers_user_question"`
	OptionID   string    `json:"option_id" gorm:"type:uuid;not null"`
	IsCorrect  bool      `json:"is_correct" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	newID(&a.ID)
	return nil
}
