package models

import (
	"time"

	"gorm.io/gorm"
)

type Option struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	QuestionID string    `json:"question_id" gorm:"type:uuid;index;not null"`
	Text       string    `json:"text" gorm:"not null"`
	IsCorrect  bool      `json:"is_correct" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (o *Option) BeforeCreate(tx *gorm.DB) error {
	newID(&o.ID)
	return nil
}
