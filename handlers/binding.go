package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindMessages maps struct field and validation tag to a client message.
type bindMessages map[string]map[string]string

func bindJSON(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, messages, fallback)})
		return false
	}
	return true
}

func resolveBindError(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return msg
				}
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "invalid request"
}

var (
	registerMessages = bindMessages{
		"Username": {"required": "username is required", "min": "username must be at least 3 characters", "max": "username is too long"},
		"Email":    {"required": "email is required", "email": "email is invalid"},
		"Password": {"required": "password is required", "min": "password must be at least 6 characters", "max": "password is too long"},
	}
	loginMessages = bindMessages{
		"Username": {"required": "username is required"},
		"Password": {"required": "password is required"},
	}
	gameNameMessages = bindMessages{
		"Name": {"required": "game name is required", "max": "game name is too long"},
	}
	questionMessages = bindMessages{
		"Text":        {"required": "text is required", "min": "text is required", "max": "text is too long"},
		"Explanation": {"max": "explanation is too long"},
		"Options":     {"max": "a question can have at most 6 options"},
	}
	answerMessages = bindMessages{
		"QuestionID": {"required": "question_id is required"},
		"OptionID":   {"required": "option_id is required"},
	}
)
