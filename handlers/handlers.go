// Package handlers exposes the game services over HTTP.
package handlers

import (
	"log"
	"net/http"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/middleware"

	"github.com/gin-gonic/gin"
)

// respondError writes err with its mapped status. Internal causes are
// logged and replaced by a generic message.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": apperrors.PublicMessage(err), "code": apperrors.CodeOf(err)})
}

func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}
	return userID, true
}
