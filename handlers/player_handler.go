package handlers

import (
	"net/http"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/services"

	"github.com/gin-gonic/gin"
)

// PlayerHandler serves a player's run through a started game.
type PlayerHandler struct {
	sessionService *services.SessionService
}

func NewPlayerHandler(sessionService *services.SessionService) *PlayerHandler {
	return &PlayerHandler{sessionService: sessionService}
}

func (h *PlayerHandler) FirstQuestion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	next, err := h.sessionService.GetFirstQuestion(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, next)
}

func (h *PlayerHandler) NextQuestion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	next, err := h.sessionService.GetNextQuestion(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, next)
}

func (h *PlayerHandler) SubmitAnswer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.SubmitAnswerRequest
	if !bindJSON(c, &req, answerMessages, "") {
		return
	}

	result, err := h.sessionService.SubmitAnswer(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *PlayerHandler) Leave(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.sessionService.Leave(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left the game"})
}
