package handlers

import (
	"net/http"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/services"

	"github.com/gin-gonic/gin"
)

type QuestionHandler struct {
	questionService *services.QuestionService
}

func NewQuestionHandler(questionService *services.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateQuestionRequest
	if !bindJSON(c, &req, questionMessages, "invalid question") {
		return
	}

	question, err := h.questionService.CreateQuestion(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	questions, err := h.questionService.ListQuestions(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.UpdateQuestionRequest
	if !bindJSON(c, &req, questionMessages, "invalid question") {
		return
	}

	question, err := h.questionService.UpdateQuestion(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.questionService.DeleteQuestion(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

func (h *QuestionHandler) AddOption(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateOptionRequest
	if !bindJSON(c, &req, questionMessages, "invalid option") {
		return
	}

	option, err := h.questionService.AddOption(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, option)
}

func (h *QuestionHandler) UpdateOption(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.UpdateOptionRequest
	if !bindJSON(c, &req, questionMessages, "invalid option") {
		return
	}

	option, err := h.questionService.UpdateOption(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, option)
}

func (h *QuestionHandler) DeleteOption(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.questionService.DeleteOption(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Option deleted successfully"})
}
