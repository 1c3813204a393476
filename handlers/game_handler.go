package handlers

import (
	"net/http"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/services"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	gameService     *services.GameService
	questionService *services.QuestionService
	sessionService  *services.SessionService
	lobbyService    *services.LobbyService
}

func NewGameHandler(
	gameService *services.GameService,
	questionService *services.QuestionService,
	sessionService *services.SessionService,
	lobbyService *services.LobbyService,
) *GameHandler {
	return &GameHandler{
		gameService:     gameService,
		questionService: questionService,
		sessionService:  sessionService,
		lobbyService:    lobbyService,
	}
}

func (h *GameHandler) CreateGame(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateGameRequest
	if !bindJSON(c, &req, gameNameMessages, "") {
		return
	}

	game, err := h.gameService.CreateGame(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, game)
}

// ListGames is the lobby: waiting games the caller does not host.
func (h *GameHandler) ListGames(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	games, err := h.lobbyService.ListPublicGames(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, games)
}

func (h *GameHandler) GetMyGames(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	games, err := h.gameService.GetMyGames(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, games)
}

func (h *GameHandler) GetGame(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	game, err := h.gameService.GetGameDetail(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) RenameGame(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.RenameGameRequest
	if !bindJSON(c, &req, gameNameMessages, "") {
		return
	}

	game, err := h.gameService.RenameGame(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) DeleteGame(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.sessionService.DeleteGame(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Game deleted successfully"})
}

// StartGame refuses to start a game whose question set is incomplete.
func (h *GameHandler) StartGame(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	gameID := c.Param("id")

	if err := h.questionService.CheckStartable(c.Request.Context(), gameID, userID); err != nil {
		respondError(c, err)
		return
	}

	game, err := h.sessionService.Start(c.Request.Context(), gameID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Game started successfully", "game": game})
}

func (h *GameHandler) EndGame(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	game, err := h.sessionService.End(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Game ended successfully", "game": game})
}

func (h *GameHandler) GetStatus(c *gin.Context) {
	status, err := h.lobbyService.GetGameStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *GameHandler) GetLeaderboard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	board, err := h.lobbyService.GetLeaderboard(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, board)
}
