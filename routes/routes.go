package routes

import (
	"log"
	"net/http"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/bus"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/handlers"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/middleware"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Sockets are authenticated by token, not by cookie, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handlers struct {
	Auth     *handlers.AuthHandler
	Game     *handlers.GameHandler
	Question *handlers.QuestionHandler
	Request  *handlers.RequestHandler
	Player   *handlers.PlayerHandler
}

func SetupRoutes(
	router *gin.Engine,
	h Handlers,
	hub *services.Hub,
	authService *services.AuthService,
	lobbyService *services.LobbyService,
	membershipService *services.MembershipService,
) {
	requireAuth := middleware.AuthMiddleware(authService)

	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.GET("/profile", requireAuth, h.Auth.GetProfile)
		}

		// Status is the polling snapshot and needs no account.
		api.GET("/games/:id/status", h.Game.GetStatus)

		protected := api.Group("/")
		protected.Use(requireAuth)
		{
			games := protected.Group("/games")
			{
				games.GET("", h.Game.ListGames)
				games.POST("", h.Game.CreateGame)
				games.GET("/mine", h.Game.GetMyGames)
				games.GET("/:id", h.Game.GetGame)
				games.PATCH("/:id", h.Game.RenameGame)
				games.DELETE("/:id", h.Game.DeleteGame)
				games.POST("/:id/start", h.Game.StartGame)
				games.POST("/:id/end", h.Game.EndGame)
				games.GET("/:id/leaderboard", h.Game.GetLeaderboard)

				games.GET("/:id/questions", h.Question.ListQuestions)
				games.POST("/:id/questions", h.Question.CreateQuestion)

				games.GET("/:id/requests", h.Request.ListForGame)
				games.POST("/:id/requests", h.Request.RequestJoin)

				games.GET("/:id/play/first", h.Player.FirstQuestion)
				games.GET("/:id/play/next", h.Player.NextQuestion)
				games.POST("/:id/answers", h.Player.SubmitAnswer)
				games.POST("/:id/leave", h.Player.Leave)
			}

			questions := protected.Group("/questions")
			{
				questions.PATCH("/:id", h.Question.UpdateQuestion)
				questions.DELETE("/:id", h.Question.DeleteQuestion)
				questions.POST("/:id/options", h.Question.AddOption)
			}

			options := protected.Group("/options")
			{
				options.PATCH("/:id", h.Question.UpdateOption)
				options.DELETE("/:id", h.Question.DeleteOption)
			}

			requests := protected.Group("/requests")
			{
				requests.GET("/mine", h.Request.ListMine)
				requests.GET("/:id", h.Request.GetRequest)
				requests.POST("/:id/approve", h.Request.Approve)
				requests.POST("/:id/reject", h.Request.Reject)
				requests.DELETE("/:id", h.Request.Cancel)
			}
		}
	}

	// WebSocket endpoints. Each socket follows exactly one bus topic.
	ws := router.Group("/ws")
	ws.Use(requireAuth)
	{
		ws.GET("/games", func(c *gin.Context) {
			serveTopic(c, hub, bus.GlobalTopic)
		})

		ws.GET("/games/:id", func(c *gin.Context) {
			gameID := c.Param("id")
			if err := lobbyService.CanWatch(c.Request.Context(), gameID, c.GetString(middleware.UserIDKey)); err != nil {
				log.Printf("WebSocket access denied for game %s: %v", gameID, err)
				c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.PublicMessage(err)})
				return
			}
			serveTopic(c, hub, bus.GameTopic(gameID))
		})

		ws.GET("/requests/:id", func(c *gin.Context) {
			requestID := c.Param("id")
			if _, err := membershipService.GetRequest(c.Request.Context(), requestID, c.GetString(middleware.UserIDKey)); err != nil {
				log.Printf("WebSocket access denied for request %s: %v", requestID, err)
				c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.PublicMessage(err)})
				return
			}
			serveTopic(c, hub, bus.RequestTopic(requestID))
		})
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func serveTopic(c *gin.Context, hub *services.Hub, topic string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("WebSocket upgrade failed for %s: %v", topic, err)
		return
	}

	userID := c.GetString(middleware.UserIDKey)
	log.Printf("WebSocket connection established for %s, user %s", topic, userID)
	hub.RegisterClient(c.Request.Context(), conn, topic, userID, c.GetString(middleware.UsernameKey))
}
