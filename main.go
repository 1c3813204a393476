package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/bus"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/config"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/handlers"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/middleware"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/routes"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/services"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/store"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/telemetry"

	"github.com/gin-gonic/gin"
)

func main() {
	log.SetPrefix("[MCQ] ")

	// Load configuration
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal("Failed to load .env:", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		log.Fatal("Failed to set up tracing:", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("Failed to shut down tracing: %v", err)
		}
	}()

	// Initialize record store
	var st store.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Printf("Using in-memory store; data is lost on restart")
		st = store.NewMemoryStore()
	default:
		db, err := config.InitDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		if cfg.AutoMigrate {
			if err := config.Migrate(db); err != nil {
				log.Fatal("Failed to migrate database:", err)
			}
		}
		st = store.NewGormStore(db)
	}

	// Initialize Redis and the notification bus
	redisClient := config.InitRedis(cfg)
	defer redisClient.Close()
	eventBus := bus.NewRedisBus(redisClient, cfg.BusChannelPrefix)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start notification bus:", err)
	}
	defer eventBus.Close()

	// Initialize services
	authService := services.NewAuthService(st, cfg.JWTSecret, cfg.TokenTTL)
	gameService := services.NewGameService(st, eventBus)
	questionService := services.NewQuestionService(st)
	membershipService := services.NewMembershipService(st, eventBus)
	sessionService := services.NewSessionService(st, eventBus, cfg.AutoComplete)
	lobbyService := services.NewLobbyService(st)

	// Initialize WebSocket hub
	hub := services.NewHub(eventBus, lobbyService)
	go hub.Run(ctx)

	// Setup Gin router
	router := gin.Default()
	router.Use(middleware.CORS(cfg.CORSOrigin))

	routes.SetupRoutes(router, routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService),
		Game:     handlers.NewGameHandler(gameService, questionService, sessionService, lobbyService),
		Question: handlers.NewQuestionHandler(questionService),
		Request:  handlers.NewRequestHandler(membershipService),
		Player:   handlers.NewPlayerHandler(sessionService),
	}, hub, authService, lobbyService, membershipService)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
}
