package services

import (
	"context"
	"strings"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/bus"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/store"

	"go.opentelemetry.io/otel/attribute"
)

// GameService owns game records outside of a running session: creation,
// renaming and the host's views of their games.
type GameService struct {
	store store.Store
	bus   bus.Publisher
}

func NewGameService(st store.Store, pub bus.Publisher) *GameService {
	return &GameService{
		store: st,
		bus:   pub,
	}
}

type CreateGameRequest struct {
	Name string `json:"name" binding:"required,min=1,max=120"`
}

type RenameGameRequest struct {
	Name string `json:"name" binding:"required,min=1,max=120"`
}

func (s *GameService) CreateGame(ctx context.Context, hostID string, req *CreateGameRequest) (*models.Game, error) {
	ctx, span := startSpan(ctx, "GameService.CreateGame", attribute.String("mcq.user_id", hostID))
	game, err := s.createGame(ctx, hostID, req)
	endSpan(span, err)
	return game, err
}

func (s *GameService) createGame(ctx context.Context, hostID string, req *CreateGameRequest) (*models.Game, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("game name is required")
	}
	host, err := s.store.GetUser(ctx, hostID)
	if err != nil {
		return nil, storeError(err, "user not found")
	}

	game := &models.Game{
		Name:   name,
		HostID: host.ID,
		Status: models.GameWaiting,
	}
	if err := s.store.CreateGame(ctx, game); err != nil {
		return nil, apperrors.Internal(err)
	}
	game.Host = *host

	notify(ctx, s.bus, bus.GlobalTopic, bus.EventNewGame, map[string]interface{}{
		"id":        game.ID,
		"name":      game.Name,
		"creator":   host.Username,
		"status":    game.Status,
		"createdAt": game.CreatedAt,
	})
	return game, nil
}

func (s *GameService) RenameGame(ctx context.Context, gameID, userID string, req *RenameGameRequest) (*models.Game, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("game name is required")
	}
	if _, err := getHostedGame(ctx, s.store, gameID, userID, "rename the game"); err != nil {
		return nil, err
	}

	game, err := s.store.RenameGame(ctx, gameID, name)
	if err != nil {
		return nil, storeError(err, "game not found")
	}

	notify(ctx, s.bus, bus.GlobalTopic, bus.EventGameNameUpdated, map[string]interface{}{
		"gameId":  game.ID,
		"newName": game.Name,
	})
	return game, nil
}

// GetMyGames returns the games hosted by userID, newest first, each with
// its players, questions and answers.
func (s *GameService) GetMyGames(ctx context.Context, userID string) ([]models.Game, error) {
	games, err := s.store.ListGamesByHost(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	for i := range games {
		if err := s.loadRelations(ctx, &games[i]); err != nil {
			return nil, err
		}
	}
	return games, nil
}

// GetGameDetail is the host's full view of a game, including which option
// of each question is correct.
func (s *GameService) GetGameDetail(ctx context.Context, gameID, userID string) (*models.Game, error) {
	game, err := getHostedGame(ctx, s.store, gameID, userID, "view game details")
	if err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, game); err != nil {
		return nil, err
	}
	return game, nil
}

func (s *GameService) loadRelations(ctx context.Context, game *models.Game) error {
	questions, err := s.store.ListQuestions(ctx, game.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	players, err := s.store.ListPlayers(ctx, game.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	answers, err := s.store.ListAnswers(ctx, game.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	game.Questions = questions
	game.Players = players
	game.Answers = answers
	return nil
}
