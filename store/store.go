// Package store is the durable record store for games, questions, options,
// players, join requests and answers.
//
// Implementations must enforce the uniqueness constraints on Player
// (game_id, user_id), PlayerRequest (game_id, user_id) and Answer
// (user_id, question_id) at write time, apply status transitions as
// compare-and-swap writes, and apply score increments atomically.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
	ErrStatusMismatch = errors.New("status precondition failed")
)

type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	CreateGame(ctx context.Context, game *models.Game) error
	// GetGame loads the game with its Host.
	GetGame(ctx context.Context, id string) (*models.Game, error)
	// ListGamesByHost returns the host's games newest first.
	ListGamesByHost(ctx context.Context, hostID string) ([]models.Game, error)
	// ListGamesByStatus returns games in status newest first, each with its Host.
	ListGamesByStatus(ctx context.Context, status string) ([]models.Game, error)
	RenameGame(ctx context.Context, id, name string) (*models.Game, error)
	// TransitionGame moves a game from one status to another only if it is
	// currently in from. It returns ErrStatusMismatch otherwise.
	TransitionGame(ctx context.Context, id, from, to string, at time.Time) (*models.Game, error)
	// DeleteGame removes the game with its players, answers, requests,
	// questions and options in one transaction.
	DeleteGame(ctx context.Context, id string) error

	CreateQuestion(ctx context.Context, question *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	// ListQuestions returns the game's questions in creation order with
	// their options, also in creation order.
	ListQuestions(ctx context.Context, gameID string) ([]models.Question, error)
	UpdateQuestion(ctx context.Context, question *models.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	CreateOption(ctx context.Context, option *models.Option) error
	GetOption(ctx context.Context, id string) (*models.Option, error)
	UpdateOption(ctx context.Context, option *models.Option) error
	DeleteOption(ctx context.Context, id string) error

	CreatePlayerRequest(ctx context.Context, request *models.PlayerRequest) error
	GetPlayerRequest(ctx context.Context, id string) (*models.PlayerRequest, error)
	FindPlayerRequest(ctx context.Context, gameID, userID string) (*models.PlayerRequest, error)
	// ListPlayerRequestsByGame returns requests with their User loaded.
	ListPlayerRequestsByGame(ctx context.Context, gameID string) ([]models.PlayerRequest, error)
	// ListPlayerRequestsByUser returns requests with their Game loaded.
	ListPlayerRequestsByUser(ctx context.Context, userID string) ([]models.PlayerRequest, error)
	SetPlayerRequestStatus(ctx context.Context, id, from, to string) (*models.PlayerRequest, error)
	// ApprovePlayerRequest marks a PENDING or APPROVED request APPROVED and
	// inserts the Player if none exists for (game, user). The bool reports
	// whether a Player row was created.
	ApprovePlayerRequest(ctx context.Context, id string, joinedAt time.Time) (*models.Player, bool, error)
	// DeletePlayerRequest deletes the request only while it is in status.
	DeletePlayerRequest(ctx context.Context, id, status string) error

	GetPlayer(ctx context.Context, gameID, userID string) (*models.Player, error)
	// ListPlayers returns the game's players in join order with User loaded.
	ListPlayers(ctx context.Context, gameID string) ([]models.Player, error)
	DeletePlayer(ctx context.Context, gameID, userID string) error

	CountAnswers(ctx context.Context, gameID, userID string) (int, error)
	// CountAnswersByUser returns answered counts keyed by user id.
	CountAnswersByUser(ctx context.Context, gameID string) (map[string]int, error)
	ListAnswers(ctx context.Context, gameID string) ([]models.Answer, error)
	// RecordAnswer inserts the answer and, when it is correct, increments the
	// player's score by one in the same transaction. It returns the player's
	// score after the write, ErrDuplicate when the user already answered the
	// question and ErrNotFound when the player row is gone.
	RecordAnswer(ctx context.Context, answer *models.Answer) (int, error)
}
