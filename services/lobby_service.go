package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/store"
)

// Lobby annotations of a game for the viewing user.
const (
	MembershipNone          = "none"
	MembershipPending       = "pending"
	MembershipApproved      = "approved"
	MembershipRejected      = "rejected"
	MembershipAlreadyPlayer = "alreadyPlayer"
)

// LobbyService builds read-only views. It never writes.
type LobbyService struct {
	store store.Store
}

func NewLobbyService(st store.Store) *LobbyService {
	return &LobbyService{store: st}
}

type LobbyGame struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Creator     string    `json:"creator"`
	CreatedAt   time.Time `json:"created_at"`
	PlayerCount int       `json:"player_count"`
	Membership  string    `json:"membership"`
	RequestID   string    `json:"request_id,omitempty"`
}

// GameStatus is safe to show to anyone: it has no scores and no question
// content.
type GameStatus struct {
	GameID  string       `json:"game_id"`
	Name    string       `json:"name"`
	Status  string       `json:"status"`
	Host    string       `json:"host"`
	Players []GamePlayer `json:"players"`
}

type GamePlayer struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Answered int    `json:"answered"`
}

type Leaderboard struct {
	GameID         string             `json:"game_id"`
	Status         string             `json:"status"`
	TotalQuestions int                `json:"total_questions"`
	Entries        []LeaderboardEntry `json:"entries"`
}

// ListPublicGames lists WAITING games not hosted by userID, annotated with
// userID's relation to each.
func (s *LobbyService) ListPublicGames(ctx context.Context, userID string) ([]LobbyGame, error) {
	games, err := s.store.ListGamesByStatus(ctx, models.GameWaiting)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	result := make([]LobbyGame, 0, len(games))
	for _, g := range games {
		if g.HostID == userID {
			continue
		}
		players, err := s.store.ListPlayers(ctx, g.ID)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		entry := LobbyGame{
			ID:          g.ID,
			Name:        g.Name,
			Status:      g.Status,
			Creator:     g.Host.Username,
			CreatedAt:   g.CreatedAt,
			PlayerCount: len(players),
			Membership:  MembershipNone,
		}
		for _, p := range players {
			if p.UserID == userID {
				entry.Membership = MembershipAlreadyPlayer
				break
			}
		}
		request, err := s.store.FindPlayerRequest(ctx, g.ID, userID)
		switch {
		case err == nil:
			entry.RequestID = request.ID
			if entry.Membership == MembershipNone {
				entry.Membership = strings.ToLower(request.Status)
			}
		case !errors.Is(err, store.ErrNotFound):
			return nil, apperrors.Internal(err)
		}
		result = append(result, entry)
	}
	return result, nil
}

// GetGameStatus is the unauthenticated polling snapshot.
func (s *LobbyService) GetGameStatus(ctx context.Context, gameID string) (*GameStatus, error) {
	game, err := getGame(ctx, s.store, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	status := &GameStatus{
		GameID:  game.ID,
		Name:    game.Name,
		Status:  game.Status,
		Host:    game.Host.Username,
		Players: make([]GamePlayer, 0, len(players)),
	}
	for _, p := range players {
		status.Players = append(status.Players, GamePlayer{
			UserID:   p.UserID,
			Username: p.User.Username,
			JoinedAt: p.JoinedAt,
		})
	}
	return status, nil
}

// GetLeaderboard ranks players by score, then username. Only the host and
// the game's players may see it.
func (s *LobbyService) GetLeaderboard(ctx context.Context, gameID, userID string) (*Leaderboard, error) {
	game, err := getGame(ctx, s.store, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if game.HostID != userID && !hasPlayer(players, userID) {
		return nil, apperrors.Forbidden("only the host and players can view the leaderboard")
	}
	questions, err := s.store.ListQuestions(ctx, gameID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	counts, err := s.store.CountAnswersByUser(ctx, gameID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	board := &Leaderboard{
		GameID:         game.ID,
		Status:         game.Status,
		TotalQuestions: len(questions),
		Entries:        make([]LeaderboardEntry, 0, len(players)),
	}
	for _, p := range players {
		board.Entries = append(board.Entries, LeaderboardEntry{
			UserID:   p.UserID,
			Username: p.User.Username,
			Score:    p.Score,
			Answered: counts[p.UserID],
		})
	}
	sort.SliceStable(board.Entries, func(i, j int) bool {
		a, b := board.Entries[i], board.Entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Username < b.Username
	})
	for i := range board.Entries {
		board.Entries[i].Rank = i + 1
	}
	return board, nil
}

// CanWatch reports whether userID may follow the live topic of a game: the
// host, its players, and anyone with a join request on it.
func (s *LobbyService) CanWatch(ctx context.Context, gameID, userID string) error {
	game, err := getGame(ctx, s.store, gameID)
	if err != nil {
		return err
	}
	if game.HostID == userID {
		return nil
	}
	if _, err := s.store.GetPlayer(ctx, gameID, userID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return apperrors.Internal(err)
	}
	if _, err := s.store.FindPlayerRequest(ctx, gameID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.Forbidden("not a member of this game")
		}
		return apperrors.Internal(err)
	}
	return nil
}

func hasPlayer(players []models.Player, userID string) bool {
	for _, p := range players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
