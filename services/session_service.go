package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/bus"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/store"

	"go.opentelemetry.io/otel/attribute"
)

const (
	EndReasonHost            = "ended-by-host"
	EndReasonPlayersFinished = "all-players-finished"
)

// SessionService coordinates a running game.
//
// It keeps no state of its own. A player's position is the number of
// answers they have recorded, so the next question is always
// questions[answered] over the game's questions in creation order. Status
// changes are compare-and-swap writes and answers rely on the store's
// (user, question) uniqueness, which keeps concurrent callers and multiple
// processes consistent without locks here.
type SessionService struct {
	store        store.Store
	bus          bus.Publisher
	autoComplete bool
	now          func() time.Time
}

func NewSessionService(st store.Store, pub bus.Publisher, autoComplete bool) *SessionService {
	return &SessionService{
		store:        st,
		bus:          pub,
		autoComplete: autoComplete,
		now:          time.Now,
	}
}

// GameQuestion is a question as players see it. Options never carry the
// correct flag.
type GameQuestion struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Position int          `json:"position"`
	Options  []GameOption `json:"options"`
}

type GameOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NextQuestion is the player's cursor. Question is nil once Done.
type NextQuestion struct {
	Done     bool          `json:"done"`
	Answered int           `json:"answered"`
	Total    int           `json:"total"`
	Question *GameQuestion `json:"question"`
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	OptionID   string `json:"option_id" binding:"required"`
}

type AnswerResult struct {
	IsCorrect   bool          `json:"is_correct"`
	NewScore    int           `json:"new_score"`
	Explanation string        `json:"explanation,omitempty"`
	Next        *NextQuestion `json:"next"`
}

func (s *SessionService) Start(ctx context.Context, gameID, userID string) (game *models.Game, err error) {
	ctx, span := startSpan(ctx, "SessionService.Start",
		attribute.String("mcq.game_id", gameID), attribute.String("mcq.user_id", userID))
	defer func() { endSpan(span, err) }()

	game, err = s.transition(ctx, gameID, userID, models.GameWaiting, models.GameStarted, "start the game")
	if err != nil {
		return nil, err
	}

	notify(ctx, s.bus, bus.GameTopic(game.ID), bus.EventGameStarted, map[string]interface{}{
		"gameId":    game.ID,
		"status":    game.Status,
		"startedAt": game.StartedAt,
	})
	return game, nil
}

func (s *SessionService) End(ctx context.Context, gameID, userID string) (game *models.Game, err error) {
	ctx, span := startSpan(ctx, "SessionService.End",
		attribute.String("mcq.game_id", gameID), attribute.String("mcq.user_id", userID))
	defer func() { endSpan(span, err) }()

	game, err = s.transition(ctx, gameID, userID, models.GameStarted, models.GameCompleted, "end the game")
	if err != nil {
		return nil, err
	}
	s.notifyEnded(ctx, game, EndReasonHost)
	return game, nil
}

func (s *SessionService) transition(ctx context.Context, gameID, userID, from, to, action string) (*models.Game, error) {
	game, err := getHostedGame(ctx, s.store, gameID, userID, action)
	if err != nil {
		return nil, err
	}
	if game.Status != from {
		return nil, apperrors.InvalidState("game is " + game.Status + ", expected " + from)
	}

	game, err = s.store.TransitionGame(ctx, gameID, from, to, s.now().UTC())
	switch {
	case errors.Is(err, store.ErrStatusMismatch):
		return nil, apperrors.InvalidState("game is no longer " + from)
	case err != nil:
		return nil, storeError(err, "game not found")
	}
	return game, nil
}

func (s *SessionService) notifyEnded(ctx context.Context, game *models.Game, reason string) {
	notify(ctx, s.bus, bus.GameTopic(game.ID), bus.EventGameEnded, map[string]interface{}{
		"gameId":  game.ID,
		"status":  game.Status,
		"endedAt": game.EndedAt,
		"reason":  reason,
	})
}

// GetNextQuestion serves the question at the player's current position.
// It is a pure read and safe to retry.
func (s *SessionService) GetNextQuestion(ctx context.Context, gameID, userID string) (next *NextQuestion, err error) {
	ctx, span := startSpan(ctx, "SessionService.GetNextQuestion",
		attribute.String("mcq.game_id", gameID), attribute.String("mcq.user_id", userID))
	defer func() { endSpan(span, err) }()

	game, err := getGame(ctx, s.store, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status != models.GameStarted {
		return nil, apperrors.InvalidState("game has not started")
	}
	if err := s.requirePlayer(ctx, gameID, userID); err != nil {
		return nil, err
	}
	return s.nextQuestion(ctx, gameID, userID)
}

// GetFirstQuestion is GetNextQuestion under the name clients use when
// entering a game.
func (s *SessionService) GetFirstQuestion(ctx context.Context, gameID, userID string) (*NextQuestion, error) {
	return s.GetNextQuestion(ctx, gameID, userID)
}

func (s *SessionService) requirePlayer(ctx context.Context, gameID, userID string) error {
	if _, err := s.store.GetPlayer(ctx, gameID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.Forbidden("you are not a player in this game")
		}
		return apperrors.Internal(err)
	}
	return nil
}

func (s *SessionService) nextQuestion(ctx context.Context, gameID, userID string) (*NextQuestion, error) {
	questions, err := s.store.ListQuestions(ctx, gameID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	answered, err := s.store.CountAnswers(ctx, gameID, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return cursorAt(questions, answered), nil
}

func cursorAt(questions []models.Question, answered int) *NextQuestion {
	next := &NextQuestion{Answered: answered, Total: len(questions)}
	if answered >= len(questions) {
		next.Done = true
		return next
	}

	q := questions[answered]
	gq := &GameQuestion{
		ID:       q.ID,
		Text:     q.Text,
		Position: answered + 1,
		Options:  make([]GameOption, 0, len(q.Options)),
	}
	for _, o := range q.Options {
		gq.Options = append(gq.Options, GameOption{ID: o.ID, Text: o.Text})
	}
	next.Question = gq
	return next
}

// SubmitAnswer records the player's answer to a question and returns the
// verdict, the new score and the next question.
//
// The answer insert and the score increment happen in one store
// transaction, so a failed call leaves no trace and a retried call for the
// same question gets Conflict.
func (s *SessionService) SubmitAnswer(ctx context.Context, gameID, userID string, req *SubmitAnswerRequest) (result *AnswerResult, err error) {
	ctx, span := startSpan(ctx, "SessionService.SubmitAnswer",
		attribute.String("mcq.game_id", gameID),
		attribute.String("mcq.user_id", userID),
		attribute.String("mcq.question_id", req.QuestionID))
	defer func() { endSpan(span, err) }()

	game, err := getGame(ctx, s.store, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status != models.GameStarted {
		return nil, apperrors.Forbidden("game is not accepting answers")
	}
	if err := s.requirePlayer(ctx, gameID, userID); err != nil {
		return nil, err
	}

	question, err := s.store.GetQuestion(ctx, req.QuestionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}
	if err != nil || question.GameID != gameID {
		return nil, apperrors.InvalidInput("question does not belong to this game")
	}
	option, err := s.store.GetOption(ctx, req.OptionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}
	if err != nil || option.QuestionID != question.ID {
		return nil, apperrors.InvalidInput("option does not belong to this question")
	}

	answer := &models.Answer{
		GameID:     gameID,
		UserID:     userID,
		QuestionID: question.ID,
		OptionID:   option.ID,
		IsCorrect:  option.IsCorrect,
	}
	score, err := s.store.RecordAnswer(ctx, answer)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, apperrors.Conflict("question already answered")
	case errors.Is(err, store.ErrNotFound):
		return nil, apperrors.Forbidden("you are not a player in this game")
	case err != nil:
		return nil, apperrors.Internal(err)
	}

	notify(ctx, s.bus, bus.GameTopic(gameID), bus.EventPlayerAnswered, map[string]interface{}{
		"userId":     userID,
		"questionId": question.ID,
		"isCorrect":  answer.IsCorrect,
		"newScore":   score,
	})

	result = &AnswerResult{
		IsCorrect:   answer.IsCorrect,
		NewScore:    score,
		Explanation: question.Explanation,
	}
	// The answer is committed; a failed read here must not turn the call
	// into an error. The client can poll for the next question instead.
	next, nextErr := s.nextQuestion(ctx, gameID, userID)
	if nextErr != nil {
		log.Printf("Failed to load next question for user %s in game %s: %v", userID, gameID, nextErr)
		return result, nil
	}
	result.Next = next

	if next.Done && s.autoComplete {
		s.completeIfFinished(ctx, gameID)
	}
	return result, nil
}

// completeIfFinished ends the game when every current player has answered
// every question. Losing the status race to the host or another finisher
// is not an error.
func (s *SessionService) completeIfFinished(ctx context.Context, gameID string) {
	questions, err := s.store.ListQuestions(ctx, gameID)
	if err != nil {
		log.Printf("Auto-complete check failed for game %s: %v", gameID, err)
		return
	}
	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		log.Printf("Auto-complete check failed for game %s: %v", gameID, err)
		return
	}
	if len(players) == 0 {
		return
	}
	counts, err := s.store.CountAnswersByUser(ctx, gameID)
	if err != nil {
		log.Printf("Auto-complete check failed for game %s: %v", gameID, err)
		return
	}
	for _, p := range players {
		if counts[p.UserID] < len(questions) {
			return
		}
	}

	game, err := s.store.TransitionGame(ctx, gameID, models.GameStarted, models.GameCompleted, s.now().UTC())
	if err != nil {
		if !errors.Is(err, store.ErrStatusMismatch) {
			log.Printf("Failed to auto-complete game %s: %v", gameID, err)
		}
		return
	}
	log.Printf("Game %s completed: all players finished", gameID)
	s.notifyEnded(ctx, game, EndReasonPlayersFinished)
}

// Leave removes a player from the game. The host cannot leave; only End
// terminates a game.
func (s *SessionService) Leave(ctx context.Context, gameID, userID string) (err error) {
	ctx, span := startSpan(ctx, "SessionService.Leave",
		attribute.String("mcq.game_id", gameID), attribute.String("mcq.user_id", userID))
	defer func() { endSpan(span, err) }()

	game, err := getGame(ctx, s.store, gameID)
	if err != nil {
		return err
	}
	if game.HostID == userID {
		return apperrors.Forbidden("the host cannot leave their own game")
	}
	if err := s.store.DeletePlayer(ctx, gameID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.Forbidden("you are not a player in this game")
		}
		return apperrors.Internal(err)
	}

	notify(ctx, s.bus, bus.GameTopic(gameID), bus.EventPlayerLeft, map[string]interface{}{
		"userId": userID,
		"gameId": gameID,
	})

	if s.autoComplete && game.Status == models.GameStarted {
		s.completeIfFinished(ctx, gameID)
	}
	return nil
}

// DeleteGame removes the game and everything that references it, then
// tells the lobby.
func (s *SessionService) DeleteGame(ctx context.Context, gameID, userID string) (err error) {
	ctx, span := startSpan(ctx, "SessionService.DeleteGame",
		attribute.String("mcq.game_id", gameID), attribute.String("mcq.user_id", userID))
	defer func() { endSpan(span, err) }()

	if _, err := getHostedGame(ctx, s.store, gameID, userID, "delete the game"); err != nil {
		return err
	}
	if err := s.store.DeleteGame(ctx, gameID); err != nil {
		return storeError(err, "game not found")
	}

	notify(ctx, s.bus, bus.GlobalTopic, bus.EventGameDeleted, map[string]interface{}{
		"gameId": gameID,
	})
	return nil
}
