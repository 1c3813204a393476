package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/store"
)

// QuestionService authors a game's question set. Every mutation requires
// the host and a WAITING game, so the sequence cannot shift under players
// once the session has started.
type QuestionService struct {
	store store.Store
}

func NewQuestionService(st store.Store) *QuestionService {
	return &QuestionService{store: st}
}

type CreateQuestionRequest struct {
	Text        string                `json:"text" binding:"required,max=1000"`
	Explanation string                `json:"explanation" binding:"max=2000"`
	Options     []CreateOptionRequest `json:"options" binding:"omitempty,max=6,dive"`
}

type CreateOptionRequest struct {
	Text      string `json:"text" binding:"required,max=500"`
	IsCorrect bool   `json:"is_correct"`
}

type UpdateQuestionRequest struct {
	Text        *string `json:"text" binding:"omitempty,min=1,max=1000"`
	Explanation *string `json:"explanation" binding:"omitempty,max=2000"`
}

type UpdateOptionRequest struct {
	Text      *string `json:"text" binding:"omitempty,min=1,max=500"`
	IsCorrect *bool   `json:"is_correct"`
}

func (s *QuestionService) editableGame(ctx context.Context, gameID, userID string) (*models.Game, error) {
	game, err := getHostedGame(ctx, s.store, gameID, userID, "edit questions")
	if err != nil {
		return nil, err
	}
	if game.Status != models.GameWaiting {
		return nil, apperrors.InvalidState("questions can only be edited while the game is waiting")
	}
	return game, nil
}

func (s *QuestionService) editableQuestion(ctx context.Context, questionID, userID string) (*models.Question, error) {
	question, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, storeError(err, "question not found")
	}
	if _, err := s.editableGame(ctx, question.GameID, userID); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuestionService) editableOption(ctx context.Context, optionID, userID string) (*models.Option, error) {
	option, err := s.store.GetOption(ctx, optionID)
	if err != nil {
		return nil, storeError(err, "option not found")
	}
	if _, err := s.editableQuestion(ctx, option.QuestionID, userID); err != nil {
		return nil, err
	}
	return option, nil
}

func (s *QuestionService) CreateQuestion(ctx context.Context, gameID, userID string, req *CreateQuestionRequest) (*models.Question, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperrors.InvalidInput("question text is required")
	}
	for _, o := range req.Options {
		if strings.TrimSpace(o.Text) == "" {
			return nil, apperrors.InvalidInput("option text is required")
		}
	}
	if _, err := s.editableGame(ctx, gameID, userID); err != nil {
		return nil, err
	}

	question := &models.Question{
		GameID:      gameID,
		Text:        text,
		Explanation: strings.TrimSpace(req.Explanation),
	}
	if err := s.store.CreateQuestion(ctx, question); err != nil {
		return nil, apperrors.Internal(err)
	}

	for _, o := range req.Options {
		option := models.Option{
			QuestionID: question.ID,
			Text:       strings.TrimSpace(o.Text),
			IsCorrect:  o.IsCorrect,
		}
		if err := s.store.CreateOption(ctx, &option); err != nil {
			// Options are written one at a time; drop the half-built question.
			_ = s.store.DeleteQuestion(ctx, question.ID)
			return nil, apperrors.Internal(err)
		}
		question.Options = append(question.Options, option)
	}
	return question, nil
}

// ListQuestions returns the host's view of the question set, including
// which options are correct.
func (s *QuestionService) ListQuestions(ctx context.Context, gameID, userID string) ([]models.Question, error) {
	if _, err := getHostedGame(ctx, s.store, gameID, userID, "view questions"); err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, gameID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return questions, nil
}

func (s *QuestionService) UpdateQuestion(ctx context.Context, questionID, userID string, req *UpdateQuestionRequest) (*models.Question, error) {
	question, err := s.editableQuestion(ctx, questionID, userID)
	if err != nil {
		return nil, err
	}
	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		if text == "" {
			return nil, apperrors.InvalidInput("question text is required")
		}
		question.Text = text
	}
	if req.Explanation != nil {
		question.Explanation = strings.TrimSpace(*req.Explanation)
	}
	if err := s.store.UpdateQuestion(ctx, question); err != nil {
		return nil, storeError(err, "question not found")
	}
	return question, nil
}

func (s *QuestionService) DeleteQuestion(ctx context.Context, questionID, userID string) error {
	if _, err := s.editableQuestion(ctx, questionID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, questionID); err != nil {
		return storeError(err, "question not found")
	}
	return nil
}

func (s *QuestionService) AddOption(ctx context.Context, questionID, userID string, req *CreateOptionRequest) (*models.Option, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperrors.InvalidInput("option text is required")
	}
	if _, err := s.editableQuestion(ctx, questionID, userID); err != nil {
		return nil, err
	}

	option := &models.Option{QuestionID: questionID, Text: text, IsCorrect: req.IsCorrect}
	if err := s.store.CreateOption(ctx, option); err != nil {
		return nil, apperrors.Internal(err)
	}
	return option, nil
}

func (s *QuestionService) UpdateOption(ctx context.Context, optionID, userID string, req *UpdateOptionRequest) (*models.Option, error) {
	option, err := s.editableOption(ctx, optionID, userID)
	if err != nil {
		return nil, err
	}
	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		if text == "" {
			return nil, apperrors.InvalidInput("option text is required")
		}
		option.Text = text
	}
	if req.IsCorrect != nil {
		option.IsCorrect = *req.IsCorrect
	}
	if err := s.store.UpdateOption(ctx, option); err != nil {
		return nil, storeError(err, "option not found")
	}
	return option, nil
}

func (s *QuestionService) DeleteOption(ctx context.Context, optionID, userID string) error {
	if _, err := s.editableOption(ctx, optionID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteOption(ctx, optionID); err != nil {
		return storeError(err, "option not found")
	}
	return nil
}

// CheckStartable runs ValidateForStart on behalf of the host. Other users
// get Forbidden before anything about the question set is revealed.
func (s *QuestionService) CheckStartable(ctx context.Context, gameID, userID string) error {
	if _, err := getHostedGame(ctx, s.store, gameID, userID, "start the game"); err != nil {
		return err
	}
	return s.ValidateForStart(ctx, gameID)
}

// ValidateForStart checks that the game has at least one question and that
// every question has two or more options with exactly one correct.
func (s *QuestionService) ValidateForStart(ctx context.Context, gameID string) error {
	questions, err := s.store.ListQuestions(ctx, gameID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if len(questions) == 0 {
		return apperrors.InvalidInput("game has no questions")
	}
	for i, q := range questions {
		if len(q.Options) < 2 {
			return apperrors.InvalidInput(fmt.Sprintf("question %d (%q) needs at least two options", i+1, q.Text))
		}
		correct := 0
		for _, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return apperrors.InvalidInput(fmt.Sprintf("question %d (%q) must have exactly one correct option", i+1, q.Text))
		}
	}
	return nil
}
