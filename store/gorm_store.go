package store

import (
	"context"
	"errors"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on PostgreSQL through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) CreateGame(ctx context.Context, game *models.Game) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(game).Error)
}

func (s *GormStore) GetGame(ctx context.Context, id string) (*models.Game, error) {
	var game models.Game
	if err := s.db.WithContext(ctx).Where("id = ?", id).
		Preload("Host").
		First(&game).Error; err != nil {
		return nil, translate(err)
	}
	return &game, nil
}

func (s *GormStore) ListGamesByHost(ctx context.Context, hostID string) ([]models.Game, error) {
	var games []models.Game
	err := s.db.WithContext(ctx).Where("host_id = ?", hostID).
		Preload("Host").
		Order("created_at DESC").
		Find(&games).Error
	return games, translate(err)
}

func (s *GormStore) ListGamesByStatus(ctx context.Context, status string) ([]models.Game, error) {
	var games []models.Game
	err := s.db.WithContext(ctx).Where("status = ?", status).
		Preload("Host").
		Order("created_at DESC").
		Find(&games).Error
	return games, translate(err)
}

func (s *GormStore) RenameGame(ctx context.Context, id, name string) (*models.Game, error) {
	res := s.db.WithContext(ctx).Model(&models.Game{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetGame(ctx, id)
}

func (s *GormStore) TransitionGame(ctx context.Context, id, from, to string, at time.Time) (*models.Game, error) {
	updates := map[string]interface{}{"status": to}
	switch to {
	case models.GameStarted:
		updates["started_at"] = at
	case models.GameCompleted:
		updates["ended_at"] = at
	}

	res := s.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetGame(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStatusMismatch
	}
	return s.GetGame(ctx, id)
}

func (s *GormStore) DeleteGame(ctx context.Context, id string) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&game).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", id).Delete(&models.Player{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", id).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", id).Delete(&models.PlayerRequest{}).Error; err != nil {
			return err
		}
		questionIDs := tx.Model(&models.Question{}).Select("id").Where("game_id = ?", id)
		if err := tx.Where("question_id IN (?)", questionIDs).Delete(&models.Option{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&game).Error
	}))
}

func (s *GormStore) CreateQuestion(ctx context.Context, question *models.Question) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(question).Error)
}

func (s *GormStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	var question models.Question
	if err := s.db.WithContext(ctx).Where("id = ?", id).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.created_at ASC, options.id ASC")
		}).
		First(&question).Error; err != nil {
		return nil, translate(err)
	}
	return &question, nil
}

func (s *GormStore) ListQuestions(ctx context.Context, gameID string) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).Where("game_id = ?", gameID).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.created_at ASC, options.id ASC")
		}).
		Order("created_at ASC, id ASC").
		Find(&questions).Error
	return questions, translate(err)
}

func (s *GormStore) UpdateQuestion(ctx context.Context, question *models.Question) error {
	res := s.db.WithContext(ctx).Model(&models.Question{}).Where("id = ?", question.ID).
		Updates(map[string]interface{}{"text": question.Text, "explanation": question.Explanation})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteQuestion(ctx context.Context, id string) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&models.Option{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Question{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	}))
}

func (s *GormStore) CreateOption(ctx context.Context, option *models.Option) error {
	return translate(s.db.WithContext(ctx).Create(option).Error)
}

func (s *GormStore) GetOption(ctx context.Context, id string) (*models.Option, error) {
	var option models.Option
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&option).Error; err != nil {
		return nil, translate(err)
	}
	return &option, nil
}

func (s *GormStore) UpdateOption(ctx context.Context, option *models.Option) error {
	res := s.db.WithContext(ctx).Model(&models.Option{}).Where("id = ?", option.ID).
		Updates(map[string]interface{}{"text": option.Text, "is_correct": option.IsCorrect})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteOption(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Option{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreatePlayerRequest(ctx context.Context, request *models.PlayerRequest) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(request).Error)
}

func (s *GormStore) GetPlayerRequest(ctx context.Context, id string) (*models.PlayerRequest, error) {
	var request models.PlayerRequest
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, translate(err)
	}
	return &request, nil
}

func (s *GormStore) FindPlayerRequest(ctx context.Context, gameID, userID string) (*models.PlayerRequest, error) {
	var request models.PlayerRequest
	if err := s.db.WithContext(ctx).Where("game_id = ? AND user_id = ?", gameID, userID).First(&request).Error; err != nil {
		return nil, translate(err)
	}
	return &request, nil
}

func (s *GormStore) ListPlayerRequestsByGame(ctx context.Context, gameID string) ([]models.PlayerRequest, error) {
	var requests []models.PlayerRequest
	err := s.db.WithContext(ctx).Where("game_id = ?", gameID).
		Preload("User").
		Order("created_at ASC").
		Find(&requests).Error
	return requests, translate(err)
}

func (s *GormStore) ListPlayerRequestsByUser(ctx context.Context, userID string) ([]models.PlayerRequest, error) {
	var requests []models.PlayerRequest
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Preload("Game").
		Order("created_at DESC").
		Find(&requests).Error
	return requests, translate(err)
}

func (s *GormStore) SetPlayerRequestStatus(ctx context.Context, id, from, to string) (*models.PlayerRequest, error) {
	res := s.db.WithContext(ctx).Model(&models.PlayerRequest{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetPlayerRequest(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStatusMismatch
	}
	return s.GetPlayerRequest(ctx, id)
}

func (s *GormStore) ApprovePlayerRequest(ctx context.Context, id string, joinedAt time.Time) (*models.Player, bool, error) {
	var (
		player  models.Player
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.PlayerRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&request).Error; err != nil {
			return err
		}
		if request.Status != models.RequestPending && request.Status != models.RequestApproved {
			return ErrStatusMismatch
		}
		if request.Status == models.RequestPending {
			if err := tx.Model(&request).Update("status", models.RequestApproved).Error; err != nil {
				return err
			}
		}

		player = models.Player{GameID: request.GameID, UserID: request.UserID, JoinedAt: joinedAt}
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&player)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		if !created {
			player = models.Player{}
			return tx.Where("game_id = ? AND user_id = ?", request.GameID, request.UserID).First(&player).Error
		}
		return nil
	})
	if err != nil {
		return nil, false, translate(err)
	}
	return &player, created, nil
}

func (s *GormStore) DeletePlayerRequest(ctx context.Context, id, status string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND status = ?", id, status).Delete(&models.PlayerRequest{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetPlayerRequest(ctx, id); err != nil {
			return err
		}
		return ErrStatusMismatch
	}
	return nil
}

func (s *GormStore) GetPlayer(ctx context.Context, gameID, userID string) (*models.Player, error) {
	var player models.Player
	if err := s.db.WithContext(ctx).Where("game_id = ? AND user_id = ?", gameID, userID).
		Preload("User").
		First(&player).Error; err != nil {
		return nil, translate(err)
	}
	return &player, nil
}

func (s *GormStore) ListPlayers(ctx context.Context, gameID string) ([]models.Player, error) {
	var players []models.Player
	err := s.db.WithContext(ctx).Where("game_id = ?", gameID).
		Preload("User").
		Order("joined_at ASC").
		Find(&players).Error
	return players, translate(err)
}

func (s *GormStore) DeletePlayer(ctx context.Context, gameID, userID string) error {
	res := s.db.WithContext(ctx).Where("game_id = ? AND user_id = ?", gameID, userID).Delete(&models.Player{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CountAnswers(ctx context.Context, gameID, userID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Answer{}).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		Count(&count).Error
	return int(count), translate(err)
}

func (s *GormStore) CountAnswersByUser(ctx context.Context, gameID string) (map[string]int, error) {
	var rows []struct {
		UserID string
		Total  int
	}
	err := s.db.WithContext(ctx).Model(&models.Answer{}).
		Select("user_id, COUNT(*) AS total").
		Where("game_id = ?", gameID).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Total
	}
	return counts, nil
}

func (s *GormStore) ListAnswers(ctx context.Context, gameID string) ([]models.Answer, error) {
	var answers []models.Answer
	err := s.db.WithContext(ctx).Where("game_id = ?", gameID).
		Order("created_at ASC").
		Find(&answers).Error
	return answers, translate(err)
}

func (s *GormStore) RecordAnswer(ctx context.Context, answer *models.Answer) (int, error) {
	var score int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(answer).Error; err != nil {
			return err
		}
		if answer.IsCorrect {
			res := tx.Model(&models.Player{}).
				Where("game_id = ? AND user_id = ?", answer.GameID, answer.UserID).
				UpdateColumn("score", gorm.Expr("score + ?", 1))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
		}
		var player models.Player
		if err := tx.Where("game_id = ? AND user_id = ?", answer.GameID, answer.UserID).First(&player).Error; err != nil {
			return err
		}
		score = player.Score
		return nil
	})
	if err != nil {
		return 0, translate(err)
	}
	return score, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrDuplicate
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
