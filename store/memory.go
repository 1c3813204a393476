package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"

	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory. A single mutex serializes
// every operation, which gives each call the atomicity the Store contract
// asks of a database transaction.
type MemoryStore struct {
	mu  sync.Mutex
	now func() time.Time
	seq uint64

	order     map[string]uint64
	users     map[string]models.User
	games     map[string]models.Game
	questions map[string]models.Question
	options   map[string]models.Option
	requests  map[string]models.PlayerRequest
	players   map[string]models.Player
	answers   map[string]models.Answer
	answerKey map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:       time.Now,
		order:     make(map[string]uint64),
		users:     make(map[string]models.User),
		games:     make(map[string]models.Game),
		questions: make(map[string]models.Question),
		options:   make(map[string]models.Option),
		requests:  make(map[string]models.PlayerRequest),
		players:   make(map[string]models.Player),
		answers:   make(map[string]models.Answer),
		answerKey: make(map[string]string),
	}
}

func pairKey(a, b string) string {
	return a + "/" + b
}

// stamp assigns id, creation order and timestamps to a new record.
func (s *MemoryStore) stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = s.now()
	}
	s.seq++
	s.order[*id] = s.seq
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return ErrDuplicate
		}
	}
	s.stamp(&user.ID, &user.CreatedAt)
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateGame(ctx context.Context, game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if game.Status == "" {
		game.Status = models.GameWaiting
	}
	s.stamp(&game.ID, &game.CreatedAt)
	game.UpdatedAt = game.CreatedAt
	record := *game
	record.Host = models.User{}
	record.Questions, record.Players, record.Answers = nil, nil, nil
	s.games[game.ID] = record
	return nil
}

func (s *MemoryStore) withHost(game models.Game) models.Game {
	game.Host = s.users[game.HostID]
	return game
}

func (s *MemoryStore) GetGame(ctx context.Context, id string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	game = s.withHost(game)
	return &game, nil
}

func (s *MemoryStore) listGames(match func(models.Game) bool) []models.Game {
	games := []models.Game{}
	for _, game := range s.games {
		if match(game) {
			games = append(games, s.withHost(game))
		}
	}
	sort.Slice(games, func(i, j int) bool {
		if !games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].CreatedAt.After(games[j].CreatedAt)
		}
		return s.order[games[i].ID] > s.order[games[j].ID]
	})
	return games
}

func (s *MemoryStore) ListGamesByHost(ctx context.Context, hostID string) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listGames(func(g models.Game) bool { return g.HostID == hostID }), nil
}

func (s *MemoryStore) ListGamesByStatus(ctx context.Context, status string) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listGames(func(g models.Game) bool { return g.Status == status }), nil
}

func (s *MemoryStore) RenameGame(ctx context.Context, id, name string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	game.Name = name
	game.UpdatedAt = s.now()
	s.games[id] = game
	game = s.withHost(game)
	return &game, nil
}

func (s *MemoryStore) TransitionGame(ctx context.Context, id, from, to string, at time.Time) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	if game.Status != from {
		return nil, ErrStatusMismatch
	}
	game.Status = to
	switch to {
	case models.GameStarted:
		game.StartedAt = &at
	case models.GameCompleted:
		game.EndedAt = &at
	}
	game.UpdatedAt = at
	s.games[id] = game
	game = s.withHost(game)
	return &game, nil
}

func (s *MemoryStore) DeleteGame(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[id]; !ok {
		return ErrNotFound
	}
	for key, player := range s.players {
		if player.GameID == id {
			delete(s.players, key)
		}
	}
	for answerID, answer := range s.answers {
		if answer.GameID == id {
			delete(s.answerKey, pairKey(answer.UserID, answer.QuestionID))
			delete(s.answers, answerID)
		}
	}
	for requestID, request := range s.requests {
		if request.GameID == id {
			delete(s.requests, requestID)
		}
	}
	for questionID, question := range s.questions {
		if question.GameID == id {
			s.deleteOptionsOf(questionID)
			delete(s.questions, questionID)
		}
	}
	delete(s.games, id)
	return nil
}

func (s *MemoryStore) deleteOptionsOf(questionID string) {
	for optionID, option := range s.options {
		if option.QuestionID == questionID {
			delete(s.options, optionID)
		}
	}
}

func (s *MemoryStore) CreateQuestion(ctx context.Context, question *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[question.GameID]; !ok {
		return ErrNotFound
	}
	s.stamp(&question.ID, &question.CreatedAt)
	question.UpdatedAt = question.CreatedAt
	record := *question
	record.Options = nil
	s.questions[question.ID] = record
	return nil
}

func (s *MemoryStore) byCreation(createdAt func(i int) time.Time, id func(i int) string) func(i, j int) bool {
	return func(i, j int) bool {
		if !createdAt(i).Equal(createdAt(j)) {
			return createdAt(i).Before(createdAt(j))
		}
		return s.order[id(i)] < s.order[id(j)]
	}
}

func (s *MemoryStore) withOptions(question models.Question) models.Question {
	options := []models.Option{}
	for _, option := range s.options {
		if option.QuestionID == question.ID {
			options = append(options, option)
		}
	}
	sort.Slice(options, s.byCreation(
		func(i int) time.Time { return options[i].CreatedAt },
		func(i int) string { return options[i].ID },
	))
	question.Options = options
	return question
}

func (s *MemoryStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	question, ok := s.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	question = s.withOptions(question)
	return &question, nil
}

func (s *MemoryStore) ListQuestions(ctx context.Context, gameID string) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions := []models.Question{}
	for _, question := range s.questions {
		if question.GameID == gameID {
			questions = append(questions, s.withOptions(question))
		}
	}
	sort.Slice(questions, s.byCreation(
		func(i int) time.Time { return questions[i].CreatedAt },
		func(i int) string { return questions[i].ID },
	))
	return questions, nil
}

func (s *MemoryStore) UpdateQuestion(ctx context.Context, question *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.questions[question.ID]
	if !ok {
		return ErrNotFound
	}
	record.Text = question.Text
	record.Explanation = question.Explanation
	record.UpdatedAt = s.now()
	s.questions[question.ID] = record
	return nil
}

func (s *MemoryStore) DeleteQuestion(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return ErrNotFound
	}
	s.deleteOptionsOf(id)
	delete(s.questions, id)
	return nil
}

func (s *MemoryStore) CreateOption(ctx context.Context, option *models.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[option.QuestionID]; !ok {
		return ErrNotFound
	}
	s.stamp(&option.ID, &option.CreatedAt)
	option.UpdatedAt = option.CreatedAt
	s.options[option.ID] = *option
	return nil
}

func (s *MemoryStore) GetOption(ctx context.Context, id string) (*models.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	option, ok := s.options[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &option, nil
}

func (s *MemoryStore) UpdateOption(ctx context.Context, option *models.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.options[option.ID]
	if !ok {
		return ErrNotFound
	}
	record.Text = option.Text
	record.IsCorrect = option.IsCorrect
	record.UpdatedAt = s.now()
	s.options[option.ID] = record
	return nil
}

func (s *MemoryStore) DeleteOption(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.options[id]; !ok {
		return ErrNotFound
	}
	delete(s.options, id)
	return nil
}

func (s *MemoryStore) CreatePlayerRequest(ctx context.Context, request *models.PlayerRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if existing.GameID == request.GameID && existing.UserID == request.UserID {
			return ErrDuplicate
		}
	}
	if request.Status == "" {
		request.Status = models.RequestPending
	}
	s.stamp(&request.ID, &request.CreatedAt)
	request.UpdatedAt = request.CreatedAt
	record := *request
	record.User, record.Game = models.User{}, models.Game{}
	s.requests[request.ID] = record
	return nil
}

func (s *MemoryStore) GetPlayerRequest(ctx context.Context, id string) (*models.PlayerRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &request, nil
}

func (s *MemoryStore) FindPlayerRequest(ctx context.Context, gameID, userID string) (*models.PlayerRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, request := range s.requests {
		if request.GameID == gameID && request.UserID == userID {
			r := request
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) listRequests(match func(models.PlayerRequest) bool, newestFirst bool) []models.PlayerRequest {
	requests := []models.PlayerRequest{}
	for _, request := range s.requests {
		if match(request) {
			requests = append(requests, request)
		}
	}
	less := s.byCreation(
		func(i int) time.Time { return requests[i].CreatedAt },
		func(i int) string { return requests[i].ID },
	)
	sort.Slice(requests, func(i, j int) bool {
		if newestFirst {
			return less(j, i)
		}
		return less(i, j)
	})
	return requests
}

func (s *MemoryStore) ListPlayerRequestsByGame(ctx context.Context, gameID string) ([]models.PlayerRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := s.listRequests(func(r models.PlayerRequest) bool { return r.GameID == gameID }, false)
	for i := range requests {
		requests[i].User = s.users[requests[i].UserID]
	}
	return requests, nil
}

func (s *MemoryStore) ListPlayerRequestsByUser(ctx context.Context, userID string) ([]models.PlayerRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := s.listRequests(func(r models.PlayerRequest) bool { return r.UserID == userID }, true)
	for i := range requests {
		requests[i].Game = s.games[requests[i].GameID]
	}
	return requests, nil
}

func (s *MemoryStore) SetPlayerRequestStatus(ctx context.Context, id, from, to string) (*models.PlayerRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if request.Status != from {
		return nil, ErrStatusMismatch
	}
	request.Status = to
	request.UpdatedAt = s.now()
	s.requests[id] = request
	return &request, nil
}

func (s *MemoryStore) ApprovePlayerRequest(ctx context.Context, id string, joinedAt time.Time) (*models.Player, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if request.Status != models.RequestPending && request.Status != models.RequestApproved {
		return nil, false, ErrStatusMismatch
	}
	if request.Status == models.RequestPending {
		request.Status = models.RequestApproved
		request.UpdatedAt = s.now()
		s.requests[id] = request
	}

	key := pairKey(request.GameID, request.UserID)
	if existing, ok := s.players[key]; ok {
		return &existing, false, nil
	}
	player := models.Player{GameID: request.GameID, UserID: request.UserID, JoinedAt: joinedAt}
	s.stamp(&player.ID, &player.CreatedAt)
	player.UpdatedAt = player.CreatedAt
	s.players[key] = player
	return &player, true, nil
}

func (s *MemoryStore) DeletePlayerRequest(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return ErrNotFound
	}
	if request.Status != status {
		return ErrStatusMismatch
	}
	delete(s.requests, id)
	return nil
}

func (s *MemoryStore) GetPlayer(ctx context.Context, gameID, userID string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[pairKey(gameID, userID)]
	if !ok {
		return nil, ErrNotFound
	}
	player.User = s.users[userID]
	return &player, nil
}

func (s *MemoryStore) ListPlayers(ctx context.Context, gameID string) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := []models.Player{}
	for _, player := range s.players {
		if player.GameID == gameID {
			player.User = s.users[player.UserID]
			players = append(players, player)
		}
	}
	sort.Slice(players, s.byCreation(
		func(i int) time.Time { return players[i].JoinedAt },
		func(i int) string { return players[i].ID },
	))
	return players, nil
}

func (s *MemoryStore) DeletePlayer(ctx context.Context, gameID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(gameID, userID)
	if _, ok := s.players[key]; !ok {
		return ErrNotFound
	}
	delete(s.players, key)
	return nil
}

func (s *MemoryStore) CountAnswers(ctx context.Context, gameID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, answer := range s.answers {
		if answer.GameID == gameID && answer.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountAnswersByUser(ctx context.Context, gameID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, answer := range s.answers {
		if answer.GameID == gameID {
			counts[answer.UserID]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) ListAnswers(ctx context.Context, gameID string) ([]models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := []models.Answer{}
	for _, answer := range s.answers {
		if answer.GameID == gameID {
			answers = append(answers, answer)
		}
	}
	sort.Slice(answers, s.byCreation(
		func(i int) time.Time { return answers[i].CreatedAt },
		func(i int) string { return answers[i].ID },
	))
	return answers, nil
}

func (s *MemoryStore) RecordAnswer(ctx context.Context, answer *models.Answer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(answer.UserID, answer.QuestionID)
	if _, ok := s.answerKey[key]; ok {
		return 0, ErrDuplicate
	}
	playerKey := pairKey(answer.GameID, answer.UserID)
	player, ok := s.players[playerKey]
	if !ok {
		return 0, ErrNotFound
	}

	s.stamp(&answer.ID, &answer.CreatedAt)
	s.answers[answer.ID] = *answer
	s.answerKey[key] = answer.ID
	if answer.IsCorrect {
		player.Score++
		player.UpdatedAt = s.now()
		s.players[playerKey] = player
	}
	return player.Score, nil
}
