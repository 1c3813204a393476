package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/store"

	"golang.org/x/crypto/bcrypt"
)

type published struct {
	Topic   string
	Event   string
	Payload map[string]interface{}
}

// recordingPublisher captures events. With fail set it records nothing and
// returns an error, like an unreachable broker.
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	fail   bool
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	p.events = append(p.events, published{Topic: topic, Event: event, Payload: decoded})
	return nil
}

func (p *recordingPublisher) named(event string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	t          *testing.T
	ctx        context.Context
	store      *store.MemoryStore
	pub        *recordingPublisher
	auth       *AuthService
	games      *GameService
	questions  *QuestionService
	membership *MembershipService
	session    *SessionService
	lobby      *LobbyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	pub := &recordingPublisher{}
	auth := NewAuthService(st, "test-secret", time.Hour)
	auth.cost = bcrypt.MinCost
	return &fixture{
		t:          t,
		ctx:        context.Background(),
		store:      st,
		pub:        pub,
		auth:       auth,
		games:      NewGameService(st, pub),
		questions:  NewQuestionService(st),
		membership: NewMembershipService(st, pub),
		session:    NewSessionService(st, pub, false),
		lobby:      NewLobbyService(st),
	}
}

func (f *fixture) user(name string) *models.User {
	f.t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := f.store.CreateUser(f.ctx, u); err != nil {
		f.t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (f *fixture) game(host *models.User, name string) *models.Game {
	f.t.Helper()
	g, err := f.games.CreateGame(f.ctx, host.ID, &CreateGameRequest{Name: name})
	if err != nil {
		f.t.Fatalf("create game: %v", err)
	}
	return g
}

// question adds a question whose first option is the correct one.
func (f *fixture) question(host *models.User, game *models.Game, text string, options ...string) *models.Question {
	f.t.Helper()
	req := &CreateQuestionRequest{Text: text, Explanation: "because " + options[0]}
	for i, o := range options {
		req.Options = append(req.Options, CreateOptionRequest{Text: o, IsCorrect: i == 0})
	}
	q, err := f.questions.CreateQuestion(f.ctx, game.ID, host.ID, req)
	if err != nil {
		f.t.Fatalf("create question: %v", err)
	}
	return q
}

// join requests and approves membership for u.
func (f *fixture) join(host, u *models.User, game *models.Game) {
	f.t.Helper()
	req, err := f.membership.RequestJoin(f.ctx, game.ID, u.ID)
	if err != nil {
		f.t.Fatalf("request join: %v", err)
	}
	if _, err := f.membership.Approve(f.ctx, req.ID, host.ID); err != nil {
		f.t.Fatalf("approve: %v", err)
	}
}

func (f *fixture) start(host *models.User, game *models.Game) {
	f.t.Helper()
	if _, err := f.session.Start(f.ctx, game.ID, host.ID); err != nil {
		f.t.Fatalf("start: %v", err)
	}
}

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperrors.CodeOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}
