package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/bus"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/handlers"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/services"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

type testServer struct {
	ts *httptest.Server
	mr *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	eventBus := bus.NewRedisBus(client, "mcq:")
	if err := eventBus.Start(context.Background()); err != nil {
		t.Fatalf("start bus: %v", err)
	}

	st := store.NewMemoryStore()
	authService := services.NewAuthService(st, "test-secret", time.Hour)
	gameService := services.NewGameService(st, eventBus)
	questionService := services.NewQuestionService(st)
	membershipService := services.NewMembershipService(st, eventBus)
	sessionService := services.NewSessionService(st, eventBus, false)
	lobbyService := services.NewLobbyService(st)

	hub := services.NewHub(eventBus, lobbyService)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	SetupRoutes(router, Handlers{
		Auth:     handlers.NewAuthHandler(authService),
		Game:     handlers.NewGameHandler(gameService, questionService, sessionService, lobbyService),
		Question: handlers.NewQuestionHandler(questionService),
		Request:  handlers.NewRequestHandler(membershipService),
		Player:   handlers.NewPlayerHandler(sessionService),
	}, hub, authService, lobbyService, membershipService)

	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		_ = eventBus.Close()
		_ = client.Close()
	})
	return &testServer{ts: ts, mr: mr}
}

func (s *testServer) do(t *testing.T, method, path, token string, payload, out any) int {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.ts.URL+path, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) register(t *testing.T, username string) (token, userID string) {
	t.Helper()
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	status := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret1",
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, status)
	}
	return resp.Token, resp.User.ID
}

func (s *testServer) dial(t *testing.T, path, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + path + "?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

type frame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	if status := s.do(t, http.MethodGet, "/health", "", nil, &body); status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", status, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	if status := s.do(t, http.MethodGet, "/api/games", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", status, http.StatusUnauthorized)
	}
	if status := s.do(t, http.MethodPost, "/api/games", "bogus", map[string]string{"name": "x"}, nil); status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", status, http.StatusUnauthorized)
	}
}

func TestRegisterValidationMessages(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	status := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ab", "email": "ab@example.com", "password": "secret1",
	}, &body)
	if status != http.StatusBadRequest || body["error"] != "username must be at least 3 characters" {
		t.Fatalf("register: %d %v", status, body)
	}

	s.register(t, "ada")
	status = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ada", "email": "other@example.com", "password": "secret1",
	}, &body)
	if status != http.StatusConflict || body["code"] != "CONFLICT" {
		t.Fatalf("duplicate register: %d %v", status, body)
	}
}

func TestGameFlowOverHTTPAndWebSocket(t *testing.T) {
	s := newTestServer(t)
	hostToken, _ := s.register(t, "host")
	adaToken, adaID := s.register(t, "ada")
	eveToken, _ := s.register(t, "eve")

	var game struct {
		ID string `json:"id"`
	}
	if status := s.do(t, http.MethodPost, "/api/games", hostToken, map[string]string{"name": "Capitals"}, &game); status != http.StatusCreated {
		t.Fatalf("create game: status %d", status)
	}

	var errBody map[string]string
	if status := s.do(t, http.MethodPost, "/api/games/"+game.ID+"/start", hostToken, nil, &errBody); status != http.StatusBadRequest {
		t.Fatalf("start without questions: status %d %v", status, errBody)
	}
	if status := s.do(t, http.MethodPost, "/api/games/"+game.ID+"/start", adaToken, nil, nil); status != http.StatusForbidden {
		t.Fatalf("start by non-host: status %d", status)
	}

	var question struct {
		ID      string `json:"id"`
		Options []struct {
			ID string `json:"id"`
		} `json:"options"`
	}
	status := s.do(t, http.MethodPost, "/api/games/"+game.ID+"/questions", hostToken, map[string]any{
		"text":        "Capital of France?",
		"explanation": "Paris has been the capital since 987.",
		"options": []map[string]any{
			{"text": "Paris", "is_correct": true},
			{"text": "Lyon"},
		},
	}, &question)
	if status != http.StatusCreated || len(question.Options) != 2 {
		t.Fatalf("create question: status %d %#v", status, question)
	}

	var lobby []struct {
		ID         string `json:"id"`
		Membership string `json:"membership"`
	}
	if status := s.do(t, http.MethodGet, "/api/games", adaToken, nil, &lobby); status != http.StatusOK {
		t.Fatalf("lobby: status %d", status)
	}
	if len(lobby) != 1 || lobby[0].ID != game.ID || lobby[0].Membership != "none" {
		t.Fatalf("unexpected lobby %#v", lobby)
	}

	var request struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if status := s.do(t, http.MethodPost, "/api/games/"+game.ID+"/requests", adaToken, nil, &request); status != http.StatusCreated || request.Status != "PENDING" {
		t.Fatalf("request join: status %d %#v", status, request)
	}
	if status := s.do(t, http.MethodPost, "/api/games/"+game.ID+"/requests", adaToken, nil, nil); status != http.StatusConflict {
		t.Fatalf("second request: status %d", status)
	}
	if status := s.do(t, http.MethodPost, "/api/requests/"+request.ID+"/approve", hostToken, nil, nil); status != http.StatusOK {
		t.Fatalf("approve: status %d", status)
	}

	if _, resp, err := s.dial(t, "/ws/games/"+game.ID, eveToken); err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider socket should be refused, got err=%v resp=%v", err, resp)
	}

	conn, _, err := s.dial(t, "/ws/games/"+game.ID, adaToken)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if f := readFrame(t, conn); f.Type != "game-state-sync" {
		t.Fatalf("first frame = %s, want game-state-sync", f.Type)
	}
	channel := "mcq:" + bus.GameTopic(game.ID)
	waitFor(t, "game topic subscription", func() bool { return s.mr.PubSubNumSub(channel)[channel] == 1 })

	if status := s.do(t, http.MethodPost, "/api/games/"+game.ID+"/start", hostToken, nil, nil); status != http.StatusOK {
		t.Fatalf("start: status %d", status)
	}
	started := readFrame(t, conn)
	if started.Type != bus.EventGameStarted || started.Topic != bus.GameTopic(game.ID) {
		t.Fatalf("unexpected frame %#v", started)
	}

	var next struct {
		Done     bool `json:"done"`
		Question struct {
			ID      string           `json:"id"`
			Options []map[string]any `json:"options"`
		} `json:"question"`
	}
	if status := s.do(t, http.MethodGet, "/api/games/"+game.ID+"/play/first", adaToken, nil, &next); status != http.StatusOK {
		t.Fatalf("first question: status %d", status)
	}
	if next.Done || next.Question.ID != question.ID {
		t.Fatalf("unexpected cursor %#v", next)
	}
	for _, o := range next.Question.Options {
		if _, leaked := o["is_correct"]; leaked {
			t.Fatalf("option leaks correctness: %v", o)
		}
	}
	if status := s.do(t, http.MethodGet, "/api/games/"+game.ID+"/play/first", eveToken, nil, nil); status != http.StatusForbidden {
		t.Fatalf("outsider cursor: status %d", status)
	}

	var result struct {
		IsCorrect   bool   `json:"is_correct"`
		NewScore    int    `json:"new_score"`
		Explanation string `json:"explanation"`
		Next        struct {
			Done bool `json:"done"`
		} `json:"next"`
	}
	answer := map[string]string{"question_id": question.ID, "option_id": question.Options[0].ID}
	if status := s.do(t, http.MethodPost, "/api/games/"+game.ID+"/answers", adaToken, answer, &result); status != http.StatusOK {
		t.Fatalf("answer: status %d", status)
	}
	if !result.IsCorrect || result.NewScore != 1 || !result.Next.Done || result.Explanation == "" {
		t.Fatalf("unexpected result %#v", result)
	}
	if status := s.do(t, http.MethodPost, "/api/games/"+game.ID+"/answers", adaToken, answer, nil); status != http.StatusConflict {
		t.Fatalf("duplicate answer: status %d", status)
	}

	answered := readFrame(t, conn)
	if answered.Type != bus.EventPlayerAnswered {
		t.Fatalf("frame = %s, want %s", answered.Type, bus.EventPlayerAnswered)
	}
	var payload map[string]any
	if err := json.Unmarshal(answered.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["userId"] != adaID || payload["newScore"] != float64(1) || payload["isCorrect"] != true {
		t.Fatalf("unexpected player-answered payload %v", payload)
	}

	var board struct {
		Entries []struct {
			Username string `json:"username"`
			Score    int    `json:"score"`
		} `json:"entries"`
	}
	if status := s.do(t, http.MethodGet, "/api/games/"+game.ID+"/leaderboard", hostToken, nil, &board); status != http.StatusOK {
		t.Fatalf("leaderboard: status %d", status)
	}
	if len(board.Entries) != 1 || board.Entries[0].Username != "ada" || board.Entries[0].Score != 1 {
		t.Fatalf("unexpected leaderboard %#v", board)
	}

	var gameStatus struct {
		Status string `json:"status"`
	}
	if status := s.do(t, http.MethodGet, "/api/games/"+game.ID+"/status", "", nil, &gameStatus); status != http.StatusOK || gameStatus.Status != "STARTED" {
		t.Fatalf("status: %d %#v", status, gameStatus)
	}

	if status := s.do(t, http.MethodPost, "/api/games/"+game.ID+"/end", hostToken, nil, nil); status != http.StatusOK {
		t.Fatalf("end: status %d", status)
	}
	if f := readFrame(t, conn); f.Type != bus.EventGameEnded {
		t.Fatalf("frame = %s, want %s", f.Type, bus.EventGameEnded)
	}
	if status := s.do(t, http.MethodPost, "/api/games/"+game.ID+"/end", hostToken, nil, nil); status != http.StatusConflict {
		t.Fatalf("second end: status %d", status)
	}
}

func TestRequestSocketIsPrivate(t *testing.T) {
	s := newTestServer(t)
	hostToken, _ := s.register(t, "host")
	adaToken, _ := s.register(t, "ada")
	eveToken, _ := s.register(t, "eve")

	var game struct {
		ID string `json:"id"`
	}
	s.do(t, http.MethodPost, "/api/games", hostToken, map[string]string{"name": "Capitals"}, &game)
	var request struct {
		ID string `json:"id"`
	}
	s.do(t, http.MethodPost, "/api/games/"+game.ID+"/requests", adaToken, nil, &request)

	if _, resp, err := s.dial(t, "/ws/requests/"+request.ID, eveToken); err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign request socket should be refused, got err=%v", err)
	}

	conn, _, err := s.dial(t, "/ws/requests/"+request.ID, adaToken)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	channel := "mcq:" + bus.RequestTopic(request.ID)
	waitFor(t, "request topic subscription", func() bool { return s.mr.PubSubNumSub(channel)[channel] == 1 })

	if status := s.do(t, http.MethodDelete, "/api/requests/"+request.ID, adaToken, nil, nil); status != http.StatusOK {
		t.Fatalf("cancel: status %d", status)
	}
	if f := readFrame(t, conn); f.Type != bus.EventRequestCancelled {
		t.Fatalf("frame = %s, want %s", f.Type, bus.EventRequestCancelled)
	}
}
