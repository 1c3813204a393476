package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/bus"

	"github.com/gorilla/websocket"
)

// fakeSubscriber hands messages straight to registered handlers.
type fakeSubscriber struct {
	mu         sync.Mutex
	handlers   map[string]map[int]bus.Handler
	next       int
	subscribes int
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]map[int]bus.Handler)}
}

func (s *fakeSubscriber) Subscribe(ctx context.Context, topic string, h bus.Handler) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers[topic] == nil {
		s.handlers[topic] = make(map[int]bus.Handler)
	}
	s.next++
	id := s.next
	s.handlers[topic][id] = h
	s.subscribes++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers[topic], id)
		if len(s.handlers[topic]) == 0 {
			delete(s.handlers, topic)
		}
	}, nil
}

func (s *fakeSubscriber) deliver(topic, event, payload string) {
	s.mu.Lock()
	var handlers []bus.Handler
	for _, h := range s.handlers[topic] {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(bus.Message{Topic: topic, Event: event, Payload: json.RawMessage(payload), PublishedAt: time.Now()})
	}
}

func (s *fakeSubscriber) active(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers[topic])
}

func (s *fakeSubscriber) subscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return msg
}

func TestHubFansOutBusMessages(t *testing.T) {
	f := newFixture(t)
	host := f.user("host")
	ada := f.user("ada")
	game := f.game(host, "Capitals")
	f.join(host, ada, game)
	topic := bus.GameTopic(game.ID)

	sub := newFakeSubscriber()
	hub := NewHub(sub, f.lobby)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.RegisterClient(context.Background(), conn, topic, ada.ID, ada.Username)
	}))
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer first.Close()

	state := readFrame(t, first)
	if state.Type != "game-state-sync" {
		t.Fatalf("first frame = %s, want game-state-sync", state.Type)
	}
	payload, _ := state.Payload.(map[string]interface{})
	if payload["status"] != "WAITING" || payload["host"] != "host" {
		t.Fatalf("unexpected state sync payload %#v", state.Payload)
	}

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer second.Close()
	readFrame(t, second)

	waitFor(t, "both clients registered", func() bool { return hub.ClientCount(topic) == 2 })
	if sub.subscribeCount() != 1 || sub.active(topic) != 1 {
		t.Fatalf("expected one shared subscription, got subscribes=%d active=%d", sub.subscribeCount(), sub.active(topic))
	}

	sub.deliver(topic, bus.EventPlayerAnswered, `{"newScore":1}`)
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readFrame(t, conn)
		if msg.Type != bus.EventPlayerAnswered || msg.Topic != topic {
			t.Fatalf("unexpected frame %#v", msg)
		}
	}

	if err := first.WriteJSON(Message{Type: "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readFrame(t, first); msg.Type != "pong" {
		t.Fatalf("frame = %s, want pong", msg.Type)
	}
	if err := second.WriteJSON(Message{Type: "request_game_state"}); err != nil {
		t.Fatalf("write request: %v", err)
	}
	if msg := readFrame(t, second); msg.Type != "game-state-sync" {
		t.Fatalf("frame = %s, want game-state-sync", msg.Type)
	}

	first.Close()
	waitFor(t, "first client removed", func() bool { return hub.ClientCount(topic) == 1 })
	if sub.active(topic) != 1 {
		t.Fatalf("subscription dropped while a client remains")
	}
	second.Close()
	waitFor(t, "subscription released", func() bool { return sub.active(topic) == 0 && hub.TopicCount() == 0 })
}

func TestHubShutdownClosesClients(t *testing.T) {
	sub := newFakeSubscriber()
	hub := NewHub(sub, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.RegisterClient(context.Background(), conn, bus.GlobalTopic, "u1", "ada")
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, "client registered", func() bool { return hub.ClientCount(bus.GlobalTopic) == 1 })

	cancel()
	waitFor(t, "subscription released", func() bool { return sub.active(bus.GlobalTopic) == 0 })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected connection to close after shutdown")
	}
}
