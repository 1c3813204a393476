// Package bus publishes game notifications to live subscribers.
//
// Delivery is best-effort fan-out to whoever is subscribed when a message is
// published. Nothing is persisted; clients reconcile by polling the status
// snapshot or the next-question endpoint.
package bus

import (
	"context"
	"encoding/json"
	"time"
)

// GlobalTopic carries cross-game lobby events.
const GlobalTopic = "games"

// Lobby events on GlobalTopic.
const (
	EventNewGame         = "new-game"
	EventGameDeleted     = "game-deleted"
	EventGameNameUpdated = "game-name-updated"
)

// Session events on a game topic.
const (
	EventGameStarted    = "game-started"
	EventGameEnded      = "game-ended"
	EventPlayerJoined   = "player-joined"
	EventPlayerLeft     = "player-left"
	EventPlayerRequest  = "player-request"
	EventPlayerApproved = "player-approved"
	EventPlayerRejected = "player-rejected"
	EventPlayerAnswered = "player-answered"
)

// EventRequestCancelled is published on a request topic.
const EventRequestCancelled = "request-cancelled"

func GameTopic(gameID string) string {
	return "game-" + gameID
}

func RequestTopic(requestID string) string {
	return "request-" + requestID
}

// Message is the envelope delivered to subscribers.
type Message struct {
	Topic       string          `json:"topic"`
	Event       string          `json:"event"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"publishedAt"`
}

type Publisher interface {
	Publish(ctx context.Context, topic, event string, payload interface{}) error
}

// Handler receives messages for a subscribed topic. Handlers run on the
// bus dispatch goroutine and must not block.
type Handler func(Message)

type Subscriber interface {
	// Subscribe registers h for topic. The returned func removes it.
	Subscribe(ctx context.Context, topic string, h Handler) (func(), error)
}

func newMessage(topic, event string, payload interface{}, now time.Time) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Topic: topic, Event: event, Payload: data, PublishedAt: now}, nil
}
