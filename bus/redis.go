package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotStarted = errors.New("bus not started")

// controlTopic keeps the pub/sub connection subscribed while no client
// topic is active.
const controlTopic = "_bus"

// RedisBus publishes through Redis and multiplexes every topic subscription
// over one pub/sub connection opened by Start and released by Close.
// Subscribing and unsubscribing are logical operations on that connection.
type RedisBus struct {
	client *redis.Client
	prefix string

	mu       sync.Mutex
	pubsub   *redis.PubSub
	handlers map[string]map[uint64]Handler
	nextID   uint64
	done     chan struct{}
}

func NewRedisBus(client *redis.Client, prefix string) *RedisBus {
	return &RedisBus{
		client:   client,
		prefix:   prefix,
		handlers: make(map[string]map[uint64]Handler),
	}
}

func (b *RedisBus) channel(topic string) string {
	return b.prefix + topic
}

// Start opens the shared pub/sub connection and begins dispatching.
func (b *RedisBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		return errors.New("bus already started")
	}
	pubsub := b.client.Subscribe(ctx, b.channel(controlTopic))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to open pub/sub connection: %w", err)
	}

	b.pubsub = pubsub
	b.done = make(chan struct{})
	go b.dispatch(pubsub.Channel(), b.done)

	log.Printf("Notification bus started (prefix %q)", b.prefix)
	return nil
}

func (b *RedisBus) dispatch(ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)

	for raw := range ch {
		topic := strings.TrimPrefix(raw.Channel, b.prefix)
		if topic == controlTopic {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			log.Printf("Dropping malformed bus message on %s: %v", raw.Channel, err)
			continue
		}

		b.mu.Lock()
		handlers := make([]Handler, 0, len(b.handlers[topic]))
		for _, h := range b.handlers[topic] {
			handlers = append(handlers, h)
		}
		b.mu.Unlock()

		for _, h := range handlers {
			h(msg)
		}
	}
}

// Close releases the pub/sub connection. Subscriptions are dropped.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.handlers = make(map[string]map[uint64]Handler)
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Printf("Notification bus dispatcher did not stop in time")
	}
	return err
}

func (b *RedisBus) Publish(ctx context.Context, topic, event string, payload interface{}) error {
	msg, err := newMessage(topic, event, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}
	return b.client.Publish(ctx, b.channel(topic), data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub == nil {
		return nil, ErrNotStarted
	}
	subs, ok := b.handlers[topic]
	if !ok {
		if err := b.pubsub.Subscribe(ctx, b.channel(topic)); err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		subs = make(map[uint64]Handler)
		b.handlers[topic] = subs
	}
	b.nextID++
	id := b.nextID
	subs[id] = h

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(topic, id) })
	}, nil
}

func (b *RedisBus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.handlers[topic]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) > 0 {
		return
	}
	delete(b.handlers, topic)
	if b.pubsub == nil {
		return
	}
	if err := b.pubsub.Unsubscribe(context.Background(), b.channel(topic)); err != nil {
		log.Printf("Failed to unsubscribe from %s: %v", topic, err)
	}
}

// Topics returns the topics with at least one local subscriber.
func (b *RedisBus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	topics := make([]string, 0, len(b.handlers))
	for topic := range b.handlers {
		topics = append(topics, topic)
	}
	return topics
}
