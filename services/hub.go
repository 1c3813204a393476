package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/bus"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Hub fans bus messages out to websocket clients.
//
// Clients listen on one topic each. The hub holds a single bus
// subscription per topic while at least one client listens on it and
// drops it when the last one leaves. Only the Run goroutine writes to or
// closes a client's send channel.
type Hub struct {
	bus   bus.Subscriber
	lobby *LobbyService

	clients map[string]map[*Client]bool
	unsubs  map[string]func()
	mutex   sync.RWMutex

	register   chan *Client
	unregister chan *Client
	deliver    chan bus.Message
	direct     chan directMessage
	done       chan struct{}
}

type Client struct {
	hub      *Hub
	id       string
	socket   *websocket.Conn
	send     chan []byte
	topic    string
	gameID   string
	userID   string
	username string
}

// Message is the frame written to websocket clients. Bus events keep their
// event name as Type.
type Message struct {
	Type        string      `json:"type"`
	Topic       string      `json:"topic,omitempty"`
	Payload     interface{} `json:"payload"`
	PublishedAt *time.Time  `json:"publishedAt,omitempty"`
}

type directMessage struct {
	client *Client
	data   []byte
}

func NewHub(subscriber bus.Subscriber, lobby *LobbyService) *Hub {
	return &Hub{
		bus:        subscriber,
		lobby:      lobby,
		clients:    make(map[string]map[*Client]bool),
		unsubs:     make(map[string]func()),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan bus.Message, sendBuffer),
		direct:     make(chan directMessage, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and deliveries until ctx is cancelled, then
// disconnects every client and drops all subscriptions.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(ctx, client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.deliver:
			h.broadcast(msg)

		case dm := <-h.direct:
			h.mutex.RLock()
			registered := h.clients[dm.client.topic][dm.client]
			h.mutex.RUnlock()
			if registered {
				h.trySend(dm.client, dm.data)
			}

		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

func (h *Hub) addClient(ctx context.Context, client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client.topic]; !ok {
		unsubscribe, err := h.bus.Subscribe(ctx, client.topic, h.enqueue)
		if err != nil {
			log.Printf("Failed to subscribe to %s for client %s: %v", client.topic, client.id, err)
			close(client.send)
			return
		}
		h.clients[client.topic] = make(map[*Client]bool)
		h.unsubs[client.topic] = unsubscribe
	}
	h.clients[client.topic][client] = true
	log.Printf("Client registered: %s on %s (user %s) - Clients on topic: %d", client.id, client.topic, client.userID, len(h.clients[client.topic]))
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.dropLocked(client)
}

// dropLocked closes the client and releases its topic subscription when
// it was the last listener. Callers hold h.mutex.
func (h *Hub) dropLocked(client *Client) {
	clients, ok := h.clients[client.topic]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	log.Printf("Client unregistered: %s on %s (user %s) - Clients on topic: %d", client.id, client.topic, client.userID, len(clients))

	if len(clients) == 0 {
		delete(h.clients, client.topic)
		if unsubscribe, ok := h.unsubs[client.topic]; ok {
			unsubscribe()
			delete(h.unsubs, client.topic)
		}
	}
}

func (h *Hub) broadcast(msg bus.Message) {
	publishedAt := msg.PublishedAt
	data, err := json.Marshal(Message{
		Type:        msg.Event,
		Topic:       msg.Topic,
		Payload:     msg.Payload,
		PublishedAt: &publishedAt,
	})
	if err != nil {
		log.Printf("Error marshaling %s for %s: %v", msg.Event, msg.Topic, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients[msg.Topic] {
		select {
		case client.send <- data:
		default:
			log.Printf("Client %s send buffer full, closing connection", client.id)
			h.dropLocked(client)
		}
	}
}

func (h *Hub) trySend(client *Client, data []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	select {
	case client.send <- data:
	default:
		log.Printf("Client %s send buffer full, closing connection", client.id)
		h.dropLocked(client)
	}
}

func (h *Hub) shutdown() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			h.dropLocked(client)
		}
	}
}

// enqueue runs on the bus dispatch goroutine and must not block it.
func (h *Hub) enqueue(msg bus.Message) {
	select {
	case h.deliver <- msg:
	case <-h.done:
	default:
		log.Printf("Hub delivery queue full, dropping %s on %s", msg.Event, msg.Topic)
	}
}

// TopicCount reports how many topics currently have listeners.
func (h *Hub) TopicCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ClientCount reports how many clients listen on topic.
func (h *Hub) ClientCount(topic string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[topic])
}

// RegisterClient attaches an upgraded connection to topic. For game topics
// the client first receives a game-state-sync snapshot so it can reconcile
// events it missed before connecting.
func (h *Hub) RegisterClient(ctx context.Context, conn *websocket.Conn, topic, userID, username string) *Client {
	client := &Client{
		hub:      h,
		id:       uuid.NewString(),
		socket:   conn,
		send:     make(chan []byte, sendBuffer),
		topic:    topic,
		userID:   userID,
		username: username,
	}
	if strings.HasPrefix(topic, bus.GameTopic("")) {
		client.gameID = strings.TrimPrefix(topic, bus.GameTopic(""))
	}

	if data := h.stateSync(ctx, client); data != nil {
		client.send <- data
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return client
	}

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) stateSync(ctx context.Context, client *Client) []byte {
	if client.gameID == "" || h.lobby == nil {
		return nil
	}
	status, err := h.lobby.GetGameStatus(ctx, client.gameID)
	if err != nil {
		log.Printf("Error getting game state for client %s: %v", client.id, err)
		return nil
	}
	data, err := json.Marshal(Message{Type: "game-state-sync", Topic: client.topic, Payload: status})
	if err != nil {
		log.Printf("Error marshaling game state sync message: %v", err)
		return nil
	}
	return data
}

func (h *Hub) sendDirect(client *Client, data []byte) {
	select {
	case h.direct <- directMessage{client: client, data: data}:
	case <-h.done:
	}
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		data, _ := json.Marshal(Message{Type: "pong", Payload: "pong"})
		c.hub.sendDirect(c, data)

	case "request_game_state":
		if data := c.hub.stateSync(context.Background(), c); data != nil {
			c.hub.sendDirect(c, data)
		}

	default:
		log.Printf("Unknown message type: %s from client %s (user %s) on %s", msg.Type, c.id, c.userID, c.topic)
	}
}
