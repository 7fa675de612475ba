package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"garabingo/utils/logger"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Events pushed to game subscribers.
const (
	EventGameStarted       = "game:started"
	EventNumberDrawn       = "number:drawn"
	EventBingoClaimed      = "bingo:claimed"
	EventReachNotified     = "reach:notified"
	EventParticipantJoined = "participant:joined"
	EventRouletteClaimed   = "roulette:claimed"
	EventGameEnded         = "game:ended"
	EventGameState         = "game:state"
)

// redisChannel carries game events between instances when redis is configured.
const redisChannel = "garabingo:events"

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// envelope wraps a message with its game id for the redis relay.
type envelope struct {
	GameID  uint            `json:"game_id"`
	Message json.RawMessage `json:"message"`
}

// Hub fans every accepted game mutation out to that game's subscribers.
// With a redis client it relays events through a shared channel so all
// instances deliver to their local websocket clients; without one it delivers
// locally only.
type Hub struct {
	clients     map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	mutex       sync.RWMutex
	gameService *GameService
	redis       *redis.Client
}

type Client struct {
	hub         *Hub
	id          uint64
	socket      *websocket.Conn
	gameID      uint
	userID      uint
	displayName string
	isHost      bool

	// send is guarded by sendMu so a late message from the read pump can
	// never hit the channel after eviction closed it.
	send       chan []byte
	sendMu     sync.Mutex
	sendClosed bool
}

// trySend queues a message unless the client is closed or its buffer is
// full. Returns false in both cases; a full buffer marks the client as too
// slow to keep.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

var clientSeq atomic.Uint64

func NewHub(gameService *GameService, redisClient *redis.Client) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		gameService: gameService,
		redis:       redisClient,
	}
}

func (h *Hub) Run() {
	if h.redis != nil {
		go h.relayFromRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			logger.Debugf("client %d subscribed to game %d (host=%v)", client.id, client.gameID, client.isHost)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mutex.Unlock()
			logger.Debugf("client %d unsubscribed from game %d", client.id, client.gameID)
		}
	}
}

// relayFromRedis forwards events published by any instance to this
// instance's local subscribers.
func (h *Hub) relayFromRedis() {
	sub := h.redis.Subscribe(context.Background(), redisChannel)
	for msg := range sub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			logger.Errorf("failed to decode relayed event: %v", err)
			continue
		}
		h.deliverLocal(env.GameID, env.Message)
	}
}

// BroadcastToGame publishes one event to every subscriber of the game's
// channel. Safe to call on a nil hub, which lets the services run without a
// fan-out in tests.
func (h *Hub) BroadcastToGame(gameID uint, eventType string, payload interface{}) {
	if h == nil {
		return
	}

	data, err := json.Marshal(Message{Type: eventType, Payload: payload})
	if err != nil {
		logger.Errorf("failed to marshal %s event: %v", eventType, err)
		return
	}

	if h.redis != nil {
		env, err := json.Marshal(envelope{GameID: gameID, Message: data})
		if err != nil {
			logger.Errorf("failed to marshal %s envelope: %v", eventType, err)
			return
		}
		if err := h.redis.Publish(context.Background(), redisChannel, env).Err(); err != nil {
			logger.Errorf("failed to publish %s to redis: %v", eventType, err)
			// Fall back to local delivery so this instance's clients
			// still observe the mutation.
			h.deliverLocal(gameID, data)
		}
		return
	}

	h.deliverLocal(gameID, data)
}

func (h *Hub) deliverLocal(gameID uint, data []byte) {
	var dead []*Client

	h.mutex.RLock()
	for client := range h.clients {
		if client.gameID != gameID {
			continue
		}
		if !client.trySend(data) {
			dead = append(dead, client)
		}
	}
	h.mutex.RUnlock()

	// Only Run's unregister case removes clients and closes their send
	// channel; evicting here directly would race the read pump.
	for _, client := range dead {
		h.unregister <- client
	}
}

// RegisterClient attaches an authorized websocket connection to a game's
// channel and sends the full state snapshot before any subsequent event, so
// late joiners never need to replay history.
func (h *Hub) RegisterClient(conn *websocket.Conn, gameID, userID uint, displayName string, isHost bool) *Client {
	client := &Client{
		hub:         h,
		id:          clientSeq.Add(1),
		socket:      conn,
		send:        make(chan []byte, 64),
		gameID:      gameID,
		userID:      userID,
		displayName: displayName,
		isHost:      isHost,
	}

	h.register <- client

	h.sendGameState(client)

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) sendGameState(client *Client) {
	state, err := h.gameService.GetGameState(client.gameID)
	if err != nil {
		logger.Errorf("failed to load state snapshot for game %d: %v", client.gameID, err)
		return
	}

	data, err := json.Marshal(Message{Type: EventGameState, Payload: state})
	if err != nil {
		logger.Errorf("failed to marshal state snapshot: %v", err)
		return
	}

	client.trySend(data)
}

// SubscriberCount reports how many clients are attached to a game's channel.
func (h *Hub) SubscriberCount(gameID uint) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for client := range h.clients {
		if client.gameID == gameID {
			count++
		}
	}
	return count
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.socket.Close()
	}()

	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debugf("websocket read error on client %d: %v", c.id, err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Debugf("discarding malformed message from client %d: %v", c.id, err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer c.socket.Close()

	for message := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		data, _ := json.Marshal(Message{Type: "pong"})
		c.trySend(data)

	case "request_state":
		c.hub.sendGameState(c)

	default:
		logger.Debugf("unknown message type %q from client %d", msg.Type, c.id)
	}
}
