package bus

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tmoradi/kestrel/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks connected subscribers and their room memberships, and fans
// events out to them. Publishing never blocks: a subscriber whose send
// buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	maxRoomLen int
	log        *slog.Logger
}

// NewHub builds an empty hub.
func NewHub(cfg *config.Config) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		maxRoomLen: cfg.RoomNameMaxLength,
		log:        config.Logger("bus"),
	}
}

// ServeWS upgrades an HTTP request into a subscriber connection and starts
// its pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err.Error())
		return
	}

	c := &Client{
		id:    uuid.NewString(),
		hub:   h,
		conn:  conn,
		send:  make(chan Envelope, sendBufferSize),
		rooms: make(map[string]bool),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

// Publish delivers an event to every connected subscriber.
func (h *Hub) Publish(event string, data any) {
	env := Envelope{Event: event, Data: data, TS: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(env)
	}
}

// PublishToRoom delivers an event to the members of one room only.
func (h *Hub) PublishToRoom(room, event string, data any) {
	env := Envelope{Event: event, Data: data, TS: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		c.enqueue(env)
	}
}

// Join adds the client to a room, creating it on first use. Membership is
// keyed by the canonical room name, so a padded name lands in the same room
// that publishers target.
func (h *Hub) Join(c *Client, room string) error {
	room, err := validateRoom(room, h.maxRoomLen)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return nil
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	c.rooms[room] = true

	h.log.Debug("Subscriber joined room", "client_id", c.id, "room", room)
	return nil
}

// Leave removes the client from a room, dropping the room once empty.
func (h *Hub) Leave(c *Client, room string) error {
	room, err := validateRoom(room, h.maxRoomLen)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)

	h.log.Debug("Subscriber left room", "client_id", c.id, "room", room)
	return nil
}

// SubscriberCount reports how many subscribers are connected.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount reports how many rooms currently have members.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	h.log.Info("Subscriber connected", "client_id", c.id, "subscribers", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.send)
	h.log.Info("Subscriber disconnected", "client_id", c.id, "subscribers", len(h.clients))
}
