package bus

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 32
)

// Client is one connected subscriber. Outbound frames go through the send
// channel; the write pump owns the connection for writes.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan Envelope

	// rooms the client belongs to, guarded by hub.mu.
	rooms map[string]bool
}

// clientMessage is the inbound control frame: join/leave a room, or ping.
type clientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

// enqueue hands an envelope to the write pump without ever blocking the
// publisher. A full buffer means the subscriber misses this event.
func (c *Client) enqueue(env Envelope) {
	select {
	case c.send <- env:
	default:
		c.hub.log.Warn("Subscriber buffer full, dropping event",
			"client_id", c.id,
			"event", env.Event,
		)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debug("Subscriber read failed", "client_id", c.id, "error", err.Error())
			}
			return
		}
		c.handleMessage(raw)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.enqueue(Envelope{Event: EventError, Data: map[string]string{"message": "malformed message"}, TS: time.Now().UTC()})
		return
	}

	switch msg.Action {
	case "join":
		if err := c.hub.Join(c, msg.Room); err != nil {
			c.enqueue(Envelope{Event: EventError, Data: map[string]string{"message": err.Error()}, TS: time.Now().UTC()})
			return
		}
		c.enqueue(Envelope{Event: EventRoomJoined, Data: map[string]string{"room": msg.Room}, TS: time.Now().UTC()})
	case "leave":
		if err := c.hub.Leave(c, msg.Room); err != nil {
			c.enqueue(Envelope{Event: EventError, Data: map[string]string{"message": err.Error()}, TS: time.Now().UTC()})
			return
		}
		c.enqueue(Envelope{Event: EventRoomLeft, Data: map[string]string{"room": msg.Room}, TS: time.Now().UTC()})
	case "ping":
		c.enqueue(Envelope{Event: EventPong, TS: time.Now().UTC()})
	default:
		c.enqueue(Envelope{Event: EventError, Data: map[string]string{"message": "unknown action: " + msg.Action}, TS: time.Now().UTC()})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
