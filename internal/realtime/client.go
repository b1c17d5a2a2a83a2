// internal/realtime/client.go

package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4 * 1024
)

// clientCommand is the only inbound frame clients send
type clientCommand struct {
	Action      string `json:"action"`
	PhoneNumber string `json:"phoneNumber"`
}

// Client represents one websocket subscriber
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("realtime: websocket error: %v", err)
			}
			break
		}
		c.processCommand(message)
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued events to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

func (c *Client) processCommand(data []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		log.Printf("realtime: invalid client command: %v", err)
		return
	}
	if cmd.PhoneNumber == "" {
		return
	}

	switch cmd.Action {
	case "subscribe":
		c.hub.subscribe <- subscription{client: c, phoneNumber: cmd.PhoneNumber}
	case "unsubscribe":
		c.hub.unsubscribe <- subscription{client: c, phoneNumber: cmd.PhoneNumber}
	default:
		log.Printf("realtime: unknown action: %s", cmd.Action)
	}
}

// Close shuts the outbound channel exactly once
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
