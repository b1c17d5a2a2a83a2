// internal/realtime/websocket.go

package realtime

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// Upgrader for WebSocket connections
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper CORS checking
		return true
	},
}

// HandleWebSocket upgrades the connection and registers the client with the hub
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("realtime: websocket upgrade failed: %v", err)
			return
		}

		client := NewClient(hub, conn)
		hub.register <- client
		client.Start()
	}
}
