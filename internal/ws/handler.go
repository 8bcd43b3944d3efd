package ws

import (
	"log"
	"net/http"

	"github.com/dlsarena/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are checked by middleware.WebSocketCORSCheck
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades an authenticated request and registers the
// connection so match events reach the user.
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			userID: userID,
			send:   make(chan []byte, 64),
		}
		if !hub.add(client) {
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
