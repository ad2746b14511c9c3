package handlers

import (
	"log"
	"net/http"

	"talktime/internal/auth"
	"talktime/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware in front.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	hub *hub.Hub
}

func NewWSHandler(h *hub.Hub) *WSHandler {
	return &WSHandler{hub: h}
}

// Subscribe upgrades the connection and streams the current user's
// call and presence events until the client disconnects
// GET /ws
func (h *WSHandler) Subscribe(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed for user %d: %v", userID, err)
		return
	}

	h.hub.Subscribe(userID, conn)
	defer h.hub.Unsubscribe(userID, conn)

	// Drain the connection; clients only receive on this channel.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
