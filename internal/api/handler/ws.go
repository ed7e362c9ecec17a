package handler

import (
	"log"
	"net/http"

	"gigmarket/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin allows non-browser clients (no Origin) and the configured origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeWebSocket upgrades an authenticated request and attaches it to the hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID, err := h.Auth.authenticate(c, true)
	if err != nil {
		abortUnauthorized(c, err)
		return
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Printf("WARN: websocket upgrade failed for user %s: %v", userID, err)
		return
	}

	client := chathub.NewWebSocketClient(userID, conn, h.Hub)
	h.Hub.Register(client)
	client.Run()
}
