package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/casafind/casafind-chat-api/api"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
	},
}

// ChatSocketHandler upgrades the connection and streams chat pushes for the
// ticket's identity until the client goes away. Messages missed while
// disconnected are not replayed here; clients catch up via GET /chat/messages.
func (c Chat) ChatSocketHandler(w http.ResponseWriter, r *http.Request) {
	ident, err := api.ParseWSTicket(c.JWTSecret, r.URL.Query().Get("ticket"))
	if err != nil {
		zap.S().Warnw("rejected chat websocket handshake", "error", err)
		http.Error(w, `{"error": "invalid ticket"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "error", err)
		return
	}

	session := c.Hub.Subscribe(ident.ID, ident.Role)
	zap.S().Infow("chat session connected",
		"session", session.ID,
		"identity", ident.ID,
		"role", ident.Role,
	)

	// write pump
	go func() {
		defer conn.Close()
		for {
			select {
			case msg := <-session.Messages():
				err := conn.WriteJSON(map[string]interface{}{
					"event": "chat_message",
					"data":  msg,
				})
				if err != nil {
					zap.S().Warnw("failed to push chat message", "session", session.ID, "error", err)
					c.Hub.Unsubscribe(session)
					return
				}
			case <-session.Done():
				return
			}
		}
	}()

	// read loop only detects the client going away
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	c.Hub.Unsubscribe(session)
	conn.Close()
	zap.S().Infow("chat session disconnected", "session", session.ID, "identity", ident.ID)
}
