package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEventsWebSocket pushes session change events to a UI client until the
// client disconnects.
func (s *Server) handleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	events := s.svc.Subscribe()
	done := make(chan struct{})

	// Reader goroutine: only watches for the client closing.
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev := <-events:
			if err := ws.WriteJSON(ev); err != nil {
				slog.Error("Failed event push", "error", err)
				return
			}
		case <-ticker.C:
			// Keepalive
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
