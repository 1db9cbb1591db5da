// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/okian/fanout/internal/adapters/ws"
	"github.com/okian/fanout/pkg/logger"
)

// FeedHandler upgrades realtime feed connections and parks them in the hub.
type FeedHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewFeedHandler creates a new realtime feed handler.
func NewFeedHandler(hub *ws.Hub) *FeedHandler {
	return &FeedHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.Get().Named("feed"),
	}
}

// HandleGlobal handles GET /ws: the global feed.
func (h *FeedHandler) HandleGlobal(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "")
}

// HandlePlayer handles GET /ws/player/{player_id}: a scoped feed.
func (h *FeedHandler) HandlePlayer(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimPrefix(r.URL.Path, "/ws/player/")
	if playerID == "" || strings.Contains(playerID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	h.serve(w, r, playerID)
}

// serve upgrades the connection, registers it, and blocks draining client
// frames until the peer goes away. Client messages are ignored; the read
// loop exists only to notice disconnect.
func (h *FeedHandler) serve(w http.ResponseWriter, r *http.Request, playerID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	session := ws.NewConnSession(conn)
	h.hub.Connect(session, playerID)
	defer func() {
		h.hub.Disconnect(session)
		_ = session.Close()
	}()

	_ = session.Drain()
}
