// Package ws tracks live websocket sessions and fans events out to them.
package ws

import (
	"sync"

	"github.com/okian/fanout/pkg/metrics"
)

// Session is a live connection the hub can push to. Implementations must be
// safe for concurrent Send calls.
type Session interface {
	Send(message []byte) error
}

// Hub is the in-memory connection registry: a global set plus per-player
// sets. Membership changes take the lock; sends run against a snapshot so a
// slow client never blocks connect/disconnect.
type Hub struct {
	mu       sync.Mutex
	all      map[Session]struct{}
	byPlayer map[string]map[Session]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		all:      make(map[Session]struct{}),
		byPlayer: make(map[string]map[Session]struct{}),
	}
}

// Connect registers a session globally and, when playerID is non-empty, in
// that player's set. Idempotent per session.
func (h *Hub) Connect(s Session, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[s]; !ok {
		metrics.UpdateWSConnections(1)
	}
	h.all[s] = struct{}{}
	if playerID != "" {
		set, ok := h.byPlayer[playerID]
		if !ok {
			set = make(map[Session]struct{})
			h.byPlayer[playerID] = set
		}
		set[s] = struct{}{}
	}
}

// Disconnect removes a session from the global set and from every player
// set it belongs to. This is the only place sessions leave the registry;
// broadcast failures never remove membership.
func (h *Hub) Disconnect(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[s]; ok {
		metrics.UpdateWSConnections(-1)
	}
	delete(h.all, s)
	for playerID, set := range h.byPlayer {
		delete(set, s)
		if len(set) == 0 {
			delete(h.byPlayer, playerID)
		}
	}
}

// BroadcastAll pushes a message to every registered session, best effort.
// Broadcasting to zero sessions is a no-op.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.Lock()
	sessions := make([]Session, 0, len(h.all))
	for s := range h.all {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	metrics.RecordBroadcast("all")
	h.sendMany(sessions, message)
}

// BroadcastPlayer pushes a message to the sessions watching one player.
func (h *Hub) BroadcastPlayer(playerID string, message []byte) {
	h.mu.Lock()
	sessions := make([]Session, 0, len(h.byPlayer[playerID]))
	for s := range h.byPlayer[playerID] {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	metrics.RecordBroadcast("player")
	h.sendMany(sessions, message)
}

// Count returns the number of sessions in the global set.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.all)
}

// sendMany delivers to each session in turn. A failing send is swallowed so
// the remaining sessions still receive the message; cleanup happens when the
// session's own read loop calls Disconnect.
func (h *Hub) sendMany(sessions []Session, message []byte) {
	for _, s := range sessions {
		if err := s.Send(message); err != nil {
			metrics.RecordBroadcastSendError()
		}
	}
}
