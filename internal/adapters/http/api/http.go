// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/fanout/internal/adapters/repository"
	"github.com/okian/fanout/internal/adapters/ws"
)

// Subscription mirrors the shape returned by registry queries.
type Subscription = repository.Subscription

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// ListWebhooks returns all subscriptions regardless of active state.
	ListWebhooks(ctx context.Context) ([]Subscription, error)

	// AddWebhook registers a new active subscription.
	AddWebhook(ctx context.Context, url string, eventTypes []string, secret, playerID string) (Subscription, error)

	// DisableWebhook soft-deletes a subscription, reporting existence.
	DisableWebhook(ctx context.Context, subscriptionID string) (bool, error)

	// Hub exposes the live connection registry.
	Hub() *ws.Hub
}

// Server wires HTTP routes for the fanout API.
type Server struct {
	healthHandler   *HealthHandler
	webhooksHandler *WebhooksHandler
	feedHandler     *FeedHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		webhooksHandler: NewWebhooksHandler(deps),
		feedHandler:     NewFeedHandler(deps.Hub()),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/webhooks", MetricsMiddleware(s.webhooksHandler.HandleCollection, "webhooks"))
	mux.HandleFunc("/webhooks/", MetricsMiddleware(s.webhooksHandler.HandleItem, "webhooks_item"))
	mux.HandleFunc("/ws", s.feedHandler.HandleGlobal)
	mux.HandleFunc("/ws/player/", s.feedHandler.HandlePlayer)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// detailResponse matches the not-found body shape of the admin surface.
type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
