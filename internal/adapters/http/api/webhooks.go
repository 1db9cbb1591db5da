// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// WebhooksHandler handles subscription management requests.
type WebhooksHandler struct {
	deps Dependencies
}

// NewWebhooksHandler creates a new webhooks handler.
func NewWebhooksHandler(deps Dependencies) *WebhooksHandler {
	return &WebhooksHandler{deps: deps}
}

// createWebhookRequest mirrors the POST /webhooks body.
type createWebhookRequest struct {
	URL        string   `json:"url"`
	EventTypes []string `json:"event_types"`
	Secret     string   `json:"secret"`
	PlayerID   string   `json:"player_id,omitempty"`
}

func (c createWebhookRequest) validate() error {
	switch {
	case strings.TrimSpace(c.URL) == "":
		return errors.New("missing url")
	case len(c.EventTypes) == 0:
		return errors.New("missing event_types")
	case strings.TrimSpace(c.Secret) == "":
		return errors.New("missing secret")
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("invalid url; must be absolute http(s)")
	}
	return nil
}

// disabledResponse mirrors the DELETE /webhooks/{id} success body.
type disabledResponse struct {
	Disabled       bool   `json:"disabled"`
	SubscriptionID string `json:"subscription_id"`
}

// HandleCollection handles GET and POST /webhooks requests.
func (h *WebhooksHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	const op = "api.webhooks"
	switch r.Method {
	case http.MethodGet:
		subs, err := h.deps.ListWebhooks(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err)
			return
		}
		if subs == nil {
			subs = []Subscription{}
		}
		writeJSON(w, http.StatusOK, subs)

	case http.MethodPost:
		var req createWebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		sub, err := h.deps.AddWebhook(r.Context(), req.URL, req.EventTypes, req.Secret, req.PlayerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err)
			return
		}
		writeJSON(w, http.StatusOK, sub)

	default:
		http.NotFound(w, r)
	}
}

// HandleItem handles DELETE /webhooks/{subscription_id} requests.
func (h *WebhooksHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/webhooks/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	ok, err := h.deps.DisableWebhook(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, detailResponse{Detail: "subscription not found"})
		return
	}
	writeJSON(w, http.StatusOK, disabledResponse{Disabled: true, SubscriptionID: id})
}
