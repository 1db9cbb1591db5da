// Package repository defines the subscription registry and delivery log
// contracts plus their storage backends.
package repository

import (
	"context"
	"time"
)

// Subscription is a registered intent by an external HTTP endpoint to
// receive events of certain types, optionally scoped to one player.
// The subscription id is globally unique and immutable after creation.
type Subscription struct {
	SubscriptionID string    `json:"subscription_id"`
	URL            string    `json:"url"`
	EventTypes     []string  `json:"event_types"`
	PlayerID       string    `json:"player_id,omitempty"` // empty = all players
	Secret         string    `json:"secret"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Wants reports whether this subscription should receive an event of the
// given type for the given player.
func (s Subscription) Wants(eventType, playerID string) bool {
	if s.PlayerID != "" && s.PlayerID != playerID {
		return false
	}
	for _, t := range s.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// DeliveryRecord captures the outcome of one deliver call. Exactly one
// record exists per call regardless of how many retries happened inside it.
type DeliveryRecord struct {
	DeliveryID     string    `json:"delivery_id"`
	SubscriptionID string    `json:"subscription_id"`
	URL            string    `json:"url"`
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	PlayerID       string    `json:"player_id"`
	StatusCode     *int      `json:"status_code,omitempty"`
	Error          string    `json:"error,omitempty"`
	AttemptedAt    time.Time `json:"attempted_at"`
}

// SubscriptionStore provides CRUD over webhook subscriptions.
// There is no update-in-place for url/event_types/secret; subscribers
// disable and re-add to change those fields.
type SubscriptionStore interface {
	// List returns all records regardless of active state.
	List(ctx context.Context) ([]Subscription, error)

	// ListActive returns only records with is_active == true.
	ListActive(ctx context.Context) ([]Subscription, error)

	// Add generates a unique id, persists the record with is_active=true
	// and created_at=now, and returns it. playerID may be empty.
	Add(ctx context.Context, url string, eventTypes []string, secret, playerID string) (Subscription, error)

	// Disable soft-deletes a subscription. It returns whether a record with
	// that id exists; calling it twice is safe and reports existence, not
	// prior state.
	Disable(ctx context.Context, subscriptionID string) (bool, error)
}

// DeliveryLog is the append-only sink for delivery records.
type DeliveryLog interface {
	Append(ctx context.Context, rec DeliveryRecord) error
}

// Store combines both persistence concerns behind one handle.
type Store interface {
	SubscriptionStore
	DeliveryLog

	Close() error
}
