package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store. It backs tests and storeless runs; the
// sqlite store provides durability.
type MemStore struct {
	mu         sync.RWMutex
	subs       map[string]Subscription
	order      []string // subscription ids in insertion order
	deliveries []DeliveryRecord
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		subs: make(map[string]Subscription),
	}
}

// List returns all subscriptions in insertion order.
func (m *MemStore) List(ctx context.Context) ([]Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Subscription, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, copySub(m.subs[id]))
	}
	return out, nil
}

// ListActive returns only active subscriptions in insertion order.
func (m *MemStore) ListActive(ctx context.Context) ([]Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Subscription
	for _, id := range m.order {
		if sub := m.subs[id]; sub.IsActive {
			out = append(out, copySub(sub))
		}
	}
	return out, nil
}

// Add persists a new active subscription and returns it.
func (m *MemStore) Add(ctx context.Context, url string, eventTypes []string, secret, playerID string) (Subscription, error) {
	sub := Subscription{
		SubscriptionID: uuid.NewString(),
		URL:            url,
		EventTypes:     append([]string(nil), eventTypes...),
		PlayerID:       playerID,
		Secret:         secret,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.SubscriptionID] = sub
	m.order = append(m.order, sub.SubscriptionID)
	return copySub(sub), nil
}

// Disable soft-deletes a subscription; the record is retained.
func (m *MemStore) Disable(ctx context.Context, subscriptionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[subscriptionID]
	if !ok {
		return false, nil
	}
	sub.IsActive = false
	m.subs[subscriptionID] = sub
	return true, nil
}

// Append records a delivery outcome.
func (m *MemStore) Append(ctx context.Context, rec DeliveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, rec)
	return nil
}

// Deliveries returns a snapshot of the delivery log, oldest first.
func (m *MemStore) Deliveries() []DeliveryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]DeliveryRecord(nil), m.deliveries...)
}

// Close releases nothing for the in-memory store.
func (m *MemStore) Close() error { return nil }

func copySub(s Subscription) Subscription {
	s.EventTypes = append([]string(nil), s.EventTypes...)
	return s
}
