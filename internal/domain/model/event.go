// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event represents a player event consumed from the stream.
// Derived events synthesized by the rule engine reuse the same shape and
// keep the originating event id.
type Event struct {
	EventID    string         // externally assigned, unique per base event
	EventType  string         // e.g. "player.score.updated"
	OccurredAt time.Time      // event timestamp
	PlayerID   string         // subject player identifier
	Data       map[string]any // open extension map, never nil after Parse
}

// wireEvent mirrors the JSON shape on the topic.
type wireEvent struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	PlayerID   string         `json:"player_id"`
	Data       map[string]any `json:"data"`
}

// Parse decodes and validates a raw stream payload.
// Callers must treat an error as skip-and-continue; malformed messages are
// never fatal to a consumer loop.
func Parse(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	switch {
	case w.EventID == "":
		return Event{}, fmt.Errorf("%w: missing event_id", ErrInvalidEvent)
	case w.EventType == "":
		return Event{}, fmt.Errorf("%w: missing event_type", ErrInvalidEvent)
	case w.OccurredAt.IsZero():
		return Event{}, fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	case w.PlayerID == "":
		return Event{}, fmt.Errorf("%w: missing player_id", ErrInvalidEvent)
	}
	data := w.Data
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		EventID:    w.EventID,
		EventType:  w.EventType,
		OccurredAt: w.OccurredAt,
		PlayerID:   w.PlayerID,
		Data:       data,
	}, nil
}

// Wire returns the JSON-ready representation used for webhook bodies and
// websocket broadcasts. Timestamps are rendered as RFC3339 UTC so the map
// marshals deterministically.
func (e Event) Wire() map[string]any {
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"event_id":    e.EventID,
		"event_type":  e.EventType,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
		"player_id":   e.PlayerID,
		"data":        data,
	}
}

// Int reads an integer from the extension map. Absent or non-numeric values
// coerce to zero; rule thresholds depend on this behavior.
func (e Event) Int(key string) int {
	v, ok := e.Data[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0
			}
			return int(f)
		}
		return int(i)
	default:
		return 0
	}
}
