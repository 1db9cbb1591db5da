// Package rules synthesizes secondary events from base score updates.
//
// Derivation is a pure function of the input event: no I/O, no state. Each
// rule is evaluated independently, so a single score update can fire zero,
// one, or several derived events.
package rules

import (
	"github.com/okian/fanout/internal/domain/model"
)

// Event type tags used by the engine and its consumers.
const (
	EventScoreUpdated        = "player.score.updated"
	EventLevelUp             = "player.level.up"
	EventAchievementUnlocked = "player.achievement.unlocked"
	EventScoreAnomaly        = "player.score.anomaly_detected"
	EventRankChanged         = "player.rank.changed"
)

// Default rule thresholds.
const (
	defaultLevelUpScore     = 1000
	defaultAchievementScore = 5000
	defaultAnomalyDelta     = 500

	// anomalyWindowSeconds is a declared policy constant carried in the
	// anomaly payload. The engine flags any single large delta; it does not
	// correlate events inside the window.
	anomalyWindowSeconds = 10
)

// Engine derives secondary events from score updates.
type Engine struct {
	levelUpScore     int
	achievementScore int
	anomalyDelta     int
}

// New creates an Engine with default thresholds.
func New(opts ...Option) *Engine {
	e := &Engine{
		levelUpScore:     defaultLevelUpScore,
		achievementScore: defaultAchievementScore,
		anomalyDelta:     defaultAnomalyDelta,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Derive returns the derived events for a base event. Only score updates
// derive anything; every derived event keeps the origin's event id, player
// id and timestamp.
func (e *Engine) Derive(base model.Event) []model.Event {
	if base.EventType != EventScoreUpdated {
		return nil
	}

	delta := base.Int("delta")
	before := base.Int("score_before")
	after := base.Int("score_after")

	var out []model.Event

	// Level-up fires on upward crossings only; a score that was already at
	// or above the threshold never re-triggers.
	if before < e.levelUpScore && after >= e.levelUpScore {
		out = append(out, derived(base, EventLevelUp, map[string]any{
			"old_level": base.Data["level_before"],
			"new_level": base.Data["level_after"],
			"score":     after,
		}))
	}

	if before < e.achievementScore && after >= e.achievementScore {
		out = append(out, derived(base, EventAchievementUnlocked, map[string]any{
			"achievement": "Silver",
			"score":       after,
		}))
	}

	if abs(delta) >= e.anomalyDelta {
		out = append(out, derived(base, EventScoreAnomaly, map[string]any{
			"delta":          delta,
			"window_seconds": anomalyWindowSeconds,
		}))
	}

	return out
}

func derived(base model.Event, eventType string, data map[string]any) model.Event {
	return model.Event{
		EventID:    base.EventID,
		EventType:  eventType,
		OccurredAt: base.OccurredAt,
		PlayerID:   base.PlayerID,
		Data:       data,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
