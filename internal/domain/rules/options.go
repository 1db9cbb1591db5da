// Package rules synthesizes secondary events from base score updates.
package rules

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLevelUpScore sets the level-up crossing threshold.
func WithLevelUpScore(score int) Option {
	return func(e *Engine) {
		if score > 0 {
			e.levelUpScore = score
		}
	}
}

// WithAchievementScore sets the achievement crossing threshold.
func WithAchievementScore(score int) Option {
	return func(e *Engine) {
		if score > 0 {
			e.achievementScore = score
		}
	}
}

// WithAnomalyDelta sets the absolute delta that flags an anomaly.
func WithAnomalyDelta(delta int) Option {
	return func(e *Engine) {
		if delta > 0 {
			e.anomalyDelta = delta
		}
	}
}
