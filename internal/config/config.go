// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Brokers lists the Kafka bootstrap addresses.
	Brokers []string `koanf:"brokers"`

	// Topic is the player event topic both pipelines consume.
	Topic string `koanf:"topic"`

	// WebhookGroupID and RealtimeGroupID are the consumer group identities.
	// They must stay distinct so each pipeline sees every message.
	WebhookGroupID  string `koanf:"webhook_group_id"`
	RealtimeGroupID string `koanf:"realtime_group_id"`

	// DBPath points at the sqlite database file for subscriptions and
	// delivery logs. Empty selects the in-memory store.
	DBPath string `koanf:"db_path"`

	// DeliveryTimeoutMS bounds each webhook POST attempt.
	DeliveryTimeoutMS int `koanf:"delivery_timeout_ms"`

	// DeliveryMaxAttempts caps attempts per delivery, retries included.
	DeliveryMaxAttempts int `koanf:"delivery_max_attempts"`

	// DeliveryBaseDelayMS and DeliveryMaxDelayMS shape the retry backoff.
	DeliveryBaseDelayMS int `koanf:"delivery_base_delay_ms"`
	DeliveryMaxDelayMS  int `koanf:"delivery_max_delay_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":8080",
		Brokers:             []string{"localhost:9092"},
		Topic:               "player-events",
		WebhookGroupID:      "webhook-dispatcher-group",
		RealtimeGroupID:     "ws-gateway-group",
		DBPath:              "",
		DeliveryTimeoutMS:   5_000,
		DeliveryMaxAttempts: 5,
		DeliveryBaseDelayMS: 500,
		DeliveryMaxDelayMS:  10_000,
	}
}
