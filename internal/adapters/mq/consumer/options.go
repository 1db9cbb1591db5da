package consumer

import (
	"github.com/okian/fanout/pkg/logger"
)

// Option applies a configuration option to the Consumer.
type Option func(*Consumer)

// WithName sets the consumer name for identification and logging.
func WithName(name string) Option {
	return func(c *Consumer) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets a custom logger for the consumer.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}
