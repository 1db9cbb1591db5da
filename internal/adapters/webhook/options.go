package webhook

import (
	"net/http"
	"time"

	"github.com/okian/fanout/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithAttemptTimeout bounds each HTTP attempt independently.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.client.Timeout = timeout
		}
	}
}

// WithRetryPolicy replaces the delivery retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(d *Dispatcher) {
		if policy.MaxAttempts > 0 {
			d.retry = policy
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
