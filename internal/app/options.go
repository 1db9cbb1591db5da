package service

import (
	"time"

	"github.com/okian/fanout/internal/adapters/mq/consumer"
	"github.com/okian/fanout/internal/adapters/repository"
	"github.com/okian/fanout/internal/adapters/webhook"
	"github.com/okian/fanout/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBrokers sets the Kafka bootstrap addresses.
func WithBrokers(brokers []string) Option {
	return func(s *Service) {
		if len(brokers) > 0 {
			s.brokers = brokers
		}
	}
}

// WithTopic sets the player event topic.
func WithTopic(topic string) Option {
	return func(s *Service) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithGroupIDs sets the consumer group identities for the two pipelines.
func WithGroupIDs(webhookGroup, realtimeGroup string) Option {
	return func(s *Service) {
		if webhookGroup != "" {
			s.webhookGroupID = webhookGroup
		}
		if realtimeGroup != "" {
			s.realtimeGroupID = realtimeGroup
		}
	}
}

// WithDBPath selects the sqlite store at path; empty keeps the in-memory
// store.
func WithDBPath(path string) Option {
	return func(s *Service) {
		s.dbPath = path
	}
}

// WithStore injects a pre-built store, overriding WithDBPath.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSources injects pre-built stream sources, bypassing Kafka. Intended
// for tests.
func WithSources(webhookSource, realtimeSource consumer.Source) Option {
	return func(s *Service) {
		s.webhookSource = webhookSource
		s.realtimeSource = realtimeSource
	}
}

// WithDeliveryTimeout bounds each webhook POST attempt.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.attemptTimeout = timeout
		}
	}
}

// WithRetryPolicy replaces the webhook delivery retry policy.
func WithRetryPolicy(policy webhook.RetryPolicy) Option {
	return func(s *Service) {
		if policy.MaxAttempts > 0 {
			s.retryPolicy = &policy
		}
	}
}
