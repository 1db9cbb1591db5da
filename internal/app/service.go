// Package service provides the core business service that wires the fanout
// pipelines and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/fanout/internal/adapters/mq/consumer"
	"github.com/okian/fanout/internal/adapters/repository"
	"github.com/okian/fanout/internal/adapters/webhook"
	"github.com/okian/fanout/internal/adapters/ws"
	"github.com/okian/fanout/internal/domain/rules"
	"github.com/okian/fanout/pkg/logger"
)

// consumerShutdownTimeout bounds how long Stop waits per pipeline.
const consumerShutdownTimeout = 30 * time.Second

// Service owns the shared state (store, hub) and both consumer loops.
// Lifecycle is explicit: construct on startup, Start, Stop on shutdown.
type Service struct {
	mu sync.Mutex

	// Core components
	store      repository.Store
	hub        *ws.Hub
	dispatcher *webhook.Dispatcher
	engine     *rules.Engine

	webhookConsumer  *consumer.Consumer
	realtimeConsumer *consumer.Consumer

	// Configuration
	brokers         []string
	topic           string
	webhookGroupID  string
	realtimeGroupID string
	dbPath          string
	attemptTimeout  time.Duration
	retryPolicy     *webhook.RetryPolicy

	// Injected sources (tests); nil means build Kafka sources from config.
	webhookSource  consumer.Source
	realtimeSource consumer.Source

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		hub:             ws.NewHub(),
		brokers:         []string{"localhost:9092"},
		topic:           "player-events",
		webhookGroupID:  "webhook-dispatcher-group",
		realtimeGroupID: "ws-gateway-group",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes storage, the dispatcher, and both consumer loops.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting fanout service...")

	if s.store == nil {
		if s.dbPath != "" {
			store, err := repository.OpenSQL(s.dbPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.dbPath))
		} else {
			s.store = repository.NewMemStore()
			s.logger.Info(ctx, "using in-memory store")
		}
	}

	dispatcherOpts := []webhook.Option{}
	if s.attemptTimeout > 0 {
		dispatcherOpts = append(dispatcherOpts, webhook.WithAttemptTimeout(s.attemptTimeout))
	}
	if s.retryPolicy != nil {
		dispatcherOpts = append(dispatcherOpts, webhook.WithRetryPolicy(*s.retryPolicy))
	}
	s.dispatcher = webhook.NewDispatcher(s.store, dispatcherOpts...)
	s.engine = rules.New()

	webhookSource := s.webhookSource
	if webhookSource == nil {
		webhookSource = consumer.NewKafkaSource(s.brokers, s.topic, s.webhookGroupID)
	}
	realtimeSource := s.realtimeSource
	if realtimeSource == nil {
		realtimeSource = consumer.NewKafkaSource(s.brokers, s.topic, s.realtimeGroupID)
	}

	s.webhookConsumer = consumer.New(
		webhookSource,
		NewWebhookPipeline(s.engine, s.store, s.dispatcher),
		consumer.WithName("webhook"),
	)
	s.realtimeConsumer = consumer.New(
		realtimeSource,
		NewRealtimePipeline(s.hub),
		consumer.WithName("realtime"),
	)

	go s.webhookConsumer.Run(ctx)
	go s.realtimeConsumer.Run(ctx)

	s.started = true
	s.logger.Info(ctx, "fanout service started",
		logger.String("topic", s.topic),
		logger.String("webhook_group", s.webhookGroupID),
		logger.String("realtime_group", s.realtimeGroupID),
	)
	return nil
}

// Stop gracefully shuts down the consumer loops and releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerShutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping fanout service...")

	if s.webhookConsumer != nil {
		if err := s.webhookConsumer.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "webhook consumer shutdown", logger.Error(err))
		}
	}
	if s.realtimeConsumer != nil {
		if err := s.realtimeConsumer.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "realtime consumer shutdown", logger.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "store close", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "fanout service stopped")
}

// Hub exposes the connection registry to the websocket handlers.
func (s *Service) Hub() *ws.Hub {
	return s.hub
}

// ListWebhooks returns all subscriptions regardless of active state.
func (s *Service) ListWebhooks(ctx context.Context) ([]repository.Subscription, error) {
	return s.store.List(ctx)
}

// AddWebhook registers a new active subscription.
func (s *Service) AddWebhook(ctx context.Context, url string, eventTypes []string, secret, playerID string) (repository.Subscription, error) {
	return s.store.Add(ctx, url, eventTypes, secret, playerID)
}

// DisableWebhook soft-deletes a subscription, reporting whether it exists.
func (s *Service) DisableWebhook(ctx context.Context, subscriptionID string) (bool, error) {
	return s.store.Disable(ctx, subscriptionID)
}
