package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/okian/fanout/internal/adapters/mq/consumer"
	"github.com/okian/fanout/internal/adapters/repository"
	"github.com/okian/fanout/internal/adapters/ws"
	"github.com/okian/fanout/internal/domain/model"
	"github.com/okian/fanout/internal/domain/rules"
	"github.com/okian/fanout/pkg/logger"
	"github.com/okian/fanout/pkg/metrics"
)

// Base event types the webhook pipeline accepts from the stream.
var webhookBaseEvents = []string{ //nolint:gochecknoglobals // fixed allow-list
	rules.EventScoreUpdated,
	rules.EventLevelUp,
	rules.EventAchievementUnlocked,
	rules.EventScoreAnomaly,
}

// Event types pushed to the realtime feed.
var realtimeEvents = []string{ //nolint:gochecknoglobals // fixed allow-list
	rules.EventScoreUpdated,
	rules.EventRankChanged,
	rules.EventLevelUp,
}

// deriver synthesizes secondary events from a base event.
type deriver interface {
	Derive(base model.Event) []model.Event
}

// deliverer posts one event to one subscription.
type deliverer interface {
	Deliver(ctx context.Context, sub repository.Subscription, evt model.Event) error
}

// WebhookPipeline handles stream events for the webhook path: derive, match
// active subscriptions, dispatch.
type WebhookPipeline struct {
	rules      deriver
	subs       repository.SubscriptionStore
	dispatcher deliverer
	allowed    map[string]struct{}
	logger     logger.Logger
}

// NewWebhookPipeline wires the webhook path handler.
func NewWebhookPipeline(rules deriver, subs repository.SubscriptionStore, dispatcher deliverer) *WebhookPipeline {
	return &WebhookPipeline{
		rules:      rules,
		subs:       subs,
		dispatcher: dispatcher,
		allowed:    toSet(webhookBaseEvents),
		logger:     logger.Get().Named("webhook-pipeline"),
	}
}

// Handle routes one validated event. Dispatcher failures are already logged
// and recorded by the dispatcher, so they are swallowed here; one broken
// subscriber never affects the others or stops the loop.
func (p *WebhookPipeline) Handle(ctx context.Context, evt model.Event) consumer.Outcome {
	if _, ok := p.allowed[evt.EventType]; !ok {
		return consumer.Skip
	}

	derived := p.rules.Derive(evt)
	if len(derived) == 0 {
		return consumer.Skip
	}

	subs, err := p.subs.ListActive(ctx)
	if err != nil {
		p.logger.Error(ctx, "listing active subscriptions failed", logger.Error(err))
		return consumer.Skip
	}
	metrics.UpdateSubscriptionsActive(len(subs))

	dispatched := false
	for _, d := range derived {
		metrics.RecordDerivedEvent(d.EventType)

		// Fan-out across subscriptions for one event may run concurrently;
		// waiting per event keeps events from one partition in order.
		var wg sync.WaitGroup
		for _, sub := range subs {
			if !sub.Wants(d.EventType, d.PlayerID) {
				continue
			}
			dispatched = true
			wg.Add(1)
			go func(sub repository.Subscription, d model.Event) {
				defer wg.Done()
				if err := p.dispatcher.Deliver(ctx, sub, d); err != nil {
					p.logger.Warn(ctx, "delivery failed",
						logger.String("subscription_id", sub.SubscriptionID),
						logger.String("event_type", d.EventType),
						logger.Error(err),
					)
				}
			}(sub, d)
		}
		wg.Wait()
	}

	if !dispatched {
		return consumer.Skip
	}
	return consumer.Processed
}

// RealtimePipeline handles stream events for the websocket path: filter by
// the realtime allow-list and broadcast to the player and global feeds.
type RealtimePipeline struct {
	hub     *ws.Hub
	allowed map[string]struct{}
	logger  logger.Logger
}

// NewRealtimePipeline wires the realtime path handler.
func NewRealtimePipeline(hub *ws.Hub) *RealtimePipeline {
	return &RealtimePipeline{
		hub:     hub,
		allowed: toSet(realtimeEvents),
		logger:  logger.Get().Named("realtime-pipeline"),
	}
}

// Handle broadcasts one validated event, best effort.
func (p *RealtimePipeline) Handle(ctx context.Context, evt model.Event) consumer.Outcome {
	if _, ok := p.allowed[evt.EventType]; !ok {
		return consumer.Skip
	}

	message, err := json.Marshal(evt.Wire())
	if err != nil {
		p.logger.Error(ctx, "encoding event for broadcast failed",
			logger.String("event_id", evt.EventID),
			logger.Error(err),
		)
		return consumer.Skip
	}

	p.hub.BroadcastPlayer(evt.PlayerID, message)
	p.hub.BroadcastAll(message)
	return consumer.Processed
}

func toSet(types []string) map[string]struct{} {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}
