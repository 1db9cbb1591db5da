package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fanout/internal/adapters/repository"
	"github.com/okian/fanout/internal/domain/model"
	"github.com/okian/fanout/pkg/logger"
	"github.com/okian/fanout/pkg/metrics"
)

// Default delivery configuration constants.
const (
	defaultAttemptTimeout = 5 * time.Second
	defaultMaxAttempts    = 5
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxDelay       = 10 * time.Second

	userAgent = "fanout/webhook"

	logAppendTimeout = 2 * time.Second
)

// Delivery headers.
const (
	HeaderWebhookID  = "X-Webhook-Id"
	HeaderDeliveryID = "X-Delivery-Id"
	HeaderEventID    = "X-Event-Id"
	HeaderEventType  = "X-Event-Type"
	HeaderSignature  = "X-Signature"
)

// Dispatcher signs and POSTs event payloads to subscription endpoints with
// bounded retries. Every Deliver call writes exactly one delivery record,
// whatever the outcome.
type Dispatcher struct {
	client *http.Client
	log    repository.DeliveryLog
	retry  RetryPolicy
	logger logger.Logger
}

// NewDispatcher creates a Dispatcher writing outcomes to log.
func NewDispatcher(log repository.DeliveryLog, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client: &http.Client{Timeout: defaultAttemptTimeout},
		log:    log,
		retry: RetryPolicy{
			MaxAttempts: defaultMaxAttempts,
			BaseDelay:   defaultBaseDelay,
			MaxDelay:    defaultMaxDelay,
			Multiplier:  2,
			// Only transport-level failures retry. HTTP responses never
			// reach the predicate; they are terminal by construction.
			Retryable: func(error) bool { return true },
		},
		logger: logger.Get().Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver signs and POSTs the event to the subscription URL. Non-2xx
// responses are terminal and recorded with their status code; only network
// failures retry. After exhausting retries the final error is returned, but
// the delivery record is written first. A failing subscriber therefore
// never costs more than one logged error at the call site.
func (d *Dispatcher) Deliver(ctx context.Context, sub repository.Subscription, evt model.Event) error {
	start := time.Now()
	deliveryID := uuid.NewString()

	rec := repository.DeliveryRecord{
		DeliveryID:     deliveryID,
		SubscriptionID: sub.SubscriptionID,
		URL:            sub.URL,
		EventID:        evt.EventID,
		EventType:      evt.EventType,
		PlayerID:       evt.PlayerID,
		AttemptedAt:    time.Now().UTC(),
	}
	defer func() {
		d.appendRecord(ctx, rec)
		metrics.RecordDeliveryLatency(time.Since(start).Seconds())
	}()

	body, err := Canonical(evt.Wire())
	if err != nil {
		rec.Error = err.Error()
		metrics.RecordDelivery("payload_error")
		return err
	}
	signature := Sign(sub.Secret, body)

	op := func() error {
		metrics.RecordDeliveryAttempt()
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
		if reqErr != nil {
			return fmt.Errorf("%w: %v", ErrBadRequest, reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set(HeaderWebhookID, sub.SubscriptionID)
		req.Header.Set(HeaderDeliveryID, deliveryID)
		req.Header.Set(HeaderEventID, evt.EventID)
		req.Header.Set(HeaderEventType, evt.EventType)
		req.Header.Set(HeaderSignature, signature)

		resp, doErr := d.client.Do(req)
		if doErr != nil {
			return doErr // network-level, retryable
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		status := resp.StatusCode
		rec.StatusCode = &status
		return nil
	}

	if err := d.withBadRequestGuard(d.retry).Do(ctx, op); err != nil {
		rec.Error = err.Error()
		metrics.RecordDelivery("network_error")
		return fmt.Errorf("deliver %s to %s: %w", evt.EventType, sub.URL, err)
	}

	if *rec.StatusCode >= 200 && *rec.StatusCode < 300 {
		metrics.RecordDelivery("ok")
	} else {
		metrics.RecordDelivery("http_error")
	}
	return nil
}

// withBadRequestGuard layers the unbuildable-request check on top of the
// configured predicate so a malformed URL fails fast instead of retrying.
func (d *Dispatcher) withBadRequestGuard(p RetryPolicy) RetryPolicy {
	inner := p.Retryable
	p.Retryable = func(err error) bool {
		if errors.Is(err, ErrBadRequest) {
			return false
		}
		if inner == nil {
			return true
		}
		return inner(err)
	}
	return p
}

// appendRecord writes the delivery record on a detached context so a
// cancelled caller cannot lose the log entry.
func (d *Dispatcher) appendRecord(ctx context.Context, rec repository.DeliveryRecord) {
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logAppendTimeout)
	defer cancel()
	if err := d.log.Append(logCtx, rec); err != nil {
		metrics.RecordDeliveryLogError()
		d.logger.Error(logCtx, "failed to append delivery record",
			logger.String("delivery_id", rec.DeliveryID),
			logger.String("subscription_id", rec.SubscriptionID),
			logger.Error(err),
		)
	}
}
