// Package consumer drives the per-pipeline stream consumption loops.
//
// The loop driver is uniform: fetch, validate, hand the event to a pipeline
// handler, commit. Validation failures and filtered events are skips, never
// errors; a skip commits the message like any other so the broker moves on.
package consumer

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/okian/fanout/internal/domain/model"
	"github.com/okian/fanout/pkg/logger"
	"github.com/okian/fanout/pkg/metrics"
)

// fetchErrorBackoff throttles the loop when the source is unhealthy.
const fetchErrorBackoff = time.Second

// Message is one raw stream record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
}

// Source abstracts the broker client: fetch one message, commit it after
// processing, close on shutdown. Commit-after-process gives at-least-once.
type Source interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, m Message) error
	Close() error
}

// Outcome is the explicit per-message result a handler reports back.
type Outcome int

const (
	// Skip means the event was filtered or produced nothing to do.
	Skip Outcome = iota
	// Processed means the event was routed to at least one downstream.
	Processed
)

// Handler routes one validated event for a pipeline.
type Handler interface {
	Handle(ctx context.Context, evt model.Event) Outcome
}

// Consumer runs a single consumption loop until stopped.
type Consumer struct {
	source  Source
	handler Handler
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a consumer over source, routing events through handler.
func New(source Source, handler Handler, opts ...Option) *Consumer {
	c := &Consumer{
		source:   source,
		handler:  handler,
		name:     "consumer",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("consumer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.name != "consumer" {
		c.logger = c.logger.Named(c.name)
	}
	return c
}

// Run consumes until ctx is canceled or Shutdown is called. The stop signal
// is checked at the top of each iteration; the in-flight message always
// completes before the loop exits.
func (c *Consumer) Run(ctx context.Context) {
	defer close(c.done)

	// A separate fetch context lets Shutdown interrupt a blocked fetch
	// without canceling a handler that is mid-delivery.
	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()
	go func() {
		select {
		case <-c.shutdown:
			cancelFetch()
		case <-fetchCtx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		default:
		}

		msg, err := c.source.Fetch(fetchCtx)
		if err != nil {
			if fetchCtx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			c.logger.Error(ctx, "fetch failed", logger.Error(err))
			select {
			case <-time.After(fetchErrorBackoff):
			case <-fetchCtx.Done():
				return
			}
			continue
		}

		evt, perr := model.Parse(msg.Value)
		if perr != nil {
			metrics.RecordEventSkipped(c.name, "invalid")
			c.logger.Debug(ctx, "skipping malformed message",
				logger.Int("partition", msg.Partition),
				logger.Any("offset", msg.Offset),
				logger.Error(perr),
			)
		} else {
			switch c.handler.Handle(ctx, evt) {
			case Processed:
				metrics.RecordEventConsumed(c.name)
			case Skip:
				metrics.RecordEventSkipped(c.name, "filtered")
			}
		}

		if err := c.source.Commit(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn(ctx, "commit failed",
				logger.Int("partition", msg.Partition),
				logger.Any("offset", msg.Offset),
				logger.Error(err),
			)
		}
	}
}

// Shutdown signals the loop to stop after the in-flight message and waits
// for it to exit, then closes the source.
func (c *Consumer) Shutdown(ctx context.Context) error {
	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}

	select {
	case <-c.done:
	case <-ctx.Done():
		c.logger.Warn(ctx, "shutdown timed out")
		_ = c.source.Close()
		return ErrShutdownTimeout
	}
	return c.source.Close()
}
