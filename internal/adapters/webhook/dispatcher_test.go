package webhook_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	repository "github.com/okian/fanout/internal/adapters/repository"
	webhook "github.com/okian/fanout/internal/adapters/webhook"
	model "github.com/okian/fanout/internal/domain/model"
	"github.com/okian/fanout/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func fastRetry(maxAttempts int) webhook.RetryPolicy {
	return webhook.RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
		Retryable:   func(error) bool { return true },
	}
}

func testEvent() model.Event {
	return model.Event{
		EventID:    "evt-1",
		EventType:  "player.level.up",
		OccurredAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		PlayerID:   "p1",
		Data:       map[string]any{"new_level": 2},
	}
}

func TestDeliver(t *testing.T) {
	convey.Convey("Given a dispatcher with an in-memory delivery log", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		convey.Convey("When the endpoint accepts the delivery", func() {
			var (
				calls   atomic.Int64
				gotBody []byte
				gotHdr  http.Header
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				gotBody, _ = io.ReadAll(r.Body)
				gotHdr = r.Header.Clone()
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			sub := repository.Subscription{
				SubscriptionID: "sub-1",
				URL:            srv.URL,
				EventTypes:     []string{"player.level.up"},
				Secret:         "topsecret",
				IsActive:       true,
			}

			d := webhook.NewDispatcher(store, webhook.WithRetryPolicy(fastRetry(5)))
			err := d.Deliver(ctx, sub, testEvent())

			convey.Convey("Then it should send exactly one request", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(calls.Load(), convey.ShouldEqual, 1)
			})

			convey.Convey("And the identity headers should be set", func() {
				convey.So(gotHdr.Get(webhook.HeaderWebhookID), convey.ShouldEqual, "sub-1")
				convey.So(gotHdr.Get(webhook.HeaderDeliveryID), convey.ShouldNotBeEmpty)
				convey.So(gotHdr.Get(webhook.HeaderEventID), convey.ShouldEqual, "evt-1")
				convey.So(gotHdr.Get(webhook.HeaderEventType), convey.ShouldEqual, "player.level.up")
				convey.So(gotHdr.Get("Content-Type"), convey.ShouldEqual, "application/json")
			})

			convey.Convey("And the signature should verify against the body", func() {
				sig := gotHdr.Get(webhook.HeaderSignature)
				convey.So(sig, convey.ShouldStartWith, "sha256=")
				convey.So(webhook.Verify("topsecret", gotBody, sig), convey.ShouldBeTrue)
			})

			convey.Convey("And exactly one delivery record should exist with the status", func() {
				recs := store.Deliveries()
				convey.So(len(recs), convey.ShouldEqual, 1)
				convey.So(recs[0].SubscriptionID, convey.ShouldEqual, "sub-1")
				convey.So(recs[0].EventID, convey.ShouldEqual, "evt-1")
				convey.So(recs[0].StatusCode, convey.ShouldNotBeNil)
				convey.So(*recs[0].StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(recs[0].Error, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the endpoint returns a server error", func() {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			sub := repository.Subscription{SubscriptionID: "sub-2", URL: srv.URL, Secret: "s"}

			d := webhook.NewDispatcher(store, webhook.WithRetryPolicy(fastRetry(5)))
			err := d.Deliver(ctx, sub, testEvent())

			convey.Convey("Then the response should be terminal with no retries", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(calls.Load(), convey.ShouldEqual, 1)
			})

			convey.Convey("And the record should carry the status code", func() {
				recs := store.Deliveries()
				convey.So(len(recs), convey.ShouldEqual, 1)
				convey.So(*recs[0].StatusCode, convey.ShouldEqual, http.StatusInternalServerError)
			})
		})

		convey.Convey("When the endpoint is unreachable", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			url := srv.URL
			srv.Close()

			sub := repository.Subscription{SubscriptionID: "sub-3", URL: url, Secret: "s"}

			d := webhook.NewDispatcher(store, webhook.WithRetryPolicy(fastRetry(3)))
			err := d.Deliver(ctx, sub, testEvent())

			convey.Convey("Then retries should exhaust and the error should surface", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})

			convey.Convey("And a single record should capture the failure", func() {
				recs := store.Deliveries()
				convey.So(len(recs), convey.ShouldEqual, 1)
				convey.So(recs[0].StatusCode, convey.ShouldBeNil)
				convey.So(recs[0].Error, convey.ShouldNotBeEmpty)
			})
		})

		convey.Convey("When the subscription URL cannot form a request", func() {
			sub := repository.Subscription{SubscriptionID: "sub-4", URL: "http://bad host/\x7f", Secret: "s"}

			d := webhook.NewDispatcher(store, webhook.WithRetryPolicy(fastRetry(5)))
			err := d.Deliver(ctx, sub, testEvent())

			convey.Convey("Then the failure should be permanent, not retried", func() {
				convey.So(err, convey.ShouldNotBeNil)
				recs := store.Deliveries()
				convey.So(len(recs), convey.ShouldEqual, 1)
				convey.So(recs[0].Error, convey.ShouldNotBeEmpty)
			})
		})
	})
}

func TestRetryPolicy(t *testing.T) {
	convey.Convey("Given an explicit retry policy", t, func() {
		ctx := context.Background()

		convey.Convey("When the operation keeps failing", func() {
			var calls atomic.Int64
			policy := fastRetry(4)
			err := policy.Do(ctx, func() error {
				calls.Add(1)
				return io.ErrUnexpectedEOF
			})

			convey.Convey("Then it should stop at the attempt cap", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(calls.Load(), convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the operation succeeds mid-way", func() {
			var calls atomic.Int64
			policy := fastRetry(5)
			err := policy.Do(ctx, func() error {
				if calls.Add(1) < 3 {
					return io.ErrUnexpectedEOF
				}
				return nil
			})

			convey.Convey("Then no further attempts should happen", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(calls.Load(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the predicate marks an error permanent", func() {
			var calls atomic.Int64
			policy := fastRetry(5)
			policy.Retryable = func(error) bool { return false }
			err := policy.Do(ctx, func() error {
				calls.Add(1)
				return io.ErrUnexpectedEOF
			})

			convey.Convey("Then exactly one attempt should run", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(calls.Load(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the context is already cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			var calls atomic.Int64
			policy := fastRetry(5)
			err := policy.Do(cancelled, func() error {
				calls.Add(1)
				return io.ErrUnexpectedEOF
			})

			convey.Convey("Then retries should stop promptly", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(calls.Load(), convey.ShouldBeLessThanOrEqualTo, 1)
			})
		})
	})
}
