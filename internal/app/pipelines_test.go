package service_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	consumer "github.com/okian/fanout/internal/adapters/mq/consumer"
	repository "github.com/okian/fanout/internal/adapters/repository"
	webhook "github.com/okian/fanout/internal/adapters/webhook"
	ws "github.com/okian/fanout/internal/adapters/ws"
	service "github.com/okian/fanout/internal/app"
	model "github.com/okian/fanout/internal/domain/model"
	rules "github.com/okian/fanout/internal/domain/rules"
	"github.com/okian/fanout/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func scoreEvent(playerID string, before, after int) model.Event {
	return model.Event{
		EventID:    "evt-1",
		EventType:  rules.EventScoreUpdated,
		OccurredAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		PlayerID:   playerID,
		Data: map[string]any{
			"delta":        after - before,
			"score_before": before,
			"score_after":  after,
			"level_before": 1,
			"level_after":  2,
		},
	}
}

type receivedHook struct {
	eventType string
	body      map[string]any
	signature string
	raw       []byte
}

// hookRecorder collects webhook deliveries arriving at a test endpoint.
type hookRecorder struct {
	mu    sync.Mutex
	hooks []receivedHook
}

func (r *hookRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		raw, _ := io.ReadAll(req.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		r.mu.Lock()
		r.hooks = append(r.hooks, receivedHook{
			eventType: req.Header.Get(webhook.HeaderEventType),
			body:      body,
			signature: req.Header.Get(webhook.HeaderSignature),
			raw:       raw,
		})
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (r *hookRecorder) all() []receivedHook {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]receivedHook(nil), r.hooks...)
}

func (r *hookRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.hooks))
	for _, h := range r.hooks {
		out = append(out, h.eventType)
	}
	return out
}

func TestWebhookPipeline(t *testing.T) {
	convey.Convey("Given a webhook pipeline over an in-memory registry", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		engine := rules.New()
		dispatcher := webhook.NewDispatcher(store, webhook.WithRetryPolicy(webhook.RetryPolicy{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
			Multiplier:  2,
			Retryable:   func(error) bool { return true },
		}))
		pipeline := service.NewWebhookPipeline(engine, store, dispatcher)

		recorder := &hookRecorder{}
		srv := httptest.NewServer(recorder.handler())
		defer srv.Close()

		convey.Convey("When a level-up crossing arrives with a matching subscription", func() {
			_, err := store.Add(ctx, srv.URL, []string{rules.EventLevelUp}, "hooksecret", "")
			convey.So(err, convey.ShouldBeNil)

			outcome := pipeline.Handle(ctx, scoreEvent("p1", 950, 1050))

			convey.Convey("Then the derived event should be delivered once", func() {
				convey.So(outcome, convey.ShouldEqual, consumer.Processed)
				hooks := recorder.all()
				convey.So(len(hooks), convey.ShouldEqual, 1)
				convey.So(hooks[0].eventType, convey.ShouldEqual, rules.EventLevelUp)
				convey.So(hooks[0].body["player_id"], convey.ShouldEqual, "p1")
			})

			convey.Convey("And a delivery record should be logged", func() {
				recs := store.Deliveries()
				convey.So(len(recs), convey.ShouldEqual, 1)
				convey.So(recs[0].EventType, convey.ShouldEqual, rules.EventLevelUp)
				convey.So(*recs[0].StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When one update fires several rules", func() {
			_, err := store.Add(ctx, srv.URL, []string{rules.EventLevelUp, rules.EventScoreAnomaly}, "hooksecret", "")
			convey.So(err, convey.ShouldBeNil)

			outcome := pipeline.Handle(ctx, scoreEvent("p1", 400, 1400))

			convey.Convey("Then each derived event should arrive exactly once", func() {
				convey.So(outcome, convey.ShouldEqual, consumer.Processed)
				types := recorder.types()
				convey.So(len(types), convey.ShouldEqual, 2)
				convey.So(types, convey.ShouldContain, rules.EventLevelUp)
				convey.So(types, convey.ShouldContain, rules.EventScoreAnomaly)
			})
		})

		convey.Convey("When the subscription is scoped to a different player", func() {
			_, err := store.Add(ctx, srv.URL, []string{rules.EventLevelUp}, "hooksecret", "someone-else")
			convey.So(err, convey.ShouldBeNil)

			outcome := pipeline.Handle(ctx, scoreEvent("p1", 950, 1050))

			convey.Convey("Then nothing should be delivered and the event skips", func() {
				convey.So(outcome, convey.ShouldEqual, consumer.Skip)
				convey.So(recorder.all(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the subscription has been disabled", func() {
			sub, err := store.Add(ctx, srv.URL, []string{rules.EventLevelUp}, "hooksecret", "")
			convey.So(err, convey.ShouldBeNil)
			_, err = store.Disable(ctx, sub.SubscriptionID)
			convey.So(err, convey.ShouldBeNil)

			outcome := pipeline.Handle(ctx, scoreEvent("p1", 950, 1050))

			convey.Convey("Then nothing should be delivered", func() {
				convey.So(outcome, convey.ShouldEqual, consumer.Skip)
				convey.So(recorder.all(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When no rule fires for an update", func() {
			_, err := store.Add(ctx, srv.URL, []string{rules.EventLevelUp}, "hooksecret", "")
			convey.So(err, convey.ShouldBeNil)

			outcome := pipeline.Handle(ctx, scoreEvent("p1", 100, 150))

			convey.Convey("Then the event should skip", func() {
				convey.So(outcome, convey.ShouldEqual, consumer.Skip)
				convey.So(recorder.all(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the event type is outside the allow-list", func() {
			outcome := pipeline.Handle(ctx, model.Event{
				EventID:    "evt-x",
				EventType:  rules.EventRankChanged,
				OccurredAt: time.Now(),
				PlayerID:   "p1",
				Data:       map[string]any{},
			})

			convey.Convey("Then the event should skip without touching the registry", func() {
				convey.So(outcome, convey.ShouldEqual, consumer.Skip)
			})
		})

		convey.Convey("When the endpoint signature is verified by the receiver", func() {
			_, err := store.Add(ctx, srv.URL, []string{rules.EventLevelUp}, "hooksecret", "")
			convey.So(err, convey.ShouldBeNil)

			pipeline.Handle(ctx, scoreEvent("p1", 950, 1050))

			convey.Convey("Then the signature should match the canonical body", func() {
				hooks := recorder.all()
				convey.So(len(hooks), convey.ShouldEqual, 1)
				convey.So(webhook.Verify("hooksecret", hooks[0].raw, hooks[0].signature), convey.ShouldBeTrue)
			})
		})
	})
}

func TestRealtimePipeline(t *testing.T) {
	convey.Convey("Given a realtime pipeline over a hub", t, func() {
		ctx := context.Background()
		hub := ws.NewHub()
		pipeline := service.NewRealtimePipeline(hub)

		global := &fakeSession{}
		watcher := &fakeSession{}
		hub.Connect(global, "")
		hub.Connect(watcher, "p1")

		convey.Convey("When a score update for the watched player arrives", func() {
			outcome := pipeline.Handle(ctx, scoreEvent("p1", 100, 150))

			convey.Convey("Then the global feed should receive it once", func() {
				convey.So(outcome, convey.ShouldEqual, consumer.Processed)
				convey.So(global.received(), convey.ShouldEqual, 1)
			})

			convey.Convey("And the player watcher should get both the scoped and global pushes", func() {
				convey.So(watcher.received(), convey.ShouldEqual, 2)
			})

			convey.Convey("And the payload should be the wire representation", func() {
				var payload map[string]any
				convey.So(json.Unmarshal(global.last(), &payload), convey.ShouldBeNil)
				convey.So(payload["event_type"], convey.ShouldEqual, rules.EventScoreUpdated)
				convey.So(payload["player_id"], convey.ShouldEqual, "p1")
				convey.So(payload["occurred_at"], convey.ShouldEqual, "2026-05-01T12:00:00Z")
			})
		})

		convey.Convey("When an event outside the realtime allow-list arrives", func() {
			outcome := pipeline.Handle(ctx, model.Event{
				EventID:    "evt-x",
				EventType:  rules.EventAchievementUnlocked,
				OccurredAt: time.Now(),
				PlayerID:   "p1",
				Data:       map[string]any{},
			})

			convey.Convey("Then nothing should be broadcast", func() {
				convey.So(outcome, convey.ShouldEqual, consumer.Skip)
				convey.So(global.received(), convey.ShouldEqual, 0)
				convey.So(watcher.received(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a rank change arrives for an unwatched player", func() {
			outcome := pipeline.Handle(ctx, model.Event{
				EventID:    "evt-r",
				EventType:  rules.EventRankChanged,
				OccurredAt: time.Now(),
				PlayerID:   "p9",
				Data:       map[string]any{"old_rank": 10, "new_rank": 7},
			})

			convey.Convey("Then only the global feed should see it", func() {
				convey.So(outcome, convey.ShouldEqual, consumer.Processed)
				convey.So(global.received(), convey.ShouldEqual, 1)
				convey.So(watcher.received(), convey.ShouldEqual, 1) // global copy only
			})
		})
	})
}

// fakeSession is a minimal in-process ws.Session for pipeline tests.
type fakeSession struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeSession) Send(message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, append([]byte(nil), message...))
	return nil
}

func (f *fakeSession) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeSession) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}
