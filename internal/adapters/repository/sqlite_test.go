package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	repository "github.com/okian/fanout/internal/adapters/repository"
	"github.com/smartystreets/goconvey/convey"
)

func TestSQLStore(t *testing.T) {
	convey.Convey("Given a sqlite store on a fresh database", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "fanout.db")

		store, err := repository.OpenSQL(path)
		convey.So(err, convey.ShouldBeNil)
		defer store.Close()

		convey.Convey("When adding and listing subscriptions", func() {
			first, err := store.Add(ctx, "https://a.test/hook", []string{"player.level.up", "player.score.anomaly_detected"}, "s1", "")
			convey.So(err, convey.ShouldBeNil)
			second, err := store.Add(ctx, "https://b.test/hook", []string{"player.rank.changed"}, "s2", "p1")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then listing should return both with fields intact", func() {
				subs, err := store.List(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(subs), convey.ShouldEqual, 2)
				convey.So(subs[0].SubscriptionID, convey.ShouldEqual, first.SubscriptionID)
				convey.So(subs[0].EventTypes, convey.ShouldResemble, []string{"player.level.up", "player.score.anomaly_detected"})
				convey.So(subs[1].PlayerID, convey.ShouldEqual, "p1")
				convey.So(subs[1].Secret, convey.ShouldEqual, "s2")
				convey.So(subs[1].IsActive, convey.ShouldBeTrue)
			})

			convey.Convey("And subscriptions should survive reopening the database", func() {
				convey.So(store.Close(), convey.ShouldBeNil)
				reopened, err := repository.OpenSQL(path)
				convey.So(err, convey.ShouldBeNil)
				defer reopened.Close()

				subs, err := reopened.List(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(subs), convey.ShouldEqual, 2)
				convey.So(subs[1].SubscriptionID, convey.ShouldEqual, second.SubscriptionID)
			})
		})

		convey.Convey("When disabling a subscription", func() {
			sub, err := store.Add(ctx, "https://a.test/hook", []string{"x"}, "s", "")
			convey.So(err, convey.ShouldBeNil)

			existed, err := store.Disable(ctx, sub.SubscriptionID)

			convey.Convey("Then it should report existence and leave the row", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(existed, convey.ShouldBeTrue)

				all, _ := store.List(ctx)
				active, _ := store.ListActive(ctx)
				convey.So(len(all), convey.ShouldEqual, 1)
				convey.So(all[0].IsActive, convey.ShouldBeFalse)
				convey.So(active, convey.ShouldBeEmpty)
			})

			convey.Convey("And a second disable should still report existence", func() {
				again, err := store.Disable(ctx, sub.SubscriptionID)
				convey.So(err, convey.ShouldBeNil)
				convey.So(again, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When disabling an unknown id", func() {
			existed, err := store.Disable(ctx, "missing")

			convey.Convey("Then it should report absence", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(existed, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When appending delivery records", func() {
			status := 502
			err := store.Append(ctx, repository.DeliveryRecord{
				DeliveryID:     "d1",
				SubscriptionID: "s1",
				URL:            "https://a.test/hook",
				EventID:        "e1",
				EventType:      "player.level.up",
				PlayerID:       "p1",
				StatusCode:     &status,
				AttemptedAt:    time.Now().UTC(),
			})

			convey.Convey("Then the insert should succeed", func() {
				convey.So(err, convey.ShouldBeNil)
			})

			convey.Convey("And a record without a status should also persist", func() {
				err := store.Append(ctx, repository.DeliveryRecord{
					DeliveryID:  "d2",
					Error:       "dial tcp: connection refused",
					AttemptedAt: time.Now().UTC(),
				})
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}
