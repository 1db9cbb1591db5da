// seed-events publishes a burst of synthetic score updates to the player
// event topic for local testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

func main() {
	var (
		brokers  = flag.String("brokers", "localhost:9092", "comma-separated Kafka bootstrap addresses")
		topic    = flag.String("topic", "player-events", "target topic")
		playerID = flag.String("player", "12345", "player id for generated events")
		count    = flag.Int("count", 20, "number of events to publish")
		start    = flag.Int("start", 990, "starting score")
		delta    = flag.Int("delta", 10, "score delta per event")
	)
	flag.Parse()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.Hash{}, // per-key partitioning keeps a player in order
		RequiredAcks: kafka.RequireAll,
	}
	defer writer.Close()

	ctx := context.Background()
	score := *start

	for i := 0; i < *count; i++ {
		evt := map[string]any{
			"event_id":    uuid.NewString(),
			"event_type":  "player.score.updated",
			"occurred_at": time.Now().UTC().Format(time.RFC3339),
			"player_id":   *playerID,
			"data": map[string]any{
				"delta":        *delta,
				"score_before": score,
				"score_after":  score + *delta,
				"reason":       "match_win",
				"match_id":     "m-7781",
			},
		}
		value, err := json.Marshal(evt)
		if err != nil {
			fmt.Fprintln(os.Stderr, "encode event:", err)
			os.Exit(1)
		}
		if err := writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(*playerID),
			Value: value,
		}); err != nil {
			fmt.Fprintln(os.Stderr, "publish:", err)
			os.Exit(1)
		}
		fmt.Println("sent:", string(value))
		score += *delta
	}
}
