package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stableloop/auctiond/internal/domain"
)

const (
	// eventChannel is the Pub/Sub channel carrying live auction events for
	// websocket fan-out.
	eventChannel = "ch:auction"
	// eventStream is the durable Redis stream keeping a bounded history of
	// auction events.
	eventStream = "auction:events"
	// streamMaxLen is the approximate maximum stream length, enforced via
	// XADD MAXLEN ~.
	streamMaxLen int64 = 10000
)

// EventBus implements domain.EventSink using Redis Pub/Sub for live
// fan-out and a Redis stream for durable, ordered event history.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Client}
}

// Publish encodes the event as JSON, appends it to the durable stream and
// broadcasts it on the live channel. The stream append is authoritative; a
// Pub/Sub failure after a successful append is still an error to the caller.
func (eb *EventBus) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: encode event %s: %w", ev.Type, err)
	}

	args := &redis.XAddArgs{
		Stream: eventStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := eb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", eventStream, err)
	}

	if err := eb.rdb.Publish(ctx, eventChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", eventChannel, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription on the live event channel and
// returns a read-only channel of raw JSON payloads. The subscription is
// closed when the context is cancelled; the returned channel is closed at
// that point as well.
func (eb *EventBus) Subscribe(ctx context.Context) (<-chan []byte, error) {
	pubsub := eb.rdb.Subscribe(ctx, eventChannel)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", eventChannel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// History reads up to count events from the durable stream starting after
// lastID. Use "0" or "0-0" to read from the beginning. It returns an empty
// slice (not an error) when no events are available.
func (eb *EventBus) History(ctx context.Context, lastID string, count int) ([]domain.Event, error) {
	args := &redis.XReadArgs{
		Streams: []string{eventStream, lastID},
		Count:   int64(count),
		Block:   -1,
	}

	results, err := eb.rdb.XRead(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", eventStream, err)
	}

	var events []domain.Event
	for _, s := range results {
		for _, msg := range s.Messages {
			payload, ok := msg.Values["payload"]
			if !ok {
				continue
			}

			var data []byte
			switch v := payload.(type) {
			case string:
				data = []byte(v)
			case []byte:
				data = v
			default:
				continue
			}

			var ev domain.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			events = append(events, ev)
		}
	}

	return events, nil
}

// Compile-time interface check.
var _ domain.EventSink = (*EventBus)(nil)
