package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event is the envelope published for booking changes.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// EventBus publishes booking events on a Redis pub/sub channel.
type EventBus struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

func NewEventBus(client *redis.Client, channel string, logger zerolog.Logger) *EventBus {
	return &EventBus{
		client:  client,
		channel: channel,
		logger:  logger.With().Str("component", "events").Str("channel", channel).Logger(),
	}
}

func (b *EventBus) Publish(ctx context.Context, eventType string, payload map[string]any) error {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug().Str("event_id", ev.ID).Str("type", eventType).Msg("event.published")
	return nil
}

// Subscribe delivers events until ctx is cancelled. The returned channel is
// closed when the subscription ends. Slow readers lose events.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Event, 100)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn().Err(err).Msg("event.decode_failed")
					continue
				}
				select {
				case out <- ev:
				default:
					b.logger.Warn().Str("event_id", ev.ID).Msg("event.dropped")
				}
			}
		}
	}()
	return out, nil
}
