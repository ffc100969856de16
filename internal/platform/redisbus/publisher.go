package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/phrazzld/genjobs/internal/events"
	"github.com/redis/go-redis/v9"
)

// eventField is the stream entry field holding the JSON encoded event.
const eventField = "event"

// Publisher emits job events onto a Redis stream.
type Publisher struct {
	client redis.UniversalClient
	stream string
}

var _ events.EventEmitter = (*Publisher)(nil)

// NewPublisher creates a Publisher appending to stream.
func NewPublisher(client redis.UniversalClient, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

// EmitEvent appends the event to the stream. A nil error means Redis stored
// the entry and a consumer group will deliver it.
func (p *Publisher) EmitEvent(ctx context.Context, event *events.JobEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{eventField: raw},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd %s: %w", p.stream, err)
	}
	return nil
}

func decodeEvent(msg redis.XMessage) (*events.JobEvent, error) {
	v, ok := msg.Values[eventField]
	if !ok {
		return nil, fmt.Errorf("entry %s has no %q field", msg.ID, eventField)
	}

	var raw []byte
	switch s := v.(type) {
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		return nil, fmt.Errorf("entry %s: unexpected %q type %T", msg.ID, eventField, v)
	}

	var event events.JobEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("entry %s: %w", msg.ID, err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("entry %s: %w", msg.ID, err)
	}
	return &event, nil
}
