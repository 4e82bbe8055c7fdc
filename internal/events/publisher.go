// Package events publishes queue change events to a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	infraevents "github.com/jonesrussell/setlist/infrastructure/events"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/redis/go-redis/v9"
)

// asyncPublishTimeout bounds each async publish.
const asyncPublishTimeout = 5 * time.Second

// streamMaxLen trims the stream approximately so it never grows unbounded.
const streamMaxLen = 10000

// Publisher writes queue events to a Redis stream. A nil *Publisher is a
// valid no-op.
type Publisher struct {
	client *redis.Client
	stream string
	log    infralogger.Logger
}

// NewPublisher creates a publisher on stream, or StreamName when empty.
// Returns nil if client is nil.
func NewPublisher(client *redis.Client, stream string, log infralogger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	if stream == "" {
		stream = infraevents.StreamName
	}
	return &Publisher{
		client: client,
		stream: stream,
		log:    log,
	}
}

// Publish sends event to the stream.
func (p *Publisher) Publish(ctx context.Context, event infraevents.QueueEvent) error {
	if p == nil || p.client == nil {
		return nil
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"event_type": string(event.EventType),
			"event":      string(payload),
		},
	})
	if publishErr := result.Err(); publishErr != nil {
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	if p.log != nil {
		p.log.Debug("Published queue event",
			infralogger.String("event_type", string(event.EventType)),
			infralogger.String("stream_id", result.Val()),
		)
	}

	return nil
}

// PublishAsync publishes in the background. Errors are logged, not returned.
func (p *Publisher) PublishAsync(event infraevents.QueueEvent) {
	if p == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil && p.log != nil {
			p.log.Error("Async publish failed",
				infralogger.String("event_type", string(event.EventType)),
				infralogger.Error(err),
			)
		}
	}()
}
