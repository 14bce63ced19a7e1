// Package sink implements the outbound delivery channels for integration
// events: a Redis pub/sub point notification channel and a Redis stream
// for broadcast consumers.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/taskrelay/taskrelay/internal/events"
)

// NewRedisClient connects to Redis and verifies connectivity with a ping.
func NewRedisClient(addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

// notification is the wire envelope published on the notification channel.
type notification struct {
	Name    string          `json:"name"`
	Subject string          `json:"subject,omitempty"`
	Event   json.RawMessage `json:"event"`
}

// Notifier is the point notification sink. Every event is published on a
// single pub/sub channel with the correlation subject in the envelope.
type Notifier struct {
	rdb     *goredis.Client
	channel string
}

// NewNotifier creates a Notifier publishing on the given channel.
func NewNotifier(rdb *goredis.Client, channel string) *Notifier {
	return &Notifier{rdb: rdb, channel: channel}
}

// Send publishes one integration event addressed by subject. Failures
// propagate to the dispatcher; there is no retry here.
func (n *Notifier) Send(ctx context.Context, event events.IntegrationEvent, subject string) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}

	payload, err := json.Marshal(notification{
		Name:    event.EventName(),
		Subject: subject,
		Event:   raw,
	})
	if err != nil {
		return fmt.Errorf("marshal notification envelope: %w", err)
	}

	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	slog.Debug("notification published", "event", event.EventName(), "subject", subject)
	return nil
}

// Stream is the broadcast streaming sink backed by a Redis stream.
type Stream struct {
	rdb    *goredis.Client
	stream string
}

// NewStream creates a Stream appending to the given Redis stream key.
func NewStream(rdb *goredis.Client, stream string) *Stream {
	return &Stream{rdb: rdb, stream: stream}
}

// Send appends one integration event to the stream.
func (s *Stream) Send(ctx context.Context, event events.IntegrationEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}

	err = s.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"name":    event.EventName(),
			"payload": raw,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("append stream event: %w", err)
	}

	slog.Debug("stream event appended", "event", event.EventName(), "stream", s.stream)
	return nil
}
