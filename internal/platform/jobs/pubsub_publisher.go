package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	domain "github.com/movievault/api/internal/domain"
	"github.com/movievault/api/internal/services"
)

// PubSubMoviePublisher publishes movie lifecycle events to a Pub/Sub topic.
type PubSubMoviePublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubMoviePublisher constructs a Pub/Sub backed movie event publisher.
func NewPubSubMoviePublisher(topic *pubsub.Topic) (*PubSubMoviePublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub movie publisher: topic is required")
	}
	return &PubSubMoviePublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Publish enqueues the event on the configured topic and waits for the server ack.
func (p *PubSubMoviePublisher) Publish(ctx context.Context, event domain.MovieEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub movie publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal movie event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "movieId", event.MovieID)
	setAttr(attrs, "actorId", event.ActorID)
	if !event.OccurredAt.IsZero() {
		attrs["occurredAt"] = event.OccurredAt.UTC().Format(time.RFC3339Nano)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish movie event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

// Ensure interface compliance.
var _ services.MovieEventPublisher = (*PubSubMoviePublisher)(nil)
