package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	domain "github.com/movievault/api/internal/domain"
)

func TestPubSubMoviePublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "movie-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubMoviePublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubMoviePublisher: %v", err)
	}

	occurredAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	event := domain.MovieEvent{
		Type:       "movie.created",
		MovieID:    "mov_test",
		ActorID:    "uid-owner",
		OccurredAt: occurredAt,
	}

	if err := publisher.Publish(ctx, event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload domain.MovieEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Type != event.Type || payload.MovieID != event.MovieID {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["eventType"]; attr != "movie.created" {
		t.Fatalf("expected eventType attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["occurredAt"]; attr != occurredAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected occurredAt attribute %q", attr)
	}
}

func TestNewPubSubMoviePublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubMoviePublisher(nil); err == nil {
		t.Fatalf("expected error for nil topic")
	}
}
