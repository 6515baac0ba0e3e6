package realtime

import (
	"context"
	"testing"

	"salespilot/internal/observability"

	"github.com/google/uuid"
)

func TestHubPublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub(observability.NewLogger())
	ctx := context.Background()
	userID := uuid.New()

	first := hub.Subscribe(userID)
	second := hub.Subscribe(userID)
	defer first.Close()
	defer second.Close()

	hub.Publish(ctx, userID, EventNewMessage, map[string]interface{}{"chatId": "c1"})

	for _, sub := range []*Subscriber{first, second} {
		select {
		case event := <-sub.Events:
			if event.Type != EventNewMessage {
				t.Errorf("expected %s, got %s", EventNewMessage, event.Type)
			}
			if event.Data["chatId"] != "c1" {
				t.Errorf("unexpected payload: %v", event.Data)
			}
			if event.ID == "" || event.Timestamp == "" {
				t.Error("expected event ID and timestamp to be set")
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestHubIsolatesUsers(t *testing.T) {
	hub := NewHub(observability.NewLogger())
	ctx := context.Background()

	mine := hub.Subscribe(uuid.New())
	defer mine.Close()

	hub.Publish(ctx, uuid.New(), EventConversion, nil)

	select {
	case event := <-mine.Events:
		t.Errorf("received another user's event: %+v", event)
	default:
	}
}

func TestHubDropsEventsForSlowSubscriber(t *testing.T) {
	hub := NewHub(observability.NewLogger())
	ctx := context.Background()
	userID := uuid.New()

	sub := hub.Subscribe(userID)
	defer sub.Close()

	// Never drained; the buffer fills and later events are dropped
	// instead of blocking the publisher.
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(ctx, userID, EventChatUpdated, nil)
	}

	if len(sub.Events) != subscriberBuffer {
		t.Errorf("expected a full buffer of %d events, got %d", subscriberBuffer, len(sub.Events))
	}
}

func TestSubscriberClose(t *testing.T) {
	hub := NewHub(observability.NewLogger())
	userID := uuid.New()

	sub := hub.Subscribe(userID)
	if hub.Subscribers(userID) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers(userID))
	}

	sub.Close()
	sub.Close() // idempotent

	if hub.Subscribers(userID) != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", hub.Subscribers(userID))
	}
	if _, open := <-sub.Events; open {
		t.Error("expected events channel to be closed")
	}
}
