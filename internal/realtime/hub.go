package realtime

import (
	"context"
	"sync"
	"time"

	"salespilot/internal/observability"

	"github.com/google/uuid"
)

// Event is one message pushed to a user's open sockets.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp string                 `json:"timestamp"`
}

// Event types pushed to the dashboard.
const (
	EventNewMessage    = "new-message"
	EventChatUpdated   = "chat-updated"
	EventLeadQualified = "lead-qualified"
	EventConversion    = "conversion"
)

// Hub fans events out to per-user rooms. Each subscriber gets a buffered
// queue; a subscriber that cannot keep up is dropped rather than allowed
// to block the publisher.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*Subscriber]struct{}
	logger *observability.Logger
}

type Subscriber struct {
	UserID uuid.UUID
	Events chan Event

	hub  *Hub
	once sync.Once
}

const subscriberBuffer = 32

func NewHub(logger *observability.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new listener for a user's events. The caller must
// Close the subscriber when done.
func (h *Hub) Subscribe(userID uuid.UUID) *Subscriber {
	sub := &Subscriber{
		UserID: userID,
		Events: make(chan Event, subscriberBuffer),
		hub:    h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[*Subscriber]struct{})
		h.rooms[userID] = room
	}
	room[sub] = struct{}{}
	return sub
}

// Close removes the subscriber from its room and closes its queue.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if room, ok := s.hub.rooms[s.UserID]; ok {
			delete(room, s)
			if len(room) == 0 {
				delete(s.hub.rooms, s.UserID)
			}
		}
		close(s.Events)
	})
}

// Publish delivers an event to every open socket of the user. Full queues
// are skipped; the dashboard reconciles on its next fetch.
func (h *Hub) Publish(ctx context.Context, userID uuid.UUID, eventType string, data map[string]interface{}) {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[userID] {
		select {
		case sub.Events <- event:
		default:
			h.logger.Warn(ctx, "dropping realtime event for slow subscriber")
		}
	}
}

// Subscribers reports how many sockets a user has open.
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}
