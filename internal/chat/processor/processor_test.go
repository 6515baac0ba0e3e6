package processor

import (
	"context"
	"errors"
	"testing"

	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/google/uuid"
)

type fakeChatStore struct {
	chats    map[uuid.UUID]store.Chat
	messages []store.ChatMessage

	insertErr       error
	convertErr      error
	statusErr       error
	creditedID      uuid.UUID
	creditedRevenue float64
	creditedConv    int
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{chats: map[uuid.UUID]store.Chat{}}
}

func (f *fakeChatStore) GetChat(ctx context.Context, id, userID uuid.UUID) (store.Chat, error) {
	chat, ok := f.chats[id]
	if !ok || chat.UserID != userID {
		return store.Chat{}, store.ErrNotFound
	}
	return chat, nil
}

func (f *fakeChatStore) ListChats(ctx context.Context, userID uuid.UUID, filter store.ChatFilter) ([]store.Chat, error) {
	var chats []store.Chat
	for _, chat := range f.chats {
		if chat.UserID == userID {
			chats = append(chats, chat)
		}
	}
	return chats, nil
}

func (f *fakeChatStore) ListMessagesByChat(ctx context.Context, chatID, userID uuid.UUID, limit, offset int) ([]store.ChatMessage, error) {
	var messages []store.ChatMessage
	for _, message := range f.messages {
		if message.ChatID == chatID {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

func (f *fakeChatStore) InsertMessage(ctx context.Context, chatID, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform, platformMessageID, sender, content, messageType string, metadata store.JSONB) (store.ChatMessage, error) {
	if f.insertErr != nil {
		return store.ChatMessage{}, f.insertErr
	}
	message := store.ChatMessage{
		ID:          uuid.New(),
		ChatID:      chatID,
		UserID:      userID,
		CampaignID:  campaignID,
		Platform:    platform,
		Sender:      sender,
		Content:     content,
		MessageType: messageType,
	}
	f.messages = append(f.messages, message)
	return message, nil
}

func (f *fakeChatStore) SetChatStatus(ctx context.Context, id, userID uuid.UUID, to, from store.ChatStatus) (store.Chat, error) {
	if f.statusErr != nil {
		return store.Chat{}, f.statusErr
	}
	chat := f.chats[id]
	if chat.Status != from {
		return store.Chat{}, store.ErrStatusConflict
	}
	chat.Status = to
	f.chats[id] = chat
	return chat, nil
}

func (f *fakeChatStore) ConvertChat(ctx context.Context, id, userID uuid.UUID, orderValue float64, orderDetails store.JSONB) (store.Chat, error) {
	if f.convertErr != nil {
		return store.Chat{}, f.convertErr
	}
	chat, ok := f.chats[id]
	if !ok || chat.UserID != userID {
		return store.Chat{}, store.ErrNotFound
	}
	if chat.Converted {
		return store.Chat{}, store.ErrAlreadyConverted
	}
	chat.Converted = true
	chat.Status = store.ChatStatusConverted
	chat.OrderValue = orderValue
	f.chats[id] = chat
	return chat, nil
}

func (f *fakeChatStore) ChatStatsOverview(ctx context.Context, userID uuid.UUID) (store.ChatStats, error) {
	return store.ChatStats{TotalChats: len(f.chats)}, nil
}

func (f *fakeChatStore) IncrementCampaignStats(ctx context.Context, id uuid.UUID, messagesStarted, responses, conversions int, revenue float64) error {
	f.creditedID = id
	f.creditedConv += conversions
	f.creditedRevenue += revenue
	return nil
}

type fakeTracker struct {
	conversions   int
	revenue       float64
	messagesSent  int
	lastPlatform  store.Platform
	lastCampaign  *uuid.UUID
	lastConverted uuid.UUID
}

func (f *fakeTracker) TrackConversion(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform, revenue float64) {
	f.conversions++
	f.revenue += revenue
	f.lastPlatform = platform
	f.lastCampaign = campaignID
	f.lastConverted = userID
}

func (f *fakeTracker) TrackMessageSent(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform) {
	f.messagesSent++
	f.lastCampaign = campaignID
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(ctx context.Context, userID uuid.UUID, platform store.Platform, customerID, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, text)
	return "mid." + uuid.NewString(), nil
}

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) Publish(ctx context.Context, userID uuid.UUID, eventType string, data map[string]interface{}) {
	f.events = append(f.events, eventType)
}

func newTestChat(userID uuid.UUID, status store.ChatStatus) store.Chat {
	return store.Chat{
		ID:         uuid.New(),
		UserID:     userID,
		CampaignID: uuid.New(),
		Platform:   store.PlatformFacebook,
		CustomerID: "psid-1",
		Status:     status,
	}
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()
	userID := uuid.New()

	t.Run("allows a valid transition", func(t *testing.T) {
		fakeStore := newFakeChatStore()
		chat := newTestChat(userID, store.ChatStatusActive)
		fakeStore.chats[chat.ID] = chat
		processor := New(fakeStore, &fakeTracker{}, &fakeSender{}, &fakePublisher{}, logger)

		updated, err := processor.SetStatus(ctx, chat.ID, userID, store.ChatStatusQualified)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Status != store.ChatStatusQualified {
			t.Errorf("expected status qualified, got %s", updated.Status)
		}
	})

	t.Run("rejects an invalid transition", func(t *testing.T) {
		fakeStore := newFakeChatStore()
		chat := newTestChat(userID, store.ChatStatusClosed)
		fakeStore.chats[chat.ID] = chat
		processor := New(fakeStore, &fakeTracker{}, &fakeSender{}, &fakePublisher{}, logger)

		_, err := processor.SetStatus(ctx, chat.ID, userID, store.ChatStatusActive)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("maps a concurrent status change to ErrInvalidTransition", func(t *testing.T) {
		fakeStore := newFakeChatStore()
		chat := newTestChat(userID, store.ChatStatusActive)
		fakeStore.chats[chat.ID] = chat
		fakeStore.statusErr = store.ErrStatusConflict
		processor := New(fakeStore, &fakeTracker{}, &fakeSender{}, &fakePublisher{}, logger)

		_, err := processor.SetStatus(ctx, chat.ID, userID, store.ChatStatusClosed)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("routes converted through the conversion path", func(t *testing.T) {
		fakeStore := newFakeChatStore()
		tracker := &fakeTracker{}
		chat := newTestChat(userID, store.ChatStatusQualified)
		fakeStore.chats[chat.ID] = chat
		processor := New(fakeStore, tracker, &fakeSender{}, &fakePublisher{}, logger)

		updated, err := processor.SetStatus(ctx, chat.ID, userID, store.ChatStatusConverted)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !updated.Converted {
			t.Error("expected chat marked converted")
		}
		if tracker.conversions != 1 {
			t.Errorf("expected 1 tracked conversion, got %d", tracker.conversions)
		}
	})

	t.Run("returns ErrNotFound for another user's chat", func(t *testing.T) {
		fakeStore := newFakeChatStore()
		chat := newTestChat(uuid.New(), store.ChatStatusActive)
		fakeStore.chats[chat.ID] = chat
		processor := New(fakeStore, &fakeTracker{}, &fakeSender{}, &fakePublisher{}, logger)

		_, err := processor.SetStatus(ctx, chat.ID, userID, store.ChatStatusClosed)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestConvert(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()
	userID := uuid.New()

	t.Run("credits campaign and analytics once", func(t *testing.T) {
		fakeStore := newFakeChatStore()
		tracker := &fakeTracker{}
		chat := newTestChat(userID, store.ChatStatusQualified)
		fakeStore.chats[chat.ID] = chat
		processor := New(fakeStore, tracker, &fakeSender{}, &fakePublisher{}, logger)

		converted, err := processor.Convert(ctx, chat.ID, userID, 199.99, store.JSONB{"plan": "pro"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if converted.OrderValue != 199.99 {
			t.Errorf("expected order value 199.99, got %v", converted.OrderValue)
		}
		if fakeStore.creditedID != chat.CampaignID || fakeStore.creditedConv != 1 {
			t.Errorf("campaign not credited: id=%v conversions=%d", fakeStore.creditedID, fakeStore.creditedConv)
		}
		if fakeStore.creditedRevenue != 199.99 {
			t.Errorf("expected credited revenue 199.99, got %v", fakeStore.creditedRevenue)
		}
		if tracker.conversions != 1 || tracker.revenue != 199.99 {
			t.Errorf("conversion not tracked: count=%d revenue=%v", tracker.conversions, tracker.revenue)
		}
	})

	t.Run("second conversion returns ErrAlreadyConverted", func(t *testing.T) {
		fakeStore := newFakeChatStore()
		tracker := &fakeTracker{}
		chat := newTestChat(userID, store.ChatStatusQualified)
		fakeStore.chats[chat.ID] = chat
		processor := New(fakeStore, tracker, &fakeSender{}, &fakePublisher{}, logger)

		if _, err := processor.Convert(ctx, chat.ID, userID, 50, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := processor.Convert(ctx, chat.ID, userID, 50, nil)
		if !errors.Is(err, ErrAlreadyConverted) {
			t.Errorf("expected ErrAlreadyConverted, got %v", err)
		}
		if tracker.conversions != 1 {
			t.Errorf("expected exactly 1 tracked conversion, got %d", tracker.conversions)
		}
	})

	t.Run("returns ErrNotFound for unknown chat", func(t *testing.T) {
		fakeStore := newFakeChatStore()
		processor := New(fakeStore, &fakeTracker{}, &fakeSender{}, &fakePublisher{}, logger)

		_, err := processor.Convert(ctx, uuid.New(), userID, 10, nil)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSendBusinessMessage(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()
	userID := uuid.New()

	t.Run("persists, publishes and delivers", func(t *testing.T) {
		fakeStore := newFakeChatStore()
		tracker := &fakeTracker{}
		sender := &fakeSender{}
		publisher := &fakePublisher{}
		chat := newTestChat(userID, store.ChatStatusActive)
		fakeStore.chats[chat.ID] = chat
		processor := New(fakeStore, tracker, sender, publisher, logger)

		message, err := processor.SendBusinessMessage(ctx, chat.ID, userID, "Hi, happy to help")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if message.Sender != store.MessageSenderBusiness {
			t.Errorf("expected business sender, got %s", message.Sender)
		}
		if len(sender.sent) != 1 || sender.sent[0] != "Hi, happy to help" {
			t.Errorf("message not delivered: %v", sender.sent)
		}
		if len(publisher.events) != 1 {
			t.Errorf("expected 1 realtime event, got %d", len(publisher.events))
		}
		if tracker.messagesSent != 1 {
			t.Errorf("expected 1 tracked send, got %d", tracker.messagesSent)
		}
	})

	t.Run("keeps the message when delivery fails", func(t *testing.T) {
		fakeStore := newFakeChatStore()
		sender := &fakeSender{err: errors.New("page token expired")}
		chat := newTestChat(userID, store.ChatStatusActive)
		fakeStore.chats[chat.ID] = chat
		processor := New(fakeStore, &fakeTracker{}, sender, &fakePublisher{}, logger)

		message, err := processor.SendBusinessMessage(ctx, chat.ID, userID, "are you there?")
		if !errors.Is(err, ErrSendFailed) {
			t.Fatalf("expected ErrSendFailed, got %v", err)
		}
		if message.ID == uuid.Nil {
			t.Error("expected the persisted message to be returned")
		}
		if len(fakeStore.messages) != 1 {
			t.Errorf("expected message kept in store, got %d", len(fakeStore.messages))
		}
	})
}
