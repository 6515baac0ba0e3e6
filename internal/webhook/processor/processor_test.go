package processor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"salespilot/internal/clients/facebook"
	"salespilot/internal/observability"
	"salespilot/internal/realtime"
	"salespilot/internal/store"

	"github.com/google/uuid"
)

type fakeWebhookStore struct {
	integrations map[string]store.Integration
	campaigns    map[uuid.UUID]store.Campaign
	users        map[uuid.UUID]store.User

	chats          map[string]store.Chat
	messages       []store.ChatMessage
	seenMIDs       map[string]bool
	activeCampaign *store.Campaign

	campaignStarts    int
	campaignResponses int
	leadScore         int
	qualifiedChats    int
}

func newFakeWebhookStore() *fakeWebhookStore {
	return &fakeWebhookStore{
		integrations: map[string]store.Integration{},
		campaigns:    map[uuid.UUID]store.Campaign{},
		users:        map[uuid.UUID]store.User{},
		chats:        map[string]store.Chat{},
		seenMIDs:     map[string]bool{},
	}
}

func (f *fakeWebhookStore) GetIntegrationByPageID(ctx context.Context, pageID string) (store.Integration, error) {
	integration, ok := f.integrations[pageID]
	if !ok {
		return store.Integration{}, store.ErrNotFound
	}
	return integration, nil
}

func (f *fakeWebhookStore) FindActiveCampaign(ctx context.Context, userID uuid.UUID, platform store.Platform) (store.Campaign, error) {
	if f.activeCampaign == nil {
		return store.Campaign{}, store.ErrNotFound
	}
	return *f.activeCampaign, nil
}

func (f *fakeWebhookStore) GetCampaign(ctx context.Context, id, userID uuid.UUID) (store.Campaign, error) {
	campaign, ok := f.campaigns[id]
	if !ok {
		return store.Campaign{}, store.ErrNotFound
	}
	return campaign, nil
}

func (f *fakeWebhookStore) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	user, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeWebhookStore) GetChatByCustomer(ctx context.Context, userID uuid.UUID, platform store.Platform, customerID string) (store.Chat, error) {
	chat, ok := f.chats[customerID]
	if !ok {
		return store.Chat{}, store.ErrNotFound
	}
	return chat, nil
}

func (f *fakeWebhookStore) FindOrCreateChat(ctx context.Context, userID, campaignID uuid.UUID, platform store.Platform, customerID, customerName string, profile store.CustomerProfile) (store.Chat, bool, error) {
	if chat, ok := f.chats[customerID]; ok {
		return chat, false, nil
	}
	chat := store.Chat{
		ID:           uuid.New(),
		UserID:       userID,
		CampaignID:   campaignID,
		Platform:     platform,
		CustomerID:   customerID,
		CustomerName: customerName,
		Status:       store.ChatStatusActive,
	}
	f.chats[customerID] = chat
	return chat, true, nil
}

func (f *fakeWebhookStore) InsertMessage(ctx context.Context, chatID, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform, platformMessageID, sender, content, messageType string, metadata store.JSONB) (store.ChatMessage, error) {
	if platformMessageID != "" {
		if f.seenMIDs[platformMessageID] {
			return store.ChatMessage{}, store.ErrDuplicateMessage
		}
		f.seenMIDs[platformMessageID] = true
	}
	message := store.ChatMessage{
		ID:         uuid.New(),
		ChatID:     chatID,
		UserID:     userID,
		CampaignID: campaignID,
		Platform:   platform,
		Sender:     sender,
		Content:    content,
	}
	f.messages = append(f.messages, message)
	return message, nil
}

func (f *fakeWebhookStore) RecentMessages(ctx context.Context, chatID uuid.UUID, n int) ([]store.ChatMessage, error) {
	var messages []store.ChatMessage
	for _, message := range f.messages {
		if message.ChatID == chatID {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

func (f *fakeWebhookStore) ChatMessageContents(ctx context.Context, chatID uuid.UUID) ([]string, error) {
	var contents []string
	for _, message := range f.messages {
		if message.ChatID == chatID {
			contents = append(contents, message.Content)
		}
	}
	return contents, nil
}

func (f *fakeWebhookStore) CountCustomerMessages(ctx context.Context, chatID uuid.UUID) (int, error) {
	count := 0
	for _, message := range f.messages {
		if message.ChatID == chatID && message.Sender == store.MessageSenderCustomer {
			count++
		}
	}
	return count, nil
}

func (f *fakeWebhookStore) UpdateChatLeadScore(ctx context.Context, id uuid.UUID, score int) error {
	f.leadScore = score
	return nil
}

func (f *fakeWebhookStore) QualifyChat(ctx context.Context, id uuid.UUID) (store.Chat, error) {
	for customerID, chat := range f.chats {
		if chat.ID == id {
			if chat.Status != store.ChatStatusActive {
				return store.Chat{}, store.ErrStatusConflict
			}
			chat.Status = store.ChatStatusQualified
			f.chats[customerID] = chat
			f.qualifiedChats++
			return chat, nil
		}
	}
	return store.Chat{}, store.ErrNotFound
}

func (f *fakeWebhookStore) IncrementCampaignStats(ctx context.Context, id uuid.UUID, messagesStarted, responses, conversions int, revenue float64) error {
	f.campaignStarts += messagesStarted
	f.campaignResponses += responses
	return nil
}

type fakeReplier struct {
	reply string
}

func (f *fakeReplier) GenerateSalesReply(ctx context.Context, user store.User, campaign store.Campaign, history []store.ChatMessage, customerMessage string) string {
	return f.reply
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
	return "mid.out." + uuid.NewString(), nil
}

type fakeTracker struct {
	received  int
	sent      int
	started   int
	qualified int
}

func (f *fakeTracker) TrackMessageReceived(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform) {
	f.received++
}

func (f *fakeTracker) TrackMessageSent(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform) {
	f.sent++
}

func (f *fakeTracker) TrackConversationStarted(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform) {
	f.started++
}

func (f *fakeTracker) TrackLeadQualified(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform) {
	f.qualified++
}

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) Publish(ctx context.Context, userID uuid.UUID, eventType string, data map[string]interface{}) {
	f.events = append(f.events, eventType)
}

type fakeProfiler struct {
	profile facebook.Profile
	err     error
}

func (f *fakeProfiler) GetCustomerProfile(ctx context.Context, psid, pageAccessToken string) (facebook.Profile, error) {
	if f.err != nil {
		return facebook.Profile{}, f.err
	}
	return f.profile, nil
}

type fakeMailer struct {
	sent []string
}

func (f *fakeMailer) SendEmail(ctx context.Context, from, to, subject, htmlContent string) (string, error) {
	f.sent = append(f.sent, to)
	return "email-id", nil
}

type webhookFixture struct {
	store     *fakeWebhookStore
	sender    *fakeSender
	tracker   *fakeTracker
	publisher *fakePublisher
	mailer    *fakeMailer
	processor WebhookProcessor

	userID uuid.UUID
	pageID string
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	logger := observability.NewLogger()

	fakeStore := newFakeWebhookStore()
	userID := uuid.New()
	pageID := "page-123"

	fakeStore.users[userID] = store.User{ID: userID, Email: "owner@example.com"}
	fakeStore.integrations[pageID] = store.Integration{
		ID:       uuid.New(),
		UserID:   userID,
		Platform: store.PlatformFacebook,
		Status:   store.IntegrationStatusConnected,
		Credentials: store.JSONB{
			"page_id":           pageID,
			"page_access_token": "page-token",
		},
	}

	campaign := store.Campaign{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           "Spring Launch",
		TargetPlatform: store.PlatformFacebook,
		Status:         store.CampaignStatusActive,
		ChatFlow:       store.ChatFlow{Greeting: "Hey there! Want to hear about our offer?"},
	}
	fakeStore.campaigns[campaign.ID] = campaign
	fakeStore.activeCampaign = &campaign

	sender := &fakeSender{}
	tracker := &fakeTracker{}
	publisher := &fakePublisher{}
	mailer := &fakeMailer{}
	profiler := &fakeProfiler{profile: facebook.Profile{FirstName: "Jamie", LastName: "Rivera"}}
	replier := &fakeReplier{reply: "Thanks for reaching out!"}

	proc := New(fakeStore, replier, sender, tracker, publisher, profiler, mailer, "notifications@example.com", logger)

	return &webhookFixture{
		store:     fakeStore,
		sender:    sender,
		tracker:   tracker,
		publisher: publisher,
		mailer:    mailer,
		processor: proc,
		userID:    userID,
		pageID:    pageID,
	}
}

func messageEvent(pageID, senderID, mid, text string) MessagingEvent {
	var event MessagingEvent
	event.Sender.ID = senderID
	event.Recipient.ID = pageID
	event.Message = &struct {
		MID    string `json:"mid"`
		Text   string `json:"text"`
		IsEcho bool   `json:"is_echo"`
	}{MID: mid, Text: text}
	return event
}

func TestProcessInboundMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("first contact creates chat and replies", func(t *testing.T) {
		f := newWebhookFixture(t)

		f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", "mid.1", "hi, tell me more"))

		chat, ok := f.store.chats["psid-1"]
		if !ok {
			t.Fatal("expected chat to be created")
		}
		if chat.CustomerName != "Jamie Rivera" {
			t.Errorf("expected profile name, got %q", chat.CustomerName)
		}
		if f.store.campaignStarts != 1 {
			t.Errorf("expected 1 conversation start credited, got %d", f.store.campaignStarts)
		}
		if f.tracker.started != 1 || f.tracker.received != 1 || f.tracker.sent != 1 {
			t.Errorf("unexpected tracking: started=%d received=%d sent=%d",
				f.tracker.started, f.tracker.received, f.tracker.sent)
		}
		if len(f.sender.sent) != 1 || f.sender.sent[0] != "Thanks for reaching out!" {
			t.Errorf("expected AI reply delivered, got %v", f.sender.sent)
		}
		// customer message and AI reply
		if len(f.store.messages) != 2 {
			t.Errorf("expected 2 persisted messages, got %d", len(f.store.messages))
		}
	})

	t.Run("duplicate delivery is dropped", func(t *testing.T) {
		f := newWebhookFixture(t)
		event := messageEvent(f.pageID, "psid-1", "mid.dup", "hello")

		f.processor.Process(ctx, store.PlatformFacebook, event)
		f.processor.Process(ctx, store.PlatformFacebook, event)

		customerMessages := 0
		for _, message := range f.store.messages {
			if message.Sender == store.MessageSenderCustomer {
				customerMessages++
			}
		}
		if customerMessages != 1 {
			t.Errorf("expected 1 customer message, got %d", customerMessages)
		}
		if f.store.campaignStarts != 1 {
			t.Errorf("expected 1 conversation start, got %d", f.store.campaignStarts)
		}
	})

	t.Run("no connected page drops the event", func(t *testing.T) {
		f := newWebhookFixture(t)

		f.processor.Process(ctx, store.PlatformFacebook, messageEvent("unknown-page", "psid-1", "mid.2", "hi"))

		if len(f.store.messages) != 0 {
			t.Errorf("expected no messages, got %d", len(f.store.messages))
		}
	})

	t.Run("no active campaign drops first contact", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.store.activeCampaign = nil

		f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", "mid.3", "hi"))

		if len(f.store.chats) != 0 {
			t.Errorf("expected no chat created, got %d", len(f.store.chats))
		}
		if f.tracker.received != 0 {
			t.Errorf("expected no tracking, got %d received", f.tracker.received)
		}
	})

	t.Run("echo and empty messages are ignored", func(t *testing.T) {
		f := newWebhookFixture(t)

		echo := messageEvent(f.pageID, "psid-1", "mid.4", "echoed text")
		echo.Message.IsEcho = true
		f.processor.Process(ctx, store.PlatformFacebook, echo)
		f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", "mid.5", "   "))

		if len(f.store.messages) != 0 {
			t.Errorf("expected no messages, got %d", len(f.store.messages))
		}
	})

	t.Run("second customer message credits a campaign response", func(t *testing.T) {
		f := newWebhookFixture(t)

		f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", "mid.6", "hello"))
		f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", "mid.7", "sounds good"))

		if f.store.campaignResponses != 1 {
			t.Errorf("expected 1 response credited, got %d", f.store.campaignResponses)
		}

		f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", "mid.8", "ok"))
		if f.store.campaignResponses != 1 {
			t.Errorf("response should be credited once, got %d", f.store.campaignResponses)
		}
	})

	t.Run("failed send aborts the reply turn but keeps the customer message", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.sender.err = errors.New("graph api down")

		f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", "mid.9", "hi"))

		if len(f.store.messages) != 1 {
			t.Errorf("expected only the customer message persisted, got %d", len(f.store.messages))
		}
		if f.tracker.sent != 0 {
			t.Errorf("expected no tracked send, got %d", f.tracker.sent)
		}
	})
}

func TestLeadQualificationFlow(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture(t)

	// Enough intent to cross the qualification threshold.
	f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", "mid.q1", "what is the price?"))
	f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", "mid.q2", "yes I want to buy, my email is a@b.com"))

	chat := f.store.chats["psid-1"]
	if chat.Status != store.ChatStatusQualified {
		t.Errorf("expected chat qualified, got %s", chat.Status)
	}
	if f.store.qualifiedChats != 1 {
		t.Errorf("expected chat qualified exactly once, got %d", f.store.qualifiedChats)
	}
	if f.tracker.qualified != 1 {
		t.Errorf("expected 1 tracked qualification, got %d", f.tracker.qualified)
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0] != "owner@example.com" {
		t.Errorf("expected notification email to owner, got %v", f.mailer.sent)
	}

	foundQualifiedEvent := false
	for _, event := range f.publisher.events {
		if event == realtime.EventLeadQualified {
			foundQualifiedEvent = true
		}
	}
	if !foundQualifiedEvent {
		t.Errorf("expected %s event, got %v", realtime.EventLeadQualified, f.publisher.events)
	}
}

func TestLeadScoreCoversFullHistory(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture(t)

	// The price bonus lands in the very first message; dozens of neutral
	// turns afterwards must not age it out of the score.
	f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", "mid.h0", "what is the price?"))
	for i := 0; i < 30; i++ {
		f.processor.Process(ctx, store.PlatformFacebook, messageEvent(f.pageID, "psid-1", fmt.Sprintf("mid.h%d", i+1), "tell me more"))
	}

	if len(f.store.messages) <= 50 {
		t.Fatalf("fixture too short to exercise a long thread: %d messages", len(f.store.messages))
	}
	want := 30 + 15 // engagement cap plus the price bonus from turn one
	if f.store.leadScore != want {
		t.Errorf("expected lead score %d over the full history, got %d", want, f.store.leadScore)
	}
}

func TestHandlePostback(t *testing.T) {
	ctx := context.Background()

	t.Run("opt-in postback sends the campaign greeting", func(t *testing.T) {
		f := newWebhookFixture(t)

		var event MessagingEvent
		event.Sender.ID = "psid-1"
		event.Recipient.ID = f.pageID
		event.Postback = &struct {
			Title   string `json:"title"`
			Payload string `json:"payload"`
		}{Title: "Get Started", Payload: PostbackOptIn}

		f.processor.Process(ctx, store.PlatformFacebook, event)

		if len(f.sender.sent) != 1 || f.sender.sent[0] != "Hey there! Want to hear about our offer?" {
			t.Errorf("expected greeting sent, got %v", f.sender.sent)
		}
	})

	t.Run("unknown payload is ignored", func(t *testing.T) {
		f := newWebhookFixture(t)

		var event MessagingEvent
		event.Sender.ID = "psid-1"
		event.Recipient.ID = f.pageID
		event.Postback = &struct {
			Title   string `json:"title"`
			Payload string `json:"payload"`
		}{Title: "Other", Payload: "SOMETHING_ELSE"}

		f.processor.Process(ctx, store.PlatformFacebook, event)

		if len(f.sender.sent) != 0 {
			t.Errorf("expected nothing sent, got %v", f.sender.sent)
		}
	})
}

func TestConversationKey(t *testing.T) {
	event := messageEvent("page-9", "psid-7", "mid.1", "hi")
	if event.ConversationKey() != "page-9:psid-7" {
		t.Errorf("unexpected key %q", event.ConversationKey())
	}
}
