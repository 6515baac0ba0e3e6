package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salespilot/internal/clients/facebook"
	chatprocessor "salespilot/internal/chat/processor"
	"salespilot/internal/observability"
	"salespilot/internal/realtime"
	"salespilot/internal/store"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

const (
	historyWindow  = 10
	dedupTTL       = 15 * time.Minute
	PostbackOptIn  = "GET_STARTED"
	defaultProfile = "Customer"
)

// MessagingEvent is one entry from a Meta webhook delivery.
type MessagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		MID    string `json:"mid"`
		Text   string `json:"text"`
		IsEcho bool   `json:"is_echo"`
	} `json:"message,omitempty"`
	Postback *struct {
		Title   string `json:"title"`
		Payload string `json:"payload"`
	} `json:"postback,omitempty"`
	Read *struct {
		Watermark int64 `json:"watermark"`
	} `json:"read,omitempty"`
}

// ConversationKey routes all events of one customer thread to the same
// worker so they process in delivery order.
func (e *MessagingEvent) ConversationKey() string {
	return e.Recipient.ID + ":" + e.Sender.ID
}

// Store is the subset of the store the webhook processor needs.
type Store interface {
	GetIntegrationByPageID(ctx context.Context, pageID string) (store.Integration, error)
	FindActiveCampaign(ctx context.Context, userID uuid.UUID, platform store.Platform) (store.Campaign, error)
	GetCampaign(ctx context.Context, id, userID uuid.UUID) (store.Campaign, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	GetChatByCustomer(ctx context.Context, userID uuid.UUID, platform store.Platform, customerID string) (store.Chat, error)
	FindOrCreateChat(ctx context.Context, userID, campaignID uuid.UUID, platform store.Platform, customerID, customerName string, profile store.CustomerProfile) (store.Chat, bool, error)
	InsertMessage(ctx context.Context, chatID, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform, platformMessageID, sender, content, messageType string, metadata store.JSONB) (store.ChatMessage, error)
	RecentMessages(ctx context.Context, chatID uuid.UUID, n int) ([]store.ChatMessage, error)
	ChatMessageContents(ctx context.Context, chatID uuid.UUID) ([]string, error)
	CountCustomerMessages(ctx context.Context, chatID uuid.UUID) (int, error)
	UpdateChatLeadScore(ctx context.Context, id uuid.UUID, score int) error
	QualifyChat(ctx context.Context, id uuid.UUID) (store.Chat, error)
	IncrementCampaignStats(ctx context.Context, id uuid.UUID, messagesStarted, responses, conversions int, revenue float64) error
}

// Replier produces the AI side of the conversation.
type Replier interface {
	GenerateSalesReply(ctx context.Context, user store.User, campaign store.Campaign, history []store.ChatMessage, customerMessage string) string
}

// Sender delivers outbound messages.
type Sender interface {
	Send(ctx context.Context, userID uuid.UUID, platform store.Platform, customerID, text string) (string, error)
}

// Tracker records analytics events.
type Tracker interface {
	TrackMessageReceived(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform)
	TrackMessageSent(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform)
	TrackConversationStarted(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform)
	TrackLeadQualified(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform)
}

// Publisher fans events out to the owner's dashboards.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, eventType string, data map[string]interface{})
}

// Profiler looks up a customer's platform profile.
type Profiler interface {
	GetCustomerProfile(ctx context.Context, psid, pageAccessToken string) (facebook.Profile, error)
}

// Mailer sends notification emails. May be nil when mail is not
// configured.
type Mailer interface {
	SendEmail(ctx context.Context, from, to, subject, htmlContent string) (string, error)
}

type WebhookProcessor struct {
	store      Store
	replier    Replier
	sender     Sender
	tracker    Tracker
	publisher  Publisher
	profiler   Profiler
	mailer     Mailer
	mailSender string

	// In-process fast path in front of the unique-index check, so a
	// redelivery burst does not hit the database at all.
	seen   *gocache.Cache
	logger *observability.Logger
}

func New(store Store, replier Replier, sender Sender, tracker Tracker, publisher Publisher, profiler Profiler, mailer Mailer, mailSender string, logger *observability.Logger) WebhookProcessor {
	return WebhookProcessor{
		store:      store,
		replier:    replier,
		sender:     sender,
		tracker:    tracker,
		publisher:  publisher,
		profiler:   profiler,
		mailer:     mailer,
		mailSender: mailSender,
		seen:       gocache.New(dedupTTL, 2*dedupTTL),
		logger:     logger,
	}
}

// Process handles one messaging event end to end. Errors are terminal for
// the event; Meta has already been acked and does not retry on our
// behalf.
func (p *WebhookProcessor) Process(ctx context.Context, platform store.Platform, event MessagingEvent) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "platform", Value: string(platform)},
		observability.Field{Key: "page_id", Value: event.Recipient.ID},
		observability.Field{Key: "sender_id", Value: event.Sender.ID},
	)

	switch {
	case event.Message != nil:
		if event.Message.IsEcho {
			return
		}
		if err := p.handleMessage(ctx, platform, event); err != nil {
			p.logger.Error(ctx, "failed to process inbound message", err)
		}
	case event.Postback != nil:
		if err := p.handlePostback(ctx, platform, event); err != nil {
			p.logger.Error(ctx, "failed to process postback", err)
		}
	case event.Read != nil:
		p.logger.Debug(ctx, "message read by customer")
	}
}

func (p *WebhookProcessor) handleMessage(ctx context.Context, platform store.Platform, event MessagingEvent) error {
	text := strings.TrimSpace(event.Message.Text)
	if text == "" {
		return nil
	}

	mid := event.Message.MID
	if mid != "" {
		if _, dup := p.seen.Get(mid); dup {
			p.logger.Info(ctx, "duplicate webhook delivery, skipping")
			return nil
		}
		p.seen.SetDefault(mid, struct{}{})
	}

	integration, err := p.store.GetIntegrationByPageID(ctx, event.Recipient.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn(ctx, "no connected integration for page, dropping event")
			return nil
		}
		return err
	}
	userID := integration.UserID
	ctx = observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID.String()})

	chat, created, err := p.resolveChat(ctx, userID, platform, event, integration)
	if err != nil {
		return err
	}
	if chat == nil {
		return nil
	}
	campaignID := chat.CampaignID

	message, err := p.store.InsertMessage(ctx, chat.ID, userID, &campaignID, platform, mid,
		store.MessageSenderCustomer, text, store.MessageTypeText, nil)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateMessage) {
			p.logger.Info(ctx, "duplicate platform message, skipping")
			return nil
		}
		return err
	}

	if created {
		if err := p.store.IncrementCampaignStats(ctx, campaignID, 1, 0, 0, 0); err != nil {
			p.logger.Error(ctx, "failed to credit conversation start", err)
		}
		p.tracker.TrackConversationStarted(ctx, userID, &campaignID, platform)
	} else if count, err := p.store.CountCustomerMessages(ctx, chat.ID); err == nil && count == 2 {
		// Second customer message is the first reply to the outreach.
		if err := p.store.IncrementCampaignStats(ctx, campaignID, 0, 1, 0, 0); err != nil {
			p.logger.Error(ctx, "failed to credit campaign response", err)
		}
	}

	p.tracker.TrackMessageReceived(ctx, userID, &campaignID, platform)
	p.publisher.Publish(ctx, userID, realtime.EventNewMessage, map[string]interface{}{
		"chatId": chat.ID.String(),
		"message": message,
	})

	return p.reply(ctx, userID, platform, *chat, text)
}

// resolveChat finds the customer's chat, creating it on first contact. A
// nil chat with nil error means the event should be dropped.
func (p *WebhookProcessor) resolveChat(ctx context.Context, userID uuid.UUID, platform store.Platform, event MessagingEvent, integration store.Integration) (*store.Chat, bool, error) {
	chat, err := p.store.GetChatByCustomer(ctx, userID, platform, event.Sender.ID)
	if err == nil {
		return &chat, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	campaign, err := p.store.FindActiveCampaign(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn(ctx, "no active campaign for platform, dropping conversation")
			return nil, false, nil
		}
		return nil, false, err
	}

	name, profile := p.lookupProfile(ctx, event.Sender.ID, integration)
	chat, created, err := p.store.FindOrCreateChat(ctx, userID, campaign.ID, platform, event.Sender.ID, name, profile)
	if err != nil {
		return nil, false, err
	}
	return &chat, created, nil
}

// Profile lookup is best effort: a Graph failure still leaves a usable
// chat under a generic name.
func (p *WebhookProcessor) lookupProfile(ctx context.Context, psid string, integration store.Integration) (string, store.CustomerProfile) {
	pageToken, _ := integration.Credentials["page_access_token"].(string)
	if pageToken == "" {
		return defaultProfile, store.CustomerProfile{}
	}

	profile, err := p.profiler.GetCustomerProfile(ctx, psid, pageToken)
	if err != nil {
		p.logger.Warn(ctx, "failed to fetch customer profile")
		return defaultProfile, store.CustomerProfile{}
	}

	name := strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	if name == "" {
		name = defaultProfile
	}
	return name, store.CustomerProfile{ProfilePic: profile.ProfilePic}
}

func (p *WebhookProcessor) reply(ctx context.Context, userID uuid.UUID, platform store.Platform, chat store.Chat, customerText string) error {
	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	campaign, err := p.store.GetCampaign(ctx, chat.CampaignID, userID)
	if err != nil {
		return err
	}
	history, err := p.store.RecentMessages(ctx, chat.ID, historyWindow)
	if err != nil {
		return err
	}

	replyText := p.replier.GenerateSalesReply(ctx, user, campaign, history, customerText)

	// A failed send aborts the reply turn: the customer message is
	// already persisted and the next inbound event retries naturally.
	sentMID, err := p.sender.Send(ctx, userID, platform, chat.CustomerID, replyText)
	if err != nil {
		return fmt.Errorf("failed to deliver AI reply: %w", err)
	}

	campaignID := chat.CampaignID
	aiMessage, err := p.store.InsertMessage(ctx, chat.ID, userID, &campaignID, platform, sentMID,
		store.MessageSenderAI, replyText, store.MessageTypeText, nil)
	if err != nil && !errors.Is(err, store.ErrDuplicateMessage) {
		return err
	}

	p.rescoreChat(ctx, userID, platform, chat, user)

	p.tracker.TrackMessageSent(ctx, userID, &campaignID, platform)
	p.publisher.Publish(ctx, userID, realtime.EventNewMessage, map[string]interface{}{
		"chatId": chat.ID.String(),
		"message": aiMessage,
	})
	return nil
}

// rescoreChat recomputes the lead score over the chat's entire message
// history, so early buying signals keep counting in long threads.
func (p *WebhookProcessor) rescoreChat(ctx context.Context, userID uuid.UUID, platform store.Platform, chat store.Chat, user store.User) {
	contents, err := p.store.ChatMessageContents(ctx, chat.ID)
	if err != nil {
		p.logger.Error(ctx, "failed to load messages for scoring", err)
		return
	}

	score := chatprocessor.LeadScore(contents)
	if err := p.store.UpdateChatLeadScore(ctx, chat.ID, score); err != nil {
		p.logger.Error(ctx, "failed to update lead score", err)
		return
	}

	if score < chatprocessor.QualificationThreshold || chat.Status != store.ChatStatusActive {
		return
	}

	qualified, err := p.store.QualifyChat(ctx, chat.ID)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return
		}
		p.logger.Error(ctx, "failed to qualify chat", err)
		return
	}

	campaignID := chat.CampaignID
	p.tracker.TrackLeadQualified(ctx, userID, &campaignID, platform)
	p.publisher.Publish(ctx, userID, realtime.EventLeadQualified, map[string]interface{}{
		"chatId":    qualified.ID.String(),
		"leadScore": score,
	})
	p.notifyQualified(ctx, user, qualified, score)
}

func (p *WebhookProcessor) notifyQualified(ctx context.Context, user store.User, chat store.Chat, score int) {
	if p.mailer == nil {
		return
	}
	subject := fmt.Sprintf("New qualified lead: %s", chat.CustomerName)
	html := fmt.Sprintf("<p><strong>%s</strong> just reached a lead score of %d on %s.</p><p>Open your dashboard to follow up while they're hot.</p>",
		chat.CustomerName, score, chat.Platform)
	if _, err := p.mailer.SendEmail(ctx, p.mailSender, user.Email, subject, html); err != nil {
		p.logger.Error(ctx, "failed to send qualification email", err)
	}
}

func (p *WebhookProcessor) handlePostback(ctx context.Context, platform store.Platform, event MessagingEvent) error {
	if event.Postback.Payload != PostbackOptIn {
		p.logger.Info(ctx, "ignoring unknown postback payload")
		return nil
	}

	integration, err := p.store.GetIntegrationByPageID(ctx, event.Recipient.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	campaign, err := p.store.FindActiveCampaign(ctx, integration.UserID, platform)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	greeting := campaign.ChatFlow.Greeting
	if greeting == "" {
		return nil
	}

	if _, err := p.sender.Send(ctx, integration.UserID, platform, event.Sender.ID, greeting); err != nil {
		return fmt.Errorf("failed to send greeting: %w", err)
	}
	return nil
}
