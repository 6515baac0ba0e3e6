package processor

import (
	"context"
	"errors"
	"fmt"

	"salespilot/internal/observability"
	"salespilot/internal/realtime"
	"salespilot/internal/store"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyConverted  = errors.New("chat already converted")
	ErrNotFound          = errors.New("chat not found")
	ErrSendFailed        = errors.New("platform send failed")
)

// Store is the subset of the store the chat processor needs.
type Store interface {
	GetChat(ctx context.Context, id, userID uuid.UUID) (store.Chat, error)
	ListChats(ctx context.Context, userID uuid.UUID, filter store.ChatFilter) ([]store.Chat, error)
	ListMessagesByChat(ctx context.Context, chatID, userID uuid.UUID, limit, offset int) ([]store.ChatMessage, error)
	InsertMessage(ctx context.Context, chatID, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform, platformMessageID, sender, content, messageType string, metadata store.JSONB) (store.ChatMessage, error)
	SetChatStatus(ctx context.Context, id, userID uuid.UUID, to, from store.ChatStatus) (store.Chat, error)
	ConvertChat(ctx context.Context, id, userID uuid.UUID, orderValue float64, orderDetails store.JSONB) (store.Chat, error)
	ChatStatsOverview(ctx context.Context, userID uuid.UUID) (store.ChatStats, error)
	IncrementCampaignStats(ctx context.Context, id uuid.UUID, messagesStarted, responses, conversions int, revenue float64) error
}

// Tracker records analytics events.
type Tracker interface {
	TrackConversion(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform, revenue float64)
	TrackMessageSent(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform)
}

// Sender delivers outbound messages to the chat's platform.
type Sender interface {
	Send(ctx context.Context, userID uuid.UUID, platform store.Platform, customerID, text string) (string, error)
}

// Publisher fans chat events out to the owner's open dashboards.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, eventType string, data map[string]interface{})
}

type ChatProcessor struct {
	store     Store
	tracker   Tracker
	sender    Sender
	publisher Publisher
	logger    *observability.Logger
}

func New(store Store, tracker Tracker, sender Sender, publisher Publisher, logger *observability.Logger) ChatProcessor {
	return ChatProcessor{store: store, tracker: tracker, sender: sender, publisher: publisher, logger: logger}
}

func (p *ChatProcessor) ListChats(ctx context.Context, userID uuid.UUID, filter store.ChatFilter) ([]store.Chat, error) {
	return p.store.ListChats(ctx, userID, filter)
}

func (p *ChatProcessor) GetChat(ctx context.Context, id, userID uuid.UUID) (store.Chat, error) {
	chat, err := p.store.GetChat(ctx, id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Chat{}, ErrNotFound
		}
		return store.Chat{}, err
	}
	return chat, nil
}

func (p *ChatProcessor) ListMessages(ctx context.Context, chatID, userID uuid.UUID, limit, offset int) ([]store.ChatMessage, error) {
	if _, err := p.GetChat(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return p.store.ListMessagesByChat(ctx, chatID, userID, limit, offset)
}

// SetStatus moves a chat along its lifecycle. The transition is checked
// against the table first, then applied with a compare-and-set so a
// concurrent change surfaces as ErrInvalidTransition rather than a silent
// overwrite.
func (p *ChatProcessor) SetStatus(ctx context.Context, id, userID uuid.UUID, to store.ChatStatus) (store.Chat, error) {
	chat, err := p.GetChat(ctx, id, userID)
	if err != nil {
		return store.Chat{}, err
	}
	if !store.CanTransitionChat(chat.Status, to) {
		return store.Chat{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, chat.Status, to)
	}

	// Converting via the status endpoint still goes through the
	// first-conversion path so the counters stay exactly-once.
	if to == store.ChatStatusConverted {
		return p.Convert(ctx, id, userID, 0, nil)
	}

	updated, err := p.store.SetChatStatus(ctx, id, userID, to, chat.Status)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return store.Chat{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, chat.Status, to)
		}
		return store.Chat{}, err
	}
	return updated, nil
}

// Convert marks a chat as a won sale, credits the campaign counters, and
// records the analytics event. Converting twice returns
// ErrAlreadyConverted and changes nothing.
func (p *ChatProcessor) Convert(ctx context.Context, id, userID uuid.UUID, orderValue float64, orderDetails store.JSONB) (store.Chat, error) {
	chat, err := p.store.ConvertChat(ctx, id, userID, orderValue, orderDetails)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return store.Chat{}, ErrNotFound
		case errors.Is(err, store.ErrAlreadyConverted):
			return store.Chat{}, ErrAlreadyConverted
		}
		return store.Chat{}, err
	}

	if err := p.store.IncrementCampaignStats(ctx, chat.CampaignID, 0, 0, 1, orderValue); err != nil {
		p.logger.Error(ctx, "failed to credit campaign conversion", err)
	}

	campaignID := chat.CampaignID
	p.tracker.TrackConversion(ctx, userID, &campaignID, chat.Platform, orderValue)

	return chat, nil
}

func (p *ChatProcessor) StatsOverview(ctx context.Context, userID uuid.UUID) (store.ChatStats, error) {
	return p.store.ChatStatsOverview(ctx, userID)
}

// SendBusinessMessage persists a manual reply from the business and
// delivers it to the customer. The message is persisted before the send
// so a platform failure never loses the operator's text; the caller is
// told about the failure via ErrSendFailed.
func (p *ChatProcessor) SendBusinessMessage(ctx context.Context, chatID, userID uuid.UUID, content string) (store.ChatMessage, error) {
	chat, err := p.GetChat(ctx, chatID, userID)
	if err != nil {
		return store.ChatMessage{}, err
	}

	campaignID := chat.CampaignID
	message, err := p.store.InsertMessage(ctx, chatID, userID, &campaignID, chat.Platform, "",
		store.MessageSenderBusiness, content, store.MessageTypeText, nil)
	if err != nil {
		return store.ChatMessage{}, err
	}

	p.publisher.Publish(ctx, userID, realtime.EventNewMessage, map[string]interface{}{
		"chatId": chatID.String(),
		"message": message,
	})
	p.tracker.TrackMessageSent(ctx, userID, &campaignID, chat.Platform)

	if _, err := p.sender.Send(ctx, userID, chat.Platform, chat.CustomerID, content); err != nil {
		p.logger.Error(ctx, "failed to deliver business message", err)
		return message, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return message, nil
}
