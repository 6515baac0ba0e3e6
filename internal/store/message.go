package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one message inside a chat thread. chat_messages is the
// single source of truth for conversation history.
type ChatMessage struct {
	ID                uuid.UUID      `db:"id" json:"id"`
	ChatID            uuid.UUID      `db:"chat_id" json:"chat_id"`
	UserID            uuid.UUID      `db:"user_id" json:"user_id"`
	CampaignID        *uuid.UUID     `db:"campaign_id" json:"campaign_id,omitempty"`
	Platform          Platform       `db:"platform" json:"platform"`
	PlatformMessageID sql.NullString `db:"platform_message_id" json:"-"`
	Sender            string         `db:"sender" json:"sender"`
	Content           string         `db:"content" json:"content"`
	MessageType       string         `db:"message_type" json:"message_type"`
	Metadata          JSONB          `db:"metadata" json:"metadata"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// The partial unique index on platform_message_id swallows platform
// redeliveries: the conflicting insert returns no row.
const sqlInsertMessage = `
INSERT INTO chat_messages (chat_id, user_id, campaign_id, platform, platform_message_id, sender, content, message_type, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (platform_message_id) WHERE platform_message_id IS NOT NULL DO NOTHING
RETURNING *`

const sqlTouchChat = `
UPDATE chats SET last_message_at = $2, updated_at = now() WHERE id = $1`

// InsertMessage appends a message to a chat and bumps the chat's
// last_message_at. A duplicate platform message ID yields
// ErrDuplicateMessage and writes nothing.
func (s *Store) InsertMessage(ctx context.Context, chatID, userID uuid.UUID, campaignID *uuid.UUID, platform Platform, platformMessageID, sender, content, messageType string, metadata JSONB) (ChatMessage, error) {
	platformID := sql.NullString{String: platformMessageID, Valid: platformMessageID != ""}

	var message ChatMessage
	err := s.db.GetContext(ctx, &message, sqlInsertMessage, chatID, userID, campaignID, platform, platformID, sender, content, messageType, metadata)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ChatMessage{}, ErrDuplicateMessage
		}
		s.logger.Error(ctx, "failed to insert message", err)
		return ChatMessage{}, fmt.Errorf("failed to insert message: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlTouchChat, chatID, message.CreatedAt); err != nil {
		s.logger.Error(ctx, "failed to touch chat", err)
		return ChatMessage{}, fmt.Errorf("failed to touch chat: %w", err)
	}
	return message, nil
}

const sqlListMessagesByChat = `
SELECT * FROM chat_messages
WHERE chat_id = $1 AND user_id = $2
ORDER BY created_at ASC
LIMIT $3 OFFSET $4`

func (s *Store) ListMessagesByChat(ctx context.Context, chatID, userID uuid.UUID, limit, offset int) ([]ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	messages := []ChatMessage{}
	err := s.db.SelectContext(ctx, &messages, sqlListMessagesByChat, chatID, userID, limit, offset)
	if err != nil {
		s.logger.Error(ctx, "failed to list messages", err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

const sqlRecentMessages = `
SELECT * FROM (
    SELECT * FROM chat_messages
    WHERE chat_id = $1
    ORDER BY created_at DESC
    LIMIT $2
) recent
ORDER BY created_at ASC`

// RecentMessages returns the newest n messages of a chat in chronological
// order, for building model context windows.
func (s *Store) RecentMessages(ctx context.Context, chatID uuid.UUID, n int) ([]ChatMessage, error) {
	messages := []ChatMessage{}
	err := s.db.SelectContext(ctx, &messages, sqlRecentMessages, chatID, n)
	if err != nil {
		s.logger.Error(ctx, "failed to get recent messages", err)
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}
	return messages, nil
}

const sqlChatMessageContents = `
SELECT content FROM chat_messages
WHERE chat_id = $1
ORDER BY created_at ASC`

// ChatMessageContents returns every message body in a chat in
// chronological order, for lead scoring over the full history.
func (s *Store) ChatMessageContents(ctx context.Context, chatID uuid.UUID) ([]string, error) {
	contents := []string{}
	err := s.db.SelectContext(ctx, &contents, sqlChatMessageContents, chatID)
	if err != nil {
		s.logger.Error(ctx, "failed to load chat message contents", err)
		return nil, fmt.Errorf("failed to load chat message contents: %w", err)
	}
	return contents, nil
}

const sqlCountCustomerMessages = `
SELECT count(*) FROM chat_messages WHERE chat_id = $1 AND sender = 'customer'`

func (s *Store) CountCustomerMessages(ctx context.Context, chatID uuid.UUID) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, sqlCountCustomerMessages, chatID)
	if err != nil {
		s.logger.Error(ctx, "failed to count customer messages", err)
		return 0, fmt.Errorf("failed to count customer messages: %w", err)
	}
	return count, nil
}
