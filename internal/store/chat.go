package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chat is a conversation thread with one customer on one platform.
type Chat struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	CampaignID      uuid.UUID       `db:"campaign_id" json:"campaign_id"`
	Platform        Platform        `db:"platform" json:"platform"`
	CustomerID      string          `db:"customer_id" json:"customer_id"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerProfile CustomerProfile `db:"customer_profile" json:"customer_profile"`
	Status          ChatStatus      `db:"status" json:"status"`
	LeadScore       int             `db:"lead_score" json:"lead_score"`
	Converted       bool            `db:"converted" json:"converted"`
	ConvertedAt     *time.Time      `db:"converted_at" json:"converted_at,omitempty"`
	OrderValue      float64         `db:"order_value" json:"order_value"`
	OrderDetails    JSONB           `db:"order_details" json:"order_details"`
	LastMessageAt   time.Time       `db:"last_message_at" json:"last_message_at"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ChatFilter narrows ListChats results. Zero values mean no filter.
type ChatFilter struct {
	Status     ChatStatus
	Platform   Platform
	CampaignID uuid.UUID
	Limit      int
	Offset     int
}

// ChatStats is the aggregate view over a user's chats.
type ChatStats struct {
	TotalChats     int     `db:"total_chats" json:"total_chats"`
	ActiveChats    int     `db:"active_chats" json:"active_chats"`
	QualifiedLeads int     `db:"qualified_leads" json:"qualified_leads"`
	Conversions    int     `db:"conversions" json:"conversions"`
	TotalRevenue   float64 `db:"total_revenue" json:"total_revenue"`
	AvgLeadScore   float64 `db:"avg_lead_score" json:"avg_lead_score"`
}

// The unique (user_id, platform, customer_id) key makes concurrent webhook
// deliveries race to a single row. DO NOTHING plus a follow-up read keeps
// the loser on the winner's chat.
const sqlInsertChat = `
INSERT INTO chats (user_id, campaign_id, platform, customer_id, customer_name, customer_profile)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, platform, customer_id) DO NOTHING
RETURNING *`

const sqlGetChatByCustomer = `
SELECT * FROM chats WHERE user_id = $1 AND platform = $2 AND customer_id = $3`

// GetChatByCustomer looks a chat up by its platform identity.
func (s *Store) GetChatByCustomer(ctx context.Context, userID uuid.UUID, platform Platform, customerID string) (Chat, error) {
	var chat Chat
	err := s.db.GetContext(ctx, &chat, sqlGetChatByCustomer, userID, platform, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get chat by customer", err)
		return Chat{}, fmt.Errorf("failed to get chat by customer: %w", err)
	}
	return chat, nil
}

// FindOrCreateChat returns the chat for a customer, creating it on first
// contact. The created flag reports whether this call inserted the row.
func (s *Store) FindOrCreateChat(ctx context.Context, userID, campaignID uuid.UUID, platform Platform, customerID, customerName string, profile CustomerProfile) (Chat, bool, error) {
	var chat Chat
	err := s.db.GetContext(ctx, &chat, sqlInsertChat, userID, campaignID, platform, customerID, customerName, profile)
	if err == nil {
		return chat, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error(ctx, "failed to insert chat", err)
		return Chat{}, false, fmt.Errorf("failed to insert chat: %w", err)
	}
	err = s.db.GetContext(ctx, &chat, sqlGetChatByCustomer, userID, platform, customerID)
	if err != nil {
		s.logger.Error(ctx, "failed to get chat by customer", err)
		return Chat{}, false, fmt.Errorf("failed to get chat by customer: %w", err)
	}
	return chat, false, nil
}

const sqlGetChat = `
SELECT * FROM chats WHERE id = $1 AND user_id = $2`

func (s *Store) GetChat(ctx context.Context, id, userID uuid.UUID) (Chat, error) {
	var chat Chat
	err := s.db.GetContext(ctx, &chat, sqlGetChat, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get chat", err)
		return Chat{}, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}

const sqlListChats = `
SELECT * FROM chats
WHERE user_id = $1
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR platform = $3)
  AND ($4::uuid IS NULL OR campaign_id = $4)
ORDER BY last_message_at DESC
LIMIT $5 OFFSET $6`

func (s *Store) ListChats(ctx context.Context, userID uuid.UUID, filter ChatFilter) ([]Chat, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var campaignID *uuid.UUID
	if filter.CampaignID != uuid.Nil {
		campaignID = &filter.CampaignID
	}
	chats := []Chat{}
	err := s.db.SelectContext(ctx, &chats, sqlListChats, userID, filter.Status, filter.Platform, campaignID, limit, filter.Offset)
	if err != nil {
		s.logger.Error(ctx, "failed to list chats", err)
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

const sqlSetChatStatus = `
UPDATE chats
SET status = $3, updated_at = now()
WHERE id = $1 AND user_id = $2 AND status = $4
RETURNING *`

// SetChatStatus moves a chat between lifecycle states with a
// compare-and-set on the previous status.
func (s *Store) SetChatStatus(ctx context.Context, id, userID uuid.UUID, to, from ChatStatus) (Chat, error) {
	var chat Chat
	err := s.db.GetContext(ctx, &chat, sqlSetChatStatus, id, userID, to, from)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, ErrStatusConflict
		}
		s.logger.Error(ctx, "failed to set chat status", err)
		return Chat{}, fmt.Errorf("failed to set chat status: %w", err)
	}
	return chat, nil
}

const sqlUpdateChatLeadScore = `
UPDATE chats
SET lead_score = $2, updated_at = now()
WHERE id = $1`

func (s *Store) UpdateChatLeadScore(ctx context.Context, id uuid.UUID, score int) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateChatLeadScore, id, score)
	if err != nil {
		s.logger.Error(ctx, "failed to update chat lead score", err)
		return fmt.Errorf("failed to update chat lead score: %w", err)
	}
	return nil
}

const sqlQualifyChat = `
UPDATE chats
SET status = 'qualified', updated_at = now()
WHERE id = $1 AND status = 'active'
RETURNING *`

// QualifyChat promotes an active chat to qualified. Returns
// ErrStatusConflict if the chat already left the active state.
func (s *Store) QualifyChat(ctx context.Context, id uuid.UUID) (Chat, error) {
	var chat Chat
	err := s.db.GetContext(ctx, &chat, sqlQualifyChat, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, ErrStatusConflict
		}
		s.logger.Error(ctx, "failed to qualify chat", err)
		return Chat{}, fmt.Errorf("failed to qualify chat: %w", err)
	}
	return chat, nil
}

// converted = false in the predicate makes conversion exactly-once: a
// double submit converts nothing and returns ErrAlreadyConverted.
const sqlConvertChat = `
UPDATE chats
SET status = 'converted', converted = TRUE, converted_at = now(),
    order_value = $3, order_details = $4, updated_at = now()
WHERE id = $1 AND user_id = $2 AND converted = FALSE
RETURNING *`

func (s *Store) ConvertChat(ctx context.Context, id, userID uuid.UUID, orderValue float64, orderDetails JSONB) (Chat, error) {
	var chat Chat
	err := s.db.GetContext(ctx, &chat, sqlConvertChat, id, userID, orderValue, orderDetails)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.GetChat(ctx, id, userID); getErr != nil {
				return Chat{}, getErr
			}
			return Chat{}, ErrAlreadyConverted
		}
		s.logger.Error(ctx, "failed to convert chat", err)
		return Chat{}, fmt.Errorf("failed to convert chat: %w", err)
	}
	return chat, nil
}

const sqlChatStatsOverview = `
SELECT count(*) AS total_chats,
       count(*) FILTER (WHERE status = 'active') AS active_chats,
       count(*) FILTER (WHERE status = 'qualified') AS qualified_leads,
       count(*) FILTER (WHERE converted) AS conversions,
       COALESCE(sum(order_value) FILTER (WHERE converted), 0) AS total_revenue,
       COALESCE(avg(lead_score), 0) AS avg_lead_score
FROM chats
WHERE user_id = $1`

func (s *Store) ChatStatsOverview(ctx context.Context, userID uuid.UUID) (ChatStats, error) {
	var stats ChatStats
	err := s.db.GetContext(ctx, &stats, sqlChatStatsOverview, userID)
	if err != nil {
		s.logger.Error(ctx, "failed to get chat stats overview", err)
		return ChatStats{}, fmt.Errorf("failed to get chat stats overview: %w", err)
	}
	return stats, nil
}
