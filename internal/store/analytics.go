package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnalyticsDaily is one day of aggregated activity for a user, optionally
// scoped to a campaign and platform.
type AnalyticsDaily struct {
	ID                   uuid.UUID   `db:"id" json:"id"`
	UserID               uuid.UUID   `db:"user_id" json:"user_id"`
	CampaignID           *uuid.UUID  `db:"campaign_id" json:"campaign_id,omitempty"`
	Day                  time.Time   `db:"day" json:"day"`
	Platform             Platform    `db:"platform" json:"platform"`
	MessagesSent         int         `db:"messages_sent" json:"messages_sent"`
	MessagesReceived     int         `db:"messages_received" json:"messages_received"`
	ConversationsStarted int         `db:"conversations_started" json:"conversations_started"`
	LeadsGenerated       int         `db:"leads_generated" json:"leads_generated"`
	QualifiedLeads       int         `db:"qualified_leads" json:"qualified_leads"`
	Conversions          int         `db:"conversions" json:"conversions"`
	Revenue              float64     `db:"revenue" json:"revenue"`
	ResponseRate         float64     `db:"response_rate" json:"response_rate"`
	ConversionRate       float64     `db:"conversion_rate" json:"conversion_rate"`
	Hourly               HourlySlots `db:"hourly" json:"hourly"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
}

// AnalyticsDelta is a set of counter increments applied to one day.
type AnalyticsDelta struct {
	MessagesSent         int
	MessagesReceived     int
	ConversationsStarted int
	LeadsGenerated       int
	QualifiedLeads       int
	Conversions          int
	Revenue              float64
}

// One statement per tracked event. The conflict arm adds the incoming
// counters and merges the 24-slot hourly arrays element by element, so
// concurrent workers never clobber each other's increments.
const sqlTrackEvent = `
INSERT INTO analytics_daily (user_id, campaign_id, day, platform,
    messages_sent, messages_received, conversations_started,
    leads_generated, qualified_leads, conversions, revenue, hourly)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (user_id, campaign_id, day, platform) DO UPDATE
SET messages_sent = analytics_daily.messages_sent + EXCLUDED.messages_sent,
    messages_received = analytics_daily.messages_received + EXCLUDED.messages_received,
    conversations_started = analytics_daily.conversations_started + EXCLUDED.conversations_started,
    leads_generated = analytics_daily.leads_generated + EXCLUDED.leads_generated,
    qualified_leads = analytics_daily.qualified_leads + EXCLUDED.qualified_leads,
    conversions = analytics_daily.conversions + EXCLUDED.conversions,
    revenue = analytics_daily.revenue + EXCLUDED.revenue,
    hourly = (
        SELECT jsonb_agg(jsonb_build_object(
            'hour', (a.elem ->> 'hour')::int,
            'messages', (a.elem ->> 'messages')::int + (b.elem ->> 'messages')::int,
            'conversations', (a.elem ->> 'conversations')::int + (b.elem ->> 'conversations')::int,
            'conversions', (a.elem ->> 'conversions')::int + (b.elem ->> 'conversions')::int
        ) ORDER BY a.ord)
        FROM jsonb_array_elements(analytics_daily.hourly) WITH ORDINALITY a(elem, ord)
        JOIN jsonb_array_elements(EXCLUDED.hourly) WITH ORDINALITY b(elem, ord) ON a.ord = b.ord
    )
RETURNING id`

const sqlRecomputeRates = `
UPDATE analytics_daily
SET response_rate = CASE WHEN messages_sent > 0
        THEN messages_received::float * 100 / messages_sent
        ELSE 0 END,
    conversion_rate = CASE WHEN leads_generated > 0
        THEN conversions::float * 100 / leads_generated
        ELSE 0 END
WHERE id = $1`

// TrackEvent folds a delta into the (user, campaign, day, platform) row,
// creating it on first touch, then recomputes the derived rates.
func (s *Store) TrackEvent(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, day time.Time, platform Platform, hour int, delta AnalyticsDelta) error {
	hourly := EmptyHourlySlots()
	if hour >= 0 && hour < 24 {
		hourly[hour].Messages = delta.MessagesSent + delta.MessagesReceived
		hourly[hour].Conversations = delta.ConversationsStarted
		hourly[hour].Conversions = delta.Conversions
	}

	var id uuid.UUID
	err := s.db.GetContext(ctx, &id, sqlTrackEvent,
		userID, campaignID, day.Format("2006-01-02"), platform,
		delta.MessagesSent, delta.MessagesReceived, delta.ConversationsStarted,
		delta.LeadsGenerated, delta.QualifiedLeads, delta.Conversions, delta.Revenue,
		hourly)
	if err != nil {
		s.logger.Error(ctx, "failed to track analytics event", err)
		return fmt.Errorf("failed to track analytics event: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlRecomputeRates, id); err != nil {
		s.logger.Error(ctx, "failed to recompute analytics rates", err)
		return fmt.Errorf("failed to recompute analytics rates: %w", err)
	}
	return nil
}

const sqlAnalyticsRange = `
SELECT * FROM analytics_daily
WHERE user_id = $1 AND day BETWEEN $2 AND $3
  AND ($4 = 'all' OR platform = $4)
ORDER BY day ASC`

func (s *Store) AnalyticsRange(ctx context.Context, userID uuid.UUID, from, to time.Time, platform Platform) ([]AnalyticsDaily, error) {
	rows := []AnalyticsDaily{}
	err := s.db.SelectContext(ctx, &rows, sqlAnalyticsRange, userID, from.Format("2006-01-02"), to.Format("2006-01-02"), platform)
	if err != nil {
		s.logger.Error(ctx, "failed to query analytics range", err)
		return nil, fmt.Errorf("failed to query analytics range: %w", err)
	}
	return rows, nil
}

const sqlAnalyticsByCampaign = `
SELECT * FROM analytics_daily
WHERE user_id = $1 AND campaign_id = $2 AND day BETWEEN $3 AND $4
ORDER BY day ASC`

func (s *Store) AnalyticsByCampaign(ctx context.Context, userID, campaignID uuid.UUID, from, to time.Time) ([]AnalyticsDaily, error) {
	rows := []AnalyticsDaily{}
	err := s.db.SelectContext(ctx, &rows, sqlAnalyticsByCampaign, userID, campaignID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		s.logger.Error(ctx, "failed to query campaign analytics", err)
		return nil, fmt.Errorf("failed to query campaign analytics: %w", err)
	}
	return rows, nil
}

const sqlAnalyticsDay = `
SELECT * FROM analytics_daily
WHERE user_id = $1 AND day = $2
ORDER BY platform`

func (s *Store) AnalyticsDay(ctx context.Context, userID uuid.UUID, day time.Time) ([]AnalyticsDaily, error) {
	rows := []AnalyticsDaily{}
	err := s.db.SelectContext(ctx, &rows, sqlAnalyticsDay, userID, day.Format("2006-01-02"))
	if err != nil {
		s.logger.Error(ctx, "failed to query day analytics", err)
		return nil, fmt.Errorf("failed to query day analytics: %w", err)
	}
	return rows, nil
}

const sqlActiveChatCount = `
SELECT count(*) FROM chats
WHERE user_id = $1 AND last_message_at >= $2`

// ActiveChatCount counts chats with activity since the given time.
func (s *Store) ActiveChatCount(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, sqlActiveChatCount, userID, since)
	if err != nil {
		s.logger.Error(ctx, "failed to count active chats", err)
		return 0, fmt.Errorf("failed to count active chats: %w", err)
	}
	return count, nil
}

const sqlRecentChatActivity = `
SELECT count(*) FROM chat_messages
WHERE user_id = $1 AND created_at >= $2`

// RecentChatActivity counts messages in the trailing window, for the
// real-time dashboard card.
func (s *Store) RecentChatActivity(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, sqlRecentChatActivity, userID, since)
	if err != nil {
		s.logger.Error(ctx, "failed to count recent chat activity", err)
		return 0, fmt.Errorf("failed to count recent chat activity: %w", err)
	}
	return count, nil
}
