package processor

import (
	"context"
	"time"

	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/google/uuid"
)

// Store is the subset of the store the analytics processor needs.
type Store interface {
	TrackEvent(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, day time.Time, platform store.Platform, hour int, delta store.AnalyticsDelta) error
	AnalyticsRange(ctx context.Context, userID uuid.UUID, from, to time.Time, platform store.Platform) ([]store.AnalyticsDaily, error)
	AnalyticsByCampaign(ctx context.Context, userID, campaignID uuid.UUID, from, to time.Time) ([]store.AnalyticsDaily, error)
	AnalyticsDay(ctx context.Context, userID uuid.UUID, day time.Time) ([]store.AnalyticsDaily, error)
	RecentChatActivity(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	ActiveChatCount(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	ListCampaigns(ctx context.Context, userID uuid.UUID) ([]store.Campaign, error)
}

type AnalyticsProcessor struct {
	store  Store
	logger *observability.Logger
	now    func() time.Time
}

func New(store Store, logger *observability.Logger) AnalyticsProcessor {
	return AnalyticsProcessor{store: store, logger: logger, now: time.Now}
}

// track folds a delta into today's row. Tracking is best effort: a failed
// write is logged but never propagates into the message path.
func (p *AnalyticsProcessor) track(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform, delta store.AnalyticsDelta) {
	now := p.now().UTC()
	if err := p.store.TrackEvent(ctx, userID, campaignID, now, platform, now.Hour(), delta); err != nil {
		p.logger.Error(ctx, "failed to track analytics event", err)
	}
}

func (p *AnalyticsProcessor) TrackMessageReceived(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform) {
	p.track(ctx, userID, campaignID, platform, store.AnalyticsDelta{MessagesReceived: 1})
}

func (p *AnalyticsProcessor) TrackMessageSent(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform) {
	p.track(ctx, userID, campaignID, platform, store.AnalyticsDelta{MessagesSent: 1})
}

func (p *AnalyticsProcessor) TrackConversationStarted(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform) {
	p.track(ctx, userID, campaignID, platform, store.AnalyticsDelta{ConversationsStarted: 1, LeadsGenerated: 1})
}

func (p *AnalyticsProcessor) TrackLeadQualified(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform) {
	p.track(ctx, userID, campaignID, platform, store.AnalyticsDelta{QualifiedLeads: 1})
}

func (p *AnalyticsProcessor) TrackConversion(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID, platform store.Platform, revenue float64) {
	p.track(ctx, userID, campaignID, platform, store.AnalyticsDelta{Conversions: 1, Revenue: revenue})
}

// Totals is the summed view over a date range.
type Totals struct {
	MessagesSent         int     `json:"messages_sent"`
	MessagesReceived     int     `json:"messages_received"`
	ConversationsStarted int     `json:"conversations_started"`
	LeadsGenerated       int     `json:"leads_generated"`
	QualifiedLeads       int     `json:"qualified_leads"`
	Conversions          int     `json:"conversions"`
	Revenue              float64 `json:"revenue"`
	ResponseRate         float64 `json:"response_rate"`
	ConversionRate       float64 `json:"conversion_rate"`
	AvgOrderValue        float64 `json:"avg_order_value"`
}

// Dashboard is the overview payload: totals plus the per-day series.
type Dashboard struct {
	Totals Totals                 `json:"totals"`
	Daily  []store.AnalyticsDaily `json:"daily"`
}

func sumTotals(rows []store.AnalyticsDaily) Totals {
	var t Totals
	for _, row := range rows {
		t.MessagesSent += row.MessagesSent
		t.MessagesReceived += row.MessagesReceived
		t.ConversationsStarted += row.ConversationsStarted
		t.LeadsGenerated += row.LeadsGenerated
		t.QualifiedLeads += row.QualifiedLeads
		t.Conversions += row.Conversions
		t.Revenue += row.Revenue
	}
	if t.MessagesSent > 0 {
		t.ResponseRate = float64(t.MessagesReceived) * 100 / float64(t.MessagesSent)
	}
	if t.LeadsGenerated > 0 {
		t.ConversionRate = float64(t.Conversions) * 100 / float64(t.LeadsGenerated)
	}
	if t.Conversions > 0 {
		t.AvgOrderValue = t.Revenue / float64(t.Conversions)
	}
	return t
}

func (p *AnalyticsProcessor) GetDashboard(ctx context.Context, userID uuid.UUID, days int, platform store.Platform) (Dashboard, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	if !store.ValidPlatform(platform) {
		platform = store.PlatformAll
	}
	to := p.now().UTC()
	from := to.AddDate(0, 0, -(days - 1))

	rows, err := p.store.AnalyticsRange(ctx, userID, from, to, platform)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Totals: sumTotals(rows), Daily: rows}, nil
}

func (p *AnalyticsProcessor) GetCampaignAnalytics(ctx context.Context, userID, campaignID uuid.UUID, days int) (Dashboard, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	to := p.now().UTC()
	from := to.AddDate(0, 0, -(days - 1))

	rows, err := p.store.AnalyticsByCampaign(ctx, userID, campaignID, from, to)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Totals: sumTotals(rows), Daily: rows}, nil
}

// RealTime is the live dashboard card.
type RealTime struct {
	MessagesLastHour int     `json:"messages_last_hour"`
	ActiveChats      int     `json:"active_chats"`
	ConversionsToday int     `json:"conversions_today"`
	RevenueToday     float64 `json:"revenue_today"`
}

func (p *AnalyticsProcessor) GetRealTime(ctx context.Context, userID uuid.UUID) (RealTime, error) {
	now := p.now().UTC()

	messages, err := p.store.RecentChatActivity(ctx, userID, now.Add(-time.Hour))
	if err != nil {
		return RealTime{}, err
	}
	activeChats, err := p.store.ActiveChatCount(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return RealTime{}, err
	}
	today, err := p.store.AnalyticsDay(ctx, userID, now)
	if err != nil {
		return RealTime{}, err
	}

	rt := RealTime{
		MessagesLastHour: messages,
		ActiveChats:      activeChats,
	}
	for _, row := range today {
		rt.ConversionsToday += row.Conversions
		rt.RevenueToday += row.Revenue
	}
	return rt, nil
}

// CampaignSummary is one campaign's lifetime counters.
type CampaignSummary struct {
	CampaignID      uuid.UUID            `json:"campaign_id"`
	Name            string               `json:"name"`
	Status          store.CampaignStatus `json:"status"`
	TargetPlatform  store.Platform       `json:"target_platform"`
	MessagesStarted int                  `json:"messages_started"`
	Responses       int                  `json:"responses"`
	Conversions     int                  `json:"conversions"`
	Revenue         float64              `json:"revenue"`
	ConversionRate  float64              `json:"conversion_rate"`
}

// GetCampaignSummaries reports lifetime counters per campaign, straight
// off the atomically maintained campaign columns.
func (p *AnalyticsProcessor) GetCampaignSummaries(ctx context.Context, userID uuid.UUID) ([]CampaignSummary, error) {
	campaigns, err := p.store.ListCampaigns(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]CampaignSummary, 0, len(campaigns))
	for _, c := range campaigns {
		summary := CampaignSummary{
			CampaignID:      c.ID,
			Name:            c.Name,
			Status:          c.Status,
			TargetPlatform:  c.TargetPlatform,
			MessagesStarted: c.MessagesStarted,
			Responses:       c.Responses,
			Conversions:     c.Conversions,
			Revenue:         c.Revenue,
		}
		if c.MessagesStarted > 0 {
			summary.ConversionRate = float64(c.Conversions) * 100 / float64(c.MessagesStarted)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetHourly merges all of a day's rows into one 24-slot breakdown.
func (p *AnalyticsProcessor) GetHourly(ctx context.Context, userID uuid.UUID, day time.Time) (store.HourlySlots, error) {
	rows, err := p.store.AnalyticsDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	merged := store.EmptyHourlySlots()
	for _, row := range rows {
		for i, slot := range row.Hourly {
			if i >= len(merged) {
				break
			}
			merged[i].Messages += slot.Messages
			merged[i].Conversations += slot.Conversations
			merged[i].Conversions += slot.Conversions
		}
	}
	return merged, nil
}
