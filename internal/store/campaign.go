package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Campaign is a product-selling configuration that drives AI replies.
type Campaign struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	UserID          uuid.UUID      `db:"user_id" json:"user_id"`
	Name            string         `db:"name" json:"name"`
	Product         Product        `db:"product" json:"product"`
	TargetPlatform  Platform       `db:"target_platform" json:"target_platform"`
	Status          CampaignStatus `db:"status" json:"status"`
	ChatFlow        ChatFlow       `db:"chat_flow" json:"chat_flow"`
	TargetAudience  TargetAudience `db:"target_audience" json:"target_audience"`
	OutreachMessage string         `db:"outreach_message" json:"outreach_message"`
	MessagesStarted int            `db:"messages_started" json:"messages_started"`
	Responses       int            `db:"responses" json:"responses"`
	Conversions     int            `db:"conversions" json:"conversions"`
	Revenue         float64        `db:"revenue" json:"revenue"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

const sqlCreateCampaign = `
INSERT INTO campaigns (user_id, name, product, target_platform, chat_flow, target_audience, outreach_message)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING *`

func (s *Store) CreateCampaign(ctx context.Context, userID uuid.UUID, name string, product Product, targetPlatform Platform, chatFlow ChatFlow, targetAudience TargetAudience, outreachMessage string) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlCreateCampaign, userID, name, product, targetPlatform, chatFlow, targetAudience, outreachMessage)
	if err != nil {
		s.logger.Error(ctx, "failed to create campaign", err)
		return Campaign{}, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}

const sqlGetCampaign = `
SELECT * FROM campaigns WHERE id = $1 AND user_id = $2`

func (s *Store) GetCampaign(ctx context.Context, id, userID uuid.UUID) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlGetCampaign, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get campaign", err)
		return Campaign{}, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

const sqlListCampaigns = `
SELECT * FROM campaigns
WHERE user_id = $1
ORDER BY created_at DESC`

func (s *Store) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]Campaign, error) {
	campaigns := []Campaign{}
	err := s.db.SelectContext(ctx, &campaigns, sqlListCampaigns, userID)
	if err != nil {
		s.logger.Error(ctx, "failed to list campaigns", err)
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

const sqlUpdateCampaign = `
UPDATE campaigns
SET name = $3, product = $4, target_platform = $5, chat_flow = $6, target_audience = $7, outreach_message = $8, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING *`

func (s *Store) UpdateCampaign(ctx context.Context, id, userID uuid.UUID, name string, product Product, targetPlatform Platform, chatFlow ChatFlow, targetAudience TargetAudience, outreachMessage string) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlUpdateCampaign, id, userID, name, product, targetPlatform, chatFlow, targetAudience, outreachMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to update campaign", err)
		return Campaign{}, fmt.Errorf("failed to update campaign: %w", err)
	}
	return campaign, nil
}

const sqlDeleteCampaign = `
DELETE FROM campaigns WHERE id = $1 AND user_id = $2`

func (s *Store) DeleteCampaign(ctx context.Context, id, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, sqlDeleteCampaign, id, userID)
	if err != nil {
		s.logger.Error(ctx, "failed to delete campaign", err)
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Compare-and-set: the update only lands if the campaign is still in the
// status the caller validated against.
const sqlSetCampaignStatus = `
UPDATE campaigns
SET status = $3, updated_at = now()
WHERE id = $1 AND user_id = $2 AND status = $4
RETURNING *`

func (s *Store) SetCampaignStatus(ctx context.Context, id, userID uuid.UUID, to, from CampaignStatus) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlSetCampaignStatus, id, userID, to, from)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrStatusConflict
		}
		s.logger.Error(ctx, "failed to set campaign status", err)
		return Campaign{}, fmt.Errorf("failed to set campaign status: %w", err)
	}
	return campaign, nil
}

const sqlFindActiveCampaign = `
SELECT * FROM campaigns
WHERE user_id = $1 AND status = 'active' AND target_platform IN ($2, 'all')
ORDER BY created_at DESC
LIMIT 1`

// FindActiveCampaign picks the newest active campaign targeting the given
// platform, used to attach inbound conversations.
func (s *Store) FindActiveCampaign(ctx context.Context, userID uuid.UUID, platform Platform) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlFindActiveCampaign, userID, platform)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to find active campaign", err)
		return Campaign{}, fmt.Errorf("failed to find active campaign: %w", err)
	}
	return campaign, nil
}

// Counters are bumped in place so concurrent webhook workers never lose
// increments.
const sqlIncrementCampaignStats = `
UPDATE campaigns
SET messages_started = messages_started + $2,
    responses = responses + $3,
    conversions = conversions + $4,
    revenue = revenue + $5,
    updated_at = now()
WHERE id = $1`

func (s *Store) IncrementCampaignStats(ctx context.Context, id uuid.UUID, messagesStarted, responses, conversions int, revenue float64) error {
	_, err := s.db.ExecContext(ctx, sqlIncrementCampaignStats, id, messagesStarted, responses, conversions, revenue)
	if err != nil {
		s.logger.Error(ctx, "failed to increment campaign stats", err)
		return fmt.Errorf("failed to increment campaign stats: %w", err)
	}
	return nil
}
