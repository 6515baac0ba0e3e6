package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Integration connects a user account to a messaging platform.
type Integration struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	UserID          uuid.UUID         `db:"user_id" json:"user_id"`
	Platform        Platform          `db:"platform" json:"platform"`
	Status          IntegrationStatus `db:"status" json:"status"`
	Credentials     JSONB             `db:"credentials" json:"-"`
	PlatformData    JSONB             `db:"platform_data" json:"platform_data"`
	WebhookVerified bool              `db:"webhook_verified" json:"webhook_verified"`
	LastSync        *time.Time        `db:"last_sync" json:"last_sync,omitempty"`
	ErrorLog        JSONB             `db:"error_log" json:"-"`
	ConnectedAt     time.Time         `db:"connected_at" json:"connected_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// Reconnecting replaces credentials in place; one row per user+platform.
const sqlUpsertIntegration = `
INSERT INTO integrations (user_id, platform, status, credentials, platform_data, webhook_verified, last_sync)
VALUES ($1, $2, 'connected', $3, $4, $5, now())
ON CONFLICT (user_id, platform) DO UPDATE
SET status = 'connected', credentials = EXCLUDED.credentials,
    platform_data = EXCLUDED.platform_data, webhook_verified = EXCLUDED.webhook_verified,
    last_sync = now(), updated_at = now()
RETURNING *`

func (s *Store) UpsertIntegration(ctx context.Context, userID uuid.UUID, platform Platform, credentials, platformData JSONB, webhookVerified bool) (Integration, error) {
	var integration Integration
	err := s.db.GetContext(ctx, &integration, sqlUpsertIntegration, userID, platform, credentials, platformData, webhookVerified)
	if err != nil {
		s.logger.Error(ctx, "failed to upsert integration", err)
		return Integration{}, fmt.Errorf("failed to upsert integration: %w", err)
	}
	return integration, nil
}

const sqlGetIntegration = `
SELECT * FROM integrations WHERE user_id = $1 AND platform = $2`

func (s *Store) GetIntegration(ctx context.Context, userID uuid.UUID, platform Platform) (Integration, error) {
	var integration Integration
	err := s.db.GetContext(ctx, &integration, sqlGetIntegration, userID, platform)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Integration{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get integration", err)
		return Integration{}, fmt.Errorf("failed to get integration: %w", err)
	}
	return integration, nil
}

const sqlListIntegrations = `
SELECT * FROM integrations WHERE user_id = $1 ORDER BY platform`

func (s *Store) ListIntegrations(ctx context.Context, userID uuid.UUID) ([]Integration, error) {
	integrations := []Integration{}
	err := s.db.SelectContext(ctx, &integrations, sqlListIntegrations, userID)
	if err != nil {
		s.logger.Error(ctx, "failed to list integrations", err)
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	return integrations, nil
}

// Webhook delivery carries a page ID, not a user ID. The expression index
// on credentials->>'page_id' serves this lookup.
const sqlGetIntegrationByPageID = `
SELECT * FROM integrations
WHERE credentials ->> 'page_id' = $1 AND status = 'connected'
LIMIT 1`

func (s *Store) GetIntegrationByPageID(ctx context.Context, pageID string) (Integration, error) {
	var integration Integration
	err := s.db.GetContext(ctx, &integration, sqlGetIntegrationByPageID, pageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Integration{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get integration by page ID", err)
		return Integration{}, fmt.Errorf("failed to get integration by page ID: %w", err)
	}
	return integration, nil
}

const sqlSetIntegrationStatus = `
UPDATE integrations
SET status = $3, updated_at = now()
WHERE user_id = $1 AND platform = $2`

func (s *Store) SetIntegrationStatus(ctx context.Context, userID uuid.UUID, platform Platform, status IntegrationStatus) error {
	result, err := s.db.ExecContext(ctx, sqlSetIntegrationStatus, userID, platform, status)
	if err != nil {
		s.logger.Error(ctx, "failed to set integration status", err)
		return fmt.Errorf("failed to set integration status: %w", err)
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

const sqlAppendIntegrationError = `
UPDATE integrations
SET error_log = error_log || jsonb_build_array(jsonb_build_object('at', now(), 'error', $3::text)),
    updated_at = now()
WHERE user_id = $1 AND platform = $2`

func (s *Store) AppendIntegrationError(ctx context.Context, userID uuid.UUID, platform Platform, message string) error {
	_, err := s.db.ExecContext(ctx, sqlAppendIntegrationError, userID, platform, message)
	if err != nil {
		s.logger.Error(ctx, "failed to append integration error", err)
		return fmt.Errorf("failed to append integration error: %w", err)
	}
	return nil
}
