package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Collections exposed through the admin browse endpoints, keyed by their
// public name. Listing is always ownership-scoped.
var adminCollections = map[string]string{
	"campaigns":    "campaigns",
	"chats":        "chats",
	"messages":     "chat_messages",
	"analytics":    "analytics_daily",
	"integrations": "integrations",
}

var ErrUnknownCollection = errors.New("unknown collection")

// Columns never returned by admin reads.
var redactedColumns = map[string]struct{}{
	"hashed_password": {},
	"credentials":     {},
}

// TableCounts summarizes how many rows a user owns in each table.
type TableCounts struct {
	Campaigns    int `db:"campaigns" json:"campaigns"`
	Integrations int `db:"integrations" json:"integrations"`
	Chats        int `db:"chats" json:"chats"`
	ChatMessages int `db:"chat_messages" json:"chat_messages"`
	Analytics    int `db:"analytics" json:"analytics"`
}

const sqlTableCounts = `
SELECT (SELECT count(*) FROM campaigns WHERE user_id = $1) AS campaigns,
       (SELECT count(*) FROM integrations WHERE user_id = $1) AS integrations,
       (SELECT count(*) FROM chats WHERE user_id = $1) AS chats,
       (SELECT count(*) FROM chat_messages WHERE user_id = $1) AS chat_messages,
       (SELECT count(*) FROM analytics_daily WHERE user_id = $1) AS analytics`

func (s *Store) TableCountsForUser(ctx context.Context, userID uuid.UUID) (TableCounts, error) {
	var counts TableCounts
	err := s.db.GetContext(ctx, &counts, sqlTableCounts, userID)
	if err != nil {
		s.logger.Error(ctx, "failed to count user rows", err)
		return TableCounts{}, fmt.Errorf("failed to count user rows: %w", err)
	}
	return counts, nil
}

const sqlGlobalTableCounts = `
SELECT (SELECT count(*) FROM campaigns) AS campaigns,
       (SELECT count(*) FROM integrations) AS integrations,
       (SELECT count(*) FROM chats) AS chats,
       (SELECT count(*) FROM chat_messages) AS chat_messages,
       (SELECT count(*) FROM analytics_daily) AS analytics`

// GlobalTableCounts counts all rows across users, for admin accounts.
func (s *Store) GlobalTableCounts(ctx context.Context) (TableCounts, error) {
	var counts TableCounts
	err := s.db.GetContext(ctx, &counts, sqlGlobalTableCounts)
	if err != nil {
		s.logger.Error(ctx, "failed to count global rows", err)
		return TableCounts{}, fmt.Errorf("failed to count global rows: %w", err)
	}
	return counts, nil
}

// AdminListRows returns a user's rows of one collection as generic maps.
func (s *Store) AdminListRows(ctx context.Context, collection string, userID uuid.UUID, limit int) ([]map[string]interface{}, error) {
	table, ok := adminCollections[collection]
	if !ok {
		return nil, ErrUnknownCollection
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE user_id = $1 ORDER BY 1 LIMIT $2`, table)
	rows, err := s.db.QueryxContext(ctx, query, userID, limit)
	if err != nil {
		s.logger.Error(ctx, "failed to browse collection", err)
		return nil, fmt.Errorf("failed to browse collection: %w", err)
	}
	defer rows.Close()

	results := []map[string]interface{}{}
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan collection row: %w", err)
		}
		results = append(results, sanitizeRow(row))
	}
	return results, rows.Err()
}

// AdminGetRow returns one ownership-scoped row of a collection.
func (s *Store) AdminGetRow(ctx context.Context, collection string, id, userID uuid.UUID) (map[string]interface{}, error) {
	table, ok := adminCollections[collection]
	if !ok {
		return nil, ErrUnknownCollection
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 AND user_id = $2`, table)
	row := s.db.QueryRowxContext(ctx, query, id, userID)

	result := map[string]interface{}{}
	if err := row.MapScan(result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get collection row", err)
		return nil, fmt.Errorf("failed to get collection row: %w", err)
	}
	return sanitizeRow(result), nil
}

// sanitizeRow drops secret columns and converts byte slices so the row
// JSON-encodes as text rather than base64.
func sanitizeRow(row map[string]interface{}) map[string]interface{} {
	for key, value := range row {
		if _, secret := redactedColumns[key]; secret {
			delete(row, key)
			continue
		}
		if b, ok := value.([]byte); ok {
			row[key] = string(b)
		}
	}
	return row
}

// WipeUserData deletes everything a user owns except the account row.
// chats and campaigns cascade to their children.
func (s *Store) WipeUserData(ctx context.Context, userID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin wipe transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM chat_messages WHERE user_id = $1`,
		`DELETE FROM chats WHERE user_id = $1`,
		`DELETE FROM analytics_daily WHERE user_id = $1`,
		`DELETE FROM campaigns WHERE user_id = $1`,
		`DELETE FROM integrations WHERE user_id = $1`,
		`UPDATE users SET knowledge_base = NULL, ai_trained = FALSE, ai_last_trained_at = NULL, onboarding_completed = FALSE, updated_at = now() WHERE id = $1`,
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement, userID); err != nil {
			s.logger.Error(ctx, "failed to wipe user data", err)
			return fmt.Errorf("failed to wipe user data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit wipe transaction: %w", err)
	}
	return nil
}
