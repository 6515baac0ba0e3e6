package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is a business account.
type User struct {
	ID                  uuid.UUID      `db:"id" json:"id"`
	Email               string         `db:"email" json:"email"`
	HashedPassword      string         `db:"hashed_password" json:"-"`
	Role                string         `db:"role" json:"role"`
	OnboardingCompleted bool           `db:"onboarding_completed" json:"onboarding_completed"`
	BusinessInfo        JSONB          `db:"business_info" json:"business_info"`
	KnowledgeBase       sql.NullString `db:"knowledge_base" json:"-"`
	AITrained           bool           `db:"ai_trained" json:"ai_trained"`
	AILastTrainedAt     *time.Time     `db:"ai_last_trained_at" json:"ai_last_trained_at,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

const sqlCreateUser = `
INSERT INTO users (email, hashed_password, business_info)
VALUES ($1, $2, $3)
RETURNING *`

func (s *Store) CreateUser(ctx context.Context, email, hashedPassword string, businessInfo JSONB) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, sqlCreateUser, email, hashedPassword, businessInfo)
	if err != nil {
		s.logger.Error(ctx, "failed to create user", err)
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

const sqlGetUserByEmail = `
SELECT * FROM users WHERE email = lower($1)`

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, sqlGetUserByEmail, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get user by email", err)
		return User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

const sqlGetUserByID = `
SELECT * FROM users WHERE id = $1`

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, sqlGetUserByID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get user by ID", err)
		return User{}, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

const sqlUpdateBusinessInfo = `
UPDATE users
SET business_info = $2, onboarding_completed = $3, updated_at = now()
WHERE id = $1
RETURNING *`

func (s *Store) UpdateBusinessInfo(ctx context.Context, id uuid.UUID, businessInfo JSONB, onboardingCompleted bool) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, sqlUpdateBusinessInfo, id, businessInfo, onboardingCompleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to update business info", err)
		return User{}, fmt.Errorf("failed to update business info: %w", err)
	}
	return user, nil
}

const sqlUpdateKnowledgeBase = `
UPDATE users
SET knowledge_base = $2, ai_trained = TRUE, ai_last_trained_at = now(), updated_at = now()
WHERE id = $1`

func (s *Store) UpdateKnowledgeBase(ctx context.Context, id uuid.UUID, knowledgeBase string) error {
	result, err := s.db.ExecContext(ctx, sqlUpdateKnowledgeBase, id, knowledgeBase)
	if err != nil {
		s.logger.Error(ctx, "failed to update knowledge base", err)
		return fmt.Errorf("failed to update knowledge base: %w", err)
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
