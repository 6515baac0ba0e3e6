package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salespilot/internal/config"
	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidJWTToken    = errors.New("invalid token")
	ErrParseJWTToken      = errors.New("failed to parse token")
)

const (
	tokenLifetime = 30 * 24 * time.Hour
	stateLifetime = 10 * time.Minute

	// Session and OAuth state tokens share the signing key but not the
	// audience, so one can never stand in for the other.
	audienceSession = "salespilot"
	audienceState   = "salespilot-oauth"
)

// UserStore is the subset of the store the auth processor needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, hashedPassword string, businessInfo store.JSONB) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
}

type AuthProcessor struct {
	store      UserStore
	authConfig config.AuthConfig
	logger     *observability.Logger
}

func New(store UserStore, authConfig config.AuthConfig, logger *observability.Logger) AuthProcessor {
	return AuthProcessor{store: store, authConfig: authConfig, logger: logger}
}

// AuthenticatedUser is what signup and login hand back to the handler.
type AuthenticatedUser struct {
	User  store.User `json:"user"`
	Token string     `json:"token"`
}

func (p *AuthProcessor) Signup(ctx context.Context, email, password, businessName, industry string) (AuthenticatedUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := p.store.GetUserByEmail(ctx, email); err == nil {
		return AuthenticatedUser{}, ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return AuthenticatedUser{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		p.logger.Error(ctx, "failed to hash password", err)
		return AuthenticatedUser{}, fmt.Errorf("failed to hash password: %w", err)
	}

	businessInfo := store.JSONB{}
	if businessName != "" {
		businessInfo["name"] = businessName
	}
	if industry != "" {
		businessInfo["industry"] = industry
	}

	user, err := p.store.CreateUser(ctx, email, string(hashed), businessInfo)
	if err != nil {
		return AuthenticatedUser{}, err
	}

	token, err := p.generateJWTToken(ctx, user.ID)
	if err != nil {
		return AuthenticatedUser{}, err
	}
	return AuthenticatedUser{User: user, Token: token}, nil
}

func (p *AuthProcessor) Login(ctx context.Context, email, password string) (AuthenticatedUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := p.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthenticatedUser{}, ErrInvalidCredentials
		}
		return AuthenticatedUser{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return AuthenticatedUser{}, ErrInvalidCredentials
	}

	token, err := p.generateJWTToken(ctx, user.ID)
	if err != nil {
		return AuthenticatedUser{}, err
	}
	return AuthenticatedUser{User: user, Token: token}, nil
}

func (p *AuthProcessor) GetUser(ctx context.Context, id uuid.UUID) (store.User, error) {
	return p.store.GetUserByID(ctx, id)
}

func (p *AuthProcessor) generateJWTToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return p.signToken(ctx, userID, audienceSession, tokenLifetime)
}

func (p *AuthProcessor) signToken(ctx context.Context, userID uuid.UUID, audience string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iss": "salespilot",
		"aud": audience,
		"exp": now.Add(lifetime).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(p.authConfig.JWTSecret))
	if err != nil {
		p.logger.Error(ctx, "failed to sign token", err)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWTToken parses and verifies a session token and returns the
// user ID it was issued to.
func (p *AuthProcessor) ValidateJWTToken(ctx context.Context, token string) (uuid.UUID, error) {
	return p.validateToken(ctx, token, audienceSession)
}

func (p *AuthProcessor) validateToken(ctx context.Context, token, audience string) (uuid.UUID, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(p.authConfig.JWTSecret), nil
	}, jwt.WithAudience(audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return uuid.Nil, ErrInvalidJWTToken
		}
		p.logger.Error(ctx, "failed to parse token", err)
		return uuid.Nil, ErrParseJWTToken
	}
	if !t.Valid {
		return uuid.Nil, ErrInvalidJWTToken
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrParseJWTToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidJWTToken
	}
	return userID, nil
}

// GenerateStateToken issues a short-lived token that carries the user ID
// through an OAuth redirect round trip.
func (p *AuthProcessor) GenerateStateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return p.signToken(ctx, userID, audienceState, stateLifetime)
}

// ValidateStateToken checks an OAuth state token and returns the user ID.
// Session tokens are rejected; state and session audiences are disjoint.
func (p *AuthProcessor) ValidateStateToken(ctx context.Context, token string) (uuid.UUID, error) {
	return p.validateToken(ctx, token, audienceState)
}
