package processor

import (
	"context"
	"errors"
	"fmt"

	"salespilot/internal/clients/facebook"
	"salespilot/internal/config"
	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/google/uuid"
)

var (
	ErrNotConnected = errors.New("integration not connected")
	ErrPageRejected = errors.New("platform rejected the page credentials")
	ErrNoPages      = errors.New("no pages available on this account")
)

// Store is the subset of the store the integration processor needs.
type Store interface {
	UpsertIntegration(ctx context.Context, userID uuid.UUID, platform store.Platform, credentials, platformData store.JSONB, webhookVerified bool) (store.Integration, error)
	GetIntegration(ctx context.Context, userID uuid.UUID, platform store.Platform) (store.Integration, error)
	ListIntegrations(ctx context.Context, userID uuid.UUID) ([]store.Integration, error)
	SetIntegrationStatus(ctx context.Context, userID uuid.UUID, platform store.Platform, status store.IntegrationStatus) error
	AppendIntegrationError(ctx context.Context, userID uuid.UUID, platform store.Platform, message string) error
}

// StateTokens signs and validates the OAuth state round trip.
type StateTokens interface {
	GenerateStateToken(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateStateToken(ctx context.Context, token string) (uuid.UUID, error)
}

type IntegrationProcessor struct {
	store    Store
	facebook *facebook.Client
	tokens   StateTokens
	fbConfig config.FacebookConfig
	logger   *observability.Logger
}

func New(store Store, fb *facebook.Client, tokens StateTokens, fbConfig config.FacebookConfig, logger *observability.Logger) IntegrationProcessor {
	return IntegrationProcessor{store: store, facebook: fb, tokens: tokens, fbConfig: fbConfig, logger: logger}
}

func (p *IntegrationProcessor) List(ctx context.Context, userID uuid.UUID) ([]store.Integration, error) {
	return p.store.ListIntegrations(ctx, userID)
}

// ConnectFacebook wires a page by explicit credentials: the page fetch
// proves the token works before anything is stored.
func (p *IntegrationProcessor) ConnectFacebook(ctx context.Context, userID uuid.UUID, pageID, pageAccessToken string) (store.Integration, error) {
	page, err := p.facebook.GetPage(ctx, pageID, pageAccessToken)
	if err != nil {
		p.logger.Error(ctx, "page verification failed", err)
		p.recordError(ctx, userID, store.PlatformFacebook, err)
		return store.Integration{}, fmt.Errorf("%w: %v", ErrPageRejected, err)
	}

	webhookVerified := true
	if err := p.facebook.SubscribePage(ctx, pageID, pageAccessToken); err != nil {
		p.logger.Error(ctx, "page webhook subscription failed", err)
		webhookVerified = false
	}

	credentials := store.JSONB{
		"page_id":           pageID,
		"page_access_token": pageAccessToken,
	}
	platformData := store.JSONB{
		"page_name": page.Name,
		"category":  page.Category,
	}
	return p.store.UpsertIntegration(ctx, userID, store.PlatformFacebook, credentials, platformData, webhookVerified)
}

func (p *IntegrationProcessor) Disconnect(ctx context.Context, userID uuid.UUID, platform store.Platform) error {
	err := p.store.SetIntegrationStatus(ctx, userID, platform, store.IntegrationStatusDisconnected)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotConnected
	}
	return err
}

// AuthURL starts the OAuth page-connect flow. The state token carries
// the user id through the redirect round trip.
func (p *IntegrationProcessor) AuthURL(ctx context.Context, userID uuid.UUID) (string, error) {
	state, err := p.tokens.GenerateStateToken(ctx, userID)
	if err != nil {
		return "", err
	}
	return p.facebook.AuthorizationURL(p.redirectURI(), state), nil
}

// CompleteOAuth finishes the callback: code becomes a user token, the
// first managed page is subscribed and stored.
func (p *IntegrationProcessor) CompleteOAuth(ctx context.Context, state, code string) (uuid.UUID, error) {
	userID, err := p.tokens.ValidateStateToken(ctx, state)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid oauth state: %w", err)
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID.String()})

	userToken, err := p.facebook.ExchangeCode(ctx, code, p.redirectURI())
	if err != nil {
		p.recordError(ctx, userID, store.PlatformFacebook, err)
		return userID, fmt.Errorf("%w: %v", ErrPageRejected, err)
	}

	pages, err := p.facebook.GetPages(ctx, userToken)
	if err != nil {
		p.recordError(ctx, userID, store.PlatformFacebook, err)
		return userID, fmt.Errorf("%w: %v", ErrPageRejected, err)
	}
	if len(pages) == 0 {
		return userID, ErrNoPages
	}
	page := pages[0]

	webhookVerified := true
	if err := p.facebook.SubscribePage(ctx, page.ID, page.AccessToken); err != nil {
		p.logger.Error(ctx, "page webhook subscription failed", err)
		webhookVerified = false
	}

	credentials := store.JSONB{
		"page_id":           page.ID,
		"page_access_token": page.AccessToken,
	}
	platformData := store.JSONB{
		"page_name": page.Name,
		"category":  page.Category,
	}
	if _, err := p.store.UpsertIntegration(ctx, userID, store.PlatformFacebook, credentials, platformData, webhookVerified); err != nil {
		return userID, err
	}
	return userID, nil
}

// Status reports the connection state of one platform. A missing row is
// a disconnected status, not an error.
func (p *IntegrationProcessor) Status(ctx context.Context, userID uuid.UUID, platform store.Platform) (store.Integration, bool, error) {
	integration, err := p.store.GetIntegration(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Integration{}, false, nil
		}
		return store.Integration{}, false, err
	}
	return integration, integration.Status == store.IntegrationStatusConnected, nil
}

func (p *IntegrationProcessor) redirectURI() string {
	return p.fbConfig.BackendURL + "/api/integrations/facebook/callback"
}

func (p *IntegrationProcessor) recordError(ctx context.Context, userID uuid.UUID, platform store.Platform, cause error) {
	if err := p.store.AppendIntegrationError(ctx, userID, platform, cause.Error()); err != nil {
		p.logger.Error(ctx, "failed to record integration error", err)
	}
}
