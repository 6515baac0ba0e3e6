package bootstrap

import (
	"context"
	"fmt"

	"salespilot/internal/config"
	"salespilot/internal/observability"
	"salespilot/internal/realtime"
	"salespilot/internal/store"
	"salespilot/internal/workers"

	adminHandler "salespilot/internal/admin/handler"
	adminProcessor "salespilot/internal/admin/processor"
	aiHandler "salespilot/internal/ai/handler"
	aiProcessor "salespilot/internal/ai/processor"
	analyticsHandler "salespilot/internal/analytics/handler"
	analyticsProcessor "salespilot/internal/analytics/processor"
	"salespilot/internal/auth/handler"
	"salespilot/internal/auth/processor"
	campaignHandler "salespilot/internal/campaign/handler"
	campaignProcessor "salespilot/internal/campaign/processor"
	chatHandler "salespilot/internal/chat/handler"
	chatProcessor "salespilot/internal/chat/processor"
	"salespilot/internal/clients/facebook"
	"salespilot/internal/clients/groq"
	"salespilot/internal/clients/mail"
	integrationHandler "salespilot/internal/integration/handler"
	integrationProcessor "salespilot/internal/integration/processor"
	"salespilot/internal/messaging"
	onboardingHandler "salespilot/internal/onboarding/handler"
	webhookHandler "salespilot/internal/webhook/handler"
	webhookProcessor "salespilot/internal/webhook/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  store.Store
	Logger *observability.Logger

	// Handlers
	AuthHandler        handler.Handler
	CampaignHandler    campaignHandler.Handler
	ChatHandler        chatHandler.Handler
	IntegrationHandler integrationHandler.Handler
	WebhookHandler     webhookHandler.Handler
	AIHandler          aiHandler.Handler
	AnalyticsHandler   analyticsHandler.Handler
	OnboardingHandler  onboardingHandler.Handler
	AdminHandler       adminHandler.Handler
	RealtimeHandler    realtime.Handler

	// Background workers
	Dispatcher *workers.Dispatcher
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize database store
	connectionString := cfg.Database.ConnectionString()
	var err error
	deps.Store, err = store.New(connectionString, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	st := &deps.Store

	// Initialize clients
	facebookClient := facebook.New(cfg.Facebook.AppID, cfg.Facebook.AppSecret, logger)

	// Without a model key the AI processor falls back to canned replies.
	var completer aiProcessor.Completer
	if cfg.AI.APIKey != "" {
		groqClient, err := groq.New(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create groq client: %w", err)
		}
		completer = groqClient
	}

	// Without a resend key lead-qualified notifications are skipped.
	var mailer webhookProcessor.Mailer
	if cfg.Mail.ResendAPIKey != "" {
		mailClient, err := mail.NewResendClient(cfg.Mail.ResendAPIKey, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create resend client: %w", err)
		}
		mailer = mailClient
	}

	sender := messaging.NewSender(st, facebookClient, cfg.Twilio, logger)
	hub := realtime.NewHub(logger)

	// Initialize auth processor and handler
	authProc := processor.New(st, cfg.Auth, logger)
	deps.AuthHandler = handler.New(authProc, logger)

	// Initialize AI processor and handler
	aiProc := aiProcessor.New(st, completer, logger)
	deps.AIHandler = aiHandler.New(aiProc, cfg.AI.Model, logger)

	// Initialize analytics processor and handler
	analyticsProc := analyticsProcessor.New(st, logger)
	deps.AnalyticsHandler = analyticsHandler.New(analyticsProc, logger)

	// Initialize campaign processor and handler
	campaignProc := campaignProcessor.New(st, &aiProc, logger)
	deps.CampaignHandler = campaignHandler.New(campaignProc, logger)

	// Initialize chat processor and handler
	chatProc := chatProcessor.New(st, &analyticsProc, sender, hub, logger)
	deps.ChatHandler = chatHandler.New(chatProc, logger)

	// Initialize integration processor and handler
	integrationProc := integrationProcessor.New(st, facebookClient, &authProc, cfg.Facebook, logger)
	deps.IntegrationHandler = integrationHandler.New(integrationProc, cfg.Facebook.FrontendURL, logger)

	// Initialize webhook processor, dispatcher and handler
	webhookProc := webhookProcessor.New(st, &aiProc, sender, &analyticsProc, hub, facebookClient, mailer, cfg.Mail.Sender, logger)
	dispatcherConfig := workers.DefaultDispatcherConfig()
	dispatcherConfig.NumWorkers = cfg.WorkerPool.WebhookWorkers
	deps.Dispatcher = workers.NewDispatcher(dispatcherConfig, logger)
	deps.WebhookHandler = webhookHandler.New(webhookProc, deps.Dispatcher, cfg.Facebook.WebhookVerifyToken, logger)

	// Initialize onboarding handler
	deps.OnboardingHandler = onboardingHandler.New(st, &aiProc, logger)

	// Initialize admin processor and handler
	adminProc := adminProcessor.New(st, logger)
	deps.AdminHandler = adminHandler.New(adminProc, logger)

	// Initialize realtime handler
	deps.RealtimeHandler = realtime.NewHandler(hub, &authProc, logger)

	return deps, nil
}
