package messaging

import (
	"context"
	"errors"
	"fmt"

	"salespilot/internal/clients/facebook"
	"salespilot/internal/config"
	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var (
	ErrNotConnected        = errors.New("platform integration not connected")
	ErrUnsupportedPlatform = errors.New("platform does not support outbound messages")
)

// IntegrationStore resolves platform credentials for a user.
type IntegrationStore interface {
	GetIntegration(ctx context.Context, userID uuid.UUID, platform store.Platform) (store.Integration, error)
}

// Sender delivers outbound messages across platforms behind one call. The
// platform message ID it returns becomes the stored idempotency key.
type Sender struct {
	store        IntegrationStore
	facebook     *facebook.Client
	twilioClient *twilio.RestClient
	whatsAppFrom string
	logger       *observability.Logger
}

func NewSender(store IntegrationStore, fb *facebook.Client, twilioCfg config.TwilioConfig, logger *observability.Logger) *Sender {
	sender := &Sender{
		store:    store,
		facebook: fb,
		logger:   logger,
	}
	if twilioCfg.AccountSID != "" && twilioCfg.AuthToken != "" {
		sender.twilioClient = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: twilioCfg.AccountSID,
			Password: twilioCfg.AuthToken,
		})
		sender.whatsAppFrom = twilioCfg.WhatsAppFrom
	}
	return sender
}

// Send delivers text to a customer on the chat's platform and returns the
// platform message ID.
func (s *Sender) Send(ctx context.Context, userID uuid.UUID, platform store.Platform, customerID, text string) (string, error) {
	switch platform {
	case store.PlatformFacebook, store.PlatformInstagram:
		return s.sendGraph(ctx, userID, platform, customerID, text)
	case store.PlatformWhatsApp:
		return s.sendWhatsApp(ctx, customerID, text)
	default:
		return "", ErrUnsupportedPlatform
	}
}

// Instagram DMs go through the same page inbox as Messenger, so both
// platforms resolve to the page access token.
func (s *Sender) sendGraph(ctx context.Context, userID uuid.UUID, platform store.Platform, customerID, text string) (string, error) {
	integration, err := s.store.GetIntegration(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotConnected
		}
		return "", err
	}
	if integration.Status != store.IntegrationStatusConnected {
		return "", ErrNotConnected
	}
	pageToken, _ := integration.Credentials["page_access_token"].(string)
	if pageToken == "" {
		return "", ErrNotConnected
	}

	messageID, err := s.facebook.SendMessage(ctx, customerID, text, pageToken)
	if err != nil {
		return "", fmt.Errorf("failed to send page message: %w", err)
	}
	return messageID, nil
}

func (s *Sender) sendWhatsApp(ctx context.Context, customerID, text string) (string, error) {
	if s.twilioClient == nil {
		return "", ErrNotConnected
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom("whatsapp:" + s.whatsAppFrom)
	params.SetTo("whatsapp:" + customerID)
	params.SetBody(text)

	resp, err := s.twilioClient.Api.CreateMessage(params)
	if err != nil {
		s.logger.Error(ctx, "failed to send WhatsApp message", err)
		return "", fmt.Errorf("failed to send WhatsApp message: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("WhatsApp send returned no message SID")
	}
	return *resp.Sid, nil
}
