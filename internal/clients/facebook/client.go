package facebook

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"salespilot/internal/observability"

	"github.com/go-resty/resty/v2"
)

const graphVersion = "v18.0"

// Client wraps the Meta Graph API calls the app needs: page messaging,
// profile lookup, and the OAuth code exchange.
type Client struct {
	httpClient *resty.Client
	appID      string
	appSecret  string
	logger     *observability.Logger
}

func New(appID, appSecret string, logger *observability.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL("https://graph.facebook.com/" + graphVersion).
		SetTimeout(15 * time.Second)

	return &Client{
		httpClient: httpClient,
		appID:      appID,
		appSecret:  appSecret,
		logger:     logger,
	}
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Profile is the public profile the Graph API exposes for a PSID.
type Profile struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ProfilePic string `json:"profile_pic"`
}

// GetCustomerProfile fetches the display name and picture for a page-scoped
// user ID. Failures are non-fatal for callers; they fall back to a generic
// customer name.
func (c *Client) GetCustomerProfile(ctx context.Context, psid, pageAccessToken string) (Profile, error) {
	var profile Profile
	var apiErr graphError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("fields", "first_name,last_name,profile_pic").
		SetQueryParam("access_token", pageAccessToken).
		SetResult(&profile).
		SetError(&apiErr).
		Get("/" + psid)
	if err != nil {
		return Profile{}, fmt.Errorf("graph profile request failed: %w", err)
	}
	if resp.IsError() {
		return Profile{}, fmt.Errorf("graph profile error: %s", apiErr.Error.Message)
	}
	return profile, nil
}

type sendMessageRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	MessagingType string `json:"messaging_type"`
}

type sendMessageResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// SendMessage delivers a text message to a PSID through the page inbox and
// returns the platform message ID.
func (c *Client) SendMessage(ctx context.Context, psid, text, pageAccessToken string) (string, error) {
	var body sendMessageRequest
	body.Recipient.ID = psid
	body.Message.Text = text
	body.MessagingType = "RESPONSE"

	var result sendMessageResponse
	var apiErr graphError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("access_token", pageAccessToken).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/me/messages")
	if err != nil {
		c.logger.Error(ctx, "graph send request failed", err)
		return "", fmt.Errorf("graph send request failed: %w", err)
	}
	if resp.IsError() {
		err := fmt.Errorf("graph send error: %s (code %d)", apiErr.Error.Message, apiErr.Error.Code)
		c.logger.Error(ctx, "graph send rejected", err)
		return "", err
	}
	return result.MessageID, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode trades an OAuth authorization code for a user access token.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	var result tokenResponse
	var apiErr graphError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client_id":     c.appID,
			"client_secret": c.appSecret,
			"redirect_uri":  redirectURI,
			"code":          code,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Get("/oauth/access_token")
	if err != nil {
		return "", fmt.Errorf("oauth code exchange failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("oauth code exchange error: %s", apiErr.Error.Message)
	}
	return result.AccessToken, nil
}

// Page is one page the user administers.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	Category    string `json:"category"`
}

type pagesResponse struct {
	Data []Page `json:"data"`
}

// GetPages lists the pages the user token can manage, with page tokens.
func (c *Client) GetPages(ctx context.Context, userAccessToken string) ([]Page, error) {
	var result pagesResponse
	var apiErr graphError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("access_token", userAccessToken).
		SetResult(&result).
		SetError(&apiErr).
		Get("/me/accounts")
	if err != nil {
		return nil, fmt.Errorf("graph pages request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("graph pages error: %s", apiErr.Error.Message)
	}
	return result.Data, nil
}

// GetPage fetches a page's public fields, proving the token grants
// access to it.
func (c *Client) GetPage(ctx context.Context, pageID, pageAccessToken string) (Page, error) {
	var page Page
	var apiErr graphError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("fields", "id,name,category").
		SetQueryParam("access_token", pageAccessToken).
		SetResult(&page).
		SetError(&apiErr).
		Get("/" + pageID)
	if err != nil {
		return Page{}, fmt.Errorf("graph page request failed: %w", err)
	}
	if resp.IsError() {
		return Page{}, fmt.Errorf("graph page error: %s", apiErr.Error.Message)
	}
	return page, nil
}

// SubscribePage subscribes the app to the page's messaging webhooks.
func (c *Client) SubscribePage(ctx context.Context, pageID, pageAccessToken string) error {
	var apiErr graphError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("access_token", pageAccessToken).
		SetQueryParam("subscribed_fields", "messages,messaging_postbacks").
		SetError(&apiErr).
		Post("/" + pageID + "/subscribed_apps")
	if err != nil {
		return fmt.Errorf("graph subscribe request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("graph subscribe error: %s", apiErr.Error.Message)
	}
	return nil
}

// AuthorizationURL builds the dialog URL that starts the page-connect
// OAuth flow.
func (c *Client) AuthorizationURL(redirectURI, state string) string {
	query := url.Values{}
	query.Set("client_id", c.appID)
	query.Set("redirect_uri", redirectURI)
	query.Set("state", state)
	query.Set("scope", "pages_show_list,pages_messaging,pages_manage_metadata")
	query.Set("response_type", "code")
	return "https://www.facebook.com/" + graphVersion + "/dialog/oauth?" + query.Encode()
}
