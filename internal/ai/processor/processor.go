package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"salespilot/internal/clients/groq"
	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/google/uuid"
)

const historyWindow = 10

// Completer produces a model reply for a sequence of turns. The Groq
// client satisfies this; a nil Completer selects the canned fallbacks.
type Completer interface {
	Complete(ctx context.Context, messages []groq.Message) (string, error)
}

// Store is the subset of the store the AI processor needs.
type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	ListCampaigns(ctx context.Context, userID uuid.UUID) ([]store.Campaign, error)
	UpdateKnowledgeBase(ctx context.Context, id uuid.UUID, knowledgeBase string) error
}

type AIProcessor struct {
	store     Store
	completer Completer
	logger    *observability.Logger
}

// New builds the processor. completer may be nil when no model API key is
// configured; every reply then comes from the fallback tables.
func New(store Store, completer Completer, logger *observability.Logger) AIProcessor {
	return AIProcessor{store: store, completer: completer, logger: logger}
}

// GenerateSalesReply produces the next AI turn in a customer conversation.
// It never fails: model errors degrade to a canned product response so the
// customer always hears back.
func (p *AIProcessor) GenerateSalesReply(ctx context.Context, user store.User, campaign store.Campaign, history []store.ChatMessage, customerMessage string) string {
	if p.completer == nil {
		return fallbackSalesReply(customerMessage, campaign)
	}

	messages := []groq.Message{{Role: groq.RoleSystem, Content: buildSalesPrompt(user, campaign)}}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, m := range history {
		role := groq.RoleAssistant
		if m.Sender == store.MessageSenderCustomer {
			role = groq.RoleUser
		}
		messages = append(messages, groq.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, groq.Message{Role: groq.RoleUser, Content: customerMessage})

	reply, err := p.completer.Complete(ctx, messages)
	if err != nil {
		p.logger.Error(ctx, "model reply failed, using fallback", err)
		return fallbackSalesReply(customerMessage, campaign)
	}
	return reply
}

func buildSalesPrompt(user store.User, campaign store.Campaign) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI sales assistant for %s.\n\n", campaign.Product.Name)
	b.WriteString("Your mission is to help customers make informed purchase decisions with accurate, helpful, and persuasive information.\n\n")

	b.WriteString("Product information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", campaign.Product.Name)
	fmt.Fprintf(&b, "- Description: %s\n", campaign.Product.Description)
	fmt.Fprintf(&b, "- Price: $%.2f\n", campaign.Product.Price)
	if len(campaign.Product.Features) > 0 {
		fmt.Fprintf(&b, "- Features: %s\n", strings.Join(campaign.Product.Features, ", "))
	}

	if user.KnowledgeBase.Valid {
		var kb knowledgeBase
		if err := json.Unmarshal([]byte(user.KnowledgeBase.String), &kb); err == nil && kb.Business.Name != "" {
			b.WriteString("\nBusiness context:\n")
			fmt.Fprintf(&b, "- Company: %s\n", kb.Business.Name)
			fmt.Fprintf(&b, "- Industry: %s\n", kb.Business.Industry)
			fmt.Fprintf(&b, "- Description: %s\n", kb.Business.Description)
		}
	}

	greeting := campaign.ChatFlow.Greeting
	if greeting == "" {
		greeting = "Hello! How can I help you today?"
	}
	closing := campaign.ChatFlow.ClosingMessage
	if closing == "" {
		closing = "Thank you for your interest!"
	}
	b.WriteString("\nChat flow guidelines:\n")
	fmt.Fprintf(&b, "- Greeting: %s\n", greeting)
	fmt.Fprintf(&b, "- Closing: %s\n", closing)
	for _, o := range campaign.ChatFlow.ObjectionHandling {
		fmt.Fprintf(&b, "- If the customer says %q, respond along the lines of: %s\n", o.Objection, o.Response)
	}

	b.WriteString("\nResponse strategy: understand the customer's intent, answer specifically, guide towards purchase naturally, handle objections professionally, and ask qualifying questions about budget, timeline, and needs. Stay friendly and concise.")
	return b.String()
}

func fallbackSalesReply(customerMessage string, campaign store.Campaign) string {
	lower := strings.ToLower(customerMessage)
	product := campaign.Product

	switch {
	case containsAny(lower, "price", "cost", "how much"):
		return fmt.Sprintf("Great question! %s is priced at $%.2f. It's a great value for all the features you get. Would you like to know more about what's included?", product.Name, product.Price)
	case containsAny(lower, "feature", "what does it do"):
		features := "premium quality"
		if len(product.Features) > 0 {
			n := len(product.Features)
			if n > 3 {
				n = 3
			}
			features = strings.Join(product.Features[:n], ", ")
		}
		return fmt.Sprintf("%s comes with amazing features including %s. Would you like me to explain any of these in detail?", product.Name, features)
	case containsAny(lower, "buy", "purchase", "order"):
		return fmt.Sprintf("Excellent! I'd be happy to help you purchase %s. To complete your order, I'll need a few details. What's the best email address to send your order confirmation to?", product.Name)
	case containsAny(lower, "hello", "hi", "hey"):
		if campaign.ChatFlow.Greeting != "" {
			return campaign.ChatFlow.Greeting
		}
		return fmt.Sprintf("Hello! Thanks for your interest in %s. How can I help you today?", product.Name)
	default:
		return fmt.Sprintf("Thank you for your message! I'd be happy to help you learn more about %s. %s Is there anything specific you'd like to know?", product.Name, product.Description)
	}
}

// LeoTurn is one prior turn of an assistant conversation, supplied by the
// frontend since assistant chats are not persisted.
type LeoTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LeoReply answers a business-assistant question grounded in the user's
// campaigns and stats.
func (p *AIProcessor) LeoReply(ctx context.Context, userID uuid.UUID, message string, history []LeoTurn) (string, error) {
	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	campaigns, err := p.store.ListCampaigns(ctx, userID)
	if err != nil {
		return "", err
	}

	if p.completer == nil {
		return fallbackLeoReply(message, user, campaigns), nil
	}

	messages := []groq.Message{{Role: groq.RoleSystem, Content: buildLeoPrompt(user, campaigns)}}
	if len(history) > 15 {
		history = history[len(history)-15:]
	}
	for _, turn := range history {
		role := groq.RoleUser
		if turn.Role == groq.RoleAssistant {
			role = groq.RoleAssistant
		}
		messages = append(messages, groq.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, groq.Message{Role: groq.RoleUser, Content: message})

	reply, err := p.completer.Complete(ctx, messages)
	if err != nil {
		p.logger.Error(ctx, "assistant reply failed, using fallback", err)
		return fallbackLeoReply(message, user, campaigns), nil
	}
	return reply, nil
}

func buildLeoPrompt(user store.User, campaigns []store.Campaign) string {
	businessName, _ := user.BusinessInfo["name"].(string)
	if businessName == "" {
		businessName = "the business"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are Leo, an AI business assistant for %s.\n\n", businessName)
	b.WriteString("Business profile:\n")
	for _, key := range []string{"name", "owner", "industry", "description", "website", "phone"} {
		value, _ := user.BusinessInfo[key].(string)
		if value == "" {
			value = "Not set"
		}
		fmt.Fprintf(&b, "- %s: %s\n", key, value)
	}

	fmt.Fprintf(&b, "\nCurrent campaigns (%d total):\n", len(campaigns))
	for _, c := range campaigns {
		fmt.Fprintf(&b, "- %s (%s): product %s at $%.2f on %s; %d messages, %d conversions, $%.2f revenue\n",
			c.Name, c.Status, c.Product.Name, c.Product.Price, c.TargetPlatform,
			c.MessagesStarted, c.Conversions, c.Revenue)
	}

	b.WriteString("\nYou are a strategic business advisor. Help with analytics and performance, campaign strategy, sales optimization, and platform guidance. Reference actual campaign stats, give actionable advice with clear next steps, and keep responses concise.")
	return b.String()
}

func fallbackLeoReply(message string, user store.User, campaigns []store.Campaign) string {
	lower := strings.ToLower(message)
	businessName, _ := user.BusinessInfo["name"].(string)
	if businessName == "" {
		businessName = "your business"
	}

	switch {
	case containsAny(lower, "campaign", "product"):
		if len(campaigns) == 0 {
			return "You currently have 0 campaigns set up. You can create a new campaign to start selling your products! Would you like help creating one?"
		}
		names := make([]string, len(campaigns))
		for i, c := range campaigns {
			names[i] = c.Name
		}
		return fmt.Sprintf("You currently have %d campaign(s) set up: %s. Would you like help creating or managing a campaign?", len(campaigns), strings.Join(names, ", "))
	case containsAny(lower, "analytics", "performance", "stats"):
		return "I can help you understand your analytics! Check your dashboard for detailed metrics on messages, conversions, and revenue. Is there a specific metric you'd like to improve?"
	case containsAny(lower, "integration", "facebook", "messenger"):
		return "To automate your sales on Facebook Messenger, connect your Facebook page in the Integrations section. Once connected, your AI will handle all customer conversations automatically!"
	case containsAny(lower, "help", "how"):
		return "I'm here to help! I can assist you with creating and managing campaigns, understanding your analytics, setting up integrations, and optimizing your sales automation. What would you like to know more about?"
	default:
		return fmt.Sprintf("Thanks for reaching out! I'm Leo, your AI assistant for %s. I can help you with campaigns, analytics, integrations, and more. What would you like to know?", businessName)
	}
}

type knowledgeBase struct {
	TrainedAt time.Time `json:"trained_at"`
	Business  struct {
		Name        string `json:"name"`
		Owner       string `json:"owner"`
		Industry    string `json:"industry"`
		Description string `json:"description"`
		Website     string `json:"website"`
		Phone       string `json:"phone"`
	} `json:"business"`
	Campaigns []knowledgeBaseCampaign `json:"campaigns"`
}

type knowledgeBaseCampaign struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Product        store.Product  `json:"product"`
	TargetPlatform store.Platform `json:"target_platform"`
	ChatFlow       store.ChatFlow `json:"chat_flow"`
}

// Train rebuilds the user's knowledge base from their business profile and
// campaigns, and marks the global AI trained.
func (p *AIProcessor) Train(ctx context.Context, userID uuid.UUID) error {
	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	campaigns, err := p.store.ListCampaigns(ctx, userID)
	if err != nil {
		return err
	}

	var kb knowledgeBase
	kb.TrainedAt = time.Now().UTC()
	kb.Business.Name, _ = user.BusinessInfo["name"].(string)
	kb.Business.Owner, _ = user.BusinessInfo["owner"].(string)
	kb.Business.Industry, _ = user.BusinessInfo["industry"].(string)
	kb.Business.Description, _ = user.BusinessInfo["description"].(string)
	kb.Business.Website, _ = user.BusinessInfo["website"].(string)
	kb.Business.Phone, _ = user.BusinessInfo["phone"].(string)
	for _, c := range campaigns {
		kb.Campaigns = append(kb.Campaigns, knowledgeBaseCampaign{
			ID:             c.ID,
			Name:           c.Name,
			Product:        c.Product,
			TargetPlatform: c.TargetPlatform,
			ChatFlow:       c.ChatFlow,
		})
	}

	encoded, err := json.Marshal(kb)
	if err != nil {
		return fmt.Errorf("failed to encode knowledge base: %w", err)
	}
	return p.store.UpdateKnowledgeBase(ctx, userID, string(encoded))
}

// Status reports whether the global AI has been trained and when.
type Status struct {
	Trained       bool       `json:"trained"`
	LastTrainedAt *time.Time `json:"last_trained_at,omitempty"`
	Model         string     `json:"model"`
	Live          bool       `json:"live"`
}

func (p *AIProcessor) GetStatus(ctx context.Context, userID uuid.UUID, model string) (Status, error) {
	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Trained:       user.AITrained,
		LastTrainedAt: user.AILastTrainedAt,
		Model:         model,
		Live:          p.completer != nil,
	}, nil
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
