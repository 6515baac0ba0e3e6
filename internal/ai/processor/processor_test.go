package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"salespilot/internal/clients/groq"
	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/google/uuid"
)

type fakeAIStore struct {
	user      store.User
	campaigns []store.Campaign

	savedKnowledgeBase string
}

func (f *fakeAIStore) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	return f.user, nil
}

func (f *fakeAIStore) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]store.Campaign, error) {
	return f.campaigns, nil
}

func (f *fakeAIStore) UpdateKnowledgeBase(ctx context.Context, id uuid.UUID, knowledgeBase string) error {
	f.savedKnowledgeBase = knowledgeBase
	return nil
}

type fakeCompleter struct {
	reply    string
	err      error
	messages []groq.Message
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []groq.Message) (string, error) {
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func testCampaign() store.Campaign {
	return store.Campaign{
		ID:   uuid.New(),
		Name: "Spring Launch",
		Product: store.Product{
			Name:        "Protein Bars",
			Description: "A tasty high-protein snack.",
			Price:       29.99,
			Features:    []string{"20g protein", "vegan", "gluten free", "low sugar"},
		},
		ChatFlow: store.ChatFlow{Greeting: "Hey! Ready to fuel up?"},
	}
}

func TestGenerateSalesReply(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()

	t.Run("uses the model when available", func(t *testing.T) {
		completer := &fakeCompleter{reply: "Sure, here's the rundown."}
		processor := New(&fakeAIStore{}, completer, logger)

		reply := processor.GenerateSalesReply(ctx, store.User{}, testCampaign(), nil, "tell me more")
		if reply != "Sure, here's the rundown." {
			t.Errorf("unexpected reply: %q", reply)
		}
		if len(completer.messages) != 2 {
			t.Fatalf("expected system + user message, got %d", len(completer.messages))
		}
		if completer.messages[0].Role != groq.RoleSystem {
			t.Errorf("expected system prompt first, got %s", completer.messages[0].Role)
		}
		if !strings.Contains(completer.messages[0].Content, "Protein Bars") {
			t.Error("system prompt should mention the product")
		}
	})

	t.Run("maps history senders to roles", func(t *testing.T) {
		completer := &fakeCompleter{reply: "ok"}
		processor := New(&fakeAIStore{}, completer, logger)

		history := []store.ChatMessage{
			{Sender: store.MessageSenderCustomer, Content: "hi"},
			{Sender: store.MessageSenderAI, Content: "hello!"},
		}
		processor.GenerateSalesReply(ctx, store.User{}, testCampaign(), history, "price?")

		if completer.messages[1].Role != groq.RoleUser || completer.messages[2].Role != groq.RoleAssistant {
			t.Errorf("unexpected roles: %s, %s", completer.messages[1].Role, completer.messages[2].Role)
		}
	})

	t.Run("model failure degrades to fallback", func(t *testing.T) {
		completer := &fakeCompleter{err: errors.New("rate limited")}
		processor := New(&fakeAIStore{}, completer, logger)

		reply := processor.GenerateSalesReply(ctx, store.User{}, testCampaign(), nil, "what's the price?")
		if !strings.Contains(reply, "$29.99") {
			t.Errorf("expected price fallback, got %q", reply)
		}
	})

	t.Run("nil completer answers from the fallback table", func(t *testing.T) {
		processor := New(&fakeAIStore{}, nil, logger)
		campaign := testCampaign()

		tests := []struct {
			message string
			want    string
		}{
			{"how much does it cost?", "$29.99"},
			{"what features does it have", "20g protein"},
			{"I want to buy one", "email address"},
			{"hello there", "Hey! Ready to fuel up?"},
			{"can you repeat that", "Protein Bars"},
		}
		for _, tt := range tests {
			reply := processor.GenerateSalesReply(ctx, store.User{}, campaign, nil, tt.message)
			if !strings.Contains(reply, tt.want) {
				t.Errorf("message %q: expected reply containing %q, got %q", tt.message, tt.want, reply)
			}
		}
	})

	t.Run("feature fallback lists at most three features", func(t *testing.T) {
		processor := New(&fakeAIStore{}, nil, logger)

		reply := processor.GenerateSalesReply(ctx, store.User{}, testCampaign(), nil, "what feature list do you have")
		if strings.Contains(reply, "low sugar") {
			t.Errorf("expected only the first three features, got %q", reply)
		}
	})
}

func TestLeoReply(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()

	user := store.User{
		ID:           uuid.New(),
		BusinessInfo: store.JSONB{"name": "Acme Fitness"},
	}

	t.Run("fallback lists campaigns", func(t *testing.T) {
		fakeStore := &fakeAIStore{
			user:      user,
			campaigns: []store.Campaign{testCampaign()},
		}
		processor := New(fakeStore, nil, logger)

		reply, err := processor.LeoReply(ctx, user.ID, "how are my campaigns doing?", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(reply, "Spring Launch") {
			t.Errorf("expected campaign name in reply, got %q", reply)
		}
	})

	t.Run("fallback without campaigns suggests creating one", func(t *testing.T) {
		processor := New(&fakeAIStore{user: user}, nil, logger)

		reply, err := processor.LeoReply(ctx, user.ID, "show me my campaigns", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(reply, "0 campaigns") {
			t.Errorf("expected empty-state reply, got %q", reply)
		}
	})

	t.Run("model prompt carries business profile and stats", func(t *testing.T) {
		completer := &fakeCompleter{reply: "Here's my advice."}
		campaign := testCampaign()
		campaign.MessagesStarted = 12
		fakeStore := &fakeAIStore{user: user, campaigns: []store.Campaign{campaign}}
		processor := New(fakeStore, completer, logger)

		reply, err := processor.LeoReply(ctx, user.ID, "any advice?", []LeoTurn{
			{Role: "user", Content: "hi Leo"},
			{Role: "assistant", Content: "hi!"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply != "Here's my advice." {
			t.Errorf("unexpected reply: %q", reply)
		}
		prompt := completer.messages[0].Content
		if !strings.Contains(prompt, "Acme Fitness") || !strings.Contains(prompt, "Spring Launch") {
			t.Errorf("prompt missing context: %q", prompt)
		}
		if len(completer.messages) != 4 {
			t.Errorf("expected system + 2 history + user, got %d", len(completer.messages))
		}
	})
}

func TestTrain(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()

	campaign := testCampaign()
	fakeStore := &fakeAIStore{
		user: store.User{
			ID: uuid.New(),
			BusinessInfo: store.JSONB{
				"name":     "Acme Fitness",
				"industry": "fitness",
			},
		},
		campaigns: []store.Campaign{campaign},
	}
	processor := New(fakeStore, nil, logger)

	if err := processor.Train(ctx, fakeStore.user.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fakeStore.savedKnowledgeBase == "" {
		t.Fatal("expected knowledge base to be saved")
	}

	var kb knowledgeBase
	if err := json.Unmarshal([]byte(fakeStore.savedKnowledgeBase), &kb); err != nil {
		t.Fatalf("saved knowledge base is not valid JSON: %v", err)
	}
	if kb.Business.Name != "Acme Fitness" {
		t.Errorf("expected business name in knowledge base, got %q", kb.Business.Name)
	}
	if len(kb.Campaigns) != 1 || kb.Campaigns[0].Name != campaign.Name {
		t.Errorf("expected campaign in knowledge base, got %+v", kb.Campaigns)
	}
	if kb.TrainedAt.IsZero() {
		t.Error("expected trained_at timestamp")
	}
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()

	fakeStore := &fakeAIStore{user: store.User{ID: uuid.New(), AITrained: true}}

	t.Run("live with a completer", func(t *testing.T) {
		processor := New(fakeStore, &fakeCompleter{}, logger)
		status, err := processor.GetStatus(ctx, fakeStore.user.ID, "llama-3.3-70b-versatile")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !status.Trained || !status.Live {
			t.Errorf("unexpected status: %+v", status)
		}
		if status.Model != "llama-3.3-70b-versatile" {
			t.Errorf("unexpected model: %q", status.Model)
		}
	})

	t.Run("not live without a completer", func(t *testing.T) {
		processor := New(fakeStore, nil, logger)
		status, err := processor.GetStatus(ctx, fakeStore.user.ID, "llama-3.3-70b-versatile")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Live {
			t.Error("expected live=false")
		}
	})
}
