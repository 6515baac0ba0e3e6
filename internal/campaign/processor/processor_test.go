package processor

import (
	"context"
	"errors"
	"testing"

	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/google/uuid"
)

type fakeCampaignStore struct {
	campaigns map[uuid.UUID]store.Campaign
	statusErr error
}

func newFakeCampaignStore() *fakeCampaignStore {
	return &fakeCampaignStore{campaigns: map[uuid.UUID]store.Campaign{}}
}

func (f *fakeCampaignStore) CreateCampaign(ctx context.Context, userID uuid.UUID, name string, product store.Product, targetPlatform store.Platform, chatFlow store.ChatFlow, targetAudience store.TargetAudience, outreachMessage string) (store.Campaign, error) {
	campaign := store.Campaign{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           name,
		Product:        product,
		TargetPlatform: targetPlatform,
		Status:         store.CampaignStatusDraft,
		ChatFlow:       chatFlow,
	}
	f.campaigns[campaign.ID] = campaign
	return campaign, nil
}

func (f *fakeCampaignStore) GetCampaign(ctx context.Context, id, userID uuid.UUID) (store.Campaign, error) {
	campaign, ok := f.campaigns[id]
	if !ok || campaign.UserID != userID {
		return store.Campaign{}, store.ErrNotFound
	}
	return campaign, nil
}

func (f *fakeCampaignStore) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]store.Campaign, error) {
	var campaigns []store.Campaign
	for _, campaign := range f.campaigns {
		if campaign.UserID == userID {
			campaigns = append(campaigns, campaign)
		}
	}
	return campaigns, nil
}

func (f *fakeCampaignStore) UpdateCampaign(ctx context.Context, id, userID uuid.UUID, name string, product store.Product, targetPlatform store.Platform, chatFlow store.ChatFlow, targetAudience store.TargetAudience, outreachMessage string) (store.Campaign, error) {
	campaign, ok := f.campaigns[id]
	if !ok || campaign.UserID != userID {
		return store.Campaign{}, store.ErrNotFound
	}
	campaign.Name = name
	campaign.Product = product
	campaign.TargetPlatform = targetPlatform
	f.campaigns[id] = campaign
	return campaign, nil
}

func (f *fakeCampaignStore) DeleteCampaign(ctx context.Context, id, userID uuid.UUID) error {
	campaign, ok := f.campaigns[id]
	if !ok || campaign.UserID != userID {
		return store.ErrNotFound
	}
	delete(f.campaigns, id)
	return nil
}

func (f *fakeCampaignStore) SetCampaignStatus(ctx context.Context, id, userID uuid.UUID, to, from store.CampaignStatus) (store.Campaign, error) {
	if f.statusErr != nil {
		return store.Campaign{}, f.statusErr
	}
	campaign := f.campaigns[id]
	if campaign.Status != from {
		return store.Campaign{}, store.ErrStatusConflict
	}
	campaign.Status = to
	f.campaigns[id] = campaign
	return campaign, nil
}

type fakeTrainer struct {
	trained int
	err     error
}

func (f *fakeTrainer) Train(ctx context.Context, userID uuid.UUID) error {
	f.trained++
	return f.err
}

func validInput() CampaignInput {
	return CampaignInput{
		Name:           "Spring Launch",
		Product:        store.Product{Name: "Protein Bars", Price: 29.99},
		TargetPlatform: store.PlatformFacebook,
		ChatFlow:       store.ChatFlow{Greeting: "Hey!"},
	}
}

func TestCreateCampaign(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()
	userID := uuid.New()

	t.Run("creates draft and retrains", func(t *testing.T) {
		fakeStore := newFakeCampaignStore()
		trainer := &fakeTrainer{}
		processor := New(fakeStore, trainer, logger)

		campaign, err := processor.Create(ctx, userID, validInput())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if campaign.Status != store.CampaignStatusDraft {
			t.Errorf("expected draft status, got %s", campaign.Status)
		}
		if trainer.trained != 1 {
			t.Errorf("expected 1 retrain, got %d", trainer.trained)
		}
	})

	t.Run("rejects missing name", func(t *testing.T) {
		processor := New(newFakeCampaignStore(), &fakeTrainer{}, logger)

		in := validInput()
		in.Name = "  "
		if _, err := processor.Create(ctx, userID, in); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("rejects missing product name", func(t *testing.T) {
		processor := New(newFakeCampaignStore(), &fakeTrainer{}, logger)

		in := validInput()
		in.Product.Name = ""
		if _, err := processor.Create(ctx, userID, in); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("rejects unknown platform", func(t *testing.T) {
		processor := New(newFakeCampaignStore(), &fakeTrainer{}, logger)

		in := validInput()
		in.TargetPlatform = "telegram"
		_, err := processor.Create(ctx, userID, in)
		if !errors.Is(err, ErrInvalidPlatform) {
			t.Errorf("expected ErrInvalidPlatform, got %v", err)
		}
	})

	t.Run("accepts all as target platform", func(t *testing.T) {
		processor := New(newFakeCampaignStore(), &fakeTrainer{}, logger)

		in := validInput()
		in.TargetPlatform = store.PlatformAll
		if _, err := processor.Create(ctx, userID, in); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("training failure does not fail the write", func(t *testing.T) {
		trainer := &fakeTrainer{err: errors.New("model unavailable")}
		processor := New(newFakeCampaignStore(), trainer, logger)

		if _, err := processor.Create(ctx, userID, validInput()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestCampaignSetStatus(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()
	userID := uuid.New()

	setup := func(status store.CampaignStatus) (*fakeCampaignStore, CampaignProcessor, uuid.UUID) {
		fakeStore := newFakeCampaignStore()
		campaign := store.Campaign{ID: uuid.New(), UserID: userID, Name: "C", Status: status}
		fakeStore.campaigns[campaign.ID] = campaign
		return fakeStore, New(fakeStore, &fakeTrainer{}, logger), campaign.ID
	}

	t.Run("draft activates", func(t *testing.T) {
		_, processor, id := setup(store.CampaignStatusDraft)

		updated, err := processor.SetStatus(ctx, id, userID, store.CampaignStatusActive)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Status != store.CampaignStatusActive {
			t.Errorf("expected active, got %s", updated.Status)
		}
	})

	t.Run("active pauses and resumes", func(t *testing.T) {
		_, processor, id := setup(store.CampaignStatusActive)

		if _, err := processor.SetStatus(ctx, id, userID, store.CampaignStatusPaused); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := processor.SetStatus(ctx, id, userID, store.CampaignStatusActive); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("completed is terminal", func(t *testing.T) {
		_, processor, id := setup(store.CampaignStatusCompleted)

		_, err := processor.SetStatus(ctx, id, userID, store.CampaignStatusActive)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("draft cannot complete directly", func(t *testing.T) {
		_, processor, id := setup(store.CampaignStatusDraft)

		_, err := processor.SetStatus(ctx, id, userID, store.CampaignStatusCompleted)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("concurrent change maps to ErrInvalidTransition", func(t *testing.T) {
		fakeStore, processor, id := setup(store.CampaignStatusDraft)
		fakeStore.statusErr = store.ErrStatusConflict

		_, err := processor.SetStatus(ctx, id, userID, store.CampaignStatusActive)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("unknown campaign is not found", func(t *testing.T) {
		_, processor, _ := setup(store.CampaignStatusDraft)

		_, err := processor.SetStatus(ctx, uuid.New(), userID, store.CampaignStatusActive)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteCampaign(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()
	userID := uuid.New()

	fakeStore := newFakeCampaignStore()
	trainer := &fakeTrainer{}
	processor := New(fakeStore, trainer, logger)

	campaign, err := processor.Create(ctx, userID, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := processor.Delete(ctx, campaign.ID, userID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := processor.Delete(ctx, campaign.ID, userID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if trainer.trained != 2 {
		t.Errorf("expected retrain on create and delete, got %d", trainer.trained)
	}
}
