package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidPlatform   = errors.New("invalid target platform")
	ErrNotFound          = errors.New("campaign not found")
)

// Store is the subset of the store the campaign processor needs.
type Store interface {
	CreateCampaign(ctx context.Context, userID uuid.UUID, name string, product store.Product, targetPlatform store.Platform, chatFlow store.ChatFlow, targetAudience store.TargetAudience, outreachMessage string) (store.Campaign, error)
	GetCampaign(ctx context.Context, id, userID uuid.UUID) (store.Campaign, error)
	ListCampaigns(ctx context.Context, userID uuid.UUID) ([]store.Campaign, error)
	UpdateCampaign(ctx context.Context, id, userID uuid.UUID, name string, product store.Product, targetPlatform store.Platform, chatFlow store.ChatFlow, targetAudience store.TargetAudience, outreachMessage string) (store.Campaign, error)
	DeleteCampaign(ctx context.Context, id, userID uuid.UUID) error
	SetCampaignStatus(ctx context.Context, id, userID uuid.UUID, to, from store.CampaignStatus) (store.Campaign, error)
}

// Trainer refreshes the user's AI knowledge base after campaign changes.
type Trainer interface {
	Train(ctx context.Context, userID uuid.UUID) error
}

type CampaignProcessor struct {
	store   Store
	trainer Trainer
	logger  *observability.Logger
}

func New(store Store, trainer Trainer, logger *observability.Logger) CampaignProcessor {
	return CampaignProcessor{store: store, trainer: trainer, logger: logger}
}

// CampaignInput is the writable surface of a campaign.
type CampaignInput struct {
	Name            string
	Product         store.Product
	TargetPlatform  store.Platform
	ChatFlow        store.ChatFlow
	TargetAudience  store.TargetAudience
	OutreachMessage string
}

func (in *CampaignInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("campaign name is required")
	}
	if strings.TrimSpace(in.Product.Name) == "" {
		return fmt.Errorf("product name is required")
	}
	if !store.ValidTargetPlatform(in.TargetPlatform) {
		return ErrInvalidPlatform
	}
	return nil
}

func (p *CampaignProcessor) Create(ctx context.Context, userID uuid.UUID, in CampaignInput) (store.Campaign, error) {
	if err := in.validate(); err != nil {
		return store.Campaign{}, err
	}
	campaign, err := p.store.CreateCampaign(ctx, userID, in.Name, in.Product, in.TargetPlatform, in.ChatFlow, in.TargetAudience, in.OutreachMessage)
	if err != nil {
		return store.Campaign{}, err
	}
	p.retrain(ctx, userID)
	return campaign, nil
}

func (p *CampaignProcessor) Get(ctx context.Context, id, userID uuid.UUID) (store.Campaign, error) {
	campaign, err := p.store.GetCampaign(ctx, id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Campaign{}, ErrNotFound
		}
		return store.Campaign{}, err
	}
	return campaign, nil
}

func (p *CampaignProcessor) List(ctx context.Context, userID uuid.UUID) ([]store.Campaign, error) {
	return p.store.ListCampaigns(ctx, userID)
}

func (p *CampaignProcessor) Update(ctx context.Context, id, userID uuid.UUID, in CampaignInput) (store.Campaign, error) {
	if err := in.validate(); err != nil {
		return store.Campaign{}, err
	}
	campaign, err := p.store.UpdateCampaign(ctx, id, userID, in.Name, in.Product, in.TargetPlatform, in.ChatFlow, in.TargetAudience, in.OutreachMessage)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Campaign{}, ErrNotFound
		}
		return store.Campaign{}, err
	}
	p.retrain(ctx, userID)
	return campaign, nil
}

func (p *CampaignProcessor) Delete(ctx context.Context, id, userID uuid.UUID) error {
	err := p.store.DeleteCampaign(ctx, id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	p.retrain(ctx, userID)
	return nil
}

// CampaignStats is the performance counter snapshot for one campaign.
type CampaignStats struct {
	MessagesStarted int     `json:"messages_started"`
	Responses       int     `json:"responses"`
	Conversions     int     `json:"conversions"`
	Revenue         float64 `json:"revenue"`
	ConversionRate  float64 `json:"conversion_rate"`
}

func (p *CampaignProcessor) Stats(ctx context.Context, id, userID uuid.UUID) (CampaignStats, error) {
	campaign, err := p.Get(ctx, id, userID)
	if err != nil {
		return CampaignStats{}, err
	}
	stats := CampaignStats{
		MessagesStarted: campaign.MessagesStarted,
		Responses:       campaign.Responses,
		Conversions:     campaign.Conversions,
		Revenue:         campaign.Revenue,
	}
	if stats.MessagesStarted > 0 {
		stats.ConversionRate = float64(stats.Conversions) * 100 / float64(stats.MessagesStarted)
	}
	return stats, nil
}

// SetStatus validates the transition against the lifecycle table, then
// applies it with a compare-and-set on the previous status.
func (p *CampaignProcessor) SetStatus(ctx context.Context, id, userID uuid.UUID, to store.CampaignStatus) (store.Campaign, error) {
	campaign, err := p.Get(ctx, id, userID)
	if err != nil {
		return store.Campaign{}, err
	}
	if !store.CanTransitionCampaign(campaign.Status, to) {
		return store.Campaign{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, campaign.Status, to)
	}

	updated, err := p.store.SetCampaignStatus(ctx, id, userID, to, campaign.Status)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return store.Campaign{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, campaign.Status, to)
		}
		return store.Campaign{}, err
	}
	return updated, nil
}

// Knowledge base refreshes are best effort; a campaign write must not fail
// because retraining did.
func (p *CampaignProcessor) retrain(ctx context.Context, userID uuid.UUID) {
	if p.trainer == nil {
		return
	}
	if err := p.trainer.Train(ctx, userID); err != nil {
		p.logger.Error(ctx, "failed to refresh knowledge base", err)
	}
}
