package processor

import (
	"context"
	"errors"

	"salespilot/internal/observability"
	"salespilot/internal/store"

	"github.com/google/uuid"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrNotFound          = errors.New("row not found")
)

// Store is the subset of the store the admin processor needs.
type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	TableCountsForUser(ctx context.Context, userID uuid.UUID) (store.TableCounts, error)
	GlobalTableCounts(ctx context.Context) (store.TableCounts, error)
	AdminListRows(ctx context.Context, collection string, userID uuid.UUID, limit int) ([]map[string]interface{}, error)
	AdminGetRow(ctx context.Context, collection string, id, userID uuid.UUID) (map[string]interface{}, error)
	WipeUserData(ctx context.Context, userID uuid.UUID) error
}

type AdminProcessor struct {
	store  Store
	logger *observability.Logger
}

func New(store Store, logger *observability.Logger) AdminProcessor {
	return AdminProcessor{store: store, logger: logger}
}

// Stats reports row counts. Regular users see their own data; admins see
// the whole database.
func (p *AdminProcessor) Stats(ctx context.Context, userID uuid.UUID) (store.TableCounts, bool, error) {
	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		return store.TableCounts{}, false, err
	}
	if user.Role == "admin" {
		counts, err := p.store.GlobalTableCounts(ctx)
		return counts, true, err
	}
	counts, err := p.store.TableCountsForUser(ctx, userID)
	return counts, false, err
}

func (p *AdminProcessor) Browse(ctx context.Context, userID uuid.UUID, collection string, limit int) ([]map[string]interface{}, error) {
	rows, err := p.store.AdminListRows(ctx, collection, userID, limit)
	if err != nil {
		if errors.Is(err, store.ErrUnknownCollection) {
			return nil, ErrUnknownCollection
		}
		return nil, err
	}
	return rows, nil
}

func (p *AdminProcessor) GetRow(ctx context.Context, userID uuid.UUID, collection string, id uuid.UUID) (map[string]interface{}, error) {
	row, err := p.store.AdminGetRow(ctx, collection, id, userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUnknownCollection):
			return nil, ErrUnknownCollection
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row, nil
}

func (p *AdminProcessor) Wipe(ctx context.Context, userID uuid.UUID) error {
	return p.store.WipeUserData(ctx, userID)
}
