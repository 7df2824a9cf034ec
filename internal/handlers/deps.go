package handlers

import (
	"context"

	"ledgersync/internal/services"
	"ledgersync/internal/store"
)

type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (store.LinkedAccount, error)
	ListByUser(ctx context.Context, userID, status string) ([]store.LinkedAccount, error)
}

type SyncLogStore interface {
	History(ctx context.Context, userID, accountID string, limit int) ([]map[string]any, error)
	RecentErrors(ctx context.Context, userID string, limit int) ([]map[string]any, error)
	Statistics(ctx context.Context, userID string) (store.SyncStats, error)
}

type SyncService interface {
	SyncAccount(ctx context.Context, userID, accountID string) (services.SyncSummary, error)
	SyncAll(ctx context.Context, userID string) (services.SyncAllResult, error)
}
