package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ledgersync/internal/auth"
	"ledgersync/internal/config"
	"ledgersync/internal/services"
	"ledgersync/internal/store"
	"ledgersync/internal/websocket"
)

const testSecret = "secret"

type stubAccountStore struct {
	getByIDFn    func(ctx context.Context, accountID string) (store.LinkedAccount, error)
	listByUserFn func(ctx context.Context, userID, status string) ([]store.LinkedAccount, error)
}

func (s stubAccountStore) GetByID(ctx context.Context, accountID string) (store.LinkedAccount, error) {
	if s.getByIDFn == nil {
		return store.LinkedAccount{}, nil
	}
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountStore) ListByUser(ctx context.Context, userID, status string) ([]store.LinkedAccount, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, status)
}

type stubSyncLogStore struct {
	historyFn      func(ctx context.Context, userID, accountID string, limit int) ([]map[string]any, error)
	recentErrorsFn func(ctx context.Context, userID string, limit int) ([]map[string]any, error)
	statisticsFn   func(ctx context.Context, userID string) (store.SyncStats, error)
}

func (s stubSyncLogStore) History(ctx context.Context, userID, accountID string, limit int) ([]map[string]any, error) {
	if s.historyFn == nil {
		return nil, nil
	}
	return s.historyFn(ctx, userID, accountID, limit)
}

func (s stubSyncLogStore) RecentErrors(ctx context.Context, userID string, limit int) ([]map[string]any, error) {
	if s.recentErrorsFn == nil {
		return nil, nil
	}
	return s.recentErrorsFn(ctx, userID, limit)
}

func (s stubSyncLogStore) Statistics(ctx context.Context, userID string) (store.SyncStats, error) {
	if s.statisticsFn == nil {
		return store.SyncStats{}, nil
	}
	return s.statisticsFn(ctx, userID)
}

type stubSyncService struct {
	syncAccountFn func(ctx context.Context, userID, accountID string) (services.SyncSummary, error)
	syncAllFn     func(ctx context.Context, userID string) (services.SyncAllResult, error)
}

func (s stubSyncService) SyncAccount(ctx context.Context, userID, accountID string) (services.SyncSummary, error) {
	if s.syncAccountFn == nil {
		return services.SyncSummary{}, nil
	}
	return s.syncAccountFn(ctx, userID, accountID)
}

func (s stubSyncService) SyncAll(ctx context.Context, userID string) (services.SyncAllResult, error) {
	if s.syncAllFn == nil {
		return services.SyncAllResult{}, nil
	}
	return s.syncAllFn(ctx, userID)
}

func newTestHandler(accounts stubAccountStore, logs stubSyncLogStore, service stubSyncService) *Handler {
	cfg := config.Config{JWTSecret: testSecret, AllowedOrigins: "*"}
	return New(cfg, accounts, logs, service, websocket.NewHub())
}

func authedRequest(t *testing.T, method, target string) *http.Request {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, "user-1", time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func stringPtr(value string) *string {
	return &value
}

func timePtr(value time.Time) *time.Time {
	return &value
}
