package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"ledgersync/internal/source"
	"ledgersync/internal/store"
	"ledgersync/internal/websocket"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubAccountStore struct {
	getByIDFn      func(ctx context.Context, accountID string) (store.LinkedAccount, error)
	listByUserFn   func(ctx context.Context, userID, status string) ([]store.LinkedAccount, error)
	claimFn        func(ctx context.Context, accountID string) (int64, error)
	releaseClaimFn func(ctx context.Context, accountID, message string) error
	finishSyncFn   func(ctx context.Context, tx store.Execer, accountID string, lastSync time.Time) error
	markErrorFn    func(ctx context.Context, tx store.Execer, accountID, message string) error
}

func (s stubAccountStore) GetByID(ctx context.Context, accountID string) (store.LinkedAccount, error) {
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountStore) ListByUser(ctx context.Context, userID, status string) ([]store.LinkedAccount, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, status)
}

func (s stubAccountStore) ClaimForSync(ctx context.Context, accountID string) (int64, error) {
	if s.claimFn == nil {
		return 1, nil
	}
	return s.claimFn(ctx, accountID)
}

func (s stubAccountStore) ReleaseClaim(ctx context.Context, accountID, message string) error {
	if s.releaseClaimFn == nil {
		return nil
	}
	return s.releaseClaimFn(ctx, accountID, message)
}

func (s stubAccountStore) FinishSync(ctx context.Context, tx store.Execer, accountID string, lastSync time.Time) error {
	if s.finishSyncFn == nil {
		return nil
	}
	return s.finishSyncFn(ctx, tx, accountID, lastSync)
}

func (s stubAccountStore) MarkError(ctx context.Context, tx store.Execer, accountID, message string) error {
	if s.markErrorFn == nil {
		return nil
	}
	return s.markErrorFn(ctx, tx, accountID, message)
}

type recordingLogStore struct {
	mu        sync.Mutex
	logs      []store.SyncLogInput
	appendErr error
}

func (s *recordingLogStore) Append(ctx context.Context, tx store.Execer, input store.SyncLogInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.logs = append(s.logs, input)
	return nil
}

type stubSource struct {
	fetchFn func(ctx context.Context, account source.Account, start, end time.Time) ([]source.RawTransaction, error)
}

func (s stubSource) Fetch(ctx context.Context, account source.Account, start, end time.Time) ([]source.RawTransaction, error) {
	return s.fetchFn(ctx, account, start, end)
}

type recordingHub struct {
	mu      sync.Mutex
	updates []websocket.SyncUpdate
}

func (h *recordingHub) BroadcastSync(userID string, update websocket.SyncUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

// memExpenseStore is an in-memory ExpenseStore keyed by (user, reference),
// with optional per-reference insert failures.
type memExpenseStore struct {
	mu       sync.Mutex
	rows     map[string]store.ExpenseInput
	failRefs map[string]error
}

func newMemExpenseStore() *memExpenseStore {
	return &memExpenseStore{rows: make(map[string]store.ExpenseInput), failRefs: make(map[string]error)}
}

func (s *memExpenseStore) key(userID, reference string) string {
	return userID + "|" + reference
}

func (s *memExpenseStore) ExistsByReference(ctx context.Context, userID, reference string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[s.key(userID, reference)]
	return ok, nil
}

func (s *memExpenseStore) Insert(ctx context.Context, input store.ExpenseInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if input.ReferenceNumber != nil {
		if err, ok := s.failRefs[*input.ReferenceNumber]; ok {
			return err
		}
		s.rows[s.key(input.UserID, *input.ReferenceNumber)] = input
	}
	return nil
}

func (s *memExpenseStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// memCategoryStore is an in-memory CategoryStore with global and user
// scopes, matching case-insensitively.
type memCategoryStore struct {
	mu         sync.Mutex
	categories []store.Category
	createErr  error
	creates    int
}

func (s *memCategoryStore) FindVisible(ctx context.Context, userID, normalizedName string) (store.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var global *store.Category
	for i, cat := range s.categories {
		if lower(cat.Name) != normalizedName {
			continue
		}
		if cat.UserID != nil && *cat.UserID == userID {
			return cat, nil
		}
		if cat.UserID == nil && global == nil {
			global = &s.categories[i]
		}
	}
	if global != nil {
		return *global, nil
	}
	return store.Category{}, sql.ErrNoRows
}

func (s *memCategoryStore) Create(ctx context.Context, input store.CategoryInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.creates++
	s.categories = append(s.categories, store.Category{
		ID:     input.ID,
		UserID: input.UserID,
		Name:   input.Name,
		Color:  input.Color,
	})
	return nil
}

func lower(value string) string {
	out := []rune(value)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 32
		}
	}
	return string(out)
}

func stringPtr(value string) *string {
	return &value
}
