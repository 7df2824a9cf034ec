package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ledgersync/internal/source"
	"ledgersync/internal/store"
)

func activeAccount(id, userID string) store.LinkedAccount {
	return store.LinkedAccount{
		ID:                 id,
		UserID:             userID,
		ProviderID:         "prov-1",
		Kind:               "bank",
		DisplayName:        "Checking",
		Status:             store.AccountStatusActive,
		SyncFrequencyHours: 24,
	}
}

func newTestSyncService(accounts stubAccountStore, logs *recordingLogStore, src stubSource, expenses *memExpenseStore) (*SyncService, *recordingHub) {
	hub := &recordingHub{}
	importer := NewImporter(expenses, NewCategoryResolver(&memCategoryStore{}))
	service := NewSyncService(fakeTxRunner{}, accounts, logs, importer, src, hub, 30)
	return service, hub
}

func fixedTxns(refs ...string) []source.RawTransaction {
	txns := make([]source.RawTransaction, 0, len(refs))
	for i, ref := range refs {
		txn := testTxn(ref)
		txn.Date = txn.Date.AddDate(0, 0, -i)
		txns = append(txns, txn)
	}
	return txns
}

func TestSyncAccountSucceeded(t *testing.T) {
	ctx := context.Background()
	var finished bool
	var windowEnd time.Time
	accounts := stubAccountStore{
		getByIDFn: func(_ context.Context, accountID string) (store.LinkedAccount, error) {
			return activeAccount(accountID, "user-1"), nil
		},
		finishSyncFn: func(_ context.Context, _ store.Execer, accountID string, lastSync time.Time) error {
			finished = true
			if !lastSync.Equal(windowEnd) {
				t.Fatalf("last_sync must be the fetch window end, got %v want %v", lastSync, windowEnd)
			}
			return nil
		},
	}
	logs := &recordingLogStore{}
	expenses := newMemExpenseStore()
	// REF-2 and REF-3 were imported by a previous sync.
	for _, ref := range []string{"REF-2", "REF-3"} {
		reference := ref
		_ = expenses.Insert(ctx, store.ExpenseInput{UserID: "user-1", ReferenceNumber: &reference})
	}
	src := stubSource{fetchFn: func(_ context.Context, _ source.Account, _, end time.Time) ([]source.RawTransaction, error) {
		windowEnd = end
		return fixedTxns("REF-1", "REF-2", "REF-3", "REF-4", "REF-5"), nil
	}}
	service, hub := newTestSyncService(accounts, logs, src, expenses)

	summary, err := service.SyncAccount(ctx, "user-1", "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Found != 5 || summary.Imported != 3 || summary.Skipped != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
	if summary.Status != store.SyncStatusSuccess {
		t.Fatalf("failed == 0 must classify as success, got %s", summary.Status)
	}
	if !finished {
		t.Fatalf("finalize must update the account")
	}
	if len(logs.logs) != 1 {
		t.Fatalf("exactly one log row per invocation, got %d", len(logs.logs))
	}
	logged := logs.logs[0]
	if logged.Found != 5 || logged.Imported != 3 || logged.Skipped != 2 || logged.Failed != 0 || logged.Status != "success" {
		t.Fatalf("unexpected log row: %#v", logged)
	}
	if len(hub.updates) != 1 || hub.updates[0].Status != "success" {
		t.Fatalf("expected one success broadcast, got %#v", hub.updates)
	}
}

func TestSyncAccountPartiallyFailed(t *testing.T) {
	ctx := context.Background()
	accounts := stubAccountStore{
		getByIDFn: func(_ context.Context, accountID string) (store.LinkedAccount, error) {
			return activeAccount(accountID, "user-1"), nil
		},
	}
	logs := &recordingLogStore{}
	expenses := newMemExpenseStore()
	reference := "REF-2"
	_ = expenses.Insert(ctx, store.ExpenseInput{UserID: "user-1", ReferenceNumber: &reference})
	expenses.failRefs["REF-4"] = errors.New("disk full")
	expenses.failRefs["REF-5"] = errors.New("disk full")
	src := stubSource{fetchFn: func(context.Context, source.Account, time.Time, time.Time) ([]source.RawTransaction, error) {
		return fixedTxns("REF-1", "REF-2", "REF-3", "REF-4", "REF-5"), nil
	}}
	service, _ := newTestSyncService(accounts, logs, src, expenses)

	summary, err := service.SyncAccount(ctx, "user-1", "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Found != 5 || summary.Imported != 2 || summary.Skipped != 1 || summary.Failed != 2 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
	if summary.Status != store.SyncStatusPartial {
		t.Fatalf("failed > 0 must classify as partial, got %s", summary.Status)
	}
	if summary.Imported+summary.Skipped+summary.Failed != summary.Found {
		t.Fatalf("verdicts must cover the batch: %#v", summary)
	}
}

func TestSyncAccountSourceUnavailable(t *testing.T) {
	ctx := context.Background()
	var markedError bool
	var lastSyncTouched bool
	accounts := stubAccountStore{
		getByIDFn: func(_ context.Context, accountID string) (store.LinkedAccount, error) {
			return activeAccount(accountID, "user-1"), nil
		},
		finishSyncFn: func(context.Context, store.Execer, string, time.Time) error {
			lastSyncTouched = true
			return nil
		},
		markErrorFn: func(_ context.Context, _ store.Execer, _ string, message string) error {
			markedError = true
			if message != "source unavailable" {
				t.Fatalf("raw adapter error must not leak: %q", message)
			}
			return nil
		},
	}
	logs := &recordingLogStore{}
	src := stubSource{fetchFn: func(context.Context, source.Account, time.Time, time.Time) ([]source.RawTransaction, error) {
		return nil, fmt.Errorf("%w: dial tcp: connection refused", source.ErrUnavailable)
	}}
	service, hub := newTestSyncService(accounts, logs, src, newMemExpenseStore())

	summary, err := service.SyncAccount(ctx, "user-1", "acc-1")
	if err != nil {
		t.Fatalf("adapter failure is a terminal state, not an error: %v", err)
	}
	if summary.Status != store.SyncStatusError {
		t.Fatalf("expected error status, got %s", summary.Status)
	}
	if summary.Found != 0 || summary.Imported != 0 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("counts must be zero when fetch fails: %#v", summary)
	}
	if !markedError {
		t.Fatalf("account must be marked errored")
	}
	if lastSyncTouched {
		t.Fatalf("last_sync must not advance on the failed path")
	}
	if len(logs.logs) != 1 {
		t.Fatalf("exactly one log row per invocation, got %d", len(logs.logs))
	}
	logged := logs.logs[0]
	if logged.Status != "error" || logged.ErrorMessage == nil || *logged.ErrorMessage != "source unavailable" {
		t.Fatalf("unexpected log row: %#v", logged)
	}
	if len(hub.updates) != 1 || hub.updates[0].Status != "error" {
		t.Fatalf("expected one error broadcast, got %#v", hub.updates)
	}
}

func TestSyncAccountEmptyFetchSucceeds(t *testing.T) {
	ctx := context.Background()
	accounts := stubAccountStore{
		getByIDFn: func(_ context.Context, accountID string) (store.LinkedAccount, error) {
			return activeAccount(accountID, "user-1"), nil
		},
	}
	logs := &recordingLogStore{}
	src := stubSource{fetchFn: func(context.Context, source.Account, time.Time, time.Time) ([]source.RawTransaction, error) {
		return nil, nil
	}}
	service, _ := newTestSyncService(accounts, logs, src, newMemExpenseStore())

	summary, err := service.SyncAccount(ctx, "user-1", "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != store.SyncStatusSuccess || summary.Found != 0 {
		t.Fatalf("empty fetch is a successful sync: %#v", summary)
	}
	if len(logs.logs) != 1 {
		t.Fatalf("empty fetch still writes a log row")
	}
}

func TestSyncAccountUnauthorized(t *testing.T) {
	ctx := context.Background()
	accounts := stubAccountStore{
		getByIDFn: func(_ context.Context, accountID string) (store.LinkedAccount, error) {
			return activeAccount(accountID, "someone-else"), nil
		},
	}
	logs := &recordingLogStore{}
	service, _ := newTestSyncService(accounts, logs, stubSource{}, newMemExpenseStore())

	if _, err := service.SyncAccount(ctx, "user-1", "acc-1"); !errors.Is(err, ErrUnauthorizedAccount) {
		t.Fatalf("expected ErrUnauthorizedAccount, got %v", err)
	}
	if len(logs.logs) != 0 {
		t.Fatalf("a sync that never started must not log")
	}
}

func TestSyncAccountAlreadyInProgress(t *testing.T) {
	ctx := context.Background()
	accounts := stubAccountStore{
		getByIDFn: func(_ context.Context, accountID string) (store.LinkedAccount, error) {
			return activeAccount(accountID, "user-1"), nil
		},
		claimFn: func(context.Context, string) (int64, error) {
			return 0, nil
		},
	}
	logs := &recordingLogStore{}
	service, _ := newTestSyncService(accounts, logs, stubSource{}, newMemExpenseStore())

	if _, err := service.SyncAccount(ctx, "user-1", "acc-1"); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	if len(logs.logs) != 0 {
		t.Fatalf("a sync that lost the claim must not log")
	}
}

func TestSyncAccountFinalizeFailureReleasesClaim(t *testing.T) {
	ctx := context.Background()
	status := store.AccountStatusActive
	accounts := stubAccountStore{
		getByIDFn: func(_ context.Context, accountID string) (store.LinkedAccount, error) {
			account := activeAccount(accountID, "user-1")
			account.Status = status
			return account, nil
		},
		claimFn: func(context.Context, string) (int64, error) {
			if status == store.AccountStatusSyncing {
				return 0, nil
			}
			status = store.AccountStatusSyncing
			return 1, nil
		},
		releaseClaimFn: func(_ context.Context, _ string, message string) error {
			if message != finalizeFailedMessage {
				t.Fatalf("unexpected release message %q", message)
			}
			status = store.AccountStatusError
			return nil
		},
		finishSyncFn: func(context.Context, store.Execer, string, time.Time) error {
			status = store.AccountStatusActive
			return nil
		},
	}
	logs := &recordingLogStore{appendErr: errors.New("database is shutting down")}
	src := stubSource{fetchFn: func(context.Context, source.Account, time.Time, time.Time) ([]source.RawTransaction, error) {
		return fixedTxns("REF-1"), nil
	}}
	service, _ := newTestSyncService(accounts, logs, src, newMemExpenseStore())

	if _, err := service.SyncAccount(ctx, "user-1", "acc-1"); err == nil {
		t.Fatalf("expected finalize failure to surface")
	}
	if status != store.AccountStatusError {
		t.Fatalf("claim must be released after a finalize failure, status %s", status)
	}

	// The next invocation reclaims the account and completes.
	logs.appendErr = nil
	summary, err := service.SyncAccount(ctx, "user-1", "acc-1")
	if err != nil {
		t.Fatalf("retry after release must succeed: %v", err)
	}
	if summary.Status != store.SyncStatusSuccess {
		t.Fatalf("unexpected retry outcome: %#v", summary)
	}
	if status != store.AccountStatusActive {
		t.Fatalf("retry must leave the account active, got %s", status)
	}
	if len(logs.logs) != 1 {
		t.Fatalf("only the successful retry may append a log row, got %d", len(logs.logs))
	}
}

func TestSyncAllAggregatesAndIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	all := []store.LinkedAccount{
		activeAccount("acc-1", "user-1"),
		activeAccount("acc-2", "user-1"),
		activeAccount("acc-3", "user-1"),
	}
	accounts := stubAccountStore{
		getByIDFn: func(_ context.Context, accountID string) (store.LinkedAccount, error) {
			return activeAccount(accountID, "user-1"), nil
		},
		listByUserFn: func(_ context.Context, userID, status string) ([]store.LinkedAccount, error) {
			if status != store.AccountStatusActive {
				t.Fatalf("sync_all must only list active accounts, got %q", status)
			}
			return all, nil
		},
	}
	logs := &recordingLogStore{}
	src := stubSource{fetchFn: func(_ context.Context, account source.Account, _, _ time.Time) ([]source.RawTransaction, error) {
		if account.ID == "acc-2" {
			return nil, fmt.Errorf("%w: timeout", source.ErrUnavailable)
		}
		return fixedTxns(account.ID+"-R1", account.ID+"-R2"), nil
	}}
	service, _ := newTestSyncService(accounts, logs, src, newMemExpenseStore())

	result, err := service.SyncAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AccountsSynced != 3 {
		t.Fatalf("every account must be attempted, got %d", result.AccountsSynced)
	}
	if result.TotalImported != 4 {
		t.Fatalf("totals must sum per-account imports, got %d", result.TotalImported)
	}
	if len(result.PerAccount) != 3 {
		t.Fatalf("expected 3 per-account summaries, got %d", len(result.PerAccount))
	}
	if result.PerAccount[1].Status != store.SyncStatusError {
		t.Fatalf("acc-2 must report error, got %s", result.PerAccount[1].Status)
	}
	if result.PerAccount[2].Status != store.SyncStatusSuccess {
		t.Fatalf("acc-2's failure must not abort acc-3, got %s", result.PerAccount[2].Status)
	}
	if len(logs.logs) != 3 {
		t.Fatalf("one log row per account invocation, got %d", len(logs.logs))
	}
}
