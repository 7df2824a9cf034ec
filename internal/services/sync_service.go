package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ledgersync/internal/db"
	"ledgersync/internal/source"
	"ledgersync/internal/store"
	"ledgersync/internal/websocket"
)

var (
	ErrUnauthorizedAccount = errors.New("account does not belong to user")
	ErrSyncInProgress      = errors.New("sync already in progress for account")
)

// sourceUnavailableMessage is what gets persisted to last_error and the
// sync log; raw adapter errors stay in the server log only.
const sourceUnavailableMessage = "source unavailable"

// finalizeFailedMessage is persisted when the finalize transaction itself
// could not commit.
const finalizeFailedMessage = "sync finalization failed"

type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (store.LinkedAccount, error)
	ListByUser(ctx context.Context, userID, status string) ([]store.LinkedAccount, error)
	ClaimForSync(ctx context.Context, accountID string) (int64, error)
	ReleaseClaim(ctx context.Context, accountID, message string) error
	FinishSync(ctx context.Context, tx store.Execer, accountID string, lastSync time.Time) error
	MarkError(ctx context.Context, tx store.Execer, accountID, message string) error
}

type SyncLogStore interface {
	Append(ctx context.Context, tx store.Execer, input store.SyncLogInput) error
}

type BatchImporter interface {
	ImportBatch(ctx context.Context, userID, accountID string, txns []source.RawTransaction) []ImportResult
}

type SyncHub interface {
	BroadcastSync(userID string, update websocket.SyncUpdate)
}

// SyncSummary is the terminal result of one sync invocation.
type SyncSummary struct {
	AccountID string `json:"account_id"`
	Found     int    `json:"found"`
	Imported  int    `json:"imported"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type SyncAllResult struct {
	AccountsSynced int           `json:"accounts_synced"`
	TotalImported  int           `json:"total_imported"`
	TotalSkipped   int           `json:"total_skipped"`
	TotalFailed    int           `json:"total_failed"`
	PerAccount     []SyncSummary `json:"per_account"`
}

// SyncService drives one account's sync through fetch, import and finalize,
// writing exactly one sync log row per invocation.
type SyncService struct {
	txRunner   db.TxRunner
	accounts   AccountStore
	logs       SyncLogStore
	importer   BatchImporter
	src        source.Source
	hub        SyncHub
	windowDays int
	now        func() time.Time
}

func NewSyncService(txRunner db.TxRunner, accounts AccountStore, logs SyncLogStore, importer BatchImporter, src source.Source, hub SyncHub, windowDays int) *SyncService {
	return &SyncService{
		txRunner:   txRunner,
		accounts:   accounts,
		logs:       logs,
		importer:   importer,
		src:        src,
		hub:        hub,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// SyncAccount runs one sync for the account. It returns an error only when
// the sync could not start (unknown account, foreign account, a concurrent
// sync holds the claim) or when finalizing could not be persisted; adapter
// and per-transaction failures are reported through the summary status.
func (s *SyncService) SyncAccount(ctx context.Context, userID, accountID string) (SyncSummary, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return SyncSummary{}, err
	}
	if account.UserID != userID {
		return SyncSummary{}, ErrUnauthorizedAccount
	}
	claimed, err := s.accounts.ClaimForSync(ctx, accountID)
	if err != nil {
		return SyncSummary{}, err
	}
	if claimed == 0 {
		return SyncSummary{}, ErrSyncInProgress
	}

	started := s.now()
	end := started
	start := end.AddDate(0, 0, -s.windowDays)

	txns, err := s.src.Fetch(ctx, source.Account{
		ID:          account.ID,
		UserID:      account.UserID,
		ProviderID:  account.ProviderID,
		Kind:        account.Kind,
		AccessToken: account.AccessToken,
	}, start, end)
	if err != nil {
		log.Printf("sync fetch failed account=%s: %v", accountID, err)
		summary := SyncSummary{AccountID: accountID, Status: store.SyncStatusError, Error: sourceUnavailableMessage}
		if finalizeErr := s.finalizeError(ctx, account, started); finalizeErr != nil {
			s.releaseClaim(ctx, account.ID)
			return summary, finalizeErr
		}
		s.broadcast(account.UserID, summary)
		return summary, nil
	}

	results := s.importer.ImportBatch(ctx, account.UserID, accountID, txns)
	summary := SyncSummary{AccountID: accountID, Found: len(txns)}
	for _, result := range results {
		switch result.Verdict {
		case VerdictImported:
			summary.Imported++
		case VerdictSkipped:
			summary.Skipped++
		case VerdictFailed:
			summary.Failed++
		}
	}
	if summary.Failed > 0 {
		summary.Status = store.SyncStatusPartial
	} else {
		summary.Status = store.SyncStatusSuccess
	}

	if err := s.finalize(ctx, account, started, summary); err != nil {
		s.releaseClaim(ctx, account.ID)
		return summary, err
	}
	s.broadcast(account.UserID, summary)
	return summary, nil
}

// SyncAll runs the single-account flow for every active account of the
// user. One account's failure never aborts the loop.
func (s *SyncService) SyncAll(ctx context.Context, userID string) (SyncAllResult, error) {
	accounts, err := s.accounts.ListByUser(ctx, userID, store.AccountStatusActive)
	if err != nil {
		return SyncAllResult{}, err
	}
	result := SyncAllResult{PerAccount: make([]SyncSummary, 0, len(accounts))}
	for _, account := range accounts {
		summary, err := s.SyncAccount(ctx, userID, account.ID)
		if err != nil {
			log.Printf("sync_all account=%s: %v", account.ID, err)
			summary = SyncSummary{AccountID: account.ID, Status: store.SyncStatusError, Error: err.Error()}
			result.PerAccount = append(result.PerAccount, summary)
			continue
		}
		result.AccountsSynced++
		result.TotalImported += summary.Imported
		result.TotalSkipped += summary.Skipped
		result.TotalFailed += summary.Failed
		result.PerAccount = append(result.PerAccount, summary)
	}
	return result, nil
}

// finalize commits the Importing -> Finalizing transition: last_sync moves
// forward regardless of per-transaction outcomes, and the log row is
// appended in the same transaction. last_sync is set to the fetch window's
// end, not the commit time, so the next window starts exactly where this
// one stopped.
func (s *SyncService) finalize(ctx context.Context, account store.LinkedAccount, started time.Time, summary SyncSummary) error {
	duration := s.now().Sub(started)
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.accounts.FinishSync(ctx, tx, account.ID, started); err != nil {
			return err
		}
		return s.logs.Append(ctx, tx, store.SyncLogInput{
			ID:         uuid.NewString(),
			UserID:     account.UserID,
			AccountID:  account.ID,
			Found:      summary.Found,
			Imported:   summary.Imported,
			Skipped:    summary.Skipped,
			Failed:     summary.Failed,
			Status:     summary.Status,
			DurationMS: duration.Milliseconds(),
		})
	})
}

// finalizeError commits the Fetching -> Failed transition: the account is
// marked errored, last_sync stays put, and a zero-count error log row is
// written.
func (s *SyncService) finalizeError(ctx context.Context, account store.LinkedAccount, started time.Time) error {
	duration := s.now().Sub(started)
	message := sourceUnavailableMessage
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.accounts.MarkError(ctx, tx, account.ID, message); err != nil {
			return err
		}
		return s.logs.Append(ctx, tx, store.SyncLogInput{
			ID:           uuid.NewString(),
			UserID:       account.UserID,
			AccountID:    account.ID,
			Status:       store.SyncStatusError,
			ErrorMessage: &message,
			DurationMS:   duration.Milliseconds(),
		})
	})
}

// releaseClaim is the escape hatch when finalizing could not be persisted:
// without it the account would stay in the syncing state and every later
// sync would be refused with ErrSyncInProgress.
func (s *SyncService) releaseClaim(ctx context.Context, accountID string) {
	if err := s.accounts.ReleaseClaim(ctx, accountID, finalizeFailedMessage); err != nil {
		log.Printf("release claim failed account=%s: %v", accountID, err)
	}
}

func (s *SyncService) broadcast(userID string, summary SyncSummary) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastSync(userID, websocket.SyncUpdate{
		AccountID: summary.AccountID,
		Status:    summary.Status,
		Found:     summary.Found,
		Imported:  summary.Imported,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
	})
}
