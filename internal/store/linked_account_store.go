package store

import (
	"context"
	"time"
)

// Account status values. Mutated only through this store's sync lifecycle
// methods; an account is never deleted by the sync subsystem.
const (
	AccountStatusPending = "pending"
	AccountStatusActive  = "active"
	AccountStatusSyncing = "syncing"
	AccountStatusError   = "error"
)

type LinkedAccountStore struct {
	db DB
}

type LinkedAccount struct {
	ID                 string     `db:"id"`
	UserID             string     `db:"user_id"`
	ProviderID         string     `db:"provider_id"`
	Kind               string     `db:"kind"`
	DisplayName        string     `db:"display_name"`
	AccountMask        string     `db:"account_mask"`
	AccessToken        string     `db:"access_token"`
	Status             string     `db:"status"`
	SyncFrequencyHours int        `db:"sync_frequency_hours"`
	LastSync           *time.Time `db:"last_sync"`
	LastError          *string    `db:"last_error"`
	CreatedAt          any        `db:"created_at"`
}

type LinkedAccountInput struct {
	ID                 string
	UserID             string
	ProviderID         string
	Kind               string
	DisplayName        string
	AccountMask        string
	AccessToken        string
	SyncFrequencyHours int
}

func NewLinkedAccountStore(db DB) *LinkedAccountStore {
	return &LinkedAccountStore{db: db}
}

func (s *LinkedAccountStore) Create(ctx context.Context, tx Execer, input LinkedAccountInput) error {
	query := `
		INSERT INTO linked_accounts (id, user_id, provider_id, kind, display_name, account_mask, access_token, status, sync_frequency_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.ProviderID, input.Kind, input.DisplayName,
		input.AccountMask, input.AccessToken, input.SyncFrequencyHours,
	)
	return err
}

func (s *LinkedAccountStore) GetByID(ctx context.Context, accountID string) (LinkedAccount, error) {
	var row LinkedAccount
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, provider_id, kind, display_name, account_mask, access_token,
		       status, sync_frequency_hours, last_sync, last_error, created_at
		FROM linked_accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return LinkedAccount{}, err
	}
	return row, nil
}

func (s *LinkedAccountStore) ListByUser(ctx context.Context, userID, status string) ([]LinkedAccount, error) {
	var rows []LinkedAccount
	query := `
		SELECT id, user_id, provider_id, kind, display_name, account_mask, access_token,
		       status, sync_frequency_hours, last_sync, last_error, created_at
		FROM linked_accounts
		WHERE user_id = $1
	`
	args := []any{userID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at"
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimForSync flips the account into the syncing state. It returns the
// number of rows updated: zero means another sync already holds the claim.
func (s *LinkedAccountStore) ClaimForSync(ctx context.Context, accountID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE linked_accounts
		SET status = 'syncing', updated_at = NOW()
		WHERE id = $1 AND status <> 'syncing'
	`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FinishSync records a completed sync: the account becomes active again,
// last_sync is advanced and any previous error is cleared. Runs on both the
// succeeded and partially-failed paths.
func (s *LinkedAccountStore) FinishSync(ctx context.Context, tx Execer, accountID string, lastSync time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE linked_accounts
		SET status = 'active', last_sync = $1, last_error = NULL, updated_at = NOW()
		WHERE id = $2
	`, lastSync, accountID)
	return err
}

// ReleaseClaim drops a held syncing claim when finalizing could not be
// persisted. The account lands in the error state so a later sync passes
// the `status <> 'syncing'` predicate and can reclaim it; last_sync stays
// put. Runs outside the failed transaction.
func (s *LinkedAccountStore) ReleaseClaim(ctx context.Context, accountID, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE linked_accounts
		SET status = 'error', last_error = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'syncing'
	`, message, accountID)
	return err
}

// MarkError records an adapter failure. last_sync is left untouched so the
// next sync re-fetches the same window.
func (s *LinkedAccountStore) MarkError(ctx context.Context, tx Execer, accountID, message string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE linked_accounts
		SET status = 'error', last_error = $1, updated_at = NOW()
		WHERE id = $2
	`, message, accountID)
	return err
}
