package store

import (
	"context"
	"time"
)

const (
	ExpenseSourceManual   = "manual"
	ExpenseSourceAutoSync = "auto_sync"
)

type ExpenseStore struct {
	db DB
}

type ExpenseInput struct {
	ID              string
	UserID          string
	CategoryID      string
	AmountMinor     int64
	Description     string
	ExpenseDate     time.Time
	ReferenceNumber *string
	Source          string
	Notes           string
}

func NewExpenseStore(db DB) *ExpenseStore {
	return &ExpenseStore{db: db}
}

// ExistsByReference reports whether an auto-synced expense with the given
// reference already exists for the user. This is the fast path of the dedup
// check; the partial unique index on (user_id, reference_number) is the
// authoritative one.
func (s *ExpenseStore) ExistsByReference(ctx context.Context, userID, reference string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM expenses
			WHERE user_id = $1 AND reference_number = $2 AND source = 'auto_sync'
		)
	`, userID, reference)
	return exists, err
}

func (s *ExpenseStore) Insert(ctx context.Context, input ExpenseInput) error {
	query := `
		INSERT INTO expenses (id, user_id, category_id, amount, description, expense_date, reference_number, source, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		input.ID, input.UserID, input.CategoryID, input.AmountMinor, input.Description,
		input.ExpenseDate, input.ReferenceNumber, input.Source, input.Notes,
	)
	return err
}

func (s *ExpenseStore) CountAutoSynced(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM expenses
		WHERE user_id = $1 AND source = 'auto_sync'
	`, userID)
	return count, err
}
