package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"ledgersync/internal/db"
	"ledgersync/internal/source"
	"ledgersync/internal/store"
)

var ErrMissingReference = errors.New("transaction has no reference id")

type Verdict string

const (
	VerdictImported Verdict = "imported"
	VerdictSkipped  Verdict = "skipped"
	VerdictFailed   Verdict = "failed"
)

// ImportResult is the per-transaction outcome. A batch is a slice of these;
// failures never abort the rest of the batch.
type ImportResult struct {
	Reference string
	Verdict   Verdict
	ExpenseID string
	Err       error
}

type ExpenseStore interface {
	ExistsByReference(ctx context.Context, userID, reference string) (bool, error)
	Insert(ctx context.Context, input store.ExpenseInput) error
}

type Resolver interface {
	Resolve(ctx context.Context, userID, label string) (string, error)
}

// Importer turns raw provider transactions into at-most-once ledger
// entries keyed by (user_id, reference_number).
type Importer struct {
	expenses ExpenseStore
	resolver Resolver
	now      func() time.Time
}

func NewImporter(expenses ExpenseStore, resolver Resolver) *Importer {
	return &Importer{expenses: expenses, resolver: resolver, now: time.Now}
}

type expenseNotes struct {
	Merchant string `json:"merchant"`
	Kind     string `json:"type"`
	SyncedAt string `json:"synced_at"`
}

func (i *Importer) ImportOne(ctx context.Context, userID, accountID string, txn source.RawTransaction) ImportResult {
	if txn.Reference == "" {
		return ImportResult{Verdict: VerdictFailed, Err: ErrMissingReference}
	}
	exists, err := i.expenses.ExistsByReference(ctx, userID, txn.Reference)
	if err != nil {
		return ImportResult{Reference: txn.Reference, Verdict: VerdictFailed, Err: err}
	}
	if exists {
		return ImportResult{Reference: txn.Reference, Verdict: VerdictSkipped}
	}

	categoryID, err := i.resolver.Resolve(ctx, userID, txn.CategoryLabel)
	if err != nil {
		return ImportResult{Reference: txn.Reference, Verdict: VerdictFailed, Err: err}
	}

	notes, _ := json.Marshal(expenseNotes{
		Merchant: txn.Merchant,
		Kind:     txn.Kind,
		SyncedAt: i.now().UTC().Format(time.RFC3339),
	})
	expenseID := uuid.NewString()
	reference := txn.Reference
	err = i.expenses.Insert(ctx, store.ExpenseInput{
		ID:              expenseID,
		UserID:          userID,
		CategoryID:      categoryID,
		AmountMinor:     txn.AmountMinor,
		Description:     txn.Description,
		ExpenseDate:     txn.Date,
		ReferenceNumber: &reference,
		Source:          store.ExpenseSourceAutoSync,
		Notes:           string(notes),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			// A concurrent sync of the same account won the insert race; the
			// unique index on (user_id, reference_number) keeps us at most once.
			return ImportResult{Reference: txn.Reference, Verdict: VerdictSkipped}
		}
		return ImportResult{Reference: txn.Reference, Verdict: VerdictFailed, Err: err}
	}
	return ImportResult{Reference: txn.Reference, Verdict: VerdictImported, ExpenseID: expenseID}
}

// ImportBatch processes every transaction independently. A failed verdict
// is recorded and the loop continues.
func (i *Importer) ImportBatch(ctx context.Context, userID, accountID string, txns []source.RawTransaction) []ImportResult {
	results := make([]ImportResult, 0, len(txns))
	for _, txn := range txns {
		result := i.ImportOne(ctx, userID, accountID, txn)
		if result.Verdict == VerdictFailed {
			log.Printf("import failed account=%s reference=%s: %v", accountID, txn.Reference, result.Err)
		}
		results = append(results, result)
	}
	return results
}
