// Package source defines the boundary to external transaction providers.
package source

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned on transport or authentication failure. An
// empty window is not an error; adapters return an empty slice for it.
var ErrUnavailable = errors.New("transaction source unavailable")

const (
	KindDebit  = "debit"
	KindCredit = "credit"
)

// RawTransaction is one transaction as reported by a provider. Reference
// must be the provider's immutable transaction id: re-fetching the same
// external transaction must yield the same Reference, or deduplication
// breaks.
type RawTransaction struct {
	Date          time.Time
	Description   string
	Merchant      string
	AmountMinor   int64
	CategoryLabel string
	Reference     string
	Kind          string
}

// Account is the adapter-facing view of a linked account.
type Account struct {
	ID          string
	UserID      string
	ProviderID  string
	Kind        string
	AccessToken string
}

// Source fetches the transactions of an account within [start, end],
// newest first.
type Source interface {
	Fetch(ctx context.Context, account Account, start, end time.Time) ([]RawTransaction, error)
}
