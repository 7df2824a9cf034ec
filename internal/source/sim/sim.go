// Package sim is a deterministic in-memory transaction source used for
// tests and local development.
package sim

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"ledgersync/internal/source"
)

var labels = []string{"Food & Dining", "Transport", "Shopping", "Bills", "Entertainment"}

var merchants = []string{"Corner Cafe", "Metro Transit", "Big Mart", "City Utilities", "Stream Plus"}

type Source struct {
	mu   sync.RWMutex
	txns map[string][]source.RawTransaction
	err  error
}

func New() *Source {
	return &Source{txns: make(map[string][]source.RawTransaction)}
}

// SetTransactions fixes the transactions returned for an account.
func (s *Source) SetTransactions(accountID string, txns []source.RawTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[accountID] = txns
}

// FailWith makes every subsequent Fetch fail with err.
func (s *Source) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Source) Fetch(ctx context.Context, account source.Account, start, end time.Time) ([]source.RawTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, s.err)
	}
	var out []source.RawTransaction
	for _, txn := range s.txns[account.ID] {
		if txn.Date.Before(start) || txn.Date.After(end) {
			continue
		}
		out = append(out, txn)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// Generate produces n deterministic transactions for an account, newest
// first, ending at the given day. References derive from the account id and
// seed only, so regenerating the same window yields identical references.
func Generate(accountID string, seed int64, n int, end time.Time) []source.RawTransaction {
	txns := make([]source.RawTransaction, 0, n)
	for i := 0; i < n; i++ {
		h := refHash(accountID, seed, i)
		// Separate digits of h, so a merchant is not pinned to one category.
		label := labels[int(h%uint64(len(labels)))]
		merchant := merchants[int((h/uint64(len(labels)))%uint64(len(merchants)))]
		kind := source.KindDebit
		if h%7 == 0 {
			kind = source.KindCredit
		}
		txns = append(txns, source.RawTransaction{
			Date:          end.AddDate(0, 0, -i),
			Description:   fmt.Sprintf("%s purchase", merchant),
			Merchant:      merchant,
			AmountMinor:   int64(h%20000) + 100,
			CategoryLabel: label,
			Reference:     fmt.Sprintf("SIM-%s-%016x", accountID, h),
			Kind:          kind,
		})
	}
	return txns
}

func refHash(accountID string, seed int64, i int) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d:%d", accountID, seed, i)
	return h.Sum64()
}
