// Package plaidsrc adapts the Plaid Transactions API to the source
// interface.
package plaidsrc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"

	"ledgersync/internal/money"
	"ledgersync/internal/source"
)

const pageSize = 500

type Source struct {
	client *plaid.APIClient
}

var _ source.Source = (*Source)(nil)

func New(clientID, secret, env string) (*Source, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid plaid environment %q", env)
	}

	return &Source{client: plaid.NewAPIClient(configuration)}, nil
}

func (s *Source) Fetch(ctx context.Context, account source.Account, start, end time.Time) ([]source.RawTransaction, error) {
	var out []source.RawTransaction
	offset := int32(0)
	for {
		request := plaid.NewTransactionsGetRequest(
			account.AccessToken,
			start.Format("2006-01-02"),
			end.Format("2006-01-02"),
		)
		options := plaid.NewTransactionsGetRequestOptions()
		options.SetCount(pageSize)
		options.SetOffset(offset)
		request.SetOptions(*options)

		resp, _, err := s.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
		}
		for _, txn := range resp.GetTransactions() {
			out = append(out, toRaw(txn))
		}
		offset += int32(len(resp.GetTransactions()))
		if offset >= resp.GetTotalTransactions() || len(resp.GetTransactions()) == 0 {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

func toRaw(txn plaid.Transaction) source.RawTransaction {
	date, _ := time.Parse("2006-01-02", txn.GetDate())
	// Plaid reports outflows as positive amounts.
	amount := txn.GetAmount()
	kind := source.KindDebit
	if amount < 0 {
		kind = source.KindCredit
		amount = -amount
	}
	merchant := txn.GetMerchantName()
	if merchant == "" {
		merchant = txn.GetName()
	}
	return source.RawTransaction{
		Date:          date,
		Description:   txn.GetName(),
		Merchant:      merchant,
		AmountMinor:   money.FromFloat(amount),
		CategoryLabel: categoryLabel(txn),
		Reference:     txn.GetTransactionId(),
		Kind:          kind,
	}
}

func categoryLabel(txn plaid.Transaction) string {
	if pfc, ok := txn.GetPersonalFinanceCategoryOk(); ok && pfc.GetPrimary() != "" {
		return titleCase(pfc.GetPrimary())
	}
	if categories := txn.GetCategory(); len(categories) > 0 {
		return categories[0]
	}
	return "Uncategorized"
}

// titleCase turns Plaid's FOOD_AND_DRINK style labels into "Food And Drink".
func titleCase(label string) string {
	words := strings.Split(strings.ToLower(label), "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
