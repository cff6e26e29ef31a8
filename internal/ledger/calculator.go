package ledger

import "github.com/shopspring/decimal"

// ConfirmedFunc answers whether the payment behind an entry is confirmed.
type ConfirmedFunc func(entryID int64) bool

// ComputeBalances replays entries, which must already be in chronological
// order, and returns the running balance after each entry plus the final
// total. A PAYMENT entry whose payment is not confirmed inherits the balance
// current immediately before it and contributes nothing. The fold is
// deterministic: the same history and lookup always reproduce the same
// balances, which is what lets the orchestrator skip unchanged rows.
func ComputeBalances(entries []Entry, confirmed ConfirmedFunc) (map[int64]decimal.Decimal, decimal.Decimal) {
	perEntry := make(map[int64]decimal.Decimal, len(entries))
	balance := decimal.Zero
	for _, e := range entries {
		if e.TransactionType == TxPayment && (confirmed == nil || !confirmed(e.ID)) {
			perEntry[e.ID] = balance
			continue
		}
		balance = balance.Add(e.Debit).Sub(e.Credit)
		perEntry[e.ID] = balance
	}
	return perEntry, balance
}

// ConfirmedSet builds a ConfirmedFunc from entries already annotated with
// their payment status.
func ConfirmedSet(entries []EntryWithStatus) ConfirmedFunc {
	confirmed := make(map[int64]struct{})
	for _, e := range entries {
		if e.Contributes() && e.TransactionType == TxPayment {
			confirmed[e.ID] = struct{}{}
		}
	}
	return func(entryID int64) bool {
		_, ok := confirmed[entryID]
		return ok
	}
}
