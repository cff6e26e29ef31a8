package ledger

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeHistorySource serves canned business records and derives the legacy
// balance list from the repo the way the SQL implementation does: contacts
// that already carry an OPENING_BALANCE entry drop out.
type fakeHistorySource struct {
	repo            *memoryLedgerRepo
	sales           []SourceRecord
	purchases       []SourceRecord
	payments        []SourceRecord
	salesReturns    []SourceRecord
	purchaseReturns []SourceRecord
	legacy          []LegacyBalance
}

func (f *fakeHistorySource) ListUnledgeredSales(ctx context.Context) ([]SourceRecord, error) {
	return f.sales, nil
}

func (f *fakeHistorySource) ListUnledgeredPurchases(ctx context.Context) ([]SourceRecord, error) {
	return f.purchases, nil
}

func (f *fakeHistorySource) ListUnledgeredConfirmedPayments(ctx context.Context) ([]SourceRecord, error) {
	return f.payments, nil
}

func (f *fakeHistorySource) ListUnledgeredSalesReturns(ctx context.Context) ([]SourceRecord, error) {
	return f.salesReturns, nil
}

func (f *fakeHistorySource) ListUnledgeredPurchaseReturns(ctx context.Context) ([]SourceRecord, error) {
	return f.purchaseReturns, nil
}

func (f *fakeHistorySource) ListLegacyBalances(ctx context.Context) ([]LegacyBalance, error) {
	var out []LegacyBalance
	for _, lb := range f.legacy {
		hasOpening := false
		for _, e := range f.repo.entries {
			if e.ContactID == lb.ContactID && e.ContactType == lb.ContactType && e.TransactionType == TxOpeningBalance {
				hasOpening = true
				break
			}
		}
		if !hasOpening && !lb.Balance.IsZero() {
			out = append(out, lb)
		}
	}
	return out, nil
}

func (f *fakeHistorySource) ListContactIDs(ctx context.Context, contactType ContactType) ([]int64, error) {
	var ids []int64
	for key := range f.repo.contacts {
		if key.contactType == contactType {
			ids = append(ids, key.contactID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(txID, contactID int64, day int, amount int64) SourceRecord {
	return SourceRecord{
		TransactionID: txID,
		ContactID:     contactID,
		Date:          time.Date(2025, time.November, day, 0, 0, 0, 0, time.UTC),
		Amount:        decimal.NewFromInt(amount),
		CreatedBy:     1,
	}
}

func newBackfillFixture() (*memoryLedgerRepo, *fakeHistorySource, *Backfiller) {
	repo := newMemoryLedgerRepo()
	repo.addContact(ContactCustomer, 1)
	repo.addContact(ContactSupplier, 2)
	repo.addContact(ContactSupplier, 3)
	repo.paymentStatus[501] = PaymentConfirmed

	source := &fakeHistorySource{
		repo: repo,
		sales: []SourceRecord{
			record(1, 1, 1, 100),
			record(2, 1, 2, 0), // invalid amount, must be skipped and logged
		},
		purchases:       []SourceRecord{record(1, 2, 3, 80)},
		payments:        []SourceRecord{record(501, 1, 4, 40)},
		salesReturns:    []SourceRecord{record(1, 1, 5, 10)},
		purchaseReturns: []SourceRecord{record(1, 2, 6, 20)},
		legacy: []LegacyBalance{
			{ContactID: 3, ContactType: ContactSupplier, Balance: decimal.NewFromInt(-150), EarliestDate: time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	return repo, source, NewBackfiller(newTestService(repo), source, discardLogger())
}

func TestBackfillPostsHistoricalRecords(t *testing.T) {
	ctx := context.Background()
	repo, _, backfiller := newBackfillFixture()

	summary, err := backfiller.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, summary.Posted)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 0, summary.Skipped)
	require.Equal(t, 1, summary.OpeningBalances)

	// invoice 100 − payment 40 − return 10
	require.True(t, repo.contacts[contactKey{ContactCustomer, 1}].Equal(decimal.NewFromInt(50)))
	// purchase 80 − purchase return 20
	require.True(t, repo.contacts[contactKey{ContactSupplier, 2}].Equal(decimal.NewFromInt(60)))
	// legacy credit position represented as an opening entry
	require.True(t, repo.contacts[contactKey{ContactSupplier, 3}].Equal(decimal.NewFromInt(-150)))

	var opening *EntryWithStatus
	for _, e := range repo.entries {
		if e.ContactID == 3 && e.TransactionType == TxOpeningBalance {
			opening = e
		}
	}
	require.NotNil(t, opening)
	require.True(t, opening.Credit.Equal(decimal.NewFromInt(150)))
	require.True(t, opening.Debit.IsZero())
}

func TestBackfillRerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, _, backfiller := newBackfillFixture()

	_, err := backfiller.Run(ctx)
	require.NoError(t, err)
	entriesAfterFirst := len(repo.entries)

	summary, err := backfiller.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Posted)
	require.Equal(t, 5, summary.Skipped)
	require.Equal(t, 1, summary.Failed) // the zero-amount record fails again
	require.Equal(t, 0, summary.OpeningBalances)
	require.Len(t, repo.entries, entriesAfterFirst)
}

func TestBackfillContinuesPastBadRecords(t *testing.T) {
	ctx := context.Background()
	repo, source, backfiller := newBackfillFixture()
	// Make the very first record fail at the storage layer too.
	source.sales[0].ContactID = 999 // nonexistent contact

	summary, err := backfiller.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Posted)
	require.Equal(t, 2, summary.Failed)
	require.True(t, repo.contacts[contactKey{ContactSupplier, 2}].Equal(decimal.NewFromInt(60)))
}
