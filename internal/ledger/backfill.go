package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceRecord is one pre-engine business record that should have produced
// a ledger entry.
type SourceRecord struct {
	TransactionID int64
	ContactID     int64
	Date          time.Time
	Amount        decimal.Decimal
	BranchID      *int64
	CreatedBy     int64
	Description   string
}

// LegacyBalance captures a contact's cached balance before the main pass
// rewrites it, together with the date an opening entry should carry.
type LegacyBalance struct {
	ContactID    int64
	ContactType  ContactType
	Balance      decimal.Decimal
	EarliestDate time.Time
}

// HistorySource reads historical business records and contact rosters. The
// List* methods must exclude records that already have a ledger entry so
// reruns stay idempotent.
type HistorySource interface {
	ListUnledgeredSales(ctx context.Context) ([]SourceRecord, error)
	ListUnledgeredPurchases(ctx context.Context) ([]SourceRecord, error)
	ListUnledgeredConfirmedPayments(ctx context.Context) ([]SourceRecord, error)
	ListUnledgeredSalesReturns(ctx context.Context) ([]SourceRecord, error)
	ListUnledgeredPurchaseReturns(ctx context.Context) ([]SourceRecord, error)
	ListLegacyBalances(ctx context.Context) ([]LegacyBalance, error)
	ListContactIDs(ctx context.Context, contactType ContactType) ([]int64, error)
}

// BackfillSummary reports what a backfill run did.
type BackfillSummary struct {
	RunID           uuid.UUID `json:"run_id"`
	Posted          int       `json:"posted"`
	Skipped         int       `json:"skipped"`
	Failed          int       `json:"failed"`
	OpeningBalances int       `json:"opening_balances"`
}

// Backfiller synthesises ledger entries from pre-engine sales, purchase,
// payment and return records, then represents any remaining legacy contact
// balance as a first-class OPENING_BALANCE entry.
type Backfiller struct {
	svc    *Service
	source HistorySource
	logger *slog.Logger
}

// NewBackfiller builds a Backfiller.
func NewBackfiller(svc *Service, source HistorySource, logger *slog.Logger) *Backfiller {
	return &Backfiller{svc: svc, source: source, logger: logger}
}

// Run executes the backfill. Each record posts in its own transaction and a
// bad record is logged and skipped, never propagated, so partial progress
// survives a later fault. Legacy balances are snapshotted up front because
// the main pass overwrites the cached values it needs.
func (b *Backfiller) Run(ctx context.Context) (BackfillSummary, error) {
	summary := BackfillSummary{RunID: uuid.New()}

	legacy, err := b.source.ListLegacyBalances(ctx)
	if err != nil {
		return summary, err
	}

	stages := []struct {
		name        string
		list        func(context.Context) ([]SourceRecord, error)
		contactType ContactType
		txType      TransactionType
		credit      bool
	}{
		{"sales", b.source.ListUnledgeredSales, ContactCustomer, TxInvoice, false},
		{"purchases", b.source.ListUnledgeredPurchases, ContactSupplier, TxInvoice, false},
		{"payments", b.source.ListUnledgeredConfirmedPayments, ContactCustomer, TxPayment, true},
		{"sales_returns", b.source.ListUnledgeredSalesReturns, ContactCustomer, TxReturn, true},
		{"purchase_returns", b.source.ListUnledgeredPurchaseReturns, ContactSupplier, TxReturn, true},
	}

	for _, stage := range stages {
		records, err := stage.list(ctx)
		if err != nil {
			return summary, err
		}
		for _, rec := range records {
			in := PostEntryInput{
				ContactID:       rec.ContactID,
				ContactType:     stage.contactType,
				TransactionDate: rec.Date,
				TransactionType: stage.txType,
				TransactionID:   int64Ptr(rec.TransactionID),
				Description:     rec.Description,
				BranchID:        rec.BranchID,
				CreatedBy:       rec.CreatedBy,
			}
			if stage.credit {
				in.Credit = rec.Amount
			} else {
				in.Debit = rec.Amount
			}
			if _, err := b.svc.PostEntry(ctx, in); err != nil {
				if errors.Is(err, ErrDuplicateSource) {
					summary.Skipped++
					continue
				}
				summary.Failed++
				b.logger.Warn("backfill record failed",
					slog.String("stage", stage.name),
					slog.Int64("transaction_id", rec.TransactionID),
					slog.Int64("contact_id", rec.ContactID),
					slog.Any("error", err))
				continue
			}
			summary.Posted++
		}
	}

	for _, lb := range legacy {
		in := PostEntryInput{
			ContactID:       lb.ContactID,
			ContactType:     lb.ContactType,
			TransactionDate: lb.EarliestDate,
			TransactionType: TxOpeningBalance,
			Description:     "Opening balance",
			CreatedBy:       0,
		}
		if lb.Balance.IsNegative() {
			in.Credit = lb.Balance.Neg()
		} else {
			in.Debit = lb.Balance
		}
		if _, err := b.svc.PostEntry(ctx, in); err != nil {
			summary.Failed++
			b.logger.Warn("backfill opening balance failed",
				slog.Int64("contact_id", lb.ContactID),
				slog.String("contact_type", string(lb.ContactType)),
				slog.Any("error", err))
			continue
		}
		summary.OpeningBalances++
	}

	b.logger.Info("backfill complete",
		slog.String("run_id", summary.RunID.String()),
		slog.Int("posted", summary.Posted),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Int("opening_balances", summary.OpeningBalances))
	return summary, nil
}

func int64Ptr(v int64) *int64 {
	return &v
}
