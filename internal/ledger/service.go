package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records an audit trail for ledger mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the recalculation orchestrator. Every mutation runs the full
// read-all/compute/write-back sequence inside one transaction, holding the
// per-contact lock for its duration.
type Service struct {
	repo  Repository
	audit AuditPort
	cache *Cache
	now   func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, audit AuditPort, cache *Cache) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostEntry appends a financial movement for a contact and re-derives the
// contact's entire ordered history. A single backdated insert can shift
// every subsequent balance, so the only correct general strategy is a full
// replay; rows whose balance did not move are never rewritten.
func (s *Service) PostEntry(ctx context.Context, in PostEntryInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockContact(ctx, in.ContactType, in.ContactID); err != nil {
			return err
		}
		if _, err := tx.GetContactBalance(ctx, in.ContactType, in.ContactID); err != nil {
			return err
		}
		id, err := tx.InsertEntry(ctx, in)
		if err != nil {
			return err
		}
		if _, _, err := s.recalculateLocked(ctx, tx, in.ContactType, in.ContactID, nil); err != nil {
			return err
		}
		entry, err = tx.GetEntry(ctx, id)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  in.CreatedBy,
			Action:   "ledger.post",
			Entity:   "ledger_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"contact_id":       in.ContactID,
				"contact_type":     string(in.ContactType),
				"transaction_type": string(in.TransactionType),
				"debit":            in.Debit.String(),
				"credit":           in.Credit.String(),
			},
			At: s.now(),
		})
	}
	return entry, nil
}

// RecalculateContact replays one contact's history and heals any stored
// balance that drifted. The optional branch filter serves branch-siloed
// ledgers; postings recalculate the unscoped contact history.
func (s *Service) RecalculateContact(ctx context.Context, contactType ContactType, contactID int64, branchID *int64) (decimal.Decimal, error) {
	if !contactType.Valid() {
		return decimal.Zero, ErrUnknownContactType
	}
	var final decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockContact(ctx, contactType, contactID); err != nil {
			return err
		}
		var err error
		final, _, err = s.recalculateLocked(ctx, tx, contactType, contactID, branchID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return final, nil
}

// recalculateLocked runs the calculator over the ordered history and writes
// back only what changed. Callers must hold the contact lock.
func (s *Service) recalculateLocked(ctx context.Context, tx TxRepository, contactType ContactType, contactID int64, branchID *int64) (decimal.Decimal, int, error) {
	history, err := tx.ListContactHistory(ctx, contactType, contactID, branchID)
	if err != nil {
		return decimal.Zero, 0, err
	}
	entries := make([]Entry, 0, len(history))
	for _, e := range history {
		entries = append(entries, e.Entry)
	}
	perEntry, final := ComputeBalances(entries, ConfirmedSet(history))
	changed := 0
	for _, e := range history {
		want := perEntry[e.ID]
		if want.Equal(e.RunningBalance) {
			continue
		}
		if err := tx.UpdateRunningBalance(ctx, e.ID, want); err != nil {
			return decimal.Zero, changed, err
		}
		changed++
	}
	stored, err := tx.GetContactBalance(ctx, contactType, contactID)
	if err != nil {
		return decimal.Zero, changed, err
	}
	if !final.Equal(stored) {
		if err := tx.SetContactBalance(ctx, contactType, contactID, final); err != nil {
			return decimal.Zero, changed, err
		}
	}
	return final, changed, nil
}

// GetStatement returns a contact's ordered entries for a date range. Read
// only; balances are assumed already correct.
func (s *Service) GetStatement(ctx context.Context, q StatementQuery) ([]Entry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListStatement(ctx, q)
}

// AdvanceBalance reports how much unapplied customer prepayment exists:
// advance-payment credits minus refund credits, floored at zero. It is a
// reporting figure, not a ledger balance, and never consults PAYMENT or
// INVOICE entries.
func (s *Service) AdvanceBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	advances, refunds, err := s.repo.AdvanceTotals(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	advance := advances.Sub(refunds)
	if advance.IsNegative() {
		return decimal.Zero, nil
	}
	return advance, nil
}
