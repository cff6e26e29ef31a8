package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PostEntryInput groups fields required to post a financial movement.
type PostEntryInput struct {
	ContactID       int64
	ContactType     ContactType
	TransactionDate time.Time
	TransactionType TransactionType
	TransactionID   *int64
	Description     string
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	BranchID        *int64
	CreatedBy       int64
}

// Validate ensures the posting satisfies the ledger's invariants before any
// write happens.
func (in PostEntryInput) Validate() error {
	if in.ContactID == 0 {
		return errors.New("ledger: contact id required")
	}
	if !in.ContactType.Valid() {
		return ErrUnknownContactType
	}
	if !in.TransactionType.Valid() {
		return errors.New("ledger: unknown transaction type")
	}
	if in.TransactionDate.IsZero() {
		return errors.New("ledger: transaction date required")
	}
	if in.Debit.IsNegative() || in.Credit.IsNegative() {
		return ErrInvalidAmount
	}
	debit := in.Debit.IsPositive()
	credit := in.Credit.IsPositive()
	if debit == credit {
		// both zero or both positive
		return ErrInvalidAmount
	}
	return nil
}

// StatementQuery filters a contact's statement.
type StatementQuery struct {
	ContactID   int64
	ContactType ContactType
	StartDate   *time.Time
	EndDate     *time.Time
	BranchID    *int64
}

// Validate checks the statement filter.
func (q StatementQuery) Validate() error {
	if q.ContactID == 0 {
		return errors.New("ledger: contact id required")
	}
	if !q.ContactType.Valid() {
		return ErrUnknownContactType
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		return errors.New("ledger: end date before start date")
	}
	return nil
}
