package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ContactType discriminates which party a ledger entry belongs to.
type ContactType string

const (
	ContactCustomer ContactType = "CUSTOMER"
	ContactSupplier ContactType = "SUPPLIER"
)

// Valid reports whether the contact type is one of the known tags.
func (t ContactType) Valid() bool {
	return t == ContactCustomer || t == ContactSupplier
}

// TransactionType enumerates the financial movements the ledger records.
type TransactionType string

const (
	TxOpeningBalance TransactionType = "OPENING_BALANCE"
	TxInvoice        TransactionType = "INVOICE"
	TxPayment        TransactionType = "PAYMENT"
	TxAdvancePayment TransactionType = "ADVANCE_PAYMENT"
	TxReturn         TransactionType = "RETURN"
	TxRefund         TransactionType = "REFUND"
)

// Valid reports whether the transaction type is known.
func (t TransactionType) Valid() bool {
	switch t {
	case TxOpeningBalance, TxInvoice, TxPayment, TxAdvancePayment, TxReturn, TxRefund:
		return true
	}
	return false
}

// PaymentStatus mirrors the state of the payment record a PAYMENT entry references.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
)

// Entry is one financial movement against a contact. Exactly one of Debit
// and Credit is positive; RunningBalance is derived and always reproducible
// by replaying the contact's full history in (TransactionDate, CreatedAt, ID)
// order.
type Entry struct {
	ID              int64
	ContactID       int64
	ContactType     ContactType
	TransactionDate time.Time
	TransactionType TransactionType
	TransactionID   *int64
	Description     string
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	RunningBalance  decimal.Decimal
	BranchID        *int64
	CreatedBy       int64
	CreatedAt       time.Time
}

// EntryWithStatus pairs an entry with the status of its linked payment
// record, when the entry is a PAYMENT. Status is nil for every other type.
type EntryWithStatus struct {
	Entry
	PaymentState *PaymentStatus
}

// Contributes reports whether the entry's amount counts toward the running
// balance. Unconfirmed payments sit in the timeline without contributing.
func (e EntryWithStatus) Contributes() bool {
	if e.TransactionType != TxPayment {
		return true
	}
	return e.PaymentState != nil && *e.PaymentState == PaymentConfirmed
}

var (
	// ErrInvalidAmount indicates the debit/credit invariant was violated.
	ErrInvalidAmount = errors.New("ledger: exactly one of debit and credit must be positive")
	// ErrContactNotFound indicates the entry targets a nonexistent contact.
	ErrContactNotFound = fmt.Errorf("ledger: contact %w", shared.ErrNotFound)
	// ErrUnknownContactType indicates an unrecognised contact type tag.
	ErrUnknownContactType = errors.New("ledger: unknown contact type")
	// ErrEntryNotFound indicates a missing ledger entry row.
	ErrEntryNotFound = fmt.Errorf("ledger: entry %w", shared.ErrNotFound)
)
