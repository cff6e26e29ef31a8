package ledger

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository encapsulates DB access for the ledger. Mutations are only
// reachable through WithTx so the read-all/compute/write-back sequence is
// always all-or-nothing.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListStatement(ctx context.Context, q StatementQuery) ([]Entry, error)
	AdvanceTotals(ctx context.Context, customerID int64) (advances, refunds decimal.Decimal, err error)
}

// TxRepository exposes the operations available inside a ledger transaction.
type TxRepository interface {
	// LockContact serialises writers on one contact. The lock is released
	// when the surrounding transaction commits or rolls back.
	LockContact(ctx context.Context, contactType ContactType, contactID int64) error
	InsertEntry(ctx context.Context, in PostEntryInput) (int64, error)
	ListContactHistory(ctx context.Context, contactType ContactType, contactID int64, branchID *int64) ([]EntryWithStatus, error)
	UpdateRunningBalance(ctx context.Context, entryID int64, balance decimal.Decimal) error
	GetEntry(ctx context.Context, entryID int64) (Entry, error)
	GetContactBalance(ctx context.Context, contactType ContactType, contactID int64) (decimal.Decimal, error)
	SetContactBalance(ctx context.Context, contactType ContactType, contactID int64, balance decimal.Decimal) error
}

// ErrDuplicateSource indicates a second entry of the same transaction type
// referencing the same business record.
var ErrDuplicateSource = fmt.Errorf("ledger: source record already posted: %w", shared.ErrConflict)

// contactTables dispatches a contact type tag to the table backing it.
type contactTable struct {
	table string
}

var contactTables = map[ContactType]contactTable{
	ContactCustomer: {table: "customers"},
	ContactSupplier: {table: "suppliers"},
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the Postgres-backed ledger repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, contact_id, contact_type, transaction_date, transaction_type, transaction_id, description, debit, credit, running_balance, branch_id, created_by, created_at`

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) ListStatement(ctx context.Context, q StatementQuery) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE contact_id=$1 AND contact_type=$2`
	args := []any{q.ContactID, q.ContactType}
	if q.StartDate != nil {
		args = append(args, *q.StartDate)
		query += fmt.Sprintf(" AND transaction_date >= $%d", len(args))
	}
	if q.EndDate != nil {
		args = append(args, *q.EndDate)
		query += fmt.Sprintf(" AND transaction_date <= $%d", len(args))
	}
	if q.BranchID != nil {
		args = append(args, *q.BranchID)
		query += fmt.Sprintf(" AND branch_id = $%d", len(args))
	}
	query += " ORDER BY transaction_date ASC, created_at ASC, id ASC"
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *repository) AdvanceTotals(ctx context.Context, customerID int64) (decimal.Decimal, decimal.Decimal, error) {
	var advances, refunds decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT
  COALESCE(SUM(credit) FILTER (WHERE transaction_type=$3), 0),
  COALESCE(SUM(credit) FILTER (WHERE transaction_type=$4), 0)
FROM ledger_entries WHERE contact_id=$1 AND contact_type=$2`,
		customerID, ContactCustomer, TxAdvancePayment, TxRefund).
		Scan(&advances, &refunds)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return advances, refunds, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockContact(ctx context.Context, contactType ContactType, contactID int64) error {
	if _, ok := contactTables[contactType]; !ok {
		return ErrUnknownContactType
	}
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, contactLockKey(contactType, contactID))
	return err
}

func (r *txRepository) InsertEntry(ctx context.Context, in PostEntryInput) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries
  (contact_id, contact_type, transaction_date, transaction_type, transaction_id, description, debit, credit, running_balance, branch_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,$9,$10) RETURNING id`,
		in.ContactID, in.ContactType, in.TransactionDate, in.TransactionType,
		in.TransactionID, in.Description, in.Debit, in.Credit, in.BranchID, in.CreatedBy).
		Scan(&id)
	if err != nil {
		return 0, mapInsertError(err)
	}
	return id, nil
}

// mapInsertError converts a violation of the source uniqueness index into
// the duplicate sentinel; anything else passes through.
func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_ledger_entries_source" {
		return ErrDuplicateSource
	}
	return err
}

func (r *txRepository) ListContactHistory(ctx context.Context, contactType ContactType, contactID int64, branchID *int64) ([]EntryWithStatus, error) {
	query := `SELECT e.id, e.contact_id, e.contact_type, e.transaction_date, e.transaction_type, e.transaction_id, e.description, e.debit, e.credit, e.running_balance, e.branch_id, e.created_by, e.created_at, p.status
FROM ledger_entries e
LEFT JOIN payments p ON e.transaction_type=$3 AND p.id = e.transaction_id
WHERE e.contact_id=$1 AND e.contact_type=$2`
	args := []any{contactID, contactType, TxPayment}
	if branchID != nil {
		args = append(args, *branchID)
		query += fmt.Sprintf(" AND e.branch_id = $%d", len(args))
	}
	query += " ORDER BY e.transaction_date ASC, e.created_at ASC, e.id ASC"
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []EntryWithStatus
	for rows.Next() {
		var e EntryWithStatus
		var status *string
		if err := rows.Scan(&e.ID, &e.ContactID, &e.ContactType, &e.TransactionDate, &e.TransactionType, &e.TransactionID, &e.Description, &e.Debit, &e.Credit, &e.RunningBalance, &e.BranchID, &e.CreatedBy, &e.CreatedAt, &status); err != nil {
			return nil, err
		}
		if status != nil {
			st := PaymentStatus(*status)
			e.PaymentState = &st
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) UpdateRunningBalance(ctx context.Context, entryID int64, balance decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_entries SET running_balance=$2 WHERE id=$1`, entryID, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) GetEntry(ctx context.Context, entryID int64) (Entry, error) {
	var e Entry
	err := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id=$1`, entryID).
		Scan(&e.ID, &e.ContactID, &e.ContactType, &e.TransactionDate, &e.TransactionType, &e.TransactionID, &e.Description, &e.Debit, &e.Credit, &e.RunningBalance, &e.BranchID, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) GetContactBalance(ctx context.Context, contactType ContactType, contactID int64) (decimal.Decimal, error) {
	meta, ok := contactTables[contactType]
	if !ok {
		return decimal.Zero, ErrUnknownContactType
	}
	var balance decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT ledger_balance FROM `+meta.table+` WHERE id=$1`, contactID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrContactNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}

func (r *txRepository) SetContactBalance(ctx context.Context, contactType ContactType, contactID int64, balance decimal.Decimal) error {
	meta, ok := contactTables[contactType]
	if !ok {
		return ErrUnknownContactType
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE `+meta.table+` SET ledger_balance=$2, updated_at=NOW() WHERE id=$1`, contactID, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ContactID, &e.ContactType, &e.TransactionDate, &e.TransactionType, &e.TransactionID, &e.Description, &e.Debit, &e.Credit, &e.RunningBalance, &e.BranchID, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// contactLockKey derives the advisory lock key for a contact. FNV keeps the
// key stable across processes; collisions only cost spurious serialisation.
func contactLockKey(contactType ContactType, contactID int64) int64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "ledger:%s:%d", contactType, contactID)
	return int64(h.Sum64())
}
