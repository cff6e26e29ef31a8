package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// historySource reads pre-engine business records from the surrounding ERP
// schema. Every query excludes records that already produced a ledger entry
// so the backfill can run again after an interruption.
type historySource struct {
	db *pgxpool.Pool
}

// NewHistorySource returns the Postgres-backed HistorySource.
func NewHistorySource(db *pgxpool.Pool) HistorySource {
	return &historySource{db: db}
}

func (h *historySource) ListUnledgeredSales(ctx context.Context) ([]SourceRecord, error) {
	return h.listRecords(ctx, `SELECT s.id, s.customer_id, s.order_date, s.total, s.branch_id, s.created_by, 'Sales order ' || s.number
FROM sales_orders s
WHERE s.status = 'APPROVED'
  AND NOT EXISTS (
    SELECT 1 FROM ledger_entries e
    WHERE e.transaction_type = $1 AND e.transaction_id = s.id AND e.contact_type = $2
  )
ORDER BY s.order_date ASC, s.id ASC`, TxInvoice, ContactCustomer)
}

func (h *historySource) ListUnledgeredPurchases(ctx context.Context) ([]SourceRecord, error) {
	return h.listRecords(ctx, `SELECT p.id, p.supplier_id, p.purchase_date, p.total, p.branch_id, p.created_by, 'Purchase ' || p.number
FROM purchases p
WHERE NOT EXISTS (
    SELECT 1 FROM ledger_entries e
    WHERE e.transaction_type = $1 AND e.transaction_id = p.id AND e.contact_type = $2
  )
ORDER BY p.purchase_date ASC, p.id ASC`, TxInvoice, ContactSupplier)
}

func (h *historySource) ListUnledgeredConfirmedPayments(ctx context.Context) ([]SourceRecord, error) {
	return h.listRecords(ctx, `SELECT p.id, p.customer_id, p.paid_at::date, p.amount, p.branch_id, p.created_by, 'Payment ' || p.number
FROM payments p
WHERE p.status = 'CONFIRMED'
  AND NOT EXISTS (
    SELECT 1 FROM ledger_entries e
    WHERE e.transaction_type = $1 AND e.transaction_id = p.id AND e.contact_type = $2
  )
ORDER BY p.paid_at ASC, p.id ASC`, TxPayment, ContactCustomer)
}

func (h *historySource) ListUnledgeredSalesReturns(ctx context.Context) ([]SourceRecord, error) {
	return h.listRecords(ctx, `SELECT r.id, r.customer_id, r.return_date, r.total, r.branch_id, r.created_by, 'Sales return ' || r.number
FROM sales_returns r
WHERE r.status = 'COMPLETED'
  AND NOT EXISTS (
    SELECT 1 FROM ledger_entries e
    WHERE e.transaction_type = $1 AND e.transaction_id = r.id AND e.contact_type = $2
  )
ORDER BY r.return_date ASC, r.id ASC`, TxReturn, ContactCustomer)
}

func (h *historySource) ListUnledgeredPurchaseReturns(ctx context.Context) ([]SourceRecord, error) {
	return h.listRecords(ctx, `SELECT r.id, r.supplier_id, r.return_date, r.total, r.branch_id, r.created_by, 'Purchase return ' || r.number
FROM purchase_returns r
WHERE r.status = 'COMPLETED'
  AND NOT EXISTS (
    SELECT 1 FROM ledger_entries e
    WHERE e.transaction_type = $1 AND e.transaction_id = r.id AND e.contact_type = $2
  )
ORDER BY r.return_date ASC, r.id ASC`, TxReturn, ContactSupplier)
}

func (h *historySource) listRecords(ctx context.Context, query string, args ...any) ([]SourceRecord, error) {
	rows, err := h.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []SourceRecord
	for rows.Next() {
		var rec SourceRecord
		if err := rows.Scan(&rec.TransactionID, &rec.ContactID, &rec.Date, &rec.Amount, &rec.BranchID, &rec.CreatedBy, &rec.Description); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (h *historySource) ListLegacyBalances(ctx context.Context) ([]LegacyBalance, error) {
	var out []LegacyBalance
	for _, contactType := range []ContactType{ContactCustomer, ContactSupplier} {
		meta := contactTables[contactType]
		rows, err := h.db.Query(ctx, `SELECT c.id, c.ledger_balance,
  LEAST(COALESCE((SELECT MIN(e.transaction_date) FROM ledger_entries e WHERE e.contact_id = c.id AND e.contact_type = $1), c.created_at::date), c.created_at::date)
FROM `+meta.table+` c
WHERE c.ledger_balance <> 0
  AND NOT EXISTS (
    SELECT 1 FROM ledger_entries e
    WHERE e.contact_id = c.id AND e.contact_type = $1 AND e.transaction_type = $2
  )
ORDER BY c.id ASC`, contactType, TxOpeningBalance)
		if err != nil {
			return nil, err
		}
		balances, err := scanLegacyBalances(rows, contactType)
		if err != nil {
			return nil, err
		}
		out = append(out, balances...)
	}
	return out, nil
}

func scanLegacyBalances(rows pgx.Rows, contactType ContactType) ([]LegacyBalance, error) {
	defer rows.Close()
	var out []LegacyBalance
	for rows.Next() {
		lb := LegacyBalance{ContactType: contactType}
		if err := rows.Scan(&lb.ContactID, &lb.Balance, &lb.EarliestDate); err != nil {
			return nil, err
		}
		out = append(out, lb)
	}
	return out, rows.Err()
}

func (h *historySource) ListContactIDs(ctx context.Context, contactType ContactType) ([]int64, error) {
	meta, ok := contactTables[contactType]
	if !ok {
		return nil, ErrUnknownContactType
	}
	rows, err := h.db.Query(ctx, `SELECT id FROM `+meta.table+` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
