package ledger

import (
	"context"
	"log/slog"
)

// RepairSummary reports a full-ledger recomputation run.
type RepairSummary struct {
	Contacts int `json:"contacts"`
	Failed   int `json:"failed"`
}

// Repairer heals drift between cached balances and what a full replay
// produces, by recalculating every customer and supplier unconditionally.
// Running it twice changes nothing the second time.
type Repairer struct {
	svc    *Service
	source HistorySource
	logger *slog.Logger
}

// NewRepairer builds a Repairer.
func NewRepairer(svc *Service, source HistorySource, logger *slog.Logger) *Repairer {
	return &Repairer{svc: svc, source: source, logger: logger}
}

// Run recalculates all contacts. Per-contact failures are logged and
// counted; the run continues.
func (r *Repairer) Run(ctx context.Context) (RepairSummary, error) {
	var summary RepairSummary
	for _, contactType := range []ContactType{ContactCustomer, ContactSupplier} {
		ids, err := r.source.ListContactIDs(ctx, contactType)
		if err != nil {
			return summary, err
		}
		for _, id := range ids {
			if _, err := r.svc.RecalculateContact(ctx, contactType, id, nil); err != nil {
				summary.Failed++
				r.logger.Warn("repair contact failed",
					slog.String("contact_type", string(contactType)),
					slog.Int64("contact_id", id),
					slog.Any("error", err))
				continue
			}
			summary.Contacts++
		}
	}
	r.logger.Info("ledger repair complete",
		slog.Int("contacts", summary.Contacts),
		slog.Int("failed", summary.Failed))
	return summary, nil
}
