package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerBackfill synthesizes ledger entries from historical records.
	TaskLedgerBackfill = "ledger:backfill"
	// TaskLedgerRepair recomputes every contact's ledger balances.
	TaskLedgerRepair = "ledger:repair"
)

// NewLedgerBackfillTask constructs the backfill task.
func NewLedgerBackfillTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerBackfill, nil, asynq.MaxRetry(0), asynq.Timeout(2*time.Hour))
}

// NewLedgerRepairTask constructs the repair task.
func NewLedgerRepairTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerRepair, nil, asynq.MaxRetry(1), asynq.Timeout(time.Hour))
}

// LedgerJobs bundles the handlers for ledger background work.
type LedgerJobs struct {
	backfiller *ledger.Backfiller
	repairer   *ledger.Repairer
	redis      *redis.Client
	logger     *slog.Logger
}

// NewLedgerJobs wires the ledger job handlers.
func NewLedgerJobs(backfiller *ledger.Backfiller, repairer *ledger.Repairer, redisClient *redis.Client, logger *slog.Logger) *LedgerJobs {
	return &LedgerJobs{backfiller: backfiller, repairer: repairer, redis: redisClient, logger: logger}
}

// HandleLedgerBackfill processes TaskLedgerBackfill. The redis lock keeps a
// second enqueue from running a concurrent backfill.
func (j *LedgerJobs) HandleLedgerBackfill(ctx context.Context, t *asynq.Task) error {
	release, ok, err := j.acquire(ctx, shared.BackfillLockKey(), 2*time.Hour)
	if err != nil {
		return err
	}
	if !ok {
		j.logger.Info("ledger backfill already running, skipping")
		return nil
	}
	defer release()

	summary, err := j.backfiller.Run(ctx)
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(summary)
	if _, err := t.ResultWriter().Write(payload); err != nil {
		j.logger.Warn("write backfill result", slog.Any("error", err))
	}
	return nil
}

// HandleLedgerRepair processes TaskLedgerRepair.
func (j *LedgerJobs) HandleLedgerRepair(ctx context.Context, t *asynq.Task) error {
	release, ok, err := j.acquire(ctx, shared.RepairLockKey(), time.Hour)
	if err != nil {
		return err
	}
	if !ok {
		j.logger.Info("ledger repair already running, skipping")
		return nil
	}
	defer release()

	summary, err := j.repairer.Run(ctx)
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(summary)
	if _, err := t.ResultWriter().Write(payload); err != nil {
		j.logger.Warn("write repair result", slog.Any("error", err))
	}
	return nil
}

func (j *LedgerJobs) acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if j.redis == nil {
		return func() {}, true, nil
	}
	ok, err := j.redis.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		_ = j.redis.Del(context.WithoutCancel(ctx), key).Err()
	}, true, nil
}
