// Command ledgerctl enqueues ledger maintenance jobs from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	job := flag.String("job", "", "job to enqueue: backfill or repair")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	var info *asynq.TaskInfo
	switch *job {
	case "backfill":
		info, err = client.EnqueueLedgerBackfill(ctx)
	case "repair":
		info, err = client.EnqueueLedgerRepair(ctx)
	default:
		fmt.Fprintln(os.Stderr, "usage: ledgerctl -job backfill|repair")
		os.Exit(2)
	}
	if err != nil {
		slog.Default().Error("enqueue job", slog.String("job", *job), slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("enqueued %s (task %s, queue %s)\n", *job, info.ID, info.Queue)
}
