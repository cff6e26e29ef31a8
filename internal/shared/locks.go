package shared

// BackfillLockKey is the redis key guarding the one-shot historical backfill.
func BackfillLockKey() string {
	return "ledger:backfill:lock"
}

// RepairLockKey is the redis key guarding the full-ledger repair run.
func RepairLockKey() string {
	return "ledger:repair:lock"
}
