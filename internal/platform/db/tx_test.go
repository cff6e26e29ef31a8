package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestRetryableMatchesPoolErrors(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	deadlock := &pgconn.PgError{Code: "40P01"}

	require.True(t, retryable(serialization))
	require.True(t, retryable(deadlock))
	require.True(t, retryable(fmt.Errorf("platform/db: commit tx: %w", serialization)))

	require.False(t, retryable(&pgconn.PgError{Code: "23505"}))
	require.False(t, retryable(errors.New("connection refused")))
	require.False(t, retryable(nil))
}

func TestTxIsolationIsReadCommitted(t *testing.T) {
	// Writers serialise on an advisory lock inside the transaction; only
	// ReadCommitted guarantees the statements after the lock grant see the
	// rows committed by the previous lock holder.
	require.Equal(t, pgx.ReadCommitted, txOptions.IsoLevel)
}
