package ledger

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapInsertErrorDuplicateSource(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "uq_ledger_entries_source"}
	require.ErrorIs(t, mapInsertError(dup), ErrDuplicateSource)

	other := &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_pkey"}
	require.NotErrorIs(t, mapInsertError(other), ErrDuplicateSource)

	plain := errors.New("connection reset")
	require.Equal(t, plain, mapInsertError(plain))
}

func TestContactLockKeyStableAndDistinct(t *testing.T) {
	require.Equal(t, contactLockKey(ContactCustomer, 7), contactLockKey(ContactCustomer, 7))
	require.NotEqual(t, contactLockKey(ContactCustomer, 7), contactLockKey(ContactSupplier, 7))
	require.NotEqual(t, contactLockKey(ContactCustomer, 7), contactLockKey(ContactCustomer, 8))
}
