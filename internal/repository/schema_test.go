package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectTryLock(mock sqlmock.Sqlmock, acquired bool) {
	mock.ExpectQuery("pg_try_advisory_lock").
		WithArgs(int64(schemaLockID)).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(acquired))
}

func expectUnlock(mock sqlmock.Sqlmock) {
	mock.ExpectExec("pg_advisory_unlock").
		WithArgs(int64(schemaLockID)).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectCreateTables(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	for _, table := range []string{"weather_data", "yield_data", "weather_logs", "weather_stats"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
}

func TestEnsureSchema_LockAcquired(t *testing.T) {
	repo, mock := newMockRepository(t)

	expectTryLock(mock, true)
	expectCreateTables(mock)
	expectUnlock(mock)

	err := repo.EnsureSchema(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_LockHeldAndTablesAlreadyExist(t *testing.T) {
	repo, mock := newMockRepository(t)

	expectTryLock(mock, false)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	// No creation and no unlock: this process never held the lock.
	err := repo.EnsureSchema(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_LockHeldAndTablesAbsent_BlocksThenCreates(t *testing.T) {
	repo, mock := newMockRepository(t)

	expectTryLock(mock, false)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("pg_advisory_lock").
		WithArgs(int64(schemaLockID)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectCreateTables(mock)
	expectUnlock(mock)

	err := repo.EnsureSchema(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_DuplicateTableConflictIsBenign(t *testing.T) {
	repo, mock := newMockRepository(t)

	expectTryLock(mock, true)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS weather_data").
		WillReturnError(&pq.Error{Code: "42P07", Message: `relation "weather_data" already exists`})
	mock.ExpectRollback()
	expectUnlock(mock)

	err := repo.EnsureSchema(context.Background())
	require.NoError(t, err, "duplicate-table races are resolved by the other process and swallowed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_OtherErrorsPropagateAndStillUnlock(t *testing.T) {
	repo, mock := newMockRepository(t)

	expectTryLock(mock, true)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS weather_data").
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()
	expectUnlock(mock)

	err := repo.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create table")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsBenignConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"duplicate table sqlstate", &pq.Error{Code: "42P07"}, true},
		{"duplicate object sqlstate", &pq.Error{Code: "42710"}, true},
		{"unique violation sqlstate", &pq.Error{Code: "23505"}, true},
		{"already exists by message", errors.New(`type "foo" already exists`), true},
		{"duplicate key by message", errors.New(`duplicate key value violates unique constraint "weather_data_pkey"`), true},
		{"unrelated pq error", &pq.Error{Code: "53300", Message: "too many connections"}, false},
		{"unrelated error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isBenignConflict(tt.err))
		})
	}
}
