package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crop-weather-platform/internal/models"
)

func tenths(v int64) *int64 {
	return &v
}

func sampleObservations(n int) []*models.Observation {
	observations := make([]*models.Observation, 0, n)
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		observations = append(observations, &models.Observation{
			RecordDate:    base.AddDate(0, 0, i),
			MaxTemp:       tenths(250),
			MinTemp:       tenths(150),
			Precipitation: tenths(100),
			StationID:     "USC00110072",
		})
	}
	return observations
}

func TestInsertObservations_AllInserted(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO weather_data").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	result, err := repo.InsertObservations(context.Background(), sampleObservations(3))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 0, result.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertObservations_DuplicatesSkipped(t *testing.T) {
	repo, mock := newMockRepository(t)

	// Conflict-skip insert: the backend reports only the rows it
	// actually wrote.
	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(record_date, weather_station\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.InsertObservations(context.Background(), sampleObservations(3))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 2, result.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertObservations_EmptyBatchIsNoOp(t *testing.T) {
	repo, mock := newMockRepository(t)

	result, err := repo.InsertObservations(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, &InsertResult{}, result)
	require.NoError(t, mock.ExpectationsWereMet(), "empty batch must not touch the store")
}

func TestInsertObservations_FailureRollsBackWholeBatch(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO weather_data").
		WillReturnError(errors.New("out of disk"))
	mock.ExpectRollback()

	result, err := repo.InsertObservations(context.Background(), sampleObservations(2))
	require.Error(t, err)
	assert.Nil(t, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertObservations_ChunksShareOneTransaction(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO weather_data").
		WillReturnResult(sqlmock.NewResult(0, int64(insertChunkSize)))
	mock.ExpectExec("INSERT INTO weather_data").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	result, err := repo.InsertObservations(context.Background(), sampleObservations(insertChunkSize+5))
	require.NoError(t, err)
	assert.Equal(t, insertChunkSize+5, result.Inserted)
	assert.Equal(t, 0, result.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertObservations_UnknownWriteCountFloorsSkipped(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO weather_data").
		WillReturnResult(sqlmock.NewResult(0, -1))
	mock.ExpectCommit()

	result, err := repo.InsertObservations(context.Background(), sampleObservations(4))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Inserted)
	assert.Equal(t, 0, result.Skipped, "skipped count floors at zero when the write count is unavailable")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertYieldRecords_ConflictSkipOnYear(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(record_year\\) DO NOTHING").
		WithArgs(1985, int64(225447), 1986, int64(208944)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	result, err := repo.InsertYieldRecords(context.Background(), []*models.YieldRecord{
		{Year: 1985, TotalYield: 225447},
		{Year: 1986, TotalYield: 208944},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLogEntries_NoConflictClause(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := []*models.IngestionLogEntry{
		{StartTime: now, EndTime: now.Add(time.Second), Records: 100, StationID: "USC00110072"},
	}

	mock.ExpectExec("INSERT INTO weather_logs").
		WithArgs(now, now.Add(time.Second), 100, "USC00110072").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.InsertLogEntries(context.Background(), entries))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLogEntries_EmptyIsNoOp(t *testing.T) {
	repo, mock := newMockRepository(t)

	require.NoError(t, repo.InsertLogEntries(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLogsQueryHasNoConflictHandling(t *testing.T) {
	assert.NotContains(t, insertLogsQuery, "ON CONFLICT")
}

func TestRecomputeAnnualStats(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`SUM\(precipitation\) AS avg_precipitation`).
		WillReturnResult(sqlmock.NewResult(0, 12))

	require.NoError(t, repo.RecomputeAnnualStats(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeAnnualStatsQueryShape(t *testing.T) {
	// Temperatures are averaged, precipitation is summed into the
	// avg_precipitation column, and all-null groups are excluded.
	assert.Contains(t, recomputeStatsQuery, "AVG(max_temp)")
	assert.Contains(t, recomputeStatsQuery, "AVG(min_temp)")
	assert.Contains(t, recomputeStatsQuery, "SUM(precipitation) AS avg_precipitation")
	assert.Contains(t, recomputeStatsQuery, "WHERE max_temp IS NOT NULL OR min_temp IS NOT NULL OR precipitation IS NOT NULL")
	assert.Contains(t, recomputeStatsQuery, "ON CONFLICT (record_year, weather_station)")
	assert.Contains(t, recomputeStatsQuery, "DO UPDATE SET")
}

func TestRecomputeAnnualStats_Error(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("INSERT INTO weather_stats").
		WillReturnError(errors.New("deadlock detected"))

	err := repo.RecomputeAnnualStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to recompute annual stats")
	require.NoError(t, mock.ExpectationsWereMet())
}
