package repository

import (
	"context"
	"fmt"
	"time"

	"crop-weather-platform/internal/models"
	"crop-weather-platform/pkg/logging"
)

// insertChunkSize bounds the number of rows expanded into a single
// INSERT statement. All chunks of one call share one transaction, so
// the batch still commits or rolls back as a whole.
const insertChunkSize = 1000

const insertObservationsQuery = `
	INSERT INTO weather_data (record_date, max_temp, min_temp, precipitation, weather_station)
	VALUES (:record_date, :max_temp, :min_temp, :precipitation, :weather_station)
	ON CONFLICT (record_date, weather_station) DO NOTHING`

const insertYieldQuery = `
	INSERT INTO yield_data (record_year, total_yield)
	VALUES (:record_year, :total_yield)
	ON CONFLICT (record_year) DO NOTHING`

const insertLogsQuery = `
	INSERT INTO weather_logs (start_time, end_time, records, weather_station)
	VALUES (:start_time, :end_time, :records, :weather_station)`

// InsertObservations writes a batch of observations, silently skipping
// rows whose (record_date, weather_station) key already exists
func (r *weatherRepository) InsertObservations(ctx context.Context, observations []*models.Observation) (*InsertResult, error) {
	return insertSkipDuplicates(ctx, r, "weather_data", insertObservationsQuery, observations)
}

// InsertYieldRecords writes a batch of yield records, silently
// skipping rows whose year already exists
func (r *weatherRepository) InsertYieldRecords(ctx context.Context, records []*models.YieldRecord) (*InsertResult, error) {
	return insertSkipDuplicates(ctx, r, "yield_data", insertYieldQuery, records)
}

// InsertLogEntries appends ingestion log rows. Logs have no key and
// bypass duplicate checking entirely.
func (r *weatherRepository) InsertLogEntries(ctx context.Context, entries []*models.IngestionLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	_, err := r.db.DB().NamedExecContext(ctx, insertLogsQuery, entries)
	if err != nil {
		r.metrics.RecordDBError("insert_error")
		r.logger.Error(ctx, "[REPO_INSERT_LOGS_ERROR] Failed to insert ingestion logs", logging.Fields{
			"count": len(entries),
		}, err)
		return fmt.Errorf("failed to insert into weather_logs: %w", err)
	}

	return nil
}

// insertSkipDuplicates performs a conflict-skip bulk insert in one
// transaction and reports attempted, inserted and skipped counts.
// A failure rolls back the whole batch.
func insertSkipDuplicates[T any](ctx context.Context, r *weatherRepository, table, query string, rows []T) (*InsertResult, error) {
	result := &InsertResult{Attempted: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	timer := time.Now()
	r.metrics.IngestionBatchSize.Observe(float64(len(rows)))

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	inserted := 0
	countsKnown := true

	for start := 0; start < len(rows); start += insertChunkSize {
		end := min(start+insertChunkSize, len(rows))

		res, err := tx.NamedExecContext(ctx, query, rows[start:end])
		if err != nil {
			r.metrics.RecordDBError("insert_error")
			return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
		}

		if n, affErr := res.RowsAffected(); affErr == nil && n >= 0 {
			inserted += int(n)
		} else {
			countsKnown = false
		}
	}

	if err := tx.Commit(); err != nil {
		r.metrics.RecordDBError("transaction_commit_error")
		return nil, fmt.Errorf("failed to commit insert into %s: %w", table, err)
	}

	if countsKnown {
		result.Inserted = inserted
		// Floored at zero: the write count can disagree with the
		// attempted count on backends that report it unreliably.
		if skipped := result.Attempted - inserted; skipped > 0 {
			result.Skipped = skipped
		}
	} else {
		result.Inserted = result.Attempted
	}

	r.metrics.RecordInsert(table, result.Inserted, result.Skipped)
	r.logger.Info(ctx, "[REPO_BULK_INSERT] Batch insert completed", logging.Fields{
		"table":       table,
		"attempted":   result.Attempted,
		"inserted":    result.Inserted,
		"skipped":     result.Skipped,
		"duration_ms": time.Since(timer).Milliseconds(),
	})

	return result, nil
}
