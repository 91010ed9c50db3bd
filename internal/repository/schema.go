package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"crop-weather-platform/pkg/logging"
)

// schemaLockID is the advisory lock key shared by every process that
// may initialize the schema. Arbitrary but fixed.
const schemaLockID = 123456

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS weather_data (
		record_date        DATE        NOT NULL,
		max_temp           NUMERIC,
		min_temp           NUMERIC,
		precipitation      NUMERIC,
		weather_station    CHAR(11)    NOT NULL,
		PRIMARY KEY (record_date, weather_station)
	)`,
	`CREATE TABLE IF NOT EXISTS yield_data (
		record_year   SMALLINT    NOT NULL,
		total_yield   INTEGER     NOT NULL,
		PRIMARY KEY (record_year)
	)`,
	`CREATE TABLE IF NOT EXISTS weather_logs (
		start_time        TIMESTAMP    NOT NULL,
		end_time          TIMESTAMP    NOT NULL,
		records           INTEGER      NOT NULL,
		weather_station   CHAR(11)     NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS weather_stats (
		weather_station      CHAR(11)   NOT NULL,
		record_year          SMALLINT   NOT NULL,
		avg_min_temp         NUMERIC,
		avg_max_temp         NUMERIC,
		avg_precipitation    NUMERIC,
		PRIMARY KEY (record_year, weather_station)
	)`,
}

// EnsureSchema creates the four persisted tables if absent. Safe when
// invoked concurrently by independent processes sharing one store: a
// store-wide advisory lock serializes creation, and duplicate-object
// errors from the loser of a race are swallowed as benign.
//
// Advisory locks are session-scoped, so the whole sequence runs on one
// dedicated connection.
func (r *weatherRepository) EnsureSchema(ctx context.Context) error {
	conn, err := r.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var acquired bool
	if err := sqlx.GetContext(ctx, conn, &acquired, "SELECT pg_try_advisory_lock($1)", schemaLockID); err != nil {
		return fmt.Errorf("failed to acquire schema lock: %w", err)
	}

	if !acquired {
		// Another process is initializing. Give it a moment, then
		// check whether it already finished.
		r.metrics.SchemaLockWaitsTotal.Inc()
		r.clock.Sleep(r.schemaRetryDelay)

		var exists bool
		err := sqlx.GetContext(ctx, conn, &exists, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public'
				AND table_name = 'weather_data'
			)`)
		if err != nil {
			return fmt.Errorf("failed to check table existence: %w", err)
		}

		if exists {
			r.logger.Info(ctx, "[SCHEMA_SKIP] Tables already initialized by another process", logging.Fields{})
			return nil
		}

		// Tables still absent: wait for the holder. Intentionally
		// unbounded at this layer; callers may bound it via ctx.
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", schemaLockID); err != nil {
			return fmt.Errorf("failed to wait for schema lock: %w", err)
		}
	}

	// Lock held from here on: release on every exit path.
	defer func() {
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", schemaLockID); err != nil {
			r.logger.Error(ctx, "[SCHEMA_UNLOCK_ERROR] Failed to release schema lock", logging.Fields{
				"lock_id": schemaLockID,
			}, err)
		}
	}()

	return r.createTables(ctx, conn)
}

// createTables runs all creation statements in one transaction
func (r *weatherRepository) createTables(ctx context.Context, conn *sqlx.Conn) error {
	r.logger.Info(ctx, "[SCHEMA_CREATE] Creating tables", logging.Fields{
		"table_count": len(schemaStatements),
	})

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			if isBenignConflict(err) {
				// Another process finished creation between our lock
				// acquisition attempts.
				r.logger.Warn(ctx, "[SCHEMA_CONFLICT] Table initialization conflict resolved by another process", logging.Fields{
					"cause": err.Error(),
				})
				return nil
			}
			r.metrics.RecordDBError("schema_create_error")
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isBenignConflict(err) {
			r.logger.Warn(ctx, "[SCHEMA_CONFLICT] Schema commit conflict resolved by another process", logging.Fields{
				"cause": err.Error(),
			})
			return nil
		}
		r.metrics.RecordDBError("schema_commit_error")
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}

	r.logger.Info(ctx, "[SCHEMA_READY] Schema initialized", logging.Fields{})
	return nil
}

// DropSchema removes all four tables. Admin tooling only.
func (r *weatherRepository) DropSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "drop_schema",
		"DROP TABLE IF EXISTS weather_stats, weather_logs, yield_data, weather_data")
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}
