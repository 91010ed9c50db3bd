package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"

	"crop-weather-platform/internal/models"
	"crop-weather-platform/pkg/database"
	"crop-weather-platform/pkg/logging"
	"crop-weather-platform/pkg/metrics"
)

// WeatherRepository provides data access for the ingestion pipeline
// and the read API
type WeatherRepository interface {
	// Schema initialization, safe under concurrent process startup
	EnsureSchema(ctx context.Context) error

	// Bulk writes with conflict-skip semantics
	InsertObservations(ctx context.Context, observations []*models.Observation) (*InsertResult, error)
	InsertYieldRecords(ctx context.Context, records []*models.YieldRecord) (*InsertResult, error)
	InsertLogEntries(ctx context.Context, entries []*models.IngestionLogEntry) error

	// Aggregation
	RecomputeAnnualStats(ctx context.Context) error

	// Read operations; failures degrade to empty results
	GetObservations(ctx context.Context, filter ObservationFilter) []*models.ObservationRecord
	GetAnnualStats(ctx context.Context, filter StatsFilter) []*models.AnnualStatRecord
	GetYield(ctx context.Context, filter YieldFilter) []*models.YieldRecord

	// Utility operations
	DropSchema(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

// InsertResult reports the outcome of one bulk insert
type InsertResult struct {
	Attempted int
	Inserted  int
	Skipped   int
}

// ObservationFilter defines filters for querying observations
type ObservationFilter struct {
	StationID *string
	Date      *time.Time
	Page      int
	PageSize  int
}

// StatsFilter defines filters for querying annual statistics
type StatsFilter struct {
	StationID *string
	Year      *int
	Page      int
	PageSize  int
}

// YieldFilter defines filters for querying yield records
type YieldFilter struct {
	Year     *int
	Page     int
	PageSize int
}

// weatherRepository implements WeatherRepository
type weatherRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	clock   clockwork.Clock

	// Delay before re-checking table existence when another process
	// holds the schema lock. Overridden in tests.
	schemaRetryDelay time.Duration
}

// NewWeatherRepository creates a new weather repository
func NewWeatherRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) WeatherRepository {
	return &weatherRepository{
		db:               db,
		logger:           logger,
		metrics:          metricsCollector,
		clock:            clockwork.NewRealClock(),
		schemaRetryDelay: 500 * time.Millisecond,
	}
}

// isBenignConflict reports whether a creation or insert error is a
// duplicate-object conflict left behind by a concurrent process.
// Classified by SQLSTATE when the driver exposes it, by message
// otherwise.
func isBenignConflict(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P07", // duplicate_table
			"42710", // duplicate_object
			"23505": // unique_violation
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
