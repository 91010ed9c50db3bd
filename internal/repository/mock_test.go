package repository

import (
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"crop-weather-platform/pkg/database"
	"crop-weather-platform/pkg/logging"
	"crop-weather-platform/pkg/metrics"
)

// One collector per test binary: prometheus collectors register
// globally and re-registration panics.
var testMetrics = metrics.NewCollector("repository_test")

func newTestLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("repository-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}

// newMockRepository builds a repository over a sqlmock-backed
// connection with a short schema retry delay
func newMockRepository(t *testing.T) (*weatherRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := newTestLogger()
	wrapped := database.Wrap(sqlx.NewDb(db, "postgres"), logger, testMetrics)

	repo := &weatherRepository{
		db:               wrapped,
		logger:           logger,
		metrics:          testMetrics,
		clock:            clockwork.NewRealClock(),
		schemaRetryDelay: time.Millisecond,
	}

	return repo, mock
}
