package services

import (
	"context"
	"time"

	"crop-weather-platform/internal/parser"
	"crop-weather-platform/internal/repository"
	"crop-weather-platform/pkg/logging"
	"crop-weather-platform/pkg/metrics"
)

// IngestionService orchestrates the ingestion pipeline: parse, bulk
// upsert, log write, then aggregate recomputation for weather sources.
// Each invocation is strictly sequential; the first failing stage
// short-circuits the rest. No automatic retry.
type IngestionService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains timing and record counts for one run
type IngestionResult struct {
	Source       string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Files        int
	TotalRecords int
	Inserted     int
	Skipped      int
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestWeatherDirectory runs the full weather pipeline for one
// directory of station files: parse every file, bulk upsert the
// observations, append the per-file ingestion logs, then recompute
// annual statistics. Re-running over the same files is idempotent for
// observations; log entries are appended on every run.
func (s *IngestionService) IngestWeatherDirectory(ctx context.Context, dataDir string) (*IngestionResult, error) {
	result := &IngestionResult{
		Source:    "weather",
		StartTime: time.Now().UTC(),
	}
	defer s.finish(ctx, result)

	s.logger.Info(ctx, "[INGEST_WEATHER_START] Starting weather data ingestion", logging.Fields{
		"data_dir": dataDir,
	})

	observations, logs, err := parser.ParseStationDir(dataDir)
	if err != nil {
		s.metrics.RecordIngestionError("parse_error")
		s.logger.Error(ctx, "[INGEST_WEATHER_PARSE_ERROR] Failed to parse station files", logging.Fields{
			"data_dir": dataDir,
		}, err)
		return result, err
	}

	result.Files = len(logs)
	result.TotalRecords = len(observations)

	insertResult, err := s.repo.InsertObservations(ctx, observations)
	if err != nil {
		s.metrics.RecordIngestionError("store_error")
		s.logger.Error(ctx, "[INGEST_WEATHER_STORE_ERROR] Failed to insert observations", logging.Fields{
			"record_count": len(observations),
		}, err)
		return result, err
	}

	result.Inserted = insertResult.Inserted
	result.Skipped = insertResult.Skipped

	if err := s.repo.InsertLogEntries(ctx, logs); err != nil {
		s.metrics.RecordIngestionError("store_error")
		s.logger.Error(ctx, "[INGEST_WEATHER_LOG_ERROR] Failed to insert ingestion logs", logging.Fields{
			"log_count": len(logs),
		}, err)
		return result, err
	}

	// Aggregates are recomputed only after a successful weather load.
	if err := s.repo.RecomputeAnnualStats(ctx); err != nil {
		s.metrics.RecordIngestionError("stats_error")
		s.logger.Error(ctx, "[INGEST_WEATHER_STATS_ERROR] Failed to recompute annual stats", logging.Fields{}, err)
		return result, err
	}

	return result, nil
}

// IngestYieldFile ingests one annual crop-yield file. Independent of
// weather ingestion; does not touch aggregates or logs.
func (s *IngestionService) IngestYieldFile(ctx context.Context, filePath string) (*IngestionResult, error) {
	result := &IngestionResult{
		Source:    "yield",
		StartTime: time.Now().UTC(),
	}
	defer s.finish(ctx, result)

	s.logger.Info(ctx, "[INGEST_YIELD_START] Starting yield data ingestion", logging.Fields{
		"file_path": filePath,
	})

	records, err := parser.ParseYieldFile(filePath)
	if err != nil {
		s.metrics.RecordIngestionError("parse_error")
		s.logger.Error(ctx, "[INGEST_YIELD_PARSE_ERROR] Failed to parse yield file", logging.Fields{
			"file_path": filePath,
		}, err)
		return result, err
	}

	result.Files = 1
	result.TotalRecords = len(records)

	insertResult, err := s.repo.InsertYieldRecords(ctx, records)
	if err != nil {
		s.metrics.RecordIngestionError("store_error")
		s.logger.Error(ctx, "[INGEST_YIELD_STORE_ERROR] Failed to insert yield records", logging.Fields{
			"record_count": len(records),
		}, err)
		return result, err
	}

	result.Inserted = insertResult.Inserted
	result.Skipped = insertResult.Skipped

	return result, nil
}

// finish stamps timing metadata and emits the run summary
func (s *IngestionService) finish(ctx context.Context, result *IngestionResult) {
	result.EndTime = time.Now().UTC()
	result.Duration = result.EndTime.Sub(result.StartTime)
	s.metrics.IngestionDuration.WithLabelValues(result.Source).Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Ingestion run finished", logging.Fields{
		"source":           result.Source,
		"files":            result.Files,
		"total_records":    result.TotalRecords,
		"inserted":         result.Inserted,
		"skipped":          result.Skipped,
		"duration_seconds": result.Duration.Seconds(),
	})
}
