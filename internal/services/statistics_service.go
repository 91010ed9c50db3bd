package services

import (
	"context"
	"time"

	"crop-weather-platform/internal/models"
	"crop-weather-platform/internal/repository"
	"crop-weather-platform/pkg/logging"
	"crop-weather-platform/pkg/metrics"
)

// StatisticsService handles annual statistics recomputation and reads
type StatisticsService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// RecomputeAnnualStats rebuilds all per-station annual statistics from
// the raw observations. Safe to re-run at any time.
func (s *StatisticsService) RecomputeAnnualStats(ctx context.Context) error {
	startTime := time.Now()

	s.logger.Info(ctx, "[STATS_RECOMPUTE_START] Starting statistics recomputation", logging.Fields{})

	if err := s.repo.RecomputeAnnualStats(ctx); err != nil {
		s.logger.Error(ctx, "[STATS_RECOMPUTE_ERROR] Statistics recomputation failed", logging.Fields{
			"duration_seconds": time.Since(startTime).Seconds(),
		}, err)
		return err
	}

	s.logger.Info(ctx, "[STATS_RECOMPUTE_COMPLETE] Statistics recomputation completed", logging.Fields{
		"duration_seconds": time.Since(startTime).Seconds(),
	})

	return nil
}

// GetAnnualStats retrieves statistics with filtering and pagination
func (s *StatisticsService) GetAnnualStats(ctx context.Context, filter repository.StatsFilter) []*models.AnnualStatRecord {
	return s.repo.GetAnnualStats(ctx, filter)
}
