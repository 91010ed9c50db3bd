package services

import (
	"context"

	"crop-weather-platform/internal/models"
	"crop-weather-platform/internal/repository"
	"crop-weather-platform/pkg/logging"
	"crop-weather-platform/pkg/metrics"
)

// WeatherService handles read access to observations and yield data
type WeatherService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherService creates a new weather service
func NewWeatherService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *WeatherService {
	return &WeatherService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// GetObservations retrieves observations with filtering and pagination
func (s *WeatherService) GetObservations(ctx context.Context, filter repository.ObservationFilter) []*models.ObservationRecord {
	return s.repo.GetObservations(ctx, filter)
}

// GetYield retrieves yield records with filtering and pagination
func (s *WeatherService) GetYield(ctx context.Context, filter repository.YieldFilter) []*models.YieldRecord {
	return s.repo.GetYield(ctx, filter)
}

// HealthCheck verifies the store is reachable
func (s *WeatherService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
