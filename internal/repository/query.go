package repository

import (
	"context"
	"fmt"

	"crop-weather-platform/internal/models"
	"crop-weather-platform/pkg/logging"
)

// Default page sizes per read operation
const (
	DefaultObservationsPageSize = 1000
	DefaultStatsPageSize        = 500
	DefaultYieldPageSize        = 5
)

// GetObservations retrieves observations with optional equality
// filters and 1-indexed pagination. Temperatures are returned in
// degrees Celsius and precipitation in centimeters; the division out
// of tenths-scale happens here and nowhere else. Store failures
// degrade to an empty result.
func (r *weatherRepository) GetObservations(ctx context.Context, filter ObservationFilter) []*models.ObservationRecord {
	query := `
		SELECT record_date,
		       max_temp / 10.0 AS max_temp,
		       min_temp / 10.0 AS min_temp,
		       precipitation / 100.0 AS precipitation,
		       weather_station
		FROM weather_data
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.StationID != nil {
		query += fmt.Sprintf(" AND weather_station = $%d", argNum)
		args = append(args, *filter.StationID)
		argNum++
	}

	if filter.Date != nil {
		query += fmt.Sprintf(" AND record_date = $%d", argNum)
		args = append(args, *filter.Date)
		argNum++
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize, DefaultObservationsPageSize)
	query += fmt.Sprintf(" ORDER BY record_date, weather_station LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, pageSize, (page-1)*pageSize)

	records := []*models.ObservationRecord{}
	if err := r.db.SelectContext(ctx, "get_observations", &records, query, args...); err != nil {
		r.logger.Warn(ctx, "[REPO_GET_OBSERVATIONS] Read failed, returning empty result", logging.Fields{
			"cause": err.Error(),
		})
		return []*models.ObservationRecord{}
	}

	return records
}

// GetAnnualStats retrieves per-station annual statistics with unit
// conversion at the boundary. Store failures degrade to an empty
// result.
func (r *weatherRepository) GetAnnualStats(ctx context.Context, filter StatsFilter) []*models.AnnualStatRecord {
	query := `
		SELECT weather_station, record_year,
		       avg_min_temp / 10.0 AS avg_min_temp,
		       avg_max_temp / 10.0 AS avg_max_temp,
		       avg_precipitation / 100.0 AS avg_precipitation
		FROM weather_stats
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.StationID != nil {
		query += fmt.Sprintf(" AND weather_station = $%d", argNum)
		args = append(args, *filter.StationID)
		argNum++
	}

	if filter.Year != nil {
		query += fmt.Sprintf(" AND record_year = $%d", argNum)
		args = append(args, *filter.Year)
		argNum++
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize, DefaultStatsPageSize)
	query += fmt.Sprintf(" ORDER BY record_year, weather_station LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, pageSize, (page-1)*pageSize)

	records := []*models.AnnualStatRecord{}
	if err := r.db.SelectContext(ctx, "get_annual_stats", &records, query, args...); err != nil {
		r.logger.Warn(ctx, "[REPO_GET_STATS] Read failed, returning empty result", logging.Fields{
			"cause": err.Error(),
		})
		return []*models.AnnualStatRecord{}
	}

	return records
}

// GetYield retrieves annual yield records. Store failures degrade to
// an empty result.
func (r *weatherRepository) GetYield(ctx context.Context, filter YieldFilter) []*models.YieldRecord {
	query := "SELECT record_year, total_yield FROM yield_data WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.Year != nil {
		query += fmt.Sprintf(" AND record_year = $%d", argNum)
		args = append(args, *filter.Year)
		argNum++
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize, DefaultYieldPageSize)
	query += fmt.Sprintf(" ORDER BY record_year LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, pageSize, (page-1)*pageSize)

	records := []*models.YieldRecord{}
	if err := r.db.SelectContext(ctx, "get_yield", &records, query, args...); err != nil {
		r.logger.Warn(ctx, "[REPO_GET_YIELD] Read failed, returning empty result", logging.Fields{
			"cause": err.Error(),
		})
		return []*models.YieldRecord{}
	}

	return records
}

// HealthCheck performs a repository health check
func (r *weatherRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// normalizePage clamps the page to 1-indexed and applies the
// per-operation default page size
func normalizePage(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	return page, pageSize
}
