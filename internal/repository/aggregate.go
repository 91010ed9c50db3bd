package repository

import (
	"context"
	"fmt"
	"time"

	"crop-weather-platform/pkg/logging"
)

// recomputeStatsQuery rebuilds every per-station annual aggregate in a
// single set-based statement. NULL measurements are ignored by the
// aggregates; groups where every measurement is NULL across the year
// are excluded entirely. Existing rows are overwritten for their
// (record_year, weather_station) key.
//
// avg_precipitation intentionally stores a SUM: the column carries the
// year's accumulated precipitation, not an average.
const recomputeStatsQuery = `
	INSERT INTO weather_stats (weather_station, record_year, avg_max_temp, avg_min_temp, avg_precipitation)
	SELECT
		weather_station,
		EXTRACT(YEAR FROM record_date)::SMALLINT AS record_year,
		AVG(max_temp) AS avg_max_temp,
		AVG(min_temp) AS avg_min_temp,
		SUM(precipitation) AS avg_precipitation
	FROM weather_data
	WHERE max_temp IS NOT NULL OR min_temp IS NOT NULL OR precipitation IS NOT NULL
	GROUP BY weather_station, EXTRACT(YEAR FROM record_date)
	ON CONFLICT (record_year, weather_station)
	DO UPDATE SET
		avg_max_temp = EXCLUDED.avg_max_temp,
		avg_min_temp = EXCLUDED.avg_min_temp,
		avg_precipitation = EXCLUDED.avg_precipitation`

// RecomputeAnnualStats recalculates annual statistics for every
// station and year from the raw observations. Idempotent; safe to
// re-run at any time.
func (r *weatherRepository) RecomputeAnnualStats(ctx context.Context) error {
	timer := time.Now()
	defer func() {
		r.metrics.StatsCalculationDuration.Observe(time.Since(timer).Seconds())
	}()

	res, err := r.db.ExecContext(ctx, "recompute_annual_stats", recomputeStatsQuery)
	if err != nil {
		return fmt.Errorf("failed to recompute annual stats: %w", err)
	}

	rows := int64(0)
	if n, affErr := res.RowsAffected(); affErr == nil {
		rows = n
		r.metrics.StatsRowsUpserted.Add(float64(n))
	}

	r.logger.Info(ctx, "[REPO_STATS_RECOMPUTE] Annual statistics recomputed", logging.Fields{
		"rows_written": rows,
		"duration_ms":  time.Since(timer).Milliseconds(),
	})

	return nil
}
