package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetObservations_ConvertsUnitsAtTheBoundary(t *testing.T) {
	repo, mock := newMockRepository(t)

	date := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"record_date", "max_temp", "min_temp", "precipitation", "weather_station"}).
		AddRow(date, 25.0, 15.0, 10.0, "USC00110072").
		AddRow(date.AddDate(0, 0, 1), nil, 14.0, nil, "USC00110072")

	mock.ExpectQuery(`(?s)max_temp / 10.0.*precipitation / 100.0`).
		WithArgs(DefaultObservationsPageSize, 0).
		WillReturnRows(rows)

	records := repo.GetObservations(context.Background(), ObservationFilter{})
	require.Len(t, records, 2)

	require.NotNil(t, records[0].MaxTemp)
	assert.Equal(t, 25.0, *records[0].MaxTemp)
	require.NotNil(t, records[0].Precipitation)
	assert.Equal(t, 10.0, *records[0].Precipitation)

	assert.Nil(t, records[1].MaxTemp)
	assert.Nil(t, records[1].Precipitation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetObservations_FiltersAndPagination(t *testing.T) {
	repo, mock := newMockRepository(t)

	station := "USC00110072"
	date := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("(?s)FROM weather_data.*ORDER BY record_date, weather_station").
		WithArgs(station, date, 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"record_date", "max_temp", "min_temp", "precipitation", "weather_station"}))

	records := repo.GetObservations(context.Background(), ObservationFilter{
		StationID: &station,
		Date:      &date,
		Page:      2,
		PageSize:  10,
	})
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetObservations_StoreErrorDegradesToEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM weather_data").
		WillReturnError(errors.New("server closed the connection unexpectedly"))

	records := repo.GetObservations(context.Background(), ObservationFilter{Page: 1, PageSize: 10})
	assert.NotNil(t, records)
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAnnualStats_FiltersAndConversion(t *testing.T) {
	repo, mock := newMockRepository(t)

	station := "USC00110072"
	year := 2020
	rows := sqlmock.NewRows([]string{"weather_station", "record_year", "avg_min_temp", "avg_max_temp", "avg_precipitation"}).
		AddRow("USC00110072", 2020, 5.5, 15.0, 42.0)

	mock.ExpectQuery("(?s)FROM weather_stats.*ORDER BY record_year, weather_station").
		WithArgs(station, year, DefaultStatsPageSize, 0).
		WillReturnRows(rows)

	records := repo.GetAnnualStats(context.Background(), StatsFilter{
		StationID: &station,
		Year:      &year,
	})
	require.Len(t, records, 1)
	assert.Equal(t, 2020, records[0].Year)
	require.NotNil(t, records[0].AvgMaxTemp)
	assert.Equal(t, 15.0, *records[0].AvgMaxTemp)
	require.NotNil(t, records[0].AvgPrecipitation)
	assert.Equal(t, 42.0, *records[0].AvgPrecipitation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAnnualStats_StoreErrorDegradesToEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM weather_stats").
		WillReturnError(errors.New("relation does not exist"))

	records := repo.GetAnnualStats(context.Background(), StatsFilter{})
	assert.NotNil(t, records)
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetYield(t *testing.T) {
	repo, mock := newMockRepository(t)

	year := 1985
	rows := sqlmock.NewRows([]string{"record_year", "total_yield"}).
		AddRow(1985, int64(225447))

	mock.ExpectQuery("(?s)FROM yield_data.*ORDER BY record_year").
		WithArgs(year, DefaultYieldPageSize, 0).
		WillReturnRows(rows)

	records := repo.GetYield(context.Background(), YieldFilter{Year: &year})
	require.Len(t, records, 1)
	assert.Equal(t, 1985, records[0].Year)
	assert.Equal(t, int64(225447), records[0].TotalYield)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetYield_StoreErrorDegradesToEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM yield_data").
		WillReturnError(errors.New("canceling statement due to user request"))

	records := repo.GetYield(context.Background(), YieldFilter{})
	assert.NotNil(t, records)
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name         string
		page, size   int
		defaultSize  int
		wantPage     int
		wantPageSize int
	}{
		{"valid", 3, 50, 1000, 3, 50},
		{"zero page clamps to first", 0, 50, 1000, 1, 50},
		{"negative page clamps to first", -2, 50, 1000, 1, 50},
		{"zero size takes default", 1, 0, 500, 1, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size := normalizePage(tt.page, tt.size, tt.defaultSize)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPageSize, size)
		})
	}
}
