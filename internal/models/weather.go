package models

import (
	"time"
)

// MissingValue is the sentinel used for absent measurements in raw
// station files. It is translated to NULL at the parse boundary and
// must never reach the store.
const MissingValue = -9999

// Observation is a single daily station record as persisted.
// Temperatures are stored in tenths of a degree Celsius and
// precipitation in tenths of a millimeter; conversion to human units
// happens only at the query boundary. Absent measurements are nil.
type Observation struct {
	RecordDate    time.Time `db:"record_date"`
	MaxTemp       *int64    `db:"max_temp"`
	MinTemp       *int64    `db:"min_temp"`
	Precipitation *int64    `db:"precipitation"`
	StationID     string    `db:"weather_station"`
}

// YieldRecord is one annual crop-yield value
type YieldRecord struct {
	Year       int   `db:"record_year" json:"record_year"`
	TotalYield int64 `db:"total_yield" json:"total_yield"`
}

// IngestionLogEntry records one station's load during an ingestion run.
// Entries are append-only: never deduplicated, never updated.
type IngestionLogEntry struct {
	StartTime time.Time `db:"start_time"`
	EndTime   time.Time `db:"end_time"`
	Records   int       `db:"records"`
	StationID string    `db:"weather_station"`
}

// ObservationRecord is the read-side shape of an observation with
// temperatures in degrees Celsius and precipitation in centimeters.
type ObservationRecord struct {
	RecordDate    time.Time `db:"record_date" json:"record_date"`
	MaxTemp       *float64  `db:"max_temp" json:"max_temp"`
	MinTemp       *float64  `db:"min_temp" json:"min_temp"`
	Precipitation *float64  `db:"precipitation" json:"precipitation"`
	StationID     string    `db:"weather_station" json:"weather_station"`
}

// AnnualStatRecord is the read-side shape of a per-station yearly
// aggregate in human units. AvgPrecipitation carries the column name
// of the store but holds the year's precipitation total, not an
// average.
type AnnualStatRecord struct {
	StationID        string   `db:"weather_station" json:"weather_station"`
	Year             int      `db:"record_year" json:"record_year"`
	AvgMinTemp       *float64 `db:"avg_min_temp" json:"avg_min_temp"`
	AvgMaxTemp       *float64 `db:"avg_max_temp" json:"avg_max_temp"`
	AvgPrecipitation *float64 `db:"avg_precipitation" json:"avg_precipitation"`
}

// RawStationRecord is a single parsed line of a station file before
// normalization. Measurement fields still carry the -9999 sentinel.
type RawStationRecord struct {
	Date          string
	MaxTemp       int64
	MinTemp       int64
	Precipitation int64
}

// ToObservation normalizes a raw record: strict YYYYMMDD date parsing
// and sentinel-to-nil translation. Values stay tenths-scaled.
func (r *RawStationRecord) ToObservation(stationID string) (*Observation, error) {
	date, err := time.Parse("20060102", r.Date)
	if err != nil {
		return nil, &ValidationError{
			Field:   "record_date",
			Value:   r.Date,
			Message: "invalid date format, expected YYYYMMDD",
		}
	}

	obs := &Observation{
		RecordDate: date,
		StationID:  stationID,
	}

	if r.MaxTemp != MissingValue {
		v := r.MaxTemp
		obs.MaxTemp = &v
	}
	if r.MinTemp != MissingValue {
		v := r.MinTemp
		obs.MinTemp = &v
	}
	if r.Precipitation != MissingValue {
		v := r.Precipitation
		obs.Precipitation = &v
	}

	return obs, nil
}

// ValidationError represents a data validation failure in an input file
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
