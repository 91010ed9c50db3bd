package parser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"crop-weather-platform/internal/models"
)

// Station files are tab-delimited with no header:
// record_date(YYYYMMDD) max_temp min_temp precipitation
// all measurements tenths-scaled, -9999 meaning missing. The station
// identifier is the file's base name.
//
// Yield files are tab-delimited with no header: record_year total_yield.

// ParseStationFile reads one station file into normalized observations
// plus the per-file log tuple. Any malformed line fails the whole file:
// a partially parsed file must never reach the store.
func ParseStationFile(path string) ([]*models.Observation, *models.IngestionLogEntry, error) {
	stationID := StationIDFromPath(path)
	startTime := clock.Now().UTC()

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open station file: %w", err)
	}
	defer file.Close()

	var observations []*models.Observation
	lineNum := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		raw, err := parseStationLine(line)
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), lineNum, err)
		}

		obs, err := raw.ToObservation(stationID)
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), lineNum, err)
		}

		observations = append(observations, obs)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading station file: %w", err)
	}

	logEntry := &models.IngestionLogEntry{
		StartTime: startTime,
		EndTime:   clock.Now().UTC(),
		Records:   len(observations),
		StationID: stationID,
	}

	return observations, logEntry, nil
}

// ParseStationDir parses every *.txt station file in a directory
// independently and concatenates the results. The first failing file
// aborts the whole load.
func ParseStationDir(dir string) ([]*models.Observation, []*models.IngestionLogEntry, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directory: %w", err)
	}

	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no station files found in %s", dir)
	}

	var observations []*models.Observation
	logs := make([]*models.IngestionLogEntry, 0, len(files))

	for _, path := range files {
		obs, logEntry, err := ParseStationFile(path)
		if err != nil {
			return nil, nil, err
		}
		observations = append(observations, obs...)
		logs = append(logs, logEntry)
	}

	return observations, logs, nil
}

// ParseYieldFile reads one annual crop-yield file
func ParseYieldFile(path string) ([]*models.YieldRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open yield file: %w", err)
	}
	defer file.Close()

	var records []*models.YieldRecord
	lineNum := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s line %d: expected 2 fields, got %d", filepath.Base(path), lineNum, len(parts))
		}

		year, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid year: %w", filepath.Base(path), lineNum, err)
		}

		totalYield, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid total yield: %w", filepath.Base(path), lineNum, err)
		}

		records = append(records, &models.YieldRecord{
			Year:       year,
			TotalYield: totalYield,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading yield file: %w", err)
	}

	return records, nil
}

// StationIDFromPath derives the station identifier from a file name
func StationIDFromPath(path string) string {
	fileName := filepath.Base(path)
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}

// parseStationLine parses one tab-delimited station file line
func parseStationLine(line string) (*models.RawStationRecord, error) {
	parts := strings.Split(line, "\t")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 fields, got %d", len(parts))
	}

	maxTemp, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid max temperature: %w", err)
	}

	minTemp, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid min temperature: %w", err)
	}

	precip, err := strconv.ParseInt(strings.TrimSpace(parts[3]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid precipitation: %w", err)
	}

	return &models.RawStationRecord{
		Date:          strings.TrimSpace(parts[0]),
		MaxTemp:       maxTemp,
		MinTemp:       minTemp,
		Precipitation: precip,
	}, nil
}
