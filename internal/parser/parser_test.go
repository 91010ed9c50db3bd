package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseStationFile(t *testing.T) {
	t.Run("normalizes sentinel values and derives station id", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "USC00110072.txt",
			"20200101\t250\t150\t100\n"+
				"20200102\t-9999\t140\t-9999\n")

		observations, logEntry, err := ParseStationFile(path)
		require.NoError(t, err)
		require.Len(t, observations, 2)

		first := observations[0]
		assert.Equal(t, "USC00110072", first.StationID)
		assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), first.RecordDate)
		require.NotNil(t, first.MaxTemp)
		assert.Equal(t, int64(250), *first.MaxTemp)

		second := observations[1]
		assert.Nil(t, second.MaxTemp)
		require.NotNil(t, second.MinTemp)
		assert.Equal(t, int64(140), *second.MinTemp)
		assert.Nil(t, second.Precipitation)

		require.NotNil(t, logEntry)
		assert.Equal(t, "USC00110072", logEntry.StationID)
		assert.Equal(t, 2, logEntry.Records)
	})

	t.Run("malformed date fails the whole file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "USC00110073.txt",
			"20200101\t250\t150\t100\n"+
				"2020-01-02\t240\t140\t0\n")

		observations, logEntry, err := ParseStationFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
		assert.Nil(t, observations)
		assert.Nil(t, logEntry)
	})

	t.Run("non-numeric measurement fails the whole file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "USC00110074.txt", "20200101\tabc\t150\t100\n")

		_, _, err := ParseStationFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid max temperature")
	})

	t.Run("wrong column count fails the whole file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "USC00110075.txt", "20200101\t250\t150\n")

		_, _, err := ParseStationFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 4 fields")
	})

	t.Run("log tuple timestamps come from the injected clock", func(t *testing.T) {
		frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		SetClock(clockwork.NewFakeClockAt(frozen))
		defer SetClock(nil)

		dir := t.TempDir()
		path := writeFile(t, dir, "USC00110076.txt", "20200101\t250\t150\t100\n")

		_, logEntry, err := ParseStationFile(path)
		require.NoError(t, err)
		assert.Equal(t, frozen, logEntry.StartTime)
		assert.Equal(t, frozen, logEntry.EndTime)
		assert.Equal(t, 1, logEntry.Records)
	})
}

func TestParseStationDir(t *testing.T) {
	t.Run("concatenates all station files with one log per file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "USC00110001.txt", "20200101\t250\t150\t100\n20200102\t240\t140\t0\n")
		writeFile(t, dir, "USC00110002.txt", "20200101\t200\t100\t50\n")
		writeFile(t, dir, "notes.csv", "ignored\n")

		observations, logs, err := ParseStationDir(dir)
		require.NoError(t, err)
		assert.Len(t, observations, 3)
		require.Len(t, logs, 2)

		stations := map[string]int{}
		for _, l := range logs {
			stations[l.StationID] = l.Records
		}
		assert.Equal(t, 2, stations["USC00110001"])
		assert.Equal(t, 1, stations["USC00110002"])
	})

	t.Run("one bad file aborts the whole load", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "USC00110001.txt", "20200101\t250\t150\t100\n")
		writeFile(t, dir, "USC00110002.txt", "garbage\n")

		observations, logs, err := ParseStationDir(dir)
		require.Error(t, err)
		assert.Nil(t, observations)
		assert.Nil(t, logs)
	})

	t.Run("empty directory is an error", func(t *testing.T) {
		_, _, err := ParseStationDir(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no station files")
	})
}

func TestParseYieldFile(t *testing.T) {
	t.Run("parses year and total yield", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "US_corn_grain_yield.txt", "1985\t225447\n1986\t208944\n")

		records, err := ParseYieldFile(path)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 1985, records[0].Year)
		assert.Equal(t, int64(225447), records[0].TotalYield)
		assert.Equal(t, 1986, records[1].Year)
	})

	t.Run("invalid yield value fails the file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "yield.txt", "1985\tmany\n")

		_, err := ParseYieldFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid total yield")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ParseYieldFile(filepath.Join(t.TempDir(), "absent.txt"))
		require.Error(t, err)
	})
}
