package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"focusd/internal/models"
)

func TestStartOfDay_Daytime(t *testing.T) {
	// 14:30 with a 4h spillover is still the same calendar day, at 04:00.
	at := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	got := StartOfDay(at, 4)
	assert.Equal(t, time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC), got)
}

func TestStartOfDay_SpilloverBeforeBoundary(t *testing.T) {
	// 02:00 is before the 04:00 boundary, so the logical day is still
	// the previous calendar day.
	at := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	got := StartOfDay(at, 4)
	assert.Equal(t, time.Date(2025, 3, 9, 4, 0, 0, 0, time.UTC), got)
}

func TestStartOfDay_NoSpillover(t *testing.T) {
	at := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	got := StartOfDay(at, 0)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestCalcHistoryStats(t *testing.T) {
	entries := []models.HistoryEntry{
		{Start: 0, Stop: 1000},
		{Start: 2000, Stop: 3000},
		{Start: 5000, Stop: 6000},
	}
	stats := CalcHistoryStats(entries)
	assert.Equal(t, int64(3000), stats.FocusMillis)
	assert.Equal(t, int64(3000), stats.PauseMillis)
	assert.Equal(t, int64(6000), stats.LastStop)
}

func TestCalcHistoryStats_Empty(t *testing.T) {
	stats := CalcHistoryStats(nil)
	assert.Equal(t, models.HistoryStats{}, stats)
}

func TestCalcHistoryStats_SingleEntry(t *testing.T) {
	stats := CalcHistoryStats([]models.HistoryEntry{{Start: 100, Stop: 400}})
	assert.Equal(t, int64(300), stats.FocusMillis)
	assert.Equal(t, int64(0), stats.PauseMillis)
	assert.Equal(t, int64(400), stats.LastStop)
}

func TestFormatTimer(t *testing.T) {
	tests := []struct {
		millis   int64
		showSecs bool
		want     string
	}{
		{0, true, "0m 0s"},
		{0, false, "0m"},
		{36000, true, "0m 36s"},
		{4*60000 + 36000, true, "4m 36s"},
		{3600000 + 4*60000 + 36000, true, "1h 4m 36s"},
		{3600000 + 4*60000 + 36000, false, "1h 4m"},
		{2 * 3600000, false, "2h 0m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimer(tt.millis, tt.showSecs), "millis=%d showSecs=%v", tt.millis, tt.showSecs)
	}
}
