// Package timeutil holds the time arithmetic shared by the session core
// and the CLI surfaces: logical-day boundaries, ledger aggregation, and
// human timer formatting.
package timeutil

import (
	"fmt"
	"time"

	"focusd/internal/models"
)

// StartOfDay returns the start of the "logical day" containing t. The day
// boundary is shifted forward by spilloverHours, so a session ending at
// 1 AM with a 4-hour spillover still counts toward the previous calendar
// day.
func StartOfDay(t time.Time, spilloverHours int) time.Time {
	shifted := t.Add(-time.Duration(spilloverHours) * time.Hour)
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), spilloverHours, 0, 0, 0, t.Location())
}

// CalcHistoryStats computes total focused time, total paused time (gaps
// between consecutive entries), and the latest stop timestamp over a
// chronologically sorted slice of the ledger. Single linear pass.
func CalcHistoryStats(entries []models.HistoryEntry) models.HistoryStats {
	var stats models.HistoryStats
	for i, entry := range entries {
		stats.FocusMillis += entry.Stop - entry.Start
		if entry.Stop > stats.LastStop {
			stats.LastStop = entry.Stop
		}
		if i > 0 {
			stats.PauseMillis += entry.Start - entries[i-1].Stop
		}
	}
	return stats
}

// FormatTimer renders a millisecond duration as "1h 4m 36s". Hours are
// omitted when zero; seconds are omitted when showSecs is false.
func FormatTimer(millis int64, showSecs bool) string {
	mins := millis / 60000 % 60
	result := fmt.Sprintf("%dm", mins)
	if showSecs {
		result = fmt.Sprintf("%dm %ds", mins, millis/1000%60)
	}
	hours := millis / 3600000 % 24
	if hours > 0 {
		return fmt.Sprintf("%dh %s", hours, result)
	}
	return result
}
