package models

// HistoryEntry is one completed focus session in the ledger.
//
// Version is an optimistic-concurrency token: it starts at 0 and is
// incremented on every successful update. Edits and deletes must present
// the current version or they fail with a conflict, so a stale editor can
// never silently clobber a concurrent change.
type HistoryEntry struct {
	ID      int64  `json:"id"`
	Version int64  `json:"version"`
	Start   int64  `json:"startTimestamp"`
	Stop    int64  `json:"stopTimestamp"`
	Notes   string `json:"notes,omitempty"`
}

// Duration returns the focused span in milliseconds.
func (e HistoryEntry) Duration() int64 { return e.Stop - e.Start }

// HistoryStats aggregates a chronologically sorted slice of the ledger.
type HistoryStats struct {
	FocusMillis int64 `json:"focusMillis"`
	PauseMillis int64 `json:"pauseMillis"`
	LastStop    int64 `json:"lastStopTimestamp"`
}
