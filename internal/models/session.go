package models

// SessionState is the single source of truth for "am I focused right now".
// Exactly one instance exists per process; it is loaded lazily from the
// store and cached until restart.
//
// Optional timestamps are pointers to millisecond epoch values so that
// "unset" is distinguishable from a legitimate timestamp. InFocus is true
// exactly when FocusStart is set; while focused, FocusStop is nil.
type SessionState struct {
	InFocus       bool   `json:"inFocus"`
	FocusStart    *int64 `json:"focusStartTimestamp,omitempty"`
	FocusStop     *int64 `json:"focusStopTimestamp,omitempty"`
	IdleStart     *int64 `json:"idleStartTimestamp,omitempty"`
	ActiveStart   *int64 `json:"activeStartTimestamp,omitempty"`
	NextAlarm     *int64 `json:"nextAlarmTimestamp,omitempty"`
	NextHistoryID int64  `json:"nextHistoryId"`
	Notes         string `json:"notes,omitempty"`
}

// NewSessionState returns the initial state for a first run.
func NewSessionState() *SessionState {
	return &SessionState{NextHistoryID: 1}
}

// Clone returns a deep copy safe to hand to callers.
func (s *SessionState) Clone() *SessionState {
	out := *s
	out.FocusStart = cloneMillis(s.FocusStart)
	out.FocusStop = cloneMillis(s.FocusStop)
	out.IdleStart = cloneMillis(s.IdleStart)
	out.ActiveStart = cloneMillis(s.ActiveStart)
	out.NextAlarm = cloneMillis(s.NextAlarm)
	return &out
}

// Millis returns a pointer to v, for building optional timestamps.
func Millis(v int64) *int64 { return &v }

func cloneMillis(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
