package models

// Options is the validated user configuration. Every write goes through
// validation in the session package; a single out-of-range field rejects
// the whole update.
type Options struct {
	FocusGoalMinutes     int  `json:"focusGoalMinutes"`
	SnoozeMinutes        int  `json:"snoozeMinutes"`
	IdleDetectionSeconds int  `json:"idleDetectionSeconds"`
	SpilloverHours       int  `json:"spilloverHours"`
	ShowBadgeText        bool `json:"showBadgeText"`
	ShowNotifications    bool `json:"showNotifications"`
}

// DefaultOptions returns the configuration used until the user changes it.
func DefaultOptions() *Options {
	return &Options{
		FocusGoalMinutes:     52,
		SnoozeMinutes:        5,
		IdleDetectionSeconds: 150,
		SpilloverHours:       4,
		ShowBadgeText:        true,
		ShowNotifications:    true,
	}
}
