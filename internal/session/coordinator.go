package session

import (
	"time"

	"focusd/internal/notify"
	"focusd/internal/timeutil"
)

// Alarm names the manager schedules and reacts to.
const (
	// AlarmFocusTick is the recurring tick that checks whether the goal
	// reminder is due while a session is in focus.
	AlarmFocusTick = "focus-tick"

	// AlarmIdleClear is the delayed one-shot that expires an unanswered
	// idle-confirmation prompt.
	AlarmIdleClear = "idle-clear"
)

// Notification ids.
const (
	NotifGoal       = "focus-goal"
	NotifIdle       = "idle-confirm"
	NotifAutocancel = "focus-autocancel"
)

// Button indexes, matching the order the buttons are raised with.
const (
	GoalButtonSnooze = 0
	GoalButtonBreak  = 1

	IdleButtonLeft         = 0
	IdleButtonStillFocused = 1
)

const (
	tickPeriod     = time.Minute
	idleClearDelay = 5 * time.Minute
)

// raiseLocked applies the notification policy: everything is suppressed
// when the user disabled notifications.
func (m *Manager) raiseLocked(n notify.Notification) {
	if !m.options.ShowNotifications {
		return
	}
	m.notifier.Raise(n)
}

func goalNotification(focusedMillis int64) notify.Notification {
	return notify.Notification{
		ID:      NotifGoal,
		Title:   "Focus goal reached",
		Message: "You have been focused for " + timeutil.FormatTimer(focusedMillis, false) + ".",
		Buttons: []string{"Snooze", "Take a break"},
	}
}

func idleNotification() notify.Notification {
	return notify.Notification{
		ID:                 NotifIdle,
		Title:              "Are you still there?",
		Message:            "No activity detected. Did you leave your focus session?",
		Buttons:            []string{"I left", "Still focused"},
		RequireInteraction: true,
	}
}

func autocancelNotification() notify.Notification {
	return notify.Notification{
		ID:      NotifAutocancel,
		Title:   "Focus session ended",
		Message: "The session was closed because the screen locked.",
	}
}
