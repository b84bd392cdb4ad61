// Package notify abstracts the notification surface the session core
// raises goal/idle/autocancel prompts on.
package notify

import "log/slog"

// Notification is one user-visible prompt. Buttons are answered through
// the session manager by index.
type Notification struct {
	ID                 string
	Title              string
	Message            string
	Buttons            []string
	RequireInteraction bool
}

// Notifier raises and clears notifications. Implementations must tolerate
// Clear for an id that was never raised.
type Notifier interface {
	Raise(n Notification)
	Clear(id string)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Raise(Notification) {}
func (Nop) Clear(string)       {}

// LogNotifier writes notifications to the structured log. The daemon uses
// it as its default surface; desktop integrations can replace it.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l *LogNotifier) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *LogNotifier) Raise(n Notification) {
	l.logger().Info("notification",
		"id", n.ID,
		"title", n.Title,
		"message", n.Message,
		"buttons", n.Buttons,
	)
}

func (l *LogNotifier) Clear(id string) {
	l.logger().Debug("notification cleared", "id", id)
}
