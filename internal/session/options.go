package session

import (
	"context"
	"fmt"

	"focusd/internal/bus"
	"focusd/internal/models"
	"focusd/internal/store"
)

// Options returns a copy of the effective configuration (persisted values
// merged over defaults).
func (m *Manager) Options(ctx context.Context) (*models.Options, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := *m.options
	return &out, nil
}

// SetOptions validates and stores a full replacement configuration.
// Validation is all-or-nothing: one out-of-range field rejects the whole
// update before anything is applied.
func (m *Manager) SetOptions(ctx context.Context, candidate models.Options) (*models.Options, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}
	if err := validateOptions(candidate); err != nil {
		return nil, err
	}

	m.options = &candidate
	if err := m.persistLocked(ctx, store.KeyOptions); err != nil {
		return nil, err
	}
	m.publish(bus.OptionsChanged)

	out := candidate
	return &out, nil
}

func validateOptions(o models.Options) error {
	checks := []struct {
		name            string
		value, min, max int
	}{
		{"focusGoalMinutes", o.FocusGoalMinutes, 1, 240},
		{"snoozeMinutes", o.SnoozeMinutes, 1, 60},
		{"idleDetectionSeconds", o.IdleDetectionSeconds, 15, 1800},
		{"spilloverHours", o.SpilloverHours, 0, 23},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrValidation, c.name, c.min, c.max, c.value)
		}
	}
	return nil
}
