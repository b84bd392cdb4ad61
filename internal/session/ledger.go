package session

import (
	"context"
	"fmt"
	"sort"

	"focusd/internal/bus"
	"focusd/internal/models"
	"focusd/internal/store"
)

// ListHistory returns the ledger entries overlapping the given range,
// sorted ascending by start timestamp. An entry is included unless it
// ends strictly before from or starts strictly after until; absent bounds
// impose no constraint.
func (m *Manager) ListHistory(ctx context.Context, from, until *int64) ([]models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}

	result := make([]models.HistoryEntry, 0, len(m.history))
	for _, entry := range m.history {
		if from != nil && entry.Stop < *from {
			continue
		}
		if until != nil && entry.Start > *until {
			continue
		}
		result = append(result, entry)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Start < result[j].Start
	})
	return result, nil
}

// AddHistoryEntry appends a manually created entry to the ledger. The id
// comes from the state's counter; both persist in the same write.
func (m *Manager) AddHistoryEntry(ctx context.Context, start, stop int64, notes string) (*models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}
	if start >= stop {
		return nil, fmt.Errorf("%w: startTimestamp %d must be before stopTimestamp %d", ErrValidation, start, stop)
	}

	entry := models.HistoryEntry{
		ID:    m.state.NextHistoryID,
		Start: start,
		Stop:  stop,
		Notes: notes,
	}
	m.state.NextHistoryID++
	m.history = append(m.history, entry)

	if err := m.persistLocked(ctx, store.KeyState, store.KeyHistory); err != nil {
		return nil, err
	}
	m.publish(bus.HistoryChanged)
	return &entry, nil
}

// UpdateHistoryEntry edits an entry. The supplied version must match the
// entry's current version or the update fails with ErrConflict; on
// success the version increments. Omitted timestamps keep their current
// value; the resulting pair must still satisfy start < stop.
func (m *Manager) UpdateHistoryEntry(ctx context.Context, id, version int64, start, stop *int64, notes *string) (*models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}

	idx, err := m.findEntryLocked(id, version)
	if err != nil {
		return nil, err
	}

	entry := m.history[idx]
	newStart := entry.Start
	if start != nil {
		newStart = *start
	}
	newStop := entry.Stop
	if stop != nil {
		newStop = *stop
	}
	if newStart >= newStop {
		return nil, fmt.Errorf("%w: startTimestamp %d must be before stopTimestamp %d", ErrValidation, newStart, newStop)
	}

	entry.Start = newStart
	entry.Stop = newStop
	if notes != nil {
		entry.Notes = *notes
	}
	entry.Version++
	m.history[idx] = entry

	if err := m.persistLocked(ctx, store.KeyHistory); err != nil {
		return nil, err
	}
	m.publish(bus.HistoryChanged)
	return &entry, nil
}

// DeleteHistoryEntry removes an entry, with the same not-found and
// version-conflict semantics as UpdateHistoryEntry.
func (m *Manager) DeleteHistoryEntry(ctx context.Context, id, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return err
	}

	idx, err := m.findEntryLocked(id, version)
	if err != nil {
		return err
	}

	m.history = append(m.history[:idx:idx], m.history[idx+1:]...)
	if err := m.persistLocked(ctx, store.KeyHistory); err != nil {
		return err
	}
	m.publish(bus.HistoryChanged)
	return nil
}

func (m *Manager) findEntryLocked(id, version int64) (int, error) {
	for i, entry := range m.history {
		if entry.ID != id {
			continue
		}
		if entry.Version != version {
			return 0, fmt.Errorf("%w: entry %d is at version %d, not %d", ErrConflict, id, entry.Version, version)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: no history entry with id %d", ErrNotFound, id)
}
