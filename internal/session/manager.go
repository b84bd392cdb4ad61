// Package session implements the focus-session core: the live state
// machine, the history ledger with optimistic-concurrency edits, the
// validated options store, and the notification/alarm policy that sits
// on top of them.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"focusd/internal/alarm"
	"focusd/internal/bus"
	"focusd/internal/idle"
	"focusd/internal/models"
	"focusd/internal/notify"
	"focusd/internal/store"
	"focusd/internal/timeutil"
)

// Clock returns the current time in milliseconds since the epoch.
// Injected so tests can pin it.
type Clock func() int64

// Manager owns the session state, the history ledger, and the options.
// It is the only writer of all three. Caches are read-through (loaded
// once from the store, then served from memory) and write-through (every
// mutation persists before change events are published). A mutex
// serializes commands; each runs to completion, including its
// persistence write, before the next is admitted.
//
// Change events are delivered synchronously while the command still holds
// the manager; subscribers must not call back into the Manager from their
// handler.
type Manager struct {
	mu       sync.Mutex
	store    store.Store
	clock    Clock
	sched    alarm.Scheduler
	notifier notify.Notifier
	changes  *bus.Bus
	logger   *slog.Logger

	loaded  bool
	state   *models.SessionState
	history []models.HistoryEntry
	options *models.Options
}

// NewManager creates the per-process manager. clock, sched, notifier,
// changes, and logger may be nil; no-op implementations are substituted.
func NewManager(st store.Store, clock Clock, sched alarm.Scheduler, notifier notify.Notifier, changes *bus.Bus, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}
	if sched == nil {
		sched = alarm.Nop{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if changes == nil {
		changes = bus.New(logger)
	}
	return &Manager{
		store:    st,
		clock:    clock,
		sched:    sched,
		notifier: notifier,
		changes:  changes,
		logger:   logger,
	}
}

// Bus exposes the change notification bus for subscribers (UI surfaces).
func (m *Manager) Bus() *bus.Bus { return m.changes }

// State returns a copy of the current session state.
func (m *Manager) State(ctx context.Context) (*models.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}
	return m.state.Clone(), nil
}

// SetNotes attaches free-text notes to the live session. The notes are
// carried onto the archived history entry when focus ends, and retained
// on the live state afterwards until explicitly replaced.
func (m *Manager) SetNotes(ctx context.Context, notes string) (*models.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}
	m.state.Notes = notes
	if err := m.persistLocked(ctx, store.KeyState); err != nil {
		return nil, err
	}
	m.publish(bus.StateChanged)
	return m.state.Clone(), nil
}

// EnterFocus flips the state machine to Focused. No-op when already
// focused. The effective start is resolved with precedence: explicit
// start argument, then sinceActive (the last recorded active timestamp),
// then now. Fails when the start would overlap or precede the most
// recent ledger entry.
func (m *Manager) EnterFocus(ctx context.Context, start *int64, sinceActive bool) (*models.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}
	if m.state.InFocus {
		return m.state.Clone(), nil
	}

	startAt := m.clock()
	switch {
	case start != nil:
		startAt = *start
	case sinceActive:
		if m.state.ActiveStart == nil {
			return nil, fmt.Errorf("%w: no active timestamp recorded yet", ErrValidation)
		}
		startAt = *m.state.ActiveStart
	}

	if err := m.enterFocusLocked(ctx, startAt, store.KeyState); err != nil {
		return nil, err
	}
	m.publish(bus.StateChanged)
	return m.state.Clone(), nil
}

// enterFocusLocked applies the Focused transition at startAt and persists
// the given keys. Callers that also mutated the ledger pass KeyHistory so
// both land in one write.
func (m *Manager) enterFocusLocked(ctx context.Context, startAt int64, keys ...string) error {
	if last, ok := m.latestStopLocked(); ok && startAt < last {
		return fmt.Errorf("%w: start %d precedes the end of the last recorded session (%d); sessions must not overlap history", ErrValidation, startAt, last)
	}

	goalMillis := int64(m.options.FocusGoalMinutes) * 60000
	m.state.InFocus = true
	m.state.FocusStart = models.Millis(startAt)
	m.state.FocusStop = nil
	m.state.IdleStart = nil
	m.state.NextAlarm = models.Millis(startAt + goalMillis)

	if err := m.persistLocked(ctx, keys...); err != nil {
		return err
	}
	m.sched.ScheduleRecurring(AlarmFocusTick, tickPeriod)
	return nil
}

// LeaveFocus flips the state machine to Idle and archives the finished
// session as a history entry. No-op when already idle. stop defaults to
// now.
func (m *Manager) LeaveFocus(ctx context.Context, stop *int64) (*models.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}
	if !m.state.InFocus {
		return m.state.Clone(), nil
	}

	stopAt := m.clock()
	if stop != nil {
		stopAt = *stop
	}
	if err := m.leaveFocusLocked(ctx, stopAt); err != nil {
		return nil, err
	}
	return m.state.Clone(), nil
}

func (m *Manager) leaveFocusLocked(ctx context.Context, stopAt int64) error {
	startAt := *m.state.FocusStart
	if stopAt <= startAt {
		return fmt.Errorf("%w: stop %d must be after start %d", ErrValidation, stopAt, startAt)
	}

	// The id counter and the new entry persist in the same write, so a
	// crash can never leave the counter and the ledger disagreeing.
	entry := models.HistoryEntry{
		ID:    m.state.NextHistoryID,
		Start: startAt,
		Stop:  stopAt,
		Notes: m.state.Notes,
	}
	m.state.NextHistoryID++
	m.history = append(m.history, entry)

	m.state.InFocus = false
	m.state.FocusStart = nil
	m.state.FocusStop = models.Millis(stopAt)
	m.state.IdleStart = nil
	m.state.NextAlarm = nil

	if err := m.persistLocked(ctx, store.KeyState, store.KeyHistory); err != nil {
		return err
	}

	m.sched.Cancel(AlarmFocusTick)
	m.sched.Cancel(AlarmIdleClear)
	m.notifier.Clear(NotifGoal)
	m.notifier.Clear(NotifIdle)
	m.publish(bus.StateChanged)
	m.publish(bus.HistoryChanged)
	return nil
}

// ResumeFocus reopens the most recently closed session: the ledger entry
// with the greatest stop timestamp is removed and focus re-enters at its
// original start, so the next LeaveFocus merges the gap into one entry.
func (m *Manager) ResumeFocus(ctx context.Context) (*models.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}
	if m.state.InFocus {
		return nil, fmt.Errorf("%w: already in focus", ErrValidation)
	}
	if len(m.history) == 0 {
		return nil, fmt.Errorf("%w: no history to resume", ErrValidation)
	}

	latest := 0
	for i, entry := range m.history {
		if entry.Stop > m.history[latest].Stop {
			latest = i
		}
	}
	entry := m.history[latest]

	// Validate against the remaining ledger before mutating anything.
	var remainingMax int64
	for i, e := range m.history {
		if i != latest && e.Stop > remainingMax {
			remainingMax = e.Stop
		}
	}
	if entry.Start < remainingMax {
		return nil, fmt.Errorf("%w: start %d precedes the end of the last recorded session (%d); sessions must not overlap history", ErrValidation, entry.Start, remainingMax)
	}

	m.history = append(m.history[:latest:latest], m.history[latest+1:]...)
	if err := m.enterFocusLocked(ctx, entry.Start, store.KeyState, store.KeyHistory); err != nil {
		return nil, err
	}
	m.publish(bus.StateChanged)
	m.publish(bus.HistoryChanged)
	return m.state.Clone(), nil
}

// ResetStorage wipes everything persisted and re-publishes fresh change
// events so subscribers re-render from defaults.
func (m *Manager) ResetStorage(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.invalidateLocked()
		return fmt.Errorf("reset storage: %w", err)
	}

	m.state = models.NewSessionState()
	m.history = []models.HistoryEntry{}
	m.options = models.DefaultOptions()
	m.loaded = true

	m.sched.Cancel(AlarmFocusTick)
	m.sched.Cancel(AlarmIdleClear)
	m.notifier.Clear(NotifGoal)
	m.notifier.Clear(NotifIdle)
	m.notifier.Clear(NotifAutocancel)

	m.publish(bus.StateChanged)
	m.publish(bus.HistoryChanged)
	m.publish(bus.OptionsChanged)
	return nil
}

// Stats aggregates the ledger entries overlapping the given range.
func (m *Manager) Stats(ctx context.Context, from, until *int64) (models.HistoryStats, error) {
	entries, err := m.ListHistory(ctx, from, until)
	if err != nil {
		return models.HistoryStats{}, err
	}
	return timeutil.CalcHistoryStats(entries), nil
}

// TodayStats aggregates the current logical day, using the configured
// spillover hours for the day boundary.
func (m *Manager) TodayStats(ctx context.Context) (models.HistoryStats, error) {
	m.mu.Lock()
	if err := m.loadLocked(ctx); err != nil {
		m.mu.Unlock()
		return models.HistoryStats{}, err
	}
	now := time.UnixMilli(m.clock())
	from := timeutil.StartOfDay(now, m.options.SpilloverHours).UnixMilli()
	m.mu.Unlock()

	return m.Stats(ctx, &from, nil)
}

// HandleActivity reconciles the session against an OS activity signal.
func (m *Manager) HandleActivity(ctx context.Context, state idle.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return err
	}

	now := m.clock()
	switch state {
	case idle.Active:
		m.state.ActiveStart = models.Millis(now)
		if m.state.IdleStart != nil {
			// The user came back without answering the idle prompt;
			// let it expire on its own if they never do.
			m.sched.ScheduleOnce(AlarmIdleClear, idleClearDelay)
		}
		if err := m.persistLocked(ctx, store.KeyState); err != nil {
			return err
		}
		m.publish(bus.StateChanged)
		return nil

	case idle.Idle:
		if !m.state.InFocus || m.state.IdleStart != nil {
			return nil
		}
		// Back-date to when inactivity actually began.
		m.state.IdleStart = models.Millis(now - int64(m.options.IdleDetectionSeconds)*1000)
		if err := m.persistLocked(ctx, store.KeyState); err != nil {
			return err
		}
		m.raiseLocked(idleNotification())
		m.publish(bus.StateChanged)
		return nil

	case idle.Locked:
		if !m.state.InFocus {
			return nil
		}
		// A lock right after an idle prompt means the session really
		// ended at the idle boundary; a lock without one means the user
		// was responsible up to now.
		if err := m.leaveFocusLocked(ctx, m.idleStopLocked(now)); err != nil {
			return err
		}
		m.raiseLocked(autocancelNotification())
		return nil

	default:
		return fmt.Errorf("unknown activity state %q", state)
	}
}

// HandleAlarm reacts to a fired scheduler alarm by name.
func (m *Manager) HandleAlarm(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return err
	}

	switch name {
	case AlarmFocusTick:
		if m.state.NextAlarm == nil || m.clock() < *m.state.NextAlarm {
			return nil
		}
		var focusedFor int64
		if m.state.FocusStart != nil {
			focusedFor = m.clock() - *m.state.FocusStart
		}
		m.state.NextAlarm = nil
		if err := m.persistLocked(ctx, store.KeyState); err != nil {
			return err
		}
		m.raiseLocked(goalNotification(focusedFor))
		m.publish(bus.StateChanged)
		return nil

	case AlarmIdleClear:
		if m.state.IdleStart == nil {
			return nil
		}
		m.state.IdleStart = nil
		if err := m.persistLocked(ctx, store.KeyState); err != nil {
			return err
		}
		m.notifier.Clear(NotifIdle)
		m.publish(bus.StateChanged)
		return nil

	default:
		return fmt.Errorf("unknown alarm %q", name)
	}
}

// HandleNotificationAction resolves a user's click on a notification
// button into a state transition.
func (m *Manager) HandleNotificationAction(ctx context.Context, id string, button int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return err
	}

	switch id {
	case NotifGoal:
		m.notifier.Clear(NotifGoal)
		switch button {
		case GoalButtonSnooze:
			if !m.state.InFocus {
				return nil
			}
			m.state.NextAlarm = models.Millis(m.clock() + int64(m.options.SnoozeMinutes)*60000)
			if err := m.persistLocked(ctx, store.KeyState); err != nil {
				return err
			}
			m.publish(bus.StateChanged)
			return nil
		case GoalButtonBreak:
			if !m.state.InFocus {
				return nil
			}
			return m.leaveFocusLocked(ctx, m.clock())
		default:
			return fmt.Errorf("%w: unknown button %d for notification %q", ErrValidation, button, id)
		}

	case NotifIdle:
		switch button {
		case IdleButtonLeft:
			if !m.state.InFocus {
				return nil
			}
			return m.leaveFocusLocked(ctx, m.idleStopLocked(m.clock()))
		case IdleButtonStillFocused:
			m.state.IdleStart = nil
			if err := m.persistLocked(ctx, store.KeyState); err != nil {
				return err
			}
			m.sched.Cancel(AlarmIdleClear)
			m.notifier.Clear(NotifIdle)
			m.publish(bus.StateChanged)
			return nil
		default:
			return fmt.Errorf("%w: unknown button %d for notification %q", ErrValidation, button, id)
		}

	default:
		return fmt.Errorf("unknown notification %q", id)
	}
}

// --- cache plumbing ---

// loadLocked populates the caches from the store on first use. Missing
// keys fall back to defaults; present keys are merged over them.
func (m *Manager) loadLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}

	values, err := m.store.Get(ctx, store.KeyState, store.KeyHistory, store.KeyOptions)
	if err != nil {
		return fmt.Errorf("load caches: %w", err)
	}

	m.state = models.NewSessionState()
	if raw, ok := values[store.KeyState]; ok {
		if err := json.Unmarshal(raw, m.state); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
	}

	m.history = []models.HistoryEntry{}
	if raw, ok := values[store.KeyHistory]; ok {
		if err := json.Unmarshal(raw, &m.history); err != nil {
			return fmt.Errorf("decode history: %w", err)
		}
		if m.history == nil {
			m.history = []models.HistoryEntry{}
		}
	}

	m.options = models.DefaultOptions()
	if raw, ok := values[store.KeyOptions]; ok {
		if err := json.Unmarshal(raw, m.options); err != nil {
			return fmt.Errorf("decode options: %w", err)
		}
	}

	m.loaded = true
	return nil
}

// persistLocked writes the named caches in a single store transaction.
// On failure the caches are dropped so the next command reloads the
// authoritative persisted values instead of serving a half-applied
// mutation.
func (m *Manager) persistLocked(ctx context.Context, keys ...string) error {
	values := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		var v any
		switch key {
		case store.KeyState:
			v = m.state
		case store.KeyHistory:
			v = m.history
		case store.KeyOptions:
			v = m.options
		default:
			return fmt.Errorf("unknown store key %q", key)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		values[key] = data
	}

	if err := m.store.Set(ctx, values); err != nil {
		m.invalidateLocked()
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (m *Manager) invalidateLocked() {
	m.loaded = false
	m.state = nil
	m.history = nil
	m.options = nil
}

// idleStopLocked resolves where an interrupted session ends: the
// back-dated idle boundary when one falls inside the session, otherwise
// now. The boundary can precede FocusStart when the user was already
// inactive before starting focus from another surface; ending there
// would make the session empty, so such a boundary is discarded.
// Callers hold the lock and have checked InFocus, so FocusStart is set.
func (m *Manager) idleStopLocked(now int64) int64 {
	if m.state.IdleStart != nil && *m.state.IdleStart > *m.state.FocusStart {
		return *m.state.IdleStart
	}
	return now
}

// latestStopLocked returns the greatest stop timestamp in the ledger.
func (m *Manager) latestStopLocked() (int64, bool) {
	var max int64
	found := false
	for _, entry := range m.history {
		if entry.Stop > max {
			max = entry.Stop
			found = true
		}
	}
	return max, found
}

func (m *Manager) publish(kind bus.Kind) {
	m.changes.Publish(bus.Event{Kind: kind})
}
