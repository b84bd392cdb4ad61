package idle

import (
	"sync"
	"time"
)

// Watcher polls a Checker and reports transitions between Active and Idle
// to its callback. Lock/unlock events cannot be derived from an idle
// counter; platform adapters push them in through Report.
type Watcher struct {
	mu        sync.Mutex
	checker   Checker
	threshold time.Duration
	interval  time.Duration
	onChange  func(State)
	last      State
	stopCh    chan struct{}
	running   bool
}

// NewWatcher creates a watcher. threshold is the inactivity span after
// which the user counts as idle; interval is the polling period.
func NewWatcher(checker Checker, threshold, interval time.Duration, onChange func(State)) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		checker:   checker,
		threshold: threshold,
		interval:  interval,
		onChange:  onChange,
		last:      Active,
	}
}

// SetThreshold updates the idle threshold, typically after an options
// change.
func (w *Watcher) SetThreshold(threshold time.Duration) {
	w.mu.Lock()
	w.threshold = threshold
	w.mu.Unlock()
}

// Start launches the polling loop. Returns ErrUnsupported without
// starting when the checker cannot measure inactivity.
func (w *Watcher) Start() error {
	if _, err := w.checker.IdleDuration(); err != nil {
		return err
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stop := w.stopCh
	w.mu.Unlock()

	go w.run(stop)
	return nil
}

// Stop terminates the polling loop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopCh)
	w.running = false
}

// Report pushes an externally observed state (typically Locked from a
// platform session-lock hook) through the same transition path the
// poller uses.
func (w *Watcher) Report(state State) {
	w.transition(state)
}

func (w *Watcher) run(stop chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	idleFor, err := w.checker.IdleDuration()
	if err != nil {
		return
	}

	w.mu.Lock()
	threshold := w.threshold
	w.mu.Unlock()

	next := Active
	if idleFor >= threshold {
		next = Idle
	}
	w.transition(next)
}

func (w *Watcher) transition(next State) {
	w.mu.Lock()
	if w.last == next {
		w.mu.Unlock()
		return
	}
	w.last = next
	onChange := w.onChange
	w.mu.Unlock()

	if onChange != nil {
		onChange(next)
	}
}
