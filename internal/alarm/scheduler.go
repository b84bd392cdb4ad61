// Package alarm provides named timer scheduling for the session core.
package alarm

import (
	"sync"
	"time"
)

// Scheduler schedules named alarms. Scheduling a name that is already
// pending replaces it. Fired alarms are reported by name through the
// callback the concrete implementation was built with.
type Scheduler interface {
	ScheduleRecurring(name string, period time.Duration)
	ScheduleOnce(name string, delay time.Duration)
	Cancel(name string)
}

// Nop discards all scheduling. Used by one-shot CLI invocations, where
// the persisted nextAlarmTimestamp is enough and an in-process timer
// would die with the command anyway.
type Nop struct{}

func (Nop) ScheduleRecurring(string, time.Duration) {}
func (Nop) ScheduleOnce(string, time.Duration)      {}
func (Nop) Cancel(string)                           {}

// TimerScheduler implements Scheduler over time.Timer/time.Ticker for the
// long-lived daemon process.
type TimerScheduler struct {
	mu      sync.Mutex
	fire    func(name string)
	timers  map[string]*time.Timer
	tickers map[string]*time.Ticker
	stops   map[string]chan struct{}
}

// NewTimerScheduler creates a scheduler that invokes fire with the alarm
// name whenever one goes off. fire is called from a timer goroutine.
func NewTimerScheduler(fire func(name string)) *TimerScheduler {
	return &TimerScheduler{
		fire:    fire,
		timers:  make(map[string]*time.Timer),
		tickers: make(map[string]*time.Ticker),
		stops:   make(map[string]chan struct{}),
	}
}

func (s *TimerScheduler) ScheduleRecurring(name string, period time.Duration) {
	s.Cancel(name)

	ticker := time.NewTicker(period)
	stop := make(chan struct{})

	s.mu.Lock()
	s.tickers[name] = ticker
	s.stops[name] = stop
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.fire(name)
			}
		}
	}()
}

func (s *TimerScheduler) ScheduleOnce(name string, delay time.Duration) {
	s.Cancel(name)

	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, name)
		s.mu.Unlock()
		s.fire(name)
	})

	s.mu.Lock()
	s.timers[name] = timer
	s.mu.Unlock()
}

func (s *TimerScheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(name)
}

// Close cancels every pending alarm.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.timers {
		s.cancelLocked(name)
	}
	for name := range s.tickers {
		s.cancelLocked(name)
	}
}

func (s *TimerScheduler) cancelLocked(name string) {
	if timer, ok := s.timers[name]; ok {
		timer.Stop()
		delete(s.timers, name)
	}
	if ticker, ok := s.tickers[name]; ok {
		ticker.Stop()
		delete(s.tickers, name)
	}
	if stop, ok := s.stops[name]; ok {
		close(stop)
		delete(s.stops, name)
	}
}
