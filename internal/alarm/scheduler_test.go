package alarm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// collector records fired alarm names.
type collector struct {
	mu    sync.Mutex
	fired []string
}

func (c *collector) fire(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fired = append(c.fired, name)
}

func (c *collector) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.fired...)
}

func TestScheduleOnce_Fires(t *testing.T) {
	c := &collector{}
	s := NewTimerScheduler(c.fire)
	defer s.Close()

	s.ScheduleOnce("ping", 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(c.names()) == 1 && c.names()[0] == "ping"
	}, time.Second, 5*time.Millisecond)
}

func TestScheduleOnce_CancelPreventsFire(t *testing.T) {
	c := &collector{}
	s := NewTimerScheduler(c.fire)
	defer s.Close()

	s.ScheduleOnce("ping", 50*time.Millisecond)
	s.Cancel("ping")

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, c.names())
}

func TestScheduleRecurring_FiresRepeatedly(t *testing.T) {
	c := &collector{}
	s := NewTimerScheduler(c.fire)
	defer s.Close()

	s.ScheduleRecurring("tick", 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(c.names()) >= 2
	}, time.Second, 5*time.Millisecond)

	s.Cancel("tick")
	n := len(c.names())
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, len(c.names()), n+1, "at most one in-flight tick after cancel")
}

func TestSchedule_ReplacesPending(t *testing.T) {
	c := &collector{}
	s := NewTimerScheduler(c.fire)
	defer s.Close()

	s.ScheduleOnce("ping", time.Hour)
	s.ScheduleOnce("ping", 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(c.names()) == 1
	}, time.Second, 5*time.Millisecond)
}
