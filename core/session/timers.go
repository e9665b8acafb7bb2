package session

import (
	"sync"
	"time"
)

// sweepTimers tracks when the next in-memory and backend expiry sweeps become
// due. Sweeps run lazily on traffic, so the check-and-advance of a deadline is
// a single critical section: two concurrent callers can never both decide the
// same sweep is due.
type sweepTimers struct {
	mu           sync.Mutex
	nextMemory   time.Time
	nextDatabase time.Time
}

// newSweepTimers schedules the first sweep of each kind one full interval from
// startup.
func newSweepTimers(now time.Time, memoryInterval, databaseInterval time.Duration) *sweepTimers {
	return &sweepTimers{
		nextMemory:   now.Add(memoryInterval),
		nextDatabase: now.Add(databaseInterval),
	}
}

// dueMemory reports whether an in-memory sweep is due and, if so, advances the
// deadline to now + interval in the same critical section.
func (t *sweepTimers) dueMemory(now time.Time, interval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Before(t.nextMemory) {
		return false
	}
	t.nextMemory = now.Add(interval)
	return true
}

// dueDatabase reports whether a backend sweep is due and, if so, advances the
// deadline to now + interval in the same critical section.
func (t *sweepTimers) dueDatabase(now time.Time, interval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Before(t.nextDatabase) {
		return false
	}
	t.nextDatabase = now.Add(interval)
	return true
}
