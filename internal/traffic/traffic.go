package traffic

import (
	"sync"
	"time"
)

// Tracker keeps a sliding window of provider call outcomes. The health check
// uses it to report the service as degraded while the provider keeps failing.
// Safe for concurrent use. The zero value is not usable; call NewTracker.
type Tracker struct {
	mu           sync.Mutex
	retention    time.Duration
	now          func() time.Time
	successTimes []time.Time
	failureTimes []time.Time
}

// NewTracker returns a Tracker that keeps outcomes for retention.
func NewTracker(retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	return &Tracker{retention: retention, now: time.Now}
}

// RecordSuccess records a successful provider call.
func (t *Tracker) RecordSuccess() {
	t.record(&t.successTimes)
}

// RecordFailure records a failed provider call (rejection, timeout, bad status).
func (t *Tracker) RecordFailure() {
	t.record(&t.failureTimes)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// Outcomes returns (failures, total) within window.
func (t *Tracker) Outcomes(window time.Duration) (failures, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	failures = countSince(t.failureTimes, cutoff)
	return failures, failures + countSince(t.successTimes, cutoff)
}

// Degraded reports whether failures make up at least thresholdPct percent of
// outcomes within window. No outcomes means not degraded.
func (t *Tracker) Degraded(window time.Duration, thresholdPct int) bool {
	failures, total := t.Outcomes(window)
	if total == 0 || thresholdPct <= 0 {
		return false
	}
	return failures*100 >= thresholdPct*total
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.failureTimes = nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than the retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.failureTimes)
}
