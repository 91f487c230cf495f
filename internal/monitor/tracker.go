package monitor

import "sync"

// Tracker accumulates the rice gained between observations of the account total. Only
// increases are counted, a lower or equal total leaves the state untouched.
type Tracker struct {
	mu       sync.Mutex
	previous int64
	gained   int64
	failures int
}

func NewTracker(initial int64) *Tracker {
	return &Tracker{previous: initial}
}

// Observe records a successfully fetched total and returns the delta that was applied.
func (t *Tracker) Observe(total int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	delta := total - t.previous
	if delta <= 0 {
		return 0
	}
	t.previous = total
	t.gained += delta
	return delta
}

// Fail records a sample that could not be fetched, it has no observable delta.
func (t *Tracker) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
}

func (t *Tracker) Gained() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gained
}

func (t *Tracker) Previous() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.previous
}

func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}
