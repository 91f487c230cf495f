// Package stats holds the counters shared by every farm worker.
package stats

import (
	"sync"
	"time"

	"ricefarm/internal/components/assert"
	"ricefarm/internal/components/chrono"
)

// Snapshot is a consistent read of the counters.
type Snapshot struct {
	Successes int64
	Failures  int64
	Elapsed   time.Duration
}

// Throughput is a count spread over a duration.
type Throughput struct {
	PerSecond float64
	PerMinute float64
	PerHour   float64
}

// Rate returns `count` per unit of `elapsed`, it is zero when no time has passed.
func Rate(count float64, elapsed time.Duration) Throughput {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return Throughput{}
	}
	perSecond := count / seconds
	return Throughput{
		PerSecond: perSecond,
		PerMinute: perSecond * 60,
		PerHour:   perSecond * 3600,
	}
}

// Stats is safe for concurrent use.
type Stats struct {
	clock chrono.API
	start time.Time

	mu        sync.Mutex
	successes int64
	failures  int64
}

func New(clock chrono.API) *Stats {
	assert.NotNil(clock)
	return &Stats{
		clock: clock,
		start: clock.Now(),
	}
}

func (s *Stats) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes++
}

func (s *Stats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Successes: s.successes,
		Failures:  s.failures,
		Elapsed:   s.clock.Now().Sub(s.start),
	}
}

// Throughput is the rate of successful rounds since the stats were created.
func (s *Stats) Throughput() Throughput {
	snap := s.Snapshot()
	return Rate(float64(snap.Successes), snap.Elapsed)
}
