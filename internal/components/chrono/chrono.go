package chrono

import (
	"sync"
	"time"
)

// API is the interface that anything depending on the system clock should use.
type API interface {
	Now() time.Time
}

// StandardImpl is the implementation of API using the standard library.
type StandardImpl struct{}

func NewStandardImpl() StandardImpl {
	return StandardImpl{}
}

func (StandardImpl) Now() time.Time {
	return time.Now()
}

// ManualImpl is a clock that only moves when told to.
type ManualImpl struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualImpl(start time.Time) *ManualImpl {
	return &ManualImpl{now: start}
}

func (m *ManualImpl) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *ManualImpl) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
