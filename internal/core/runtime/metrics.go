package runtime

import (
	"sync"
	"time"
)

// Metrics collects apply_patch outcomes for monitoring and observability.
type Metrics interface {
	// RecordApply records one apply call. code is empty on success and the
	// patch error code (or "IO_FAILURE") otherwise.
	RecordApply(duration time.Duration, code string, changed bool)
	// RecordLockWait records how long a call waited for the file lock.
	RecordLockWait(duration time.Duration)
	// GetSnapshot returns the current metrics snapshot.
	GetSnapshot() MetricsSnapshot
	// Reset clears all metrics (useful for testing).
	Reset()
}

// MetricsSnapshot contains a point-in-time view of collected metrics.
type MetricsSnapshot struct {
	Applies     ApplyMetrics
	Failures    map[string]int64 // error code -> count
	LockWaitMax time.Duration
	LastApplyAt time.Time
}

// ApplyMetrics tracks apply call statistics.
type ApplyMetrics struct {
	Total     int64
	Success   int64
	Failed    int64
	Changed   int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// NoOpMetrics is a metrics collector that discards all metrics.
type NoOpMetrics struct{}

func (n *NoOpMetrics) RecordApply(_ time.Duration, _ string, _ bool) {}
func (n *NoOpMetrics) RecordLockWait(_ time.Duration)               {}
func (n *NoOpMetrics) GetSnapshot() MetricsSnapshot                 { return MetricsSnapshot{} }
func (n *NoOpMetrics) Reset()                                       {}

// InMemoryMetrics is a thread-safe in-memory metrics collector.
type InMemoryMetrics struct {
	mu          sync.RWMutex
	applies     ApplyMetrics
	failures    map[string]int64
	lockWaitMax time.Duration
	lastApplyAt time.Time
}

// NewInMemoryMetrics creates a new in-memory metrics collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{failures: make(map[string]int64)}
}

func (m *InMemoryMetrics) RecordApply(duration time.Duration, code string, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applies.Total++
	if code == "" {
		m.applies.Success++
	} else {
		m.applies.Failed++
		m.failures[code]++
	}
	if changed {
		m.applies.Changed++
	}
	m.applies.TotalTime += duration
	if m.applies.Total == 1 || duration < m.applies.MinTime {
		m.applies.MinTime = duration
	}
	if duration > m.applies.MaxTime {
		m.applies.MaxTime = duration
	}
	m.lastApplyAt = time.Now()
}

func (m *InMemoryMetrics) RecordLockWait(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if duration > m.lockWaitMax {
		m.lockWaitMax = duration
	}
}

func (m *InMemoryMetrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		Applies:     m.applies,
		Failures:    make(map[string]int64, len(m.failures)),
		LockWaitMax: m.lockWaitMax,
		LastApplyAt: m.lastApplyAt,
	}
	for k, v := range m.failures {
		snapshot.Failures[k] = v
	}
	return snapshot
}

func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applies = ApplyMetrics{}
	m.failures = make(map[string]int64)
	m.lockWaitMax = 0
	m.lastApplyAt = time.Time{}
}
