package hooks

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

type stepStats struct {
	calls  int64
	errors int64
	total  time.Duration
}

// InMemoryMetrics accumulates metrics in process memory.  Safe for
// concurrent use.
type InMemoryMetrics struct {
	mu         sync.Mutex
	steps      map[string]*stepStats
	categories map[string]int64 // error category -> count
	batchItems map[string]int64 // outcome -> count

	bytesOut atomic.Int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		steps:      make(map[string]*stepStats),
		categories: make(map[string]int64),
		batchItems: make(map[string]int64),
	}
}

func (m *InMemoryMetrics) step(name string) *stepStats {
	s, ok := m.steps[name]
	if !ok {
		s = &stepStats{}
		m.steps[name] = s
	}
	return s
}

func (m *InMemoryMetrics) RecordProcessingTime(stepName string, d interface{ Seconds() float64 }) {
	dur, ok := d.(time.Duration)
	if !ok {
		dur = time.Duration(math.Round(d.Seconds() * float64(time.Second)))
	}
	m.mu.Lock()
	s := m.step(stepName)
	s.calls++
	s.total += dur
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) { m.bytesOut.Add(bytes) }

func (m *InMemoryMetrics) RecordError(stepName string, category string) {
	m.mu.Lock()
	m.step(stepName).errors++
	m.categories[category]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordBatchItem(outcome string) {
	m.mu.Lock()
	m.batchItems[outcome]++
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy of the collected metrics.
type MetricsSnapshot struct {
	StepDurationsMs  map[string]int64
	StepCalls        map[string]int64
	StepErrors       map[string]int64
	ErrorCategories  map[string]int64
	BatchItems       map[string]int64
	TotalThroughputB int64
}

// Snapshot returns a copy of the current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		StepDurationsMs:  make(map[string]int64, len(m.steps)),
		StepCalls:        make(map[string]int64, len(m.steps)),
		StepErrors:       make(map[string]int64, len(m.steps)),
		ErrorCategories:  make(map[string]int64, len(m.categories)),
		BatchItems:       make(map[string]int64, len(m.batchItems)),
		TotalThroughputB: m.bytesOut.Load(),
	}
	for name, s := range m.steps {
		snap.StepDurationsMs[name] = s.total.Milliseconds()
		snap.StepCalls[name] = s.calls
		if s.errors > 0 {
			snap.StepErrors[name] = s.errors
		}
	}
	for k, v := range m.categories {
		snap.ErrorCategories[k] = v
	}
	for k, v := range m.batchItems {
		snap.BatchItems[k] = v
	}
	return snap
}
