package observability

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks pipeline throughput and HTTP request counters. The pipeline
// counters are atomics because every partition worker increments them
// concurrently on the hot path.
type Metrics struct {
	processedTotal atomic.Int64
	failedTotal    atomic.Int64

	latMu        sync.RWMutex
	stateLatency map[string]*latencyAgg

	reqMu        sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
}

type latencyAgg struct {
	count       atomic.Int64
	totalMicros atomic.Int64
}

// Snapshot is the read model served by the metrics endpoint.
type Snapshot struct {
	QueueDepthByEntity      map[string]int     `json:"queueDepthByEntity"`
	ProcessedTotal          int64              `json:"processedTotal"`
	FailedTotal             int64              `json:"failedTotal"`
	AverageLatencyMsByState map[string]float64 `json:"averageLatencyMsByState"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		stateLatency: make(map[string]*latencyAgg),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordProcessed counts one event reaching completed.
func (m *Metrics) RecordProcessed() {
	if m == nil {
		return
	}
	m.processedTotal.Add(1)
}

// RecordFailed counts one event reaching failedTerminal.
func (m *Metrics) RecordFailed() {
	if m == nil {
		return
	}
	m.failedTotal.Add(1)
}

// ObserveStateLatency records how long an instance spent in a state.
func (m *Metrics) ObserveStateLatency(state string, d time.Duration) {
	if m == nil {
		return
	}
	agg := m.aggFor(state)
	agg.count.Add(1)
	agg.totalMicros.Add(d.Microseconds())
}

func (m *Metrics) aggFor(state string) *latencyAgg {
	m.latMu.RLock()
	agg, ok := m.stateLatency[state]
	m.latMu.RUnlock()
	if ok {
		return agg
	}
	m.latMu.Lock()
	defer m.latMu.Unlock()
	if agg, ok = m.stateLatency[state]; ok {
		return agg
	}
	agg = &latencyAgg{}
	m.stateLatency[state] = agg
	return agg
}

// SnapshotWithDepths combines the counters with current queue depths.
func (m *Metrics) SnapshotWithDepths(depths map[string]int) Snapshot {
	latencies := make(map[string]float64)
	m.latMu.RLock()
	for state, agg := range m.stateLatency {
		if count := agg.count.Load(); count > 0 {
			latencies[state] = float64(agg.totalMicros.Load()) / float64(count) / 1000.0
		}
	}
	m.latMu.RUnlock()

	if depths == nil {
		depths = map[string]int{}
	}
	return Snapshot{
		QueueDepthByEntity:      depths,
		ProcessedTotal:          m.processedTotal.Load(),
		FailedTotal:             m.failedTotal.Load(),
		AverageLatencyMsByState: latencies,
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.reqMu.Lock()
	defer m.reqMu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.reqMu.Lock()
	defer m.reqMu.Unlock()
	m.errorCount[key]++
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
