package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one service counter, gauge or histogram slot.
type MetricID uint16

const (
	// MetricSessionCreated counts sessions persisted by CreateSession.
	MetricSessionCreated MetricID = iota
	// MetricSessionCreateFailed counts CreateSession calls that did not persist.
	MetricSessionCreateFailed
	// MetricSessionRead counts successful GetSession lookups.
	MetricSessionRead
	// MetricSessionNotFound counts lookups for absent or expired sessions.
	MetricSessionNotFound
	// MetricSessionUpdated counts successful UpdateSession writes.
	MetricSessionUpdated
	// MetricSessionDisconnected counts DisconnectSession calls.
	MetricSessionDisconnected
	// MetricSessionCorrupt counts undecodable records seen on the read path.
	MetricSessionCorrupt
	// MetricIndexDegraded counts creates whose address index write failed.
	MetricIndexDegraded
	// MetricTouchFailed counts activity writes that failed after a read.
	MetricTouchFailed
	// MetricReconcileRuns counts completed reconciliation sweeps.
	MetricReconcileRuns
	// MetricReconcileRepairs counts repairs applied across all sweeps.
	MetricReconcileRepairs
	// MetricReconcileErrors counts failed sweeps and skipped sweep lookups.
	MetricReconcileErrors
	// MetricRateLimited counts requests denied by the rate limiter.
	MetricRateLimited
	// MetricValidationRejected counts requests rejected for bad input.
	MetricValidationRejected
	// MetricTokenIssued counts session tokens signed.
	MetricTokenIssued
	// MetricTokenRejected counts session tokens that failed verification.
	MetricTokenRejected
	// MetricSessionsActive is a gauge set by the analytics rollup.
	MetricSessionsActive
	// MetricStoreLatency is the store call latency histogram.
	MetricStoreLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and a store latency histogram.
//
// A nil or disabled Metrics accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metric values.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Gauges     map[MetricID]int64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
//
//	Performance: single atomic add, zero allocations.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || isGauge(id) || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Set stores v in gauge id. Negative values are clamped to zero.
func (m *Metrics) Set(id MetricID, v int64) {
	if m == nil || !m.enabled || !isGauge(id) {
		return
	}
	if v < 0 {
		v = 0
	}
	atomic.StoreUint64(&m.counters[id].value, uint64(v))
}

// Observe records d into the histogram for id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricStoreLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter or gauge id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every metric. A disabled Metrics returns empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Gauges:     map[MetricID]int64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Gauges:     make(map[MetricID]int64, 1),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		switch {
		case id == MetricStoreLatency:
		case isGauge(id):
			s.Gauges[id] = int64(atomic.LoadUint64(&m.counters[id].value))
		default:
			s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
		}
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricStoreLatency].buckets[i])
		}
		s.Histograms[MetricStoreLatency] = buckets
	}

	return s
}

func isGauge(id MetricID) bool {
	return id == MetricSessionsActive
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
