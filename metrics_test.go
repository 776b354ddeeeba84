package goSession

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSessionCreated)

	assert.Zero(t, m.Value(MetricSessionCreated))
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSessionCreated)
	m.Inc(MetricSessionCreated)
	m.Add(MetricReconcileRepairs, 5)

	assert.Equal(t, uint64(2), m.Value(MetricSessionCreated))
	assert.Equal(t, uint64(5), m.Value(MetricReconcileRepairs))
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricSessionRead)
	m.Set(MetricSessionsActive, 3)
	m.Observe(MetricStoreLatency, time.Millisecond)

	assert.False(t, m.Enabled(), "nil metrics must be inert")
	assert.Zero(t, m.Value(MetricSessionRead))
	assert.Empty(t, m.Snapshot().Counters)
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricSessionRead)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(goroutines*perG), m.Value(MetricSessionRead))
}

func TestMetricsGaugeSetAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Set(MetricSessionsActive, 12)
	m.Set(MetricSessionsActive, 7)
	m.Inc(MetricSessionsActive)
	m.Set(MetricSessionCreated, 99)

	snap := m.Snapshot()
	assert.Equal(t, int64(7), snap.Gauges[MetricSessionsActive])
	assert.NotContains(t, snap.Counters, MetricSessionsActive, "gauge must not appear among counters")
	assert.Zero(t, snap.Counters[MetricSessionCreated], "Set must not write counters")

	m.Set(MetricSessionsActive, -4)
	assert.Zero(t, m.Value(MetricSessionsActive), "negative gauge is clamped to 0")
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricStoreLatency, d)
	}
	m.Observe(MetricSessionRead, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricStoreLatency]
	require.Len(t, buckets, 8)
	for i, v := range buckets {
		assert.Equal(t, uint64(1), v, "bucket %d", i)
	}
	assert.NotContains(t, snap.Histograms, MetricSessionRead, "only the store latency histogram is recorded")
}

func TestMetricsLatencyDisabledSkipsHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricStoreLatency, time.Millisecond)

	assert.NotContains(t, m.Snapshot().Histograms, MetricStoreLatency)
}
