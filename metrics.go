package authflow

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram in the in-process metrics
// system.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that reached the authenticated state
	// without a challenge.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the provider.
	MetricLoginFailure
	// MetricChallengeNewPassword counts issued new-password challenges.
	MetricChallengeNewPassword
	// MetricChallengeMFARequired counts issued second-factor challenges.
	MetricChallengeMFARequired
	// MetricChallengeMFASetup counts issued mandatory-enrollment challenges.
	MetricChallengeMFASetup
	// MetricMFAConfirmSuccess counts accepted second-factor codes.
	MetricMFAConfirmSuccess
	// MetricMFAConfirmFailure counts rejected second-factor codes.
	MetricMFAConfirmFailure
	// MetricEnrollmentStarted counts begun TOTP enrollments.
	MetricEnrollmentStarted
	// MetricEnrollmentConfirmed counts completed TOTP enrollments.
	MetricEnrollmentConfirmed
	// MetricEnrollmentFailure counts failed enrollment confirmations.
	MetricEnrollmentFailure
	// MetricRefreshSuccess counts successful session refreshes.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed session refreshes.
	MetricRefreshFailure
	// MetricLogout counts logout operations.
	MetricLogout
	// MetricStaleOutcomeDiscarded counts login outcomes dropped because a
	// newer attempt superseded them.
	MetricStaleOutcomeDiscarded
	// MetricStaleStateDiscarded counts persisted challenge flags discarded
	// during start-up reconciliation.
	MetricStaleStateDiscarded
	// MetricResumeAuthenticated counts start-ups that restored a live
	// session from persisted state.
	MetricResumeAuthenticated
	// MetricInactivityAbandon counts setup flows abandoned by the idle
	// watchdog.
	MetricInactivityAbandon
	// MetricProviderLatency is the provider round-trip latency histogram.
	MetricProviderLatency
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

// Metrics holds lock-free counters and latency buckets. All methods are safe
// for concurrent use; a nil receiver is a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a metrics holder per the given configuration.
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

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample into the provider round-trip histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricProviderLatency {
		return
	}
	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all non-zero counters and histograms.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, metricIDCount),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	if m == nil || !m.enabled {
		return snapshot
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if v := atomic.LoadUint64(&m.counters[id].value); v != 0 {
			snapshot.Counters[id] = v
		}
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		var any bool
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricProviderLatency].buckets[i])
			if buckets[i] != 0 {
				any = true
			}
		}
		if any {
			snapshot.Histograms[MetricProviderLatency] = buckets
		}
	}
	return snapshot
}

// bucketIndex maps a duration onto the fixed exposition bounds
// (5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, +Inf).
func bucketIndex(d time.Duration) int {
	switch {
	case d <= 5*time.Millisecond:
		return 0
	case d <= 10*time.Millisecond:
		return 1
	case d <= 25*time.Millisecond:
		return 2
	case d <= 50*time.Millisecond:
		return 3
	case d <= 100*time.Millisecond:
		return 4
	case d <= 250*time.Millisecond:
		return 5
	case d <= 500*time.Millisecond:
		return 6
	default:
		return 7
	}
}
