package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one monotonic counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// GaugeDef names one point-in-time gauge.
type GaugeDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one fixed-bucket latency histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported by every exporter alongside the service metrics.
const AuditDroppedName = "gosession_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Sessions persisted by CreateSession."},
	{ID: goSession.MetricSessionCreateFailed, Name: "gosession_session_create_failed_total", Help: "CreateSession calls that did not persist a session."},
	{ID: goSession.MetricSessionRead, Name: "gosession_session_read_total", Help: "Successful session lookups."},
	{ID: goSession.MetricSessionNotFound, Name: "gosession_session_not_found_total", Help: "Lookups for absent or expired sessions."},
	{ID: goSession.MetricSessionUpdated, Name: "gosession_session_updated_total", Help: "Successful session updates."},
	{ID: goSession.MetricSessionDisconnected, Name: "gosession_session_disconnected_total", Help: "Session disconnects."},
	{ID: goSession.MetricSessionCorrupt, Name: "gosession_session_corrupt_total", Help: "Undecodable session records seen on the read path."},
	{ID: goSession.MetricIndexDegraded, Name: "gosession_index_degraded_total", Help: "Creates whose address index write failed."},
	{ID: goSession.MetricTouchFailed, Name: "gosession_touch_failed_total", Help: "Activity writes that failed after a successful read."},
	{ID: goSession.MetricReconcileRuns, Name: "gosession_reconcile_runs_total", Help: "Completed reconciliation sweeps."},
	{ID: goSession.MetricReconcileRepairs, Name: "gosession_reconcile_repairs_total", Help: "Repairs applied by reconciliation sweeps."},
	{ID: goSession.MetricReconcileErrors, Name: "gosession_reconcile_errors_total", Help: "Failed sweeps and skipped sweep lookups."},
	{ID: goSession.MetricRateLimited, Name: "gosession_rate_limited_total", Help: "Session creates denied by the rate limiter."},
	{ID: goSession.MetricValidationRejected, Name: "gosession_validation_rejected_total", Help: "Requests rejected for invalid input."},
	{ID: goSession.MetricTokenIssued, Name: "gosession_token_issued_total", Help: "Session tokens signed."},
	{ID: goSession.MetricTokenRejected, Name: "gosession_token_rejected_total", Help: "Session tokens rejected."},
}

// GaugeDefs lists every exported gauge.
var GaugeDefs = []GaugeDef{
	{ID: goSession.MetricSessionsActive, Name: "gosession_sessions_active", Help: "Live sessions counted by the last analytics rollup."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricStoreLatency, Name: "gosession_store_latency_seconds", Help: "Session store call latency."},
}

// HistogramBounds are the upper bounds of the eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is [HistogramBounds] in instrument-name form.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
