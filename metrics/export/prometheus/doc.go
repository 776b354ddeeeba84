// Package prometheus renders goSession metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads a [goSession.Service] and exposes an
// [http.Handler]. Counter names are prefixed gosession_*_total, the live
// session gauge is gosession_sessions_active, and the store latency
// histogram is gosession_store_latency_seconds.
//
// Callers mount the handler themselves; nothing is registered globally.
package prometheus
