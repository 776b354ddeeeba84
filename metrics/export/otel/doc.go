// Package otel binds goSession metrics to OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter, an
// Int64ObservableGauge per gauge and per histogram bucket, and a single
// callback that reads [goSession.Service.MetricsSnapshot] on each
// collection cycle. Callers own the MeterProvider and supply the Meter.
package otel
