// Package otel publishes goGate counters and latency histograms through
// OpenTelemetry observable instruments.
//
// [New] creates an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per histogram bucket. One callback reads
// [goGate.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
