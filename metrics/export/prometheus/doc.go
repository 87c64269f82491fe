// Package prometheus renders goGate metrics in the Prometheus text
// exposition format.
//
// [New] accepts any [Source], normally a *goGate.Engine, and [Exporter.Handler]
// serves the rendered text. Counters are named gogate_*_total; the login
// and gate latency histograms are gogate_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register anything in a global Prometheus registry.
//   - Mutate engine state.
package prometheus
