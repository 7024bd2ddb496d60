// Package prometheus exposes engine counters through a
// prometheus.Collector.
//
// [NewCollector] reads [goWarden.Engine.MetricsSnapshot] at scrape time.
// Register it with your own registry or mount [Handler]. Counter names
// are prefixed warden_ and end in _total; the single histogram is
// warden_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register with the global Prometheus registry.
//   - Mutate engine state.
package prometheus
