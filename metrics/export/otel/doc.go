// Package otel publishes engine counters and the validation latency
// histogram through OpenTelemetry observable instruments.
//
// [New] creates an Int64ObservableCounter per counter. Each histogram
// becomes a cumulative bucket gauge carrying an "le" attribute plus a count
// gauge. One callback reads [goWarden.Engine.MetricsSnapshot] per
// collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
