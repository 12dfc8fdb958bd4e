// Package otel binds credlife engine counters to OpenTelemetry observable
// instruments.
//
// [NewExporter] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per latency bucket. One callback reads the engine snapshot on
// each collection cycle. Callers own the MeterProvider.
package otel
