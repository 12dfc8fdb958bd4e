// Package prometheus exports credlife engine counters as a prometheus.Collector.
//
// Register an [Exporter] with your own registry, or mount [Exporter.Handler].
// Counters are named credlife_*_total; verify latency is the histogram
// credlife_verify_latency_seconds.
package prometheus
