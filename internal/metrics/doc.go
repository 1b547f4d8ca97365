// Package metrics registers the linepulse Prometheus collectors and
// serves them over promhttp. All instrumentation hooks are nil-safe so
// packages under test can run without a Metrics instance.
package metrics
