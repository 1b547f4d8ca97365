// Package alerts implements the rule evaluation engine for linepulse.
// It derives operational alerts (missing data, stale telemetry, slow
// conveyors) from the most recent conveyor telemetry window. The engine
// is stateless: every call recomputes the active alert set from current
// data, so two calls against an unchanged store yield identical results.
package alerts
