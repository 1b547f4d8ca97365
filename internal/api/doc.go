// Package api implements the HTTP REST API for the linepulse server.
//
// New(store, evaluator, schema, metrics) returns an http.Handler that serves:
//
//	GET /api/v1/health                  — event store reachability probe
//	GET /api/v1/tables                  — queryable table registry
//	GET /api/v1/tables/{table}/recent   — newest rows of one table
//	GET /api/v1/counts                  — per-table row counts
//	GET /api/v1/alerts                  — active operational alerts
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Accept ?schema= to select the partition (default from config)
//
// The alerts endpoint additionally accepts per-call threshold overrides:
// conveyor_stale_seconds, conveyor_slow_duration, window_minutes.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
