package api

import (
	"github.com/linepulse/linepulse/internal/alerts"
	"github.com/linepulse/linepulse/internal/store"
)

// AlertsResponse is the payload for GET /api/v1/alerts. Alerts preserve
// rule-evaluation order; Count is always len(Alerts).
type AlertsResponse struct {
	Alerts []alerts.Alert `json:"alerts"`
	Count  int            `json:"count"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// TablesResponse is the payload for GET /api/v1/tables.
type TablesResponse struct {
	Tables []store.Table `json:"tables"`
}

// CountsResponse is the payload for GET /api/v1/counts.
type CountsResponse struct {
	Schema string             `json:"schema"`
	Tables []store.TableCount `json:"tables"`
}

// RecentRowsResponse is the payload for GET /api/v1/tables/{table}/recent.
// Rows are generic column maps, newest first.
type RecentRowsResponse struct {
	Schema string           `json:"schema"`
	Table  string           `json:"table"`
	Rows   []map[string]any `json:"rows"`
	Count  int              `json:"count"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
