package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/linepulse/linepulse/internal/alerts"
	"github.com/linepulse/linepulse/internal/metrics"
	"github.com/linepulse/linepulse/internal/store"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// TelemetryStore is the pass-through query capability the handler reads
// from. *store.Store implements it; tests use fakes.
type TelemetryStore interface {
	Ping(ctx context.Context) error
	TableCounts(ctx context.Context, schema string) ([]store.TableCount, error)
	RecentRows(ctx context.Context, schema, table string, limit int) ([]map[string]any, error)
}

// AlertEvaluator computes the active alert set for a partition.
// *alerts.Engine implements it.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, schema string, p alerts.Params) ([]alerts.Alert, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store   TelemetryStore
	eval    AlertEvaluator
	schema  string // default partition when ?schema= is absent
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// New creates a Handler wired to the given collaborators and registers
// all routes. m may be nil (no instrumentation).
func New(st TelemetryStore, eval AlertEvaluator, defaultSchema string, m *metrics.Metrics) http.Handler {
	h := &Handler{store: st, eval: eval, schema: defaultSchema, metrics: m, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/tables", h.listTables)
	h.mux.HandleFunc("/api/v1/tables/", h.recentRows) // subtree — extracts {table}
	h.mux.HandleFunc("/api/v1/counts", h.counts)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	h.mux.ServeHTTP(sw, r)
	h.metrics.ObserveRequest(routeLabel(r.URL.Path), sw.code)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — 200 when the event store answers.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health: event store unreachable", "err", err)
		jsonErr(w, http.StatusBadGateway, "event store unreachable: "+err.Error())
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// listTables returns GET /api/v1/tables — the fixed table registry.
func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, TablesResponse{Tables: store.Tables})
}

// counts returns GET /api/v1/counts — row counts per registered table.
func (h *Handler) counts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	schema := h.schemaParam(r)

	tables, err := h.store.TableCounts(r.Context(), schema)
	if err != nil {
		h.storeErr(w, "counts", err)
		return
	}
	jsonResp(w, http.StatusOK, CountsResponse{Schema: schema, Tables: tables})
}

// recentRows returns GET /api/v1/tables/{table}/recent — newest rows of
// one registered table.
func (h *Handler) recentRows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/tables/")
	table, verb, ok := strings.Cut(rest, "/")
	if !ok || verb != "recent" || table == "" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, fmt.Sprintf("limit %q must be a positive integer", v))
			return
		}
		limit = n
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	schema := h.schemaParam(r)
	rows, err := h.store.RecentRows(r.Context(), schema, table, limit)
	if err != nil {
		h.storeErr(w, "recent rows", err)
		return
	}
	jsonResp(w, http.StatusOK, RecentRowsResponse{
		Schema: schema,
		Table:  table,
		Rows:   rows,
		Count:  len(rows),
	})
}

// alerts returns GET /api/v1/alerts — the active alert set, recomputed
// from current data on every call.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	var p alerts.Params

	if v := q.Get("conveyor_stale_seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest,
				fmt.Sprintf("conveyor_stale_seconds %q must be a positive integer", v))
			return
		}
		p.StaleSeconds = n
	}
	if v := q.Get("conveyor_slow_duration"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			jsonErr(w, http.StatusBadRequest,
				fmt.Sprintf("conveyor_slow_duration %q must be a positive number", v))
			return
		}
		p.SlowDuration = f
	}
	if v := q.Get("window_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest,
				fmt.Sprintf("window_minutes %q must be a positive integer", v))
			return
		}
		p.WindowMinutes = n
	}

	schema := h.schemaParam(r)
	list, err := h.eval.Evaluate(r.Context(), schema, p)
	if err != nil {
		h.storeErr(w, "alerts", err)
		return
	}
	jsonResp(w, http.StatusOK, AlertsResponse{Alerts: list, Count: len(list)})
}

// --- helpers ----------------------------------------------------------------

// schemaParam returns the requested partition, falling back to the default.
func (h *Handler) schemaParam(r *http.Request) string {
	if s := r.URL.Query().Get("schema"); s != "" {
		return s
	}
	return h.schema
}

// storeErr maps a store/engine error to an HTTP response. Bad identifiers
// are the caller's fault; everything else is a retrieval failure, which
// aborts the whole call rather than returning a partial result.
func (h *Handler) storeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrUnknownTable):
		jsonErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidSchema):
		jsonErr(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("event store query failed", "op", op, "err", err)
		jsonErr(w, http.StatusBadGateway, "event store query failed: "+err.Error())
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// routeLabel collapses parameterised paths to a fixed metrics label so
// cardinality stays bounded.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/api/v1/tables/") && path != "/api/v1/tables/" {
		return "/api/v1/tables/{table}/recent"
	}
	return path
}

// statusWriter captures the response code for request metrics.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
