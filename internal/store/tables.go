package store

import (
	"errors"
	"regexp"
)

// Errors returned for bad identifiers. The HTTP layer maps these to 4xx
// rather than treating them as retrieval failures.
var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrInvalidSchema = errors.New("invalid schema name")
)

// Table describes one queryable MES event table.
type Table struct {
	// Name is the table name inside the partition schema.
	Name string `json:"name"`

	// OrderBy is the timestamp column that defines "most recent".
	OrderBy string `json:"order_by"`
}

// Tables is the fixed registry of event tables the pass-through endpoints
// may touch. Anything not listed here is rejected before SQL is built.
var Tables = []Table{
	{Name: "parts", OrderBy: "created_at"},
	{Name: "robot_cycles", OrderBy: "event_time"},
	{Name: "inspections", OrderBy: "event_time"},
	{Name: "conveyor_events", OrderBy: "event_time"},
	{Name: "bin_events", OrderBy: "event_time"},
	{Name: "shipments", OrderBy: "shipped_at"},
}

// Postgres identifiers we interpolate: lowercase snake_case, max 63 bytes.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidSchema reports whether s is safe to use as a schema identifier.
func ValidSchema(s string) bool {
	return len(s) > 0 && len(s) <= 63 && identPattern.MatchString(s)
}

// Lookup returns the registry entry for name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
