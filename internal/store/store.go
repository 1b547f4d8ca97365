package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linepulse/linepulse/internal/alerts"
)

// connectTimeout bounds connection establishment so a stalled database
// fails the call fast instead of hanging it.
const connectTimeout = 5 * time.Second

// TableCount is one entry of the per-table row count listing.
type TableCount struct {
	Table string `json:"table"`
	Count int64  `json:"count"`
}

// Store runs read-only queries against the MES event store.
type Store struct {
	pool *pgxpool.Pool

	// OnQuery, when non-nil, is invoked after every query with its name
	// and duration. Used as a metrics hook.
	OnQuery func(query string, d time.Duration)
}

// New creates a Store over an already-connected pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect builds a pgx pool for url with a bounded connect timeout.
// The pool is shared by all request handlers; connections are acquired
// per query and recycled.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return pool, nil
}

// Ping verifies the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// LatestConveyorEvent returns the most recent conveyor event in schema,
// or nil if the partition has no conveyor events.
func (s *Store) LatestConveyorEvent(ctx context.Context, schema string) (*alerts.ConveyorEvent, error) {
	if !ValidSchema(schema) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchema, schema)
	}
	defer s.observe("latest_conveyor_event", time.Now())

	q := fmt.Sprintf(`
		SELECT conveyor_id, part_id, source_pi, duration_sec, speed, event_time
		FROM %s.conveyor_events
		ORDER BY event_time DESC
		LIMIT 1`, schema)

	var ev alerts.ConveyorEvent
	err := s.pool.QueryRow(ctx, q).Scan(
		&ev.ConveyorID, &ev.PartID, &ev.SourcePi,
		&ev.DurationSec, &ev.Speed, &ev.EventTime,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest conveyor event: %w", err)
	}
	return &ev, nil
}

// SecondsSinceLastEvent returns the elapsed seconds between now and the
// newest conveyor event in schema. ok is false when the partition is empty.
func (s *Store) SecondsSinceLastEvent(ctx context.Context, schema string) (float64, bool, error) {
	if !ValidSchema(schema) {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidSchema, schema)
	}
	defer s.observe("seconds_since_last_event", time.Now())

	q := fmt.Sprintf(`
		SELECT EXTRACT(EPOCH FROM (now() - max(event_time)))::float8
		FROM %s.conveyor_events`, schema)

	// The aggregate always yields one row; it is NULL on an empty table.
	var seconds *float64
	if err := s.pool.QueryRow(ctx, q).Scan(&seconds); err != nil {
		return 0, false, fmt.Errorf("query seconds since last event: %w", err)
	}
	if seconds == nil {
		return 0, false, nil
	}
	return *seconds, true, nil
}

// SlowestConveyor returns the (conveyor_id, source_pi) group with the
// highest mean cycle duration over the trailing window, considering only
// groups with at least minSamples events. nil if no group qualifies.
// Ties are broken by whatever order the database returns.
func (s *Store) SlowestConveyor(ctx context.Context, schema string, window time.Duration, minSamples int) (*alerts.WindowedStat, error) {
	if !ValidSchema(schema) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchema, schema)
	}
	defer s.observe("slowest_conveyor", time.Now())

	q := fmt.Sprintf(`
		SELECT conveyor_id, source_pi, avg(duration_sec)::float8, count(*)::int
		FROM %s.conveyor_events
		WHERE event_time >= now() - ($1 * interval '1 second')
		GROUP BY conveyor_id, source_pi
		HAVING count(*) >= $2
		ORDER BY avg(duration_sec) DESC
		LIMIT 1`, schema)

	var w alerts.WindowedStat
	err := s.pool.QueryRow(ctx, q, window.Seconds(), minSamples).Scan(
		&w.ConveyorID, &w.SourcePi, &w.AvgDuration, &w.SampleCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query slowest conveyor: %w", err)
	}
	return &w, nil
}

// TableCounts returns the row count of every registered table in schema,
// in registry order.
func (s *Store) TableCounts(ctx context.Context, schema string) ([]TableCount, error) {
	if !ValidSchema(schema) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchema, schema)
	}
	defer s.observe("table_counts", time.Now())

	out := make([]TableCount, 0, len(Tables))
	for _, t := range Tables {
		q := fmt.Sprintf(`SELECT count(*) FROM %s.%s`, schema, t.Name)
		var n int64
		if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.Name, err)
		}
		out = append(out, TableCount{Table: t.Name, Count: n})
	}
	return out, nil
}

// RecentRows returns up to limit rows of table in schema, newest first by
// the table's registered timestamp column. Rows are generic column maps —
// this is the raw table peek, not a typed model.
func (s *Store) RecentRows(ctx context.Context, schema, table string, limit int) ([]map[string]any, error) {
	if !ValidSchema(schema) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchema, schema)
	}
	t, ok := Lookup(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	defer s.observe("recent_rows", time.Now())

	q := fmt.Sprintf(`SELECT * FROM %s.%s ORDER BY %s DESC LIMIT $1`,
		schema, t.Name, t.OrderBy)

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent %s rows: %w", t.Name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := make([]map[string]any, 0, limit)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read %s row: %w", t.Name, err)
		}
		m := make(map[string]any, len(fields))
		for i, f := range fields {
			m[f.Name] = vals[i]
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", t.Name, err)
	}
	return out, nil
}

func (s *Store) observe(query string, start time.Time) {
	if s.OnQuery != nil {
		s.OnQuery(query, time.Since(start))
	}
}
