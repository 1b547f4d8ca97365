package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Source is the read-only query capability the engine consumes. A nil
// event / stat with a nil error means "no data" — empty partitions are
// valid inputs, not failures.
type Source interface {
	// LatestConveyorEvent returns the most recent event in the partition,
	// or nil if the partition has none.
	LatestConveyorEvent(ctx context.Context, schema string) (*ConveyorEvent, error)

	// SecondsSinceLastEvent returns the elapsed seconds since the newest
	// event. ok is false when the partition has no events.
	SecondsSinceLastEvent(ctx context.Context, schema string) (seconds float64, ok bool, err error)

	// SlowestConveyor returns the (conveyor_id, source_pi) group with the
	// highest mean cycle duration over the trailing window, counting only
	// groups with at least minSamples events. nil if no group qualifies.
	SlowestConveyor(ctx context.Context, schema string, window time.Duration, minSamples int) (*WindowedStat, error)
}

// Engine evaluates the conveyor rule set against a telemetry source.
//
// Engine is safe for concurrent use; it holds no per-call state.
type Engine struct {
	src        Source
	minSamples int

	// OnFire, when non-nil, is invoked once per emitted alert with the
	// alert type. Used as a metrics hook.
	OnFire func(alertType string)

	mu       sync.RWMutex
	defaults Params
}

// New creates an Engine reading from src. defaults fills any zero-valued
// per-call Params; minSamples is the fixed minimum-sample floor for the
// windowed average.
func New(src Source, defaults Params, minSamples int) *Engine {
	return &Engine{
		src:        src,
		minSamples: minSamples,
		defaults:   defaults,
	}
}

// SetDefaults atomically replaces the default thresholds. Called on
// config hot reload; in-flight evaluations keep the values they started
// with.
func (e *Engine) SetDefaults(p Params) {
	e.mu.Lock()
	e.defaults = p
	e.mu.Unlock()
}

// Defaults returns the current default thresholds.
func (e *Engine) Defaults() Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defaults
}

// Evaluate computes the active alert set for schema. Zero-valued fields
// in p fall back to the engine defaults. Any retrieval failure aborts the
// whole call — a partial alert list could hide the very condition a rule
// exists to report.
func (e *Engine) Evaluate(ctx context.Context, schema string, p Params) ([]Alert, error) {
	p = e.fill(p)

	// The latest-event and staleness reads are independent; issue them
	// concurrently. A small race between the two is tolerated — alerts
	// are advisory, not transactional.
	var (
		seconds  float64
		hasStale bool
		staleErr error
		done     = make(chan struct{})
	)
	go func() {
		defer close(done)
		seconds, hasStale, staleErr = e.src.SecondsSinceLastEvent(ctx, schema)
	}()

	latest, err := e.src.LatestConveyorEvent(ctx, schema)
	<-done
	if err != nil {
		return nil, fmt.Errorf("latest conveyor event: %w", err)
	}
	if staleErr != nil {
		return nil, fmt.Errorf("seconds since last event: %w", staleErr)
	}

	window := time.Duration(p.WindowMinutes) * time.Minute
	worst, err := e.src.SlowestConveyor(ctx, schema, window, e.minSamples)
	if err != nil {
		return nil, fmt.Errorf("slowest conveyor over window: %w", err)
	}

	if !hasStale {
		// Raced with the latest-event read; without a measured staleness
		// the stale rule stays quiet this round.
		seconds = 0
	}

	in := ruleInput{
		latest:       latest,
		secondsStale: seconds,
		worst:        worst,
		params:       p,
	}

	out := make([]Alert, 0, len(conveyorRules))
	for _, r := range conveyorRules {
		a := r(in)
		if a == nil {
			continue
		}
		out = append(out, *a)

		slog.Warn("alert fired",
			"type", a.Type,
			"severity", a.Severity,
			"schema", schema,
		)
		if e.OnFire != nil {
			e.OnFire(a.Type)
		}
	}
	return out, nil
}

// fill substitutes engine defaults for zero-valued per-call overrides.
func (e *Engine) fill(p Params) Params {
	d := e.Defaults()
	if p.StaleSeconds <= 0 {
		p.StaleSeconds = d.StaleSeconds
	}
	if p.SlowDuration <= 0 {
		p.SlowDuration = d.SlowDuration
	}
	if p.WindowMinutes <= 0 {
		p.WindowMinutes = d.WindowMinutes
	}
	return p
}
