package alerts

import "time"

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert type identifiers.
const (
	TypeConveyorNoData = "conveyor_no_data"
	TypeConveyorStale  = "conveyor_stale"
	TypeConveyorSlow   = "conveyor_slow"
)

// sourceTable is the event table every conveyor rule reads from; it is
// surfaced in Alert.Source so a caller can tell where the signal came from.
const sourceTable = "conveyor_events"

// ConveyorEvent is one row of conveyor telemetry, written upstream by the
// line equipment and read-only here.
type ConveyorEvent struct {
	ConveyorID  string
	PartID      string
	SourcePi    string
	DurationSec float64
	Speed       float64
	EventTime   time.Time
}

// WindowedStat is a per-conveyor aggregate over the trailing evaluation
// window. Computed fresh per evaluation, never persisted.
type WindowedStat struct {
	ConveyorID  string
	SourcePi    string
	AvgDuration float64
	SampleCount int
}

// Alert is a single derived operational alert. Nullable fields are
// pointers and serialize as explicit null so UI callers can distinguish
// "not applicable" from a zero value.
type Alert struct {
	Type         string     `json:"type"`
	Severity     string     `json:"severity"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	Source       string     `json:"source"`
	EventTime    *time.Time `json:"event_time"`
	ConveyorID   *string    `json:"conveyor_id"`
	PartID       *string    `json:"part_id"`
	SourcePi     *string    `json:"source_pi"`
	TriggerValue *float64   `json:"trigger_value"`
	Threshold    *float64   `json:"threshold"`
}

// Params are the per-call threshold overrides. Zero-valued fields fall
// back to the engine's configured defaults.
type Params struct {
	// StaleSeconds is the staleness limit: a partition whose newest event
	// is older than this fires conveyor_stale.
	StaleSeconds int

	// SlowDuration is the mean cycle duration (seconds) above which the
	// worst windowed conveyor fires conveyor_slow.
	SlowDuration float64

	// WindowMinutes is the trailing lookback for the windowed average.
	WindowMinutes int
}
