package alerts_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/linepulse/linepulse/internal/alerts"
)

// --- test helpers -----------------------------------------------------------

// fakeSource is an in-memory alerts.Source with scripted responses. It
// records the window and sample floor it was asked for.
type fakeSource struct {
	latest    *alerts.ConveyorEvent
	latestErr error

	seconds    float64
	hasSeconds bool
	secondsErr error

	worst    *alerts.WindowedStat
	worstErr error

	gotWindow     time.Duration
	gotMinSamples int
}

func (f *fakeSource) LatestConveyorEvent(_ context.Context, _ string) (*alerts.ConveyorEvent, error) {
	return f.latest, f.latestErr
}

func (f *fakeSource) SecondsSinceLastEvent(_ context.Context, _ string) (float64, bool, error) {
	return f.seconds, f.hasSeconds, f.secondsErr
}

func (f *fakeSource) SlowestConveyor(_ context.Context, _ string, window time.Duration, minSamples int) (*alerts.WindowedStat, error) {
	f.gotWindow = window
	f.gotMinSamples = minSamples
	return f.worst, f.worstErr
}

func event(conveyor, part, pi string, age time.Duration) *alerts.ConveyorEvent {
	return &alerts.ConveyorEvent{
		ConveyorID:  conveyor,
		PartID:      part,
		SourcePi:    pi,
		DurationSec: 2.1,
		Speed:       0.8,
		EventTime:   time.Now().Add(-age),
	}
}

func newEngine(src alerts.Source) *alerts.Engine {
	return alerts.New(src, alerts.Params{
		StaleSeconds:  30,
		SlowDuration:  3.0,
		WindowMinutes: 2,
	}, 5)
}

func evaluate(t *testing.T, src alerts.Source, p alerts.Params) []alerts.Alert {
	t.Helper()
	out, err := newEngine(src).Evaluate(context.Background(), "line_a", p)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return out
}

func types(list []alerts.Alert) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Type
	}
	return out
}

// --- empty partition --------------------------------------------------------

func TestEvaluate_EmptyPartition(t *testing.T) {
	src := &fakeSource{} // no events ever, no qualifying window group
	out := evaluate(t, src, alerts.Params{})

	if len(out) != 1 {
		t.Fatalf("alerts: got %v, want exactly one", types(out))
	}
	a := out[0]
	if a.Type != alerts.TypeConveyorNoData {
		t.Errorf("type: got %q, want %q", a.Type, alerts.TypeConveyorNoData)
	}
	if a.Severity != alerts.SeverityCritical {
		t.Errorf("severity: got %q, want critical", a.Severity)
	}
	if a.ConveyorID != nil || a.PartID != nil || a.SourcePi != nil {
		t.Errorf("identifiers must all be null, got %+v", a)
	}
	if a.TriggerValue != nil || a.Threshold != nil {
		t.Errorf("trigger/threshold must be null, got %+v", a)
	}
	if a.EventTime != nil {
		t.Errorf("event_time must be null, got %v", a.EventTime)
	}
}

// --- staleness --------------------------------------------------------------

func TestEvaluate_Stale(t *testing.T) {
	src := &fakeSource{
		latest:     event("C1", "P-100", "pi-1", 45*time.Second),
		seconds:    45,
		hasSeconds: true,
	}
	out := evaluate(t, src, alerts.Params{})

	if got := types(out); len(got) != 1 || got[0] != alerts.TypeConveyorStale {
		t.Fatalf("alerts: got %v, want [conveyor_stale]", got)
	}
	a := out[0]
	if a.Severity != alerts.SeverityWarning {
		t.Errorf("severity: got %q, want warning", a.Severity)
	}
	if a.TriggerValue == nil || *a.TriggerValue != 45 {
		t.Errorf("trigger_value: got %v, want 45", a.TriggerValue)
	}
	if a.Threshold == nil || *a.Threshold != 30 {
		t.Errorf("threshold: got %v, want 30", a.Threshold)
	}
	if a.ConveyorID == nil || *a.ConveyorID != "C1" {
		t.Errorf("conveyor_id: got %v, want C1", a.ConveyorID)
	}
	if a.PartID == nil || *a.PartID != "P-100" {
		t.Errorf("part_id: got %v, want P-100", a.PartID)
	}
	if a.SourcePi == nil || *a.SourcePi != "pi-1" {
		t.Errorf("source_pi: got %v, want pi-1", a.SourcePi)
	}
	if a.EventTime == nil {
		t.Error("event_time must carry the latest event's timestamp")
	}
}

func TestEvaluate_FreshDataIsQuiet(t *testing.T) {
	src := &fakeSource{
		latest:     event("C1", "P-100", "pi-1", 10*time.Second),
		seconds:    10,
		hasSeconds: true,
	}
	if out := evaluate(t, src, alerts.Params{}); len(out) != 0 {
		t.Fatalf("alerts: got %v, want none", types(out))
	}
}

func TestEvaluate_StaleBoundaryDoesNotFire(t *testing.T) {
	// seconds_stale == threshold is not stale; the rule needs a strict excess.
	src := &fakeSource{
		latest:     event("C1", "P-100", "pi-1", 30*time.Second),
		seconds:    30,
		hasSeconds: true,
	}
	if out := evaluate(t, src, alerts.Params{}); len(out) != 0 {
		t.Fatalf("alerts: got %v, want none", types(out))
	}
}

func TestEvaluate_StaleMessageFloorsSeconds(t *testing.T) {
	src := &fakeSource{
		latest:     event("C1", "P-100", "pi-1", 46*time.Second),
		seconds:    45.9,
		hasSeconds: true,
	}
	out := evaluate(t, src, alerts.Params{})
	if len(out) != 1 {
		t.Fatalf("alerts: got %v, want one", types(out))
	}
	if !strings.Contains(out[0].Message, "45 seconds") {
		t.Errorf("message %q should show floored seconds 45", out[0].Message)
	}
	if *out[0].TriggerValue != 45.9 {
		t.Errorf("trigger_value keeps the raw measurement: got %v", *out[0].TriggerValue)
	}
}

// --- slow conveyor ----------------------------------------------------------

func TestEvaluate_SlowConveyor(t *testing.T) {
	src := &fakeSource{
		latest:     event("C3", "P-200", "pi-2", 5*time.Second),
		seconds:    5,
		hasSeconds: true,
		worst: &alerts.WindowedStat{
			ConveyorID:  "C3",
			SourcePi:    "pi-2",
			AvgDuration: 4.2,
			SampleCount: 6,
		},
	}
	out := evaluate(t, src, alerts.Params{})

	if got := types(out); len(got) != 1 || got[0] != alerts.TypeConveyorSlow {
		t.Fatalf("alerts: got %v, want [conveyor_slow]", got)
	}
	a := out[0]
	if a.TriggerValue == nil || *a.TriggerValue != 4.2 {
		t.Errorf("trigger_value: got %v, want 4.2", a.TriggerValue)
	}
	if a.Threshold == nil || *a.Threshold != 3.0 {
		t.Errorf("threshold: got %v, want 3.0", a.Threshold)
	}
	if a.PartID != nil {
		t.Errorf("part_id is not applicable to a windowed aggregate, got %v", *a.PartID)
	}
	if a.ConveyorID == nil || *a.ConveyorID != "C3" {
		t.Errorf("conveyor_id: got %v, want C3", a.ConveyorID)
	}
	for _, want := range []string{"C3", "4.20", "2 min", "6 samples"} {
		if !strings.Contains(a.Message, want) {
			t.Errorf("message %q missing %q", a.Message, want)
		}
	}
}

func TestEvaluate_SlowAtThresholdDoesNotFire(t *testing.T) {
	src := &fakeSource{
		latest:     event("C3", "P-200", "pi-2", 5*time.Second),
		seconds:    5,
		hasSeconds: true,
		worst: &alerts.WindowedStat{
			ConveyorID:  "C3",
			SourcePi:    "pi-2",
			AvgDuration: 3.0,
			SampleCount: 8,
		},
	}
	if out := evaluate(t, src, alerts.Params{}); len(out) != 0 {
		t.Fatalf("alerts: got %v, want none", types(out))
	}
}

func TestEvaluate_WindowAndFloorReachSource(t *testing.T) {
	src := &fakeSource{
		latest:     event("C1", "P-100", "pi-1", time.Second),
		seconds:    1,
		hasSeconds: true,
	}
	evaluate(t, src, alerts.Params{})

	if src.gotWindow != 2*time.Minute {
		t.Errorf("window: got %v, want 2m (default)", src.gotWindow)
	}
	if src.gotMinSamples != 5 {
		t.Errorf("min samples: got %d, want 5", src.gotMinSamples)
	}
}

// --- rule interaction -------------------------------------------------------

func TestEvaluate_StaleAndSlowBothFire(t *testing.T) {
	src := &fakeSource{
		latest:     event("C1", "P-100", "pi-1", 90*time.Second),
		seconds:    90,
		hasSeconds: true,
		worst: &alerts.WindowedStat{
			ConveyorID:  "C2",
			SourcePi:    "pi-1",
			AvgDuration: 5.5,
			SampleCount: 7,
		},
	}
	got := types(evaluate(t, src, alerts.Params{}))
	want := []string{alerts.TypeConveyorStale, alerts.TypeConveyorSlow}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("alerts: got %v, want %v (rule order preserved)", got, want)
	}
}

func TestEvaluate_NoDataDoesNotSuppressSlowRule(t *testing.T) {
	// The slow rule evaluates independently of the no-data rule; normally
	// an empty partition also has no qualifying window group, but if one
	// surfaces it is still reported.
	src := &fakeSource{
		worst: &alerts.WindowedStat{
			ConveyorID:  "C9",
			SourcePi:    "pi-3",
			AvgDuration: 6.0,
			SampleCount: 6,
		},
	}
	got := types(evaluate(t, src, alerts.Params{}))
	want := []string{alerts.TypeConveyorNoData, alerts.TypeConveyorSlow}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("alerts: got %v, want %v", got, want)
	}
}

// --- per-call overrides -----------------------------------------------------

func TestEvaluate_Overrides(t *testing.T) {
	src := &fakeSource{
		latest:     event("C1", "P-100", "pi-1", 45*time.Second),
		seconds:    45,
		hasSeconds: true,
		worst: &alerts.WindowedStat{
			ConveyorID:  "C3",
			SourcePi:    "pi-2",
			AvgDuration: 4.2,
			SampleCount: 6,
		},
	}
	out := evaluate(t, src, alerts.Params{
		StaleSeconds:  60,  // 45s is no longer stale
		SlowDuration:  5.0, // 4.2s is no longer slow
		WindowMinutes: 10,
	})
	if len(out) != 0 {
		t.Fatalf("alerts: got %v, want none with relaxed thresholds", types(out))
	}
	if src.gotWindow != 10*time.Minute {
		t.Errorf("window: got %v, want 10m (override)", src.gotWindow)
	}
}

func TestSetDefaults(t *testing.T) {
	src := &fakeSource{
		latest:     event("C1", "P-100", "pi-1", 45*time.Second),
		seconds:    45,
		hasSeconds: true,
	}
	e := newEngine(src)
	e.SetDefaults(alerts.Params{StaleSeconds: 120, SlowDuration: 3.0, WindowMinutes: 2})

	out, err := e.Evaluate(context.Background(), "line_a", alerts.Params{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("alerts: got %v, want none after raising the default limit", types(out))
	}
}

// --- failure and idempotence ------------------------------------------------

func TestEvaluate_RetrievalFailureAbortsWholeCall(t *testing.T) {
	boom := errors.New("connection refused")
	cases := map[string]*fakeSource{
		"latest":  {latestErr: boom},
		"seconds": {secondsErr: boom},
		"window":  {worstErr: boom},
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := newEngine(src).Evaluate(context.Background(), "line_a", alerts.Params{})
			if err == nil {
				t.Fatal("want error, got nil")
			}
			if !errors.Is(err, boom) {
				t.Errorf("error should wrap the cause: %v", err)
			}
			if out != nil {
				t.Errorf("no partial alert list on failure, got %v", types(out))
			}
		})
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	src := &fakeSource{
		latest:     event("C1", "P-100", "pi-1", 45*time.Second),
		seconds:    45,
		hasSeconds: true,
		worst: &alerts.WindowedStat{
			ConveyorID:  "C3",
			SourcePi:    "pi-2",
			AvgDuration: 4.2,
			SampleCount: 6,
		},
	}
	e := newEngine(src)

	first, err := e.Evaluate(context.Background(), "line_a", alerts.Params{})
	if err != nil {
		t.Fatalf("first Evaluate: %v", err)
	}
	second, err := e.Evaluate(context.Background(), "line_a", alerts.Params{})
	if err != nil {
		t.Fatalf("second Evaluate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated evaluation differs:\n first: %+v\nsecond: %+v", first, second)
	}
}

func TestEvaluate_OnFireHook(t *testing.T) {
	src := &fakeSource{
		latest:     event("C1", "P-100", "pi-1", 45*time.Second),
		seconds:    45,
		hasSeconds: true,
		worst: &alerts.WindowedStat{
			ConveyorID:  "C3",
			SourcePi:    "pi-2",
			AvgDuration: 4.2,
			SampleCount: 6,
		},
	}
	e := newEngine(src)

	var fired []string
	e.OnFire = func(alertType string) { fired = append(fired, alertType) }

	if _, err := e.Evaluate(context.Background(), "line_a", alerts.Params{}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []string{alerts.TypeConveyorStale, alerts.TypeConveyorSlow}
	if !reflect.DeepEqual(fired, want) {
		t.Errorf("OnFire calls: got %v, want %v", fired, want)
	}
}
