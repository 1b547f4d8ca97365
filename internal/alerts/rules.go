package alerts

import "fmt"

// ruleInput is the immutable evaluation context shared by all rules.
// latest is nil when the partition has no conveyor events at all.
// secondsStale is only meaningful when latest is non-nil.
// worst is nil when no group met the minimum-sample floor.
type ruleInput struct {
	latest       *ConveyorEvent
	secondsStale float64
	worst        *WindowedStat
	params       Params
}

// A rule inspects the evaluation context and returns an alert, or nil if
// it does not fire. Rules are independent of each other.
type rule func(ruleInput) *Alert

// conveyorRules is the closed, ordered rule set. Every rule runs on every
// evaluation; adding a rule is a pure append here.
var conveyorRules = []rule{noDataRule, staleRule, slowRule}

// noDataRule fires when the partition has never recorded a conveyor event.
func noDataRule(in ruleInput) *Alert {
	if in.latest != nil {
		return nil
	}
	return &Alert{
		Type:     TypeConveyorNoData,
		Severity: SeverityCritical,
		Title:    "No conveyor data",
		Message:  "No conveyor events have ever been recorded in this partition.",
		Source:   sourceTable,
	}
}

// staleRule fires when the newest event is older than the staleness limit.
// Staleness is undefined without any data, so the no-data case suppresses
// this rule.
func staleRule(in ruleInput) *Alert {
	if in.latest == nil {
		return nil
	}
	limit := float64(in.params.StaleSeconds)
	if in.secondsStale <= limit {
		return nil
	}

	ev := *in.latest
	trigger := in.secondsStale
	return &Alert{
		Type:     TypeConveyorStale,
		Severity: SeverityWarning,
		Title:    "Conveyor telemetry stale",
		Message: fmt.Sprintf("Last conveyor event was %d seconds ago (limit %d s).",
			int(in.secondsStale), in.params.StaleSeconds),
		Source:       sourceTable,
		EventTime:    &ev.EventTime,
		ConveyorID:   &ev.ConveyorID,
		PartID:       &ev.PartID,
		SourcePi:     &ev.SourcePi,
		TriggerValue: &trigger,
		Threshold:    &limit,
	}
}

// slowRule fires when the worst qualifying windowed conveyor averages more
// than the slow-duration limit. part_id is not applicable to a windowed
// aggregate and stays null.
func slowRule(in ruleInput) *Alert {
	if in.worst == nil || in.worst.AvgDuration <= in.params.SlowDuration {
		return nil
	}

	w := *in.worst
	trigger := w.AvgDuration
	limit := in.params.SlowDuration
	return &Alert{
		Type:     TypeConveyorSlow,
		Severity: SeverityWarning,
		Title:    "Conveyor running slow",
		Message: fmt.Sprintf("Conveyor %s averaged %.2f s per cycle over the last %d min (%d samples).",
			w.ConveyorID, w.AvgDuration, in.params.WindowMinutes, w.SampleCount),
		Source:       sourceTable,
		ConveyorID:   &w.ConveyorID,
		SourcePi:     &w.SourcePi,
		TriggerValue: &trigger,
		Threshold:    &limit,
	}
}
