package metrics

import "time"

// MetricsEvent is a single named measurement with optional tags.
// Emitted events: turn_complete, gateway_round, tool_invoked.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
