package observability

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/event"
)

// CommandMonitor feeds driver command events into the db histograms.
func (p *Prom) CommandMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Succeeded: func(_ context.Context, evt *event.CommandSucceededEvent) {
			p.DbCommandDuration.WithLabelValues(evt.CommandName, "ok").Observe(evt.Duration.Seconds())
		},
		Failed: func(_ context.Context, evt *event.CommandFailedEvent) {
			p.DbCommandDuration.WithLabelValues(evt.CommandName, "error").Observe(evt.Duration.Seconds())
			p.DbErrorsTotal.WithLabelValues(evt.CommandName, classifyDBFailure(evt.Failure)).Inc()
		},
	}
}

func classifyDBFailure(failure string) string {
	msg := strings.ToLower(failure)
	switch {
	case strings.Contains(msg, "e11000") || strings.Contains(msg, "duplicate key"):
		return "duplicate_key"
	case strings.Contains(msg, "writeconflict") || strings.Contains(msg, "write conflict"):
		return "write_conflict"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "unknown"
	}
}
