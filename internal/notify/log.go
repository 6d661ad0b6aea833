package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes events to the structured log instead of a queue. It is
// the fallback when no Redis address is configured, so development setups
// still surface overdue/emergency transitions.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier on the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the event at warn level and always succeeds.
func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.logger.Warn("journey safety event",
		"journey_id", ev.JourneyID,
		"worker_id", ev.WorkerID,
		"kind", ev.Kind,
		"message", ev.Message,
		"occurred_at", ev.OccurredAt,
	)
	return nil
}
