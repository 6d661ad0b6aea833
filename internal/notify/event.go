// Package notify implements the notification gateway: journey safety events
// are enqueued to a Redis list and drained by a webhook sender worker.
// Delivery is at-least-once from the consumer's point of view; the engine
// itself never blocks a state transition on notification success.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a safety event.
type EventKind string

const (
	// KindOverdue fires once per transition into overdue status.
	KindOverdue EventKind = "overdue"
	// KindEmergency fires once per transition into emergency status.
	KindEmergency EventKind = "emergency"
)

// Event is the payload handed to supervisors/emergency contacts via the
// gateway. It carries enough context to act on without a follow-up lookup.
type Event struct {
	JourneyID  uuid.UUID `json:"journey_id"`
	WorkerID   uuid.UUID `json:"worker_id"`
	TeamID     uuid.UUID `json:"team_id"`
	Kind       EventKind `json:"kind"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
