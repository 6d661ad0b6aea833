package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckpointType distinguishes how a checkpoint came to exist.
type CheckpointType string

const (
	// CheckpointAutomatic is synthesized by the engine (e.g. the "Journey
	// started" record created by Start).
	CheckpointAutomatic CheckpointType = "automatic"
	// CheckpointManual is a check-in submitted by the worker.
	CheckpointManual CheckpointType = "manual"
	// CheckpointEmergency records an emergency trigger or SOS check-in.
	CheckpointEmergency CheckpointType = "emergency"
	// CheckpointMissed is appended by the overdue scanner when a check-in
	// deadline passes without a checkpoint.
	CheckpointMissed CheckpointType = "missed"
)

// CheckpointStatus is the worker-reported condition at check-in time.
type CheckpointStatus string

const (
	CheckpointOK               CheckpointStatus = "ok"
	CheckpointAssistanceNeeded CheckpointStatus = "assistance_needed"
	CheckpointStatusEmergency  CheckpointStatus = "emergency"
)

// Checkpoint is an immutable record of one check-in event belonging to
// exactly one journey. Checkpoints are append-only: they are created by the
// checkpoint recorder (or synthesized by a transition) and never updated or
// deleted. A journey's checkpoints ordered by CheckinTime form its audit
// trail.
type Checkpoint struct {
	ID        uuid.UUID `json:"id"`
	JourneyID uuid.UUID `json:"journey_id"`

	CheckinTime time.Time `json:"checkin_time"`

	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"location_name,omitempty"`

	Type   CheckpointType   `json:"type"`
	Status CheckpointStatus `json:"status"`

	Notes          string   `json:"notes,omitempty"`
	IssuesReported string   `json:"issues_reported,omitempty"`
	PhotoRefs      []string `json:"photo_refs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsEmergency reports whether this checkpoint forces its parent journey into
// emergency status. Either the type or the reported status qualifies.
func (c Checkpoint) IsEmergency() bool {
	return c.Type == CheckpointEmergency || c.Status == CheckpointStatusEmergency
}
