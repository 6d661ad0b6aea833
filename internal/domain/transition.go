package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// This file holds the journey state machine. All methods are pure with
// respect to I/O: they mutate only the receiver, take the current time as a
// parameter, and return any checkpoint that should be appended to the audit
// trail. Persistence and notification are the service layer's job.

// Default notes for engine-synthesized checkpoints.
const (
	noteJourneyStarted   = "Journey started"
	noteJourneyCompleted = "Journey completed"
	noteEmergencyDefault = "Emergency assistance requested"
	noteCheckinMissed    = "Scheduled check-in missed"
)

// Start transitions the journey from planned to active. It sets the actual
// start time, computes the first check-in deadline from now (not from the
// planned start), and returns a synthesized automatic/ok checkpoint.
// Returns ErrInvalidTransition when the journey is not in planned status.
func (j *Journey) Start(now time.Time) (Checkpoint, error) {
	if j.Status != StatusPlanned {
		return Checkpoint{}, fmt.Errorf("start journey in status %q: %w", j.Status, ErrInvalidTransition)
	}

	due := now.Add(j.CheckinInterval())
	start := now

	j.Status = StatusActive
	j.ActualStartTime = &start
	j.LastCheckinTime = &start
	j.NextCheckinDue = &due
	j.CheckinOverdue = false

	return j.newCheckpoint(now, CheckpointAutomatic, CheckpointOK, noteJourneyStarted), nil
}

// ApplyCheckpoint folds a checkpoint into the journey's monitoring state:
// it advances LastCheckinTime, recomputes NextCheckinDue from the
// checkpoint's CheckinTime, and clears the overdue flag, returning an
// overdue journey to active.
//
// An emergency checkpoint (type or status) forces the journey into
// emergency as a documented side effect of recording it. Emergency is
// sticky: a later ok checkpoint updates the check-in bookkeeping but never
// clears emergency status.
//
// The returned bool reports whether this checkpoint transitioned the
// journey INTO emergency, so callers notify once per transition rather than
// once per checkpoint.
//
// Returns ErrInvalidTransition when the journey is planned or completed.
func (j *Journey) ApplyCheckpoint(cp Checkpoint) (enteredEmergency bool, err error) {
	if !j.IsActiveFamily() {
		return false, fmt.Errorf("record checkpoint in status %q: %w", j.Status, ErrInvalidTransition)
	}

	t := cp.CheckinTime
	due := t.Add(j.CheckinInterval())

	j.LastCheckinTime = &t
	j.NextCheckinDue = &due
	j.CheckinOverdue = false

	if cp.IsEmergency() {
		entered := j.Status != StatusEmergency
		j.Status = StatusEmergency
		return entered, nil
	}

	if j.Status == StatusOverdue {
		j.Status = StatusActive
	}
	return false, nil
}

// Complete transitions an active-family journey to completed and returns the
// closing manual/ok checkpoint. Completed is terminal: no further transition
// accepts the journey afterwards. This is also the only exit from emergency.
func (j *Journey) Complete(now time.Time, notes string) (Checkpoint, error) {
	if !j.IsActiveFamily() {
		return Checkpoint{}, fmt.Errorf("complete journey in status %q: %w", j.Status, ErrInvalidTransition)
	}

	end := now
	j.Status = StatusCompleted
	j.ActualEndTime = &end
	j.CheckinOverdue = false
	j.CompletionNotes = notes

	return j.newCheckpoint(now, CheckpointManual, CheckpointOK, noteJourneyCompleted), nil
}

// TriggerEmergency transitions an active-family journey to emergency and
// returns the emergency checkpoint to append. Idempotent: when the journey
// is already in emergency the state is untouched, no checkpoint is produced,
// and triggered is false — repeated panic-button presses do not flood the
// audit trail or re-alert.
func (j *Journey) TriggerEmergency(now time.Time, notes string) (cp Checkpoint, triggered bool, err error) {
	if !j.IsActiveFamily() {
		return Checkpoint{}, false, fmt.Errorf("trigger emergency in status %q: %w", j.Status, ErrInvalidTransition)
	}
	if j.Status == StatusEmergency {
		return Checkpoint{}, false, nil
	}

	if notes == "" {
		notes = noteEmergencyDefault
	}
	j.Status = StatusEmergency

	return j.newCheckpoint(now, CheckpointEmergency, CheckpointStatusEmergency, notes), true, nil
}

// ApplyTimeout marks an active journey overdue when its check-in deadline
// has passed. It reports whether a transition happened; it is a no-op (never
// an error) when the journey is already overdue, not yet due, or not in
// plain active status. Called only by the overdue scanner.
func (j *Journey) ApplyTimeout(now time.Time) bool {
	if j.Status != StatusActive {
		return false
	}
	if j.NextCheckinDue == nil || !now.After(*j.NextCheckinDue) {
		return false
	}

	j.Status = StatusOverdue
	j.CheckinOverdue = true
	return true
}

// MissedCheckpoint builds the audit-trail record for a timeout transition.
// Append it only when ApplyTimeout reports a transition, so repeated scans
// of an already-overdue journey produce no additional checkpoints.
func (j *Journey) MissedCheckpoint(now time.Time) Checkpoint {
	return j.newCheckpoint(now, CheckpointMissed, CheckpointAssistanceNeeded, noteCheckinMissed)
}

func (j *Journey) newCheckpoint(now time.Time, typ CheckpointType, status CheckpointStatus, notes string) Checkpoint {
	return Checkpoint{
		ID:          uuid.New(),
		JourneyID:   j.ID,
		CheckinTime: now,
		Type:        typ,
		Status:      status,
		Notes:       notes,
	}
}
