// Package domain contains the core data types and state-machine logic for
// the journey monitoring engine. This package has zero external dependencies
// beyond uuid and is imported by every other internal package (repo, service,
// handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// JourneyStatus is the closed set of lifecycle states a journey moves through.
// Transitions are performed exclusively by the methods in transition.go;
// nothing else writes Status.
type JourneyStatus string

const (
	// StatusPlanned is the initial state: the journey exists but monitoring
	// has not begun.
	StatusPlanned JourneyStatus = "planned"
	// StatusActive means the worker is en route and check-ins are being
	// monitored against NextCheckinDue.
	StatusActive JourneyStatus = "active"
	// StatusOverdue means the check-in deadline passed without a checkpoint.
	// A fresh check-in returns the journey to StatusActive.
	StatusOverdue JourneyStatus = "overdue"
	// StatusEmergency means an emergency checkpoint or manual trigger
	// occurred. Sticky: only Complete exits this state.
	StatusEmergency JourneyStatus = "emergency"
	// StatusCompleted is terminal.
	StatusCompleted JourneyStatus = "completed"
)

// Check-in interval bounds, in minutes.
const (
	MinCheckinIntervalMinutes = 15
	MaxCheckinIntervalMinutes = 480
)

// Waypoint is one ordered point on a journey's planned route.
type Waypoint struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Journey is a planned excursion for exactly one worker, optionally with one
// vehicle. It is the aggregate root; checkpoints belong to a journey.
//
// NextCheckinDue is maintained as LastCheckinTime + check-in interval for as
// long as the journey is in an active-family state. CheckinOverdue is a
// monitoring flag, not a separate lifecycle: it is set by ApplyTimeout and
// cleared by the next successful checkpoint.
type Journey struct {
	ID       uuid.UUID `json:"id"`
	WorkerID uuid.UUID `json:"worker_id"`
	// TeamID scopes the journey to the worker's organisational unit.
	TeamID    uuid.UUID  `json:"team_id"`
	VehicleID *uuid.UUID `json:"vehicle_id,omitempty"`

	DestinationName    string   `json:"destination_name"`
	DestinationAddress string   `json:"destination_address,omitempty"`
	DestinationLat     *float64 `json:"destination_lat,omitempty"`
	DestinationLng     *float64 `json:"destination_lng,omitempty"`

	// Route is the ordered sequence of planned waypoints. Optional.
	Route []Waypoint `json:"route,omitempty"`

	PlannedStartTime time.Time  `json:"planned_start_time"`
	PlannedEndTime   time.Time  `json:"planned_end_time"`
	ActualStartTime  *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime    *time.Time `json:"actual_end_time,omitempty"`

	CheckinIntervalMinutes int        `json:"checkin_interval_minutes"`
	LastCheckinTime        *time.Time `json:"last_checkin_time,omitempty"`
	NextCheckinDue         *time.Time `json:"next_checkin_due,omitempty"`
	CheckinOverdue         bool       `json:"checkin_overdue"`

	EmergencyContactName  string `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string `json:"emergency_contact_phone,omitempty"`

	HazardNotes     string `json:"hazard_notes,omitempty"`
	CompletionNotes string `json:"completion_notes,omitempty"`

	Status JourneyStatus `json:"status"`

	// Version is the optimistic-concurrency token checked by the store's
	// Save. It is bumped on every successful save; a stale version loses.
	Version int64 `json:"version"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"` // soft delete marker, never exposed
}

// CheckinInterval returns the configured interval as a duration.
func (j *Journey) CheckinInterval() time.Duration {
	return time.Duration(j.CheckinIntervalMinutes) * time.Minute
}

// IsActiveFamily reports whether the journey is under active monitoring:
// status active, overdue, or emergency.
func (j *Journey) IsActiveFamily() bool {
	switch j.Status {
	case StatusActive, StatusOverdue, StatusEmergency:
		return true
	}
	return false
}

// ScanReport summarises one execution of the overdue scanner.
type ScanReport struct {
	// Checked is the number of active-family journeys evaluated.
	Checked int `json:"checked"`
	// Transitioned is the number of journeys moved into overdue this scan.
	Transitioned int `json:"transitioned"`
	// Errors holds one message per journey that failed; a failure never
	// aborts the rest of the batch.
	Errors []string `json:"errors"`
}
