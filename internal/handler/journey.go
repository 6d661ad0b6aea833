package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Samilrotech/WHS-sub005/internal/domain"
	"github.com/Samilrotech/WHS-sub005/internal/service"
)

// CreateJourneyRequest is the POST /journeys body. Worker and team are
// explicit parameters — the engine has no ambient "current user" context.
type CreateJourneyRequest struct {
	WorkerID  uuid.UUID  `json:"worker_id"`
	TeamID    uuid.UUID  `json:"team_id"`
	VehicleID *uuid.UUID `json:"vehicle_id,omitempty"`

	DestinationName    string   `json:"destination_name"`
	DestinationAddress string   `json:"destination_address,omitempty"`
	DestinationLat     *float64 `json:"destination_lat,omitempty"`
	DestinationLng     *float64 `json:"destination_lng,omitempty"`

	Route []domain.Waypoint `json:"route,omitempty"`

	PlannedStartTime time.Time `json:"planned_start_time"`
	PlannedEndTime   time.Time `json:"planned_end_time"`

	CheckinIntervalMinutes int `json:"checkin_interval_minutes"`

	EmergencyContactName  string `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string `json:"emergency_contact_phone,omitempty"`
	HazardNotes           string `json:"hazard_notes,omitempty"`
}

// notesRequest is the optional body shared by complete and emergency.
type notesRequest struct {
	Notes string `json:"notes"`
}

// CreateJourney handles POST /api/v1/journeys.
func (s *Server) CreateJourney(w http.ResponseWriter, r *http.Request) {
	var req CreateJourneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		requestError(w, "invalid request body")
		return
	}

	created, err := s.journeys.Create(r.Context(), domain.Journey{
		WorkerID:               req.WorkerID,
		TeamID:                 req.TeamID,
		VehicleID:              req.VehicleID,
		DestinationName:        req.DestinationName,
		DestinationAddress:     req.DestinationAddress,
		DestinationLat:         req.DestinationLat,
		DestinationLng:         req.DestinationLng,
		Route:                  req.Route,
		PlannedStartTime:       req.PlannedStartTime,
		PlannedEndTime:         req.PlannedEndTime,
		CheckinIntervalMinutes: req.CheckinIntervalMinutes,
		EmergencyContactName:   req.EmergencyContactName,
		EmergencyContactPhone:  req.EmergencyContactPhone,
		HazardNotes:            req.HazardNotes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ListJourneys handles GET /api/v1/journeys?team_id=...
func (s *Server) ListJourneys(w http.ResponseWriter, r *http.Request) {
	teamID, err := uuid.Parse(r.URL.Query().Get("team_id"))
	if err != nil {
		requestError(w, "team_id query parameter must be a UUID")
		return
	}

	journeys, err := s.journeys.ListByTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": journeys})
}

// GetJourney handles GET /api/v1/journeys/{journeyID}.
func (s *Server) GetJourney(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}

	journey, err := s.journeys.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, journey)
}

// DeleteJourney handles DELETE /api/v1/journeys/{journeyID} (soft delete).
func (s *Server) DeleteJourney(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}

	if err := s.journeys.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartJourney handles POST /api/v1/journeys/{journeyID}/start.
func (s *Server) StartJourney(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}

	journey, err := s.journeys.Start(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, journey)
}

// CompleteJourney handles POST /api/v1/journeys/{journeyID}/complete.
// The body is optional: {"notes": "..."}.
func (s *Server) CompleteJourney(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}

	var req notesRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			requestError(w, "invalid request body")
			return
		}
	}

	journey, err := s.journeys.Complete(r.Context(), id, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, journey)
}

// TriggerEmergency handles POST /api/v1/journeys/{journeyID}/emergency.
// The body is optional: {"notes": "..."}.
func (s *Server) TriggerEmergency(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}

	var req notesRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			requestError(w, "invalid request body")
			return
		}
	}

	journey, err := s.journeys.TriggerEmergency(r.Context(), id, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, journey)
}

// RecordCheckpoint handles POST /api/v1/journeys/{journeyID}/checkpoints.
func (s *Server) RecordCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}

	var input service.CheckpointInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		requestError(w, "invalid request body")
		return
	}

	cp, err := s.checkpoints.Record(r.Context(), id, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, cp)
}

// ListCheckpoints handles GET /api/v1/journeys/{journeyID}/checkpoints.
func (s *Server) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}

	cps, err := s.journeys.ListCheckpoints(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": cps})
}

// RunOverdueScan handles POST /api/v1/overdue-scan. Intended for an external
// scheduler (cron-like trigger); idempotent per call.
func (s *Server) RunOverdueScan(w http.ResponseWriter, r *http.Request) {
	report, err := s.scanner.RunScan(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// journeyID parses the {journeyID} URL parameter, answering 422 itself when
// the value is not a UUID.
func journeyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "journeyID"))
	if err != nil {
		requestError(w, "journey id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
