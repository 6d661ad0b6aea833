// Package handler implements the HTTP surface of the journey monitoring
// engine. Handlers decode JSON, call the service interfaces, and map domain
// errors to HTTP statuses. No business logic lives here.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Samilrotech/WHS-sub005/internal/domain"
	"github.com/Samilrotech/WHS-sub005/internal/service"
)

// JourneyServicer defines the journey lifecycle operations the handlers
// depend on. Defining the interface here (in the consumer package) follows
// the Go convention: "accept interfaces, return concrete types". It lets
// handler tests inject a mock without touching the database or service layer.
type JourneyServicer interface {
	Create(ctx context.Context, journey domain.Journey) (domain.Journey, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Journey, error)
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]domain.Journey, error)
	ListCheckpoints(ctx context.Context, journeyID uuid.UUID) ([]domain.Checkpoint, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Start(ctx context.Context, id uuid.UUID) (domain.Journey, error)
	Complete(ctx context.Context, id uuid.UUID, notes string) (domain.Journey, error)
	TriggerEmergency(ctx context.Context, id uuid.UUID, notes string) (domain.Journey, error)
}

// CheckpointRecorder records a validated check-in against a journey.
type CheckpointRecorder interface {
	Record(ctx context.Context, journeyID uuid.UUID, input service.CheckpointInput) (domain.Checkpoint, error)
}

// OverdueScanner runs one on-demand scan cycle.
type OverdueScanner interface {
	RunScan(ctx context.Context) (domain.ScanReport, error)
}

// Server holds the handler dependencies. Methods are in domain-specific
// files but all operate on this struct.
type Server struct {
	journeys    JourneyServicer
	checkpoints CheckpointRecorder
	scanner     OverdueScanner
}

// NewServer constructs the Server with all its dependencies.
func NewServer(journeys JourneyServicer, checkpoints CheckpointRecorder, scanner OverdueScanner) *Server {
	return &Server{journeys: journeys, checkpoints: checkpoints, scanner: scanner}
}

// Routes mounts every endpoint on a fresh chi router. Wire middleware around
// the returned router in main.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/journeys", func(r chi.Router) {
			r.Post("/", s.CreateJourney)
			r.Get("/", s.ListJourneys)

			r.Route("/{journeyID}", func(r chi.Router) {
				r.Get("/", s.GetJourney)
				r.Delete("/", s.DeleteJourney)
				r.Post("/start", s.StartJourney)
				r.Post("/complete", s.CompleteJourney)
				r.Post("/emergency", s.TriggerEmergency)
				r.Post("/checkpoints", s.RecordCheckpoint)
				r.Get("/checkpoints", s.ListCheckpoints)
			})
		})

		r.Post("/overdue-scan", s.RunOverdueScan)
	})

	return r
}
