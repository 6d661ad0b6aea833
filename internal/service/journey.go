// Package service contains the business logic of the journey monitoring
// engine. Services validate inputs, drive the journey state machine, and
// orchestrate repo and notifier calls. No SQL lives here — services depend
// on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/Samilrotech/WHS-sub005/internal/clock"
	"github.com/Samilrotech/WHS-sub005/internal/domain"
	"github.com/Samilrotech/WHS-sub005/internal/notify"
	"github.com/Samilrotech/WHS-sub005/internal/repo"
)

// Notifier delivers safety events to the notification gateway. Defined here,
// in the consumer package, so tests inject a recording fake and production
// wires notify.Queue or notify.LogNotifier.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event) error
}

// Optimistic-concurrency retry policy shared by all mutating operations:
// a conflicting save re-reads the journey and re-applies the transition
// against fresh state a bounded number of times before giving up.
const (
	conflictRetries = 3
	conflictBackoff = 25 * time.Millisecond
)

// JourneyService implements the journey lifecycle operations.
type JourneyService struct {
	journeys repo.JourneyRepo
	clock    clock.Clock
	notifier Notifier
	logger   *slog.Logger
}

// NewJourneyService constructs a JourneyService with its collaborators.
func NewJourneyService(journeys repo.JourneyRepo, clk clock.Clock, notifier Notifier, logger *slog.Logger) *JourneyService {
	return &JourneyService{journeys: journeys, clock: clk, notifier: notifier, logger: logger}
}

// Create validates and persists a new journey in planned status.
// WorkerID and TeamID are explicit — there is no ambient "current user".
func (s *JourneyService) Create(ctx context.Context, journey domain.Journey) (domain.Journey, error) {
	if err := validateJourney(journey); err != nil {
		return domain.Journey{}, err
	}
	result, err := s.journeys.Create(ctx, journey)
	if err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.Create: %w", err)
	}
	return result, nil
}

// GetByID returns a single journey.
func (s *JourneyService) GetByID(ctx context.Context, id uuid.UUID) (domain.Journey, error) {
	result, err := s.journeys.GetByID(ctx, id)
	if err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.GetByID: %w", err)
	}
	return result, nil
}

// ListByTeam returns a team's journeys. Always returns a non-nil slice so
// callers can safely range over it.
func (s *JourneyService) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]domain.Journey, error) {
	journeys, err := s.journeys.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("service.JourneyService.ListByTeam: %w", err)
	}
	if journeys == nil {
		return []domain.Journey{}, nil
	}
	return journeys, nil
}

// ListCheckpoints returns a journey's audit trail, oldest first.
func (s *JourneyService) ListCheckpoints(ctx context.Context, journeyID uuid.UUID) ([]domain.Checkpoint, error) {
	if _, err := s.journeys.GetByID(ctx, journeyID); err != nil {
		return nil, fmt.Errorf("service.JourneyService.ListCheckpoints: %w", err)
	}
	cps, err := s.journeys.ListCheckpoints(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("service.JourneyService.ListCheckpoints: %w", err)
	}
	if cps == nil {
		return []domain.Checkpoint{}, nil
	}
	return cps, nil
}

// Delete soft-deletes a journey. The row and its checkpoints remain for
// audit continuity.
func (s *JourneyService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.journeys.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("service.JourneyService.Delete: %w", err)
	}
	return nil
}

// Start activates a planned journey: status becomes active, monitoring
// begins, and the initial "Journey started" checkpoint is appended.
// Returns domain.ErrInvalidTransition unless the journey is planned.
func (s *JourneyService) Start(ctx context.Context, id uuid.UUID) (domain.Journey, error) {
	journey, err := s.transition(ctx, id, func(j *domain.Journey) (domain.Checkpoint, bool, error) {
		cp, err := j.Start(s.clock.Now())
		return cp, true, err
	})
	if err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.Start: %w", err)
	}
	return journey, nil
}

// Complete ends an active-family journey. Terminal: nothing transitions a
// completed journey again. This is also the only exit from emergency.
func (s *JourneyService) Complete(ctx context.Context, id uuid.UUID, notes string) (domain.Journey, error) {
	journey, err := s.transition(ctx, id, func(j *domain.Journey) (domain.Checkpoint, bool, error) {
		cp, err := j.Complete(s.clock.Now(), notes)
		return cp, true, err
	})
	if err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.Complete: %w", err)
	}
	return journey, nil
}

// TriggerEmergency escalates an active-family journey to emergency and
// notifies the gateway. Idempotent when the journey is already in
// emergency: no duplicate checkpoint, no duplicate notification.
func (s *JourneyService) TriggerEmergency(ctx context.Context, id uuid.UUID, notes string) (domain.Journey, error) {
	var triggered bool
	journey, err := s.transition(ctx, id, func(j *domain.Journey) (domain.Checkpoint, bool, error) {
		cp, trig, err := j.TriggerEmergency(s.clock.Now(), notes)
		triggered = trig
		return cp, trig, err
	})
	if err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.TriggerEmergency: %w", err)
	}

	if triggered {
		s.notifyEmergency(ctx, journey, notes)
	}
	return journey, nil
}

// transition runs one state-machine operation under the optimistic-
// concurrency retry policy: read the journey, apply the pure transition,
// save; a version conflict re-reads and re-applies against fresh state.
// The returned checkpoint (when appendCp is true) is persisted after the
// journey row commits. Once the row is committed the transition has
// happened; a failed append is logged and never unwinds it, so follow-up
// notifications always fire for a durable transition.
func (s *JourneyService) transition(ctx context.Context, id uuid.UUID, apply func(*domain.Journey) (domain.Checkpoint, bool, error)) (domain.Journey, error) {
	var (
		out domain.Journey
		cp  domain.Checkpoint
	)

	backoff := retry.WithMaxRetries(conflictRetries, retry.NewConstant(conflictBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		j, err := s.journeys.GetByID(ctx, id)
		if err != nil {
			return err
		}

		c, appendCp, err := apply(&j)
		if err != nil {
			return err
		}

		if err := s.journeys.Save(ctx, &j); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		out = j
		if appendCp {
			cp = c
		} else {
			cp = domain.Checkpoint{}
		}
		return nil
	})
	if err != nil {
		return domain.Journey{}, err
	}

	if cp.ID != uuid.Nil {
		if _, err := s.journeys.AppendCheckpoint(ctx, cp); err != nil {
			s.logger.Error("append checkpoint failed",
				"journey_id", out.ID,
				"checkpoint_type", cp.Type,
				"error", err,
			)
		}
	}
	return out, nil
}

// notifyEmergency fires the gateway after the transition is durable.
// Notification failure is logged and never unwinds the committed state:
// the emergency status in the store is the safety-critical record.
func (s *JourneyService) notifyEmergency(ctx context.Context, j domain.Journey, message string) {
	if message == "" {
		message = "Emergency assistance requested"
	}
	ev := notify.Event{
		JourneyID:  j.ID,
		WorkerID:   j.WorkerID,
		TeamID:     j.TeamID,
		Kind:       notify.KindEmergency,
		Message:    message,
		OccurredAt: s.clock.Now(),
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Error("emergency notification failed",
			"journey_id", j.ID,
			"error", err,
		)
	}
}

// validateJourney enforces the creation-time invariants:
//   - destination name is required
//   - planned end must be after planned start
//   - check-in interval within [15,480] minutes
func validateJourney(j domain.Journey) error {
	if j.WorkerID == uuid.Nil {
		return fmt.Errorf("%w: worker_id is required", domain.ErrValidation)
	}
	if j.TeamID == uuid.Nil {
		return fmt.Errorf("%w: team_id is required", domain.ErrValidation)
	}
	if j.DestinationName == "" {
		return fmt.Errorf("%w: destination_name is required", domain.ErrValidation)
	}
	if !j.PlannedEndTime.After(j.PlannedStartTime) {
		return fmt.Errorf("%w: planned_end_time must be after planned_start_time", domain.ErrValidation)
	}
	if j.CheckinIntervalMinutes < domain.MinCheckinIntervalMinutes || j.CheckinIntervalMinutes > domain.MaxCheckinIntervalMinutes {
		return fmt.Errorf("%w: checkin_interval_minutes must be between %d and %d",
			domain.ErrValidation, domain.MinCheckinIntervalMinutes, domain.MaxCheckinIntervalMinutes)
	}
	return nil
}
