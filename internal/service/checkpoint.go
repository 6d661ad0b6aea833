package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/Samilrotech/WHS-sub005/internal/clock"
	"github.com/Samilrotech/WHS-sub005/internal/domain"
	"github.com/Samilrotech/WHS-sub005/internal/notify"
	"github.com/Samilrotech/WHS-sub005/internal/repo"
)

// CheckpointInput is the payload a worker (or a device acting for one)
// submits to record a check-in. Validation tags are enforced before any
// state is touched.
type CheckpointInput struct {
	Latitude     *float64 `json:"latitude" validate:"omitempty,lat"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,lng"`
	LocationName string   `json:"location_name" validate:"max=255"`

	// Status is the worker-reported condition. Required.
	Status string `json:"status" validate:"required,oneof=ok assistance_needed emergency"`

	// Type defaults to manual; callers may set automatic or emergency.
	// The missed type is reserved for the overdue scanner.
	Type string `json:"type" validate:"omitempty,oneof=automatic manual emergency"`

	Notes          string   `json:"notes" validate:"max=2000"`
	IssuesReported string   `json:"issues_reported" validate:"max=2000"`
	PhotoRefs      []string `json:"photo_refs" validate:"max=20,dive,max=512"`

	// CheckinTime defaults to the engine clock when omitted. A supplied
	// value must not be zero or ahead of the engine clock beyond a small
	// drift allowance — overdue monitoring keys off this timestamp.
	CheckinTime *time.Time `json:"checkin_time"`
}

// checkinTimeSkew is how far ahead of the engine clock a client-supplied
// check-in time may run, absorbing device clock drift.
const checkinTimeSkew = 5 * time.Minute

// CheckpointRecorder validates check-in payloads and drives them through the
// journey state machine. It is the only producer of worker-submitted
// checkpoints; checkpoints are append-only and never updated or deleted.
type CheckpointRecorder struct {
	journeys repo.JourneyRepo
	clock    clock.Clock
	notifier Notifier
	logger   *slog.Logger
	validate *validator.Validate
}

// NewCheckpointRecorder constructs a CheckpointRecorder with its collaborators.
func NewCheckpointRecorder(journeys repo.JourneyRepo, clk clock.Clock, notifier Notifier, logger *slog.Logger) *CheckpointRecorder {
	v := validator.New()
	// Coordinate range checks that operate on the dereferenced *float64.
	_ = v.RegisterValidation("lat", func(fl validator.FieldLevel) bool {
		lat := fl.Field().Float()
		return lat >= -90 && lat <= 90
	})
	_ = v.RegisterValidation("lng", func(fl validator.FieldLevel) bool {
		lng := fl.Field().Float()
		return lng >= -180 && lng <= 180
	})

	return &CheckpointRecorder{
		journeys: journeys,
		clock:    clk,
		notifier: notifier,
		logger:   logger,
		validate: v,
	}
}

// Record validates the input, folds the checkpoint into the journey's
// monitoring state, persists both, and notifies the gateway when the
// checkpoint forced the journey into emergency.
//
// Valid only while the journey is in an active-family status; planned and
// completed journeys reject with domain.ErrInvalidTransition. Malformed
// input rejects with domain.ErrValidation before any store call.
func (r *CheckpointRecorder) Record(ctx context.Context, journeyID uuid.UUID, input CheckpointInput) (domain.Checkpoint, error) {
	if err := r.validateInput(input); err != nil {
		return domain.Checkpoint{}, err
	}

	cp := r.buildCheckpoint(journeyID, input)

	var (
		journey          domain.Journey
		enteredEmergency bool
	)

	backoff := retry.WithMaxRetries(conflictRetries, retry.NewConstant(conflictBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		j, err := r.journeys.GetByID(ctx, journeyID)
		if err != nil {
			return err
		}

		entered, err := j.ApplyCheckpoint(cp)
		if err != nil {
			return err
		}

		if err := r.journeys.Save(ctx, &j); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		journey = j
		enteredEmergency = entered
		return nil
	})
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("service.CheckpointRecorder.Record: %w", err)
	}

	// Alert the moment the journey row is durable. The checkpoint append
	// below can still fail; the caller retries Record, finds the journey
	// already in emergency, and no duplicate alert fires.
	if enteredEmergency {
		r.notifyEmergency(ctx, journey, cp)
	}

	stored, err := r.journeys.AppendCheckpoint(ctx, cp)
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("service.CheckpointRecorder.Record: %w", err)
	}

	return stored, nil
}

func (r *CheckpointRecorder) buildCheckpoint(journeyID uuid.UUID, input CheckpointInput) domain.Checkpoint {
	t := r.clock.Now()
	if input.CheckinTime != nil {
		t = *input.CheckinTime
	}

	typ := domain.CheckpointManual
	if input.Type != "" {
		typ = domain.CheckpointType(input.Type)
	}

	return domain.Checkpoint{
		ID:             uuid.New(),
		JourneyID:      journeyID,
		CheckinTime:    t,
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		LocationName:   input.LocationName,
		Type:           typ,
		Status:         domain.CheckpointStatus(input.Status),
		Notes:          input.Notes,
		IssuesReported: input.IssuesReported,
		PhotoRefs:      input.PhotoRefs,
	}
}

// validateInput translates validator failures into the domain sentinel so
// handlers map them uniformly to 422.
func (r *CheckpointRecorder) validateInput(input CheckpointInput) error {
	if input.CheckinTime != nil {
		if input.CheckinTime.IsZero() {
			return fmt.Errorf("%w: checkin_time must not be zero", domain.ErrValidation)
		}
		if input.CheckinTime.After(r.clock.Now().Add(checkinTimeSkew)) {
			return fmt.Errorf("%w: checkin_time must not be in the future", domain.ErrValidation)
		}
	}

	err := r.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(fields, "; "))
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

func (r *CheckpointRecorder) notifyEmergency(ctx context.Context, j domain.Journey, cp domain.Checkpoint) {
	message := cp.Notes
	if message == "" {
		message = "Emergency checkpoint recorded"
	}
	ev := notify.Event{
		JourneyID:  j.ID,
		WorkerID:   j.WorkerID,
		TeamID:     j.TeamID,
		Kind:       notify.KindEmergency,
		Message:    message,
		OccurredAt: cp.CheckinTime,
	}
	if err := r.notifier.Notify(ctx, ev); err != nil {
		r.logger.Error("emergency notification failed",
			"journey_id", j.ID,
			"error", err,
		)
	}
}
