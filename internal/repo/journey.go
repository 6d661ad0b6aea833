// Package repo contains all database access logic for the journey monitoring
// engine. No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Samilrotech/WHS-sub005/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JourneyRepo defines the persistence operations the engine requires from
// its journey store. The service layer depends on this interface, not the
// concrete Postgres implementation, which allows the services to be
// unit-tested with a mock and keeps the storage technology swappable.
type JourneyRepo interface {
	// Create inserts a new journey in planned status and returns the
	// persisted record (id, version, created_at, updated_at populated).
	Create(ctx context.Context, journey domain.Journey) (domain.Journey, error)

	// GetByID retrieves a single journey by id. Soft-deleted journeys are
	// invisible. Returns domain.ErrNotFound if no live row exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Journey, error)

	// ListByTeam returns all live journeys for an organisational unit,
	// newest planned start first.
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]domain.Journey, error)

	// ListActive returns all journeys under active monitoring: status
	// active or overdue. Used by the overdue scanner each cycle.
	ListActive(ctx context.Context) ([]domain.Journey, error)

	// Save overwrites the mutable fields of a journey, guarded by an
	// optimistic version check. On success the journey's Version is bumped
	// in place. Returns domain.ErrConflict when the stored version no
	// longer matches (the caller must re-read and retry) and
	// domain.ErrNotFound when the row is gone.
	Save(ctx context.Context, journey *domain.Journey) error

	// AppendCheckpoint inserts an immutable checkpoint row for a journey.
	// Checkpoints are append-only; there is no update or delete.
	AppendCheckpoint(ctx context.Context, cp domain.Checkpoint) (domain.Checkpoint, error)

	// ListCheckpoints returns a journey's checkpoints ordered by
	// checkin_time ascending — its audit trail.
	ListCheckpoints(ctx context.Context, journeyID uuid.UUID) ([]domain.Checkpoint, error)

	// SoftDelete marks a journey deleted without removing the row, so the
	// checkpoint audit trail survives. Returns domain.ErrNotFound if the
	// journey does not exist or is already deleted.
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// pgJourneyRepo is the Postgres implementation of JourneyRepo.
type pgJourneyRepo struct {
	db db
}

// NewJourneyRepo constructs a JourneyRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewJourneyRepo(db db) JourneyRepo {
	return &pgJourneyRepo{db: db}
}

const journeyColumns = `
	id, worker_id, team_id, vehicle_id,
	destination_name, destination_address, destination_lat, destination_lng,
	route,
	planned_start_time, planned_end_time, actual_start_time, actual_end_time,
	checkin_interval_minutes, last_checkin_time, next_checkin_due, checkin_overdue,
	emergency_contact_name, emergency_contact_phone,
	hazard_notes, completion_notes,
	status, version, created_at, updated_at`

// Create inserts a new journey row and returns the full persisted record.
func (r *pgJourneyRepo) Create(ctx context.Context, j domain.Journey) (domain.Journey, error) {
	const q = `
		INSERT INTO journeys (
			worker_id, team_id, vehicle_id,
			destination_name, destination_address, destination_lat, destination_lng,
			route,
			planned_start_time, planned_end_time,
			checkin_interval_minutes,
			emergency_contact_name, emergency_contact_phone,
			hazard_notes, status
		)
		VALUES (
			@worker_id, @team_id, @vehicle_id,
			@destination_name, @destination_address, @destination_lat, @destination_lng,
			@route,
			@planned_start_time, @planned_end_time,
			@checkin_interval_minutes,
			@emergency_contact_name, @emergency_contact_phone,
			@hazard_notes, @status
		)
		RETURNING` + journeyColumns

	route, err := json.Marshal(j.Route)
	if err != nil {
		return domain.Journey{}, fmt.Errorf("repo.JourneyRepo.Create: marshal route: %w", err)
	}

	args := pgx.NamedArgs{
		"worker_id":                j.WorkerID,
		"team_id":                  j.TeamID,
		"vehicle_id":               j.VehicleID, // nil becomes NULL
		"destination_name":         j.DestinationName,
		"destination_address":      j.DestinationAddress,
		"destination_lat":          j.DestinationLat,
		"destination_lng":          j.DestinationLng,
		"route":                    route,
		"planned_start_time":       j.PlannedStartTime,
		"planned_end_time":         j.PlannedEndTime,
		"checkin_interval_minutes": j.CheckinIntervalMinutes,
		"emergency_contact_name":   j.EmergencyContactName,
		"emergency_contact_phone":  j.EmergencyContactPhone,
		"hazard_notes":             j.HazardNotes,
		"status":                   string(domain.StatusPlanned),
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanJourney(row)
	if err != nil {
		return domain.Journey{}, wrapStore("repo.JourneyRepo.Create", err)
	}
	return result, nil
}

// GetByID retrieves a journey by primary key, excluding soft-deleted rows.
func (r *pgJourneyRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Journey, error) {
	const where = `
		FROM journeys
		WHERE id = @id AND deleted_at IS NULL`

	row := r.db.QueryRow(ctx, "SELECT"+journeyColumns+where, pgx.NamedArgs{"id": id})
	result, err := scanJourney(row)
	if err != nil {
		return domain.Journey{}, wrapStore("repo.JourneyRepo.GetByID", err)
	}
	return result, nil
}

// ListByTeam returns a team's live journeys, newest planned start first.
func (r *pgJourneyRepo) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]domain.Journey, error) {
	const where = `
		FROM journeys
		WHERE team_id = @team_id AND deleted_at IS NULL
		ORDER BY planned_start_time DESC`

	rows, err := r.db.Query(ctx, "SELECT"+journeyColumns+where, pgx.NamedArgs{"team_id": teamID})
	if err != nil {
		return nil, wrapStore("repo.JourneyRepo.ListByTeam", err)
	}
	defer rows.Close()

	return collectJourneys("repo.JourneyRepo.ListByTeam", rows)
}

// ListActive returns every journey the scanner must evaluate: status active
// or overdue. Emergency journeys are excluded — they are already escalated
// and have no further timeout to detect.
func (r *pgJourneyRepo) ListActive(ctx context.Context) ([]domain.Journey, error) {
	const where = `
		FROM journeys
		WHERE status IN ('active', 'overdue') AND deleted_at IS NULL
		ORDER BY next_checkin_due ASC`

	rows, err := r.db.Query(ctx, "SELECT"+journeyColumns+where)
	if err != nil {
		return nil, wrapStore("repo.JourneyRepo.ListActive", err)
	}
	defer rows.Close()

	return collectJourneys("repo.JourneyRepo.ListActive", rows)
}

// Save overwrites the mutable fields of a journey guarded by the version
// check. Zero rows affected means either a version conflict or a vanished
// row; a follow-up existence probe distinguishes the two.
func (r *pgJourneyRepo) Save(ctx context.Context, j *domain.Journey) error {
	const q = `
		UPDATE journeys
		SET actual_start_time  = @actual_start_time,
		    actual_end_time    = @actual_end_time,
		    last_checkin_time  = @last_checkin_time,
		    next_checkin_due   = @next_checkin_due,
		    checkin_overdue    = @checkin_overdue,
		    completion_notes   = @completion_notes,
		    status             = @status,
		    version            = version + 1,
		    updated_at         = now()
		WHERE id = @id AND version = @version AND deleted_at IS NULL`

	args := pgx.NamedArgs{
		"id":                j.ID,
		"version":           j.Version,
		"actual_start_time": j.ActualStartTime,
		"actual_end_time":   j.ActualEndTime,
		"last_checkin_time": j.LastCheckinTime,
		"next_checkin_due":  j.NextCheckinDue,
		"checkin_overdue":   j.CheckinOverdue,
		"completion_notes":  j.CompletionNotes,
		"status":            string(j.Status),
	}

	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return wrapStore("repo.JourneyRepo.Save", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		probe := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM journeys WHERE id = @id AND deleted_at IS NULL)`,
			pgx.NamedArgs{"id": j.ID})
		if err := probe.Scan(&exists); err != nil {
			return wrapStore("repo.JourneyRepo.Save: probe", err)
		}
		if !exists {
			return fmt.Errorf("repo.JourneyRepo.Save: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("repo.JourneyRepo.Save: version %d is stale: %w", j.Version, domain.ErrConflict)
	}

	j.Version++
	return nil
}

// AppendCheckpoint inserts one immutable checkpoint row.
func (r *pgJourneyRepo) AppendCheckpoint(ctx context.Context, cp domain.Checkpoint) (domain.Checkpoint, error) {
	const q = `
		INSERT INTO journey_checkpoints (
			id, journey_id, checkin_time,
			latitude, longitude, location_name,
			type, status, notes, issues_reported, photo_refs
		)
		VALUES (
			@id, @journey_id, @checkin_time,
			@latitude, @longitude, @location_name,
			@type, @status, @notes, @issues_reported, @photo_refs
		)
		RETURNING id, journey_id, checkin_time,
		          latitude, longitude, location_name,
		          type, status, notes, issues_reported, photo_refs, created_at`

	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	// photo_refs is NOT NULL; a nil slice would encode as SQL NULL.
	if cp.PhotoRefs == nil {
		cp.PhotoRefs = []string{}
	}

	args := pgx.NamedArgs{
		"id":              cp.ID,
		"journey_id":      cp.JourneyID,
		"checkin_time":    cp.CheckinTime,
		"latitude":        cp.Latitude,
		"longitude":       cp.Longitude,
		"location_name":   cp.LocationName,
		"type":            string(cp.Type),
		"status":          string(cp.Status),
		"notes":           cp.Notes,
		"issues_reported": cp.IssuesReported,
		"photo_refs":      cp.PhotoRefs,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanCheckpoint(row)
	if err != nil {
		return domain.Checkpoint{}, wrapStore("repo.JourneyRepo.AppendCheckpoint", err)
	}
	return result, nil
}

// ListCheckpoints returns the audit trail for one journey, oldest first.
func (r *pgJourneyRepo) ListCheckpoints(ctx context.Context, journeyID uuid.UUID) ([]domain.Checkpoint, error) {
	const q = `
		SELECT id, journey_id, checkin_time,
		       latitude, longitude, location_name,
		       type, status, notes, issues_reported, photo_refs, created_at
		FROM journey_checkpoints
		WHERE journey_id = @journey_id
		ORDER BY checkin_time ASC, created_at ASC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"journey_id": journeyID})
	if err != nil {
		return nil, wrapStore("repo.JourneyRepo.ListCheckpoints", err)
	}
	defer rows.Close()

	var cps []domain.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.JourneyRepo.ListCheckpoints: scan: %w", err)
		}
		cps = append(cps, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStore("repo.JourneyRepo.ListCheckpoints: rows", err)
	}

	return cps, nil
}

// SoftDelete stamps deleted_at; the row and its checkpoints remain for audit.
func (r *pgJourneyRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	const q = `
		UPDATE journeys
		SET deleted_at = now(), updated_at = now()
		WHERE id = @id AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return wrapStore("repo.JourneyRepo.SoftDelete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.JourneyRepo.SoftDelete: %w", domain.ErrNotFound)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

func collectJourneys(op string, rows pgx.Rows) ([]domain.Journey, error) {
	var journeys []domain.Journey
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		journeys = append(journeys, j)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStore(op+": rows", err)
	}
	return journeys, nil
}

// scanJourney maps a single database row into a domain.Journey.
// It handles UUID, nullable timestamp, and jsonb route conversions.
func scanJourney(s scanner) (domain.Journey, error) {
	var (
		j         domain.Journey
		id        pgtype.UUID
		workerID  pgtype.UUID
		teamID    pgtype.UUID
		vehicleID pgtype.UUID
		route     []byte
		status    string
	)

	err := s.Scan(
		&id, &workerID, &teamID, &vehicleID,
		&j.DestinationName, &j.DestinationAddress, &j.DestinationLat, &j.DestinationLng,
		&route,
		&j.PlannedStartTime, &j.PlannedEndTime, &j.ActualStartTime, &j.ActualEndTime,
		&j.CheckinIntervalMinutes, &j.LastCheckinTime, &j.NextCheckinDue, &j.CheckinOverdue,
		&j.EmergencyContactName, &j.EmergencyContactPhone,
		&j.HazardNotes, &j.CompletionNotes,
		&status, &j.Version, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Journey{}, domain.ErrNotFound
		}
		return domain.Journey{}, err
	}

	j.ID = uuid.UUID(id.Bytes)
	j.WorkerID = uuid.UUID(workerID.Bytes)
	j.TeamID = uuid.UUID(teamID.Bytes)
	if vehicleID.Valid {
		v := uuid.UUID(vehicleID.Bytes)
		j.VehicleID = &v
	}
	if len(route) > 0 {
		if err := json.Unmarshal(route, &j.Route); err != nil {
			return domain.Journey{}, fmt.Errorf("unmarshal route: %w", err)
		}
	}
	j.Status = domain.JourneyStatus(status)

	return j, nil
}

// scanCheckpoint maps a single database row into a domain.Checkpoint.
func scanCheckpoint(s scanner) (domain.Checkpoint, error) {
	var (
		cp        domain.Checkpoint
		id        pgtype.UUID
		journeyID pgtype.UUID
		typ       string
		status    string
	)

	err := s.Scan(
		&id, &journeyID, &cp.CheckinTime,
		&cp.Latitude, &cp.Longitude, &cp.LocationName,
		&typ, &status, &cp.Notes, &cp.IssuesReported, &cp.PhotoRefs, &cp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Checkpoint{}, domain.ErrNotFound
		}
		return domain.Checkpoint{}, err
	}

	cp.ID = uuid.UUID(id.Bytes)
	cp.JourneyID = uuid.UUID(journeyID.Bytes)
	cp.Type = domain.CheckpointType(typ)
	cp.Status = domain.CheckpointStatus(status)

	return cp, nil
}

// wrapStore classifies a database error. ErrNoRows becomes ErrNotFound.
// Timeouts and connection-class failures become ErrStoreUnavailable so the
// scanner can skip-and-continue and handlers can answer 503; SQL and
// constraint errors pass through undisguised.
func wrapStore(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), pgconn.Timeout(err):
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreUnavailable)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}
