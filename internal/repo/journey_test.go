package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samilrotech/WHS-sub005/internal/domain"
	"github.com/Samilrotech/WHS-sub005/internal/repo"
	"github.com/Samilrotech/WHS-sub005/testutil"
)

// newTestRepo returns a JourneyRepo running inside a transaction that is
// rolled back when the test finishes, so tests never see each other's rows.
func newTestRepo(t *testing.T) repo.JourneyRepo {
	t.Helper()

	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return repo.NewJourneyRepo(tx)
}

func newJourney() domain.Journey {
	start := time.Now().UTC().Truncate(time.Second)
	lat, lng := -31.95, 115.86
	return domain.Journey{
		WorkerID:        uuid.New(),
		TeamID:          uuid.New(),
		DestinationName: "Pump station 12",
		DestinationLat:  &lat,
		DestinationLng:  &lng,
		Route: []domain.Waypoint{
			{Name: "Depot"},
			{Name: "Pump station 12", Latitude: &lat, Longitude: &lng},
		},
		PlannedStartTime:       start,
		PlannedEndTime:         start.Add(6 * time.Hour),
		CheckinIntervalMinutes: 30,
		EmergencyContactName:   "Ops desk",
		EmergencyContactPhone:  "+61 8 9000 0000",
		HazardNotes:            "Unsealed access road after the turnoff",
	}
}

func mustCreate(t *testing.T, r repo.JourneyRepo, j domain.Journey) domain.Journey {
	t.Helper()
	created, err := r.Create(context.Background(), j)
	require.NoError(t, err)
	return created
}

func TestJourneyRepo_CreateAndGet(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created := mustCreate(t, r, newJourney())

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, domain.StatusPlanned, created.Status)
	assert.EqualValues(t, 1, created.Version)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := r.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Pump station 12", got.DestinationName)
	require.Len(t, got.Route, 2)
	assert.Equal(t, "Depot", got.Route[0].Name)
	require.NotNil(t, got.DestinationLat)
	assert.InDelta(t, -31.95, *got.DestinationLat, 1e-9)
}

func TestJourneyRepo_GetByID_NotFound(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJourneyRepo_ListByTeam(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	teamID := uuid.New()

	early := newJourney()
	early.TeamID = teamID
	late := newJourney()
	late.TeamID = teamID
	late.PlannedStartTime = late.PlannedStartTime.Add(24 * time.Hour)
	late.PlannedEndTime = late.PlannedEndTime.Add(24 * time.Hour)
	other := newJourney() // different team

	mustCreate(t, r, early)
	mustCreate(t, r, late)
	mustCreate(t, r, other)

	got, err := r.ListByTeam(ctx, teamID)

	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest planned start first.
	assert.True(t, got[0].PlannedStartTime.After(got[1].PlannedStartTime))
	for _, j := range got {
		assert.Equal(t, teamID, j.TeamID)
	}
}

func TestJourneyRepo_Save_VersionedUpdate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	j := mustCreate(t, r, newJourney())

	now := time.Now().UTC().Truncate(time.Second)
	_, err := j.Start(now)
	require.NoError(t, err)

	require.NoError(t, r.Save(ctx, &j))
	assert.EqualValues(t, 2, j.Version, "Save bumps the version in place")

	got, err := r.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.EqualValues(t, 2, got.Version)
	require.NotNil(t, got.NextCheckinDue)
	assert.True(t, got.NextCheckinDue.Equal(now.Add(30*time.Minute)))
}

func TestJourneyRepo_Save_StaleVersionConflicts(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	j := mustCreate(t, r, newJourney())

	now := time.Now().UTC()
	stale := j
	_, err := stale.Start(now)
	require.NoError(t, err)

	winner := j
	_, err = winner.Start(now)
	require.NoError(t, err)
	require.NoError(t, r.Save(ctx, &winner))

	// stale still carries the pre-update version.
	err = r.Save(ctx, &stale)

	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := r.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Version, "the losing save must not touch the row")
}

func TestJourneyRepo_Save_MissingRow(t *testing.T) {
	r := newTestRepo(t)

	j := newJourney()
	j.ID = uuid.New()
	j.Version = 1
	j.Status = domain.StatusActive

	err := r.Save(context.Background(), &j)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJourneyRepo_ListActive(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)

	planned := mustCreate(t, r, newJourney())

	active := mustCreate(t, r, newJourney())
	_, err := active.Start(now)
	require.NoError(t, err)
	require.NoError(t, r.Save(ctx, &active))

	overdue := mustCreate(t, r, newJourney())
	_, err = overdue.Start(now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, overdue.ApplyTimeout(now))
	require.NoError(t, r.Save(ctx, &overdue))

	emergency := mustCreate(t, r, newJourney())
	_, err = emergency.Start(now)
	require.NoError(t, err)
	_, _, err = emergency.TriggerEmergency(now, "")
	require.NoError(t, err)
	require.NoError(t, r.Save(ctx, &emergency))

	got, err := r.ListActive(ctx)

	require.NoError(t, err)

	ids := make(map[uuid.UUID]domain.JourneyStatus, len(got))
	for _, j := range got {
		ids[j.ID] = j.Status
	}
	assert.Contains(t, ids, active.ID)
	assert.Contains(t, ids, overdue.ID)
	assert.NotContains(t, ids, planned.ID, "planned journeys are not monitored")
	assert.NotContains(t, ids, emergency.ID, "emergency journeys are already escalated")
}

func TestJourneyRepo_Checkpoints_AppendAndList(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	j := mustCreate(t, r, newJourney())

	base := time.Now().UTC().Truncate(time.Second)
	lat, lng := -32.0, 116.0

	second := domain.Checkpoint{
		JourneyID:   j.ID,
		CheckinTime: base.Add(30 * time.Minute),
		Type:        domain.CheckpointManual,
		Status:      domain.CheckpointOK,
		Notes:       "All good at the halfway mark",
		PhotoRefs:   []string{"photos/halfway.jpg"},
	}
	first := domain.Checkpoint{
		JourneyID:    j.ID,
		CheckinTime:  base,
		Latitude:     &lat,
		Longitude:    &lng,
		LocationName: "Depot gate",
		Type:         domain.CheckpointAutomatic,
		Status:       domain.CheckpointOK,
	}

	// Insert out of order; ListCheckpoints must sort by check-in time.
	stored, err := r.AppendCheckpoint(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())

	_, err = r.AppendCheckpoint(ctx, first)
	require.NoError(t, err)

	got, err := r.ListCheckpoints(ctx, j.ID)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Depot gate", got[0].LocationName)
	assert.Equal(t, domain.CheckpointManual, got[1].Type)
	require.Len(t, got[1].PhotoRefs, 1)
	assert.Equal(t, "photos/halfway.jpg", got[1].PhotoRefs[0])
	require.NotNil(t, got[0].Latitude)
	assert.InDelta(t, -32.0, *got[0].Latitude, 1e-9)
}

func TestJourneyRepo_SoftDelete(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	j := mustCreate(t, r, newJourney())

	cp := domain.Checkpoint{
		JourneyID:   j.ID,
		CheckinTime: time.Now().UTC(),
		Type:        domain.CheckpointManual,
		Status:      domain.CheckpointOK,
	}
	_, err := r.AppendCheckpoint(ctx, cp)
	require.NoError(t, err)

	require.NoError(t, r.SoftDelete(ctx, j.ID))

	_, err = r.GetByID(ctx, j.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	teamJourneys, err := r.ListByTeam(ctx, j.TeamID)
	require.NoError(t, err)
	assert.Empty(t, teamJourneys)

	// The audit trail survives the delete.
	cps, err := r.ListCheckpoints(ctx, j.ID)
	require.NoError(t, err)
	assert.Len(t, cps, 1)

	// Deleting again reports not found.
	assert.ErrorIs(t, r.SoftDelete(ctx, j.ID), domain.ErrNotFound)
}
