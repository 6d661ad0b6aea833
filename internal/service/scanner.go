package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Samilrotech/WHS-sub005/internal/clock"
	"github.com/Samilrotech/WHS-sub005/internal/domain"
	"github.com/Samilrotech/WHS-sub005/internal/notify"
	"github.com/Samilrotech/WHS-sub005/internal/repo"
)

// OverdueScanner is the periodic job that detects missed check-ins. Each
// cycle it pulls every journey under active monitoring from the store,
// compares next_checkin_due against the clock, and applies the timeout
// transition to those past due.
//
// The design is pull-based on purpose: deadlines live in the store, not in
// in-memory timers, so a process restart loses nothing — the next scan
// re-detects every overdue journey from persisted state.
type OverdueScanner struct {
	journeys repo.JourneyRepo
	clock    clock.Clock
	notifier Notifier
	logger   *slog.Logger

	// interval is the scan cadence.
	interval time.Duration
	// journeyTimeout bounds the store work for one journey so a single
	// slow call cannot stall the whole cycle.
	journeyTimeout time.Duration
}

// NewOverdueScanner constructs a scanner. interval and journeyTimeout fall
// back to 60s and 5s when non-positive.
func NewOverdueScanner(journeys repo.JourneyRepo, clk clock.Clock, notifier Notifier, logger *slog.Logger, interval, journeyTimeout time.Duration) *OverdueScanner {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if journeyTimeout <= 0 {
		journeyTimeout = 5 * time.Second
	}
	return &OverdueScanner{
		journeys:       journeys,
		clock:          clk,
		notifier:       notifier,
		logger:         logger,
		interval:       interval,
		journeyTimeout: journeyTimeout,
	}
}

// Run scans on a fixed cadence until ctx is cancelled. Intended to run in
// its own goroutine, independent of the request-handling path.
func (s *OverdueScanner) Run(ctx context.Context) {
	s.logger.Info("overdue scanner started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("overdue scanner stopped", "reason", ctx.Err().Error())
			return
		case <-ticker.C:
			report, err := s.RunScan(ctx)
			if err != nil {
				s.logger.Error("overdue scan failed", "error", err)
				continue
			}
			if report.Transitioned > 0 || len(report.Errors) > 0 {
				s.logger.Info("overdue scan finished",
					"checked", report.Checked,
					"transitioned", report.Transitioned,
					"errors", len(report.Errors),
				)
			}
		}
	}
}

// RunScan executes one scan cycle and returns its report. Idempotent per
// call: a journey already overdue is a no-op (ApplyTimeout reports no
// transition), so re-running never duplicates checkpoints or notifications.
// A failure on one journey is recorded and the batch continues.
func (s *OverdueScanner) RunScan(ctx context.Context) (domain.ScanReport, error) {
	report := domain.ScanReport{Errors: []string{}}

	active, err := s.journeys.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("service.OverdueScanner.RunScan: %w", err)
	}

	for _, j := range active {
		report.Checked++

		transitioned, err := s.scanOne(ctx, j)
		if err != nil {
			// Skip-and-continue: the journey stays in the store with its
			// deadline intact and the next cycle retries it.
			s.logger.Error("scan journey failed",
				"journey_id", j.ID,
				"error", err,
			)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", j.ID, err))
			continue
		}
		if transitioned {
			report.Transitioned++
		}
	}

	return report, nil
}

// scanOne evaluates a single journey under a bounded timeout. It persists
// the overdue transition, notifies the gateway, and appends the missed
// checkpoint — once, because only a real transition reaches this path. The
// save is the cut-off: after it commits the transition happened, so the
// notification fires unconditionally and a failed append is logged rather
// than unwinding anything (the next cycle sees no new transition and could
// never replay it).
func (s *OverdueScanner) scanOne(ctx context.Context, j domain.Journey) (bool, error) {
	now := s.clock.Now()
	if !j.ApplyTimeout(now) {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.journeyTimeout)
	defer cancel()

	if err := s.journeys.Save(ctx, &j); err != nil {
		// A conflict means someone else (a check-in, most likely) just
		// moved the journey; drop our stale transition and let the next
		// cycle re-evaluate fresh state.
		if errors.Is(err, domain.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	s.notifyOverdue(ctx, j, now)

	if _, err := s.journeys.AppendCheckpoint(ctx, j.MissedCheckpoint(now)); err != nil {
		s.logger.Error("append missed checkpoint failed",
			"journey_id", j.ID,
			"error", err,
		)
	}
	return true, nil
}

func (s *OverdueScanner) notifyOverdue(ctx context.Context, j domain.Journey, now time.Time) {
	due := ""
	if j.NextCheckinDue != nil {
		due = j.NextCheckinDue.Format(time.RFC3339)
	}
	ev := notify.Event{
		JourneyID:  j.ID,
		WorkerID:   j.WorkerID,
		TeamID:     j.TeamID,
		Kind:       notify.KindOverdue,
		Message:    fmt.Sprintf("Check-in overdue since %s", due),
		OccurredAt: now,
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		// Logged only: the overdue status is already durable, which is the
		// record that matters for safety.
		s.logger.Error("overdue notification failed",
			"journey_id", j.ID,
			"error", err,
		)
	}
}
