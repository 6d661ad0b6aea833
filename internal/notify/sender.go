package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// EventSource is what the Sender drains. Satisfied by *Queue; tests inject
// an in-memory fake.
type EventSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (Event, error)
}

// Sender is the background worker that drains the event queue and POSTs each
// event to the configured webhook URL. Failed deliveries are retried a few
// times with linear backoff and then logged and dropped — the journey's
// overdue/emergency state is already durable in the store, so a lost webhook
// never loses the safety signal itself.
type Sender struct {
	logger *slog.Logger
	url    string
	source EventSource
	http   *http.Client
}

// NewSender constructs a Sender delivering to url from the given source.
func NewSender(logger *slog.Logger, url string, source EventSource) *Sender {
	return &Sender{
		logger: logger,
		url:    url,
		source: source,
		http:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Run drains the queue until ctx is cancelled. Intended to run in its own
// goroutine alongside the HTTP server and the overdue scanner.
func (s *Sender) Run(ctx context.Context) {
	s.logger.Info("notification sender started", "url", s.url)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("notification sender stopped", "reason", ctx.Err().Error())
			return
		default:
		}

		ev, err := s.source.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if errors.Is(err, ErrQueueEmpty) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			s.logger.Error("dequeue notification failed", "error", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		s.deliver(ctx, ev)
	}
}

func (s *Sender) deliver(ctx context.Context, ev Event) {
	const maxAttempts = 3

	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("marshal notification failed", "error", err)
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			s.logger.Error("build notification request failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_ = resp.Body.Close()
			s.logger.Info("notification delivered",
				"journey_id", ev.JourneyID,
				"kind", ev.Kind,
				"attempt", attempt,
			)
			return
		}

		reason := "unknown"
		if err != nil {
			reason = err.Error()
		} else {
			reason = resp.Status
			_ = resp.Body.Close()
		}

		s.logger.Warn("notification delivery failed",
			"journey_id", ev.JourneyID,
			"kind", ev.Kind,
			"attempt", attempt,
			"reason", reason,
		)

		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	s.logger.Error("notification dropped after retries",
		"journey_id", ev.JourneyID,
		"kind", ev.Kind,
	)
}
