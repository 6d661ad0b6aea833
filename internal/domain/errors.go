package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// journey or checkpoint does not exist (or has been soft-deleted).
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. coordinate out of range, interval outside bounds). No state is
// mutated. Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrInvalidTransition is returned when an operation is attempted from a
// journey status that disallows it (e.g. starting an already-active journey,
// checking in on a completed one). No state is mutated.
// Handlers should map this to HTTP 409 Conflict.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrConflict is returned by the store's Save when the journey row was
// modified since it was read (optimistic-concurrency loss). The caller must
// re-read and retry; the service layer does this automatically with a
// bounded retry.
var ErrConflict = errors.New("concurrent modification")

// ErrStoreUnavailable marks a transient persistence failure (connection
// refused, statement timeout). The scanner skips the journey and retries
// next cycle; interactive operations surface it as a retryable failure
// (HTTP 503).
var ErrStoreUnavailable = errors.New("store unavailable")
