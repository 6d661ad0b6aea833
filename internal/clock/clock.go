// Package clock abstracts the current time so services are deterministic
// under test. Production code passes System; tests pass a manual fake.
package clock

import "time"

// Clock supplies the current time. It is read-only and shared: no component
// ever mutates time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }
