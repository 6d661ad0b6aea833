// Package migrations embeds the journey schema migrations so they can be
// applied through the goose programmatic API at server bootstrap and in
// repo integration tests.
package migrations

import "embed"

// FS holds all *.sql migration files embedded at compile time.
// Pass this to a goose.Provider instead of relying on a filesystem
// path at runtime.
//
//go:embed *.sql
var FS embed.FS
