// Package storage provides the optional persistence layer behind the scheduler.
//
// Drivers:
//   - file:   dependency-free JSON Lines journals under a path prefix
//   - sqlite: a single SQLite database file (modernc.org/sqlite, no cgo)
//   - redis:  a Redis hash for jobs and a list for history
//
// Stored payloads are opaque JSON blobs; the scheduler owns their schema.
package storage
