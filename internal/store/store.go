// Package store persists content jobs: a Redis cache for live jobs and
// progress snapshots, and a SQLite repository for history.
package store

import "github.com/cockroachdb/errors"

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("content not found")
