package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file":   Path is a prefix; files <prefix>.jobs.jsonl and <prefix>.history.jsonl
//   - "sqlite": Path is the database file
//   - "redis":  Addr/Password/DB select the server, Prefix namespaces keys
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	Addr     string
	Password string
	DB       int
	Prefix   string
}

// JobRecord is a persisted scheduled job.
type JobRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Data      []byte    `json:"data"`
}

// HistoryRecord is a persisted fire outcome.
type HistoryRecord struct {
	JobID      string    `json:"job_id"`
	ExecutedAt time.Time `json:"executed_at"`
	Status     string    `json:"status"`
	Data       []byte    `json:"data"`
}
