package storage

import (
	"context"
	"errors"
	"strings"

	logx "chatmate/pkg/logx"
)

// Store is the persistence API used by the scheduler.
type Store interface {
	PutJob(ctx context.Context, r JobRecord) error
	DeleteJob(ctx context.Context, id string) error
	// ListJobs returns jobs ordered by creation time.
	ListJobs(ctx context.Context) ([]JobRecord, error)

	AppendHistory(ctx context.Context, r HistoryRecord) error
	// RecentHistory returns at most limit records, newest first.
	RecentHistory(ctx context.Context, limit int) ([]HistoryRecord, error)
	ClearHistory(ctx context.Context) (int, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "redis":
		return openRedis(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
