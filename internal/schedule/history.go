package schedule

import (
	"context"
	"sync"
)

const defaultHistoryLimit = 50

// HistoryLog is the append-only record of fires.
type HistoryLog interface {
	Append(ctx context.Context, e HistoryEntry) error
	// Recent returns at most limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]HistoryEntry, error)
	// Clear empties the log and reports how many entries were dropped.
	Clear(ctx context.Context) (int, error)
}

// MemoryHistory keeps entries in process memory. With a positive capacity the
// oldest entries are discarded once it is exceeded.
type MemoryHistory struct {
	mu       sync.Mutex
	entries  []HistoryEntry
	capacity int
}

func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity < 0 {
		capacity = 0
	}
	return &MemoryHistory{capacity: capacity}
}

func (h *MemoryHistory) Append(_ context.Context, e HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if h.capacity > 0 && len(h.entries) > h.capacity {
		drop := len(h.entries) - h.capacity
		h.entries = append(h.entries[:0:0], h.entries[drop:]...)
	}
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return newestFirst(h.entries, limit), nil
}

func (h *MemoryHistory) Clear(_ context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.entries)
	h.entries = nil
	return n, nil
}

func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// newestFirst copies the last limit entries of an oldest-first slice in reverse.
func newestFirst(in []HistoryEntry, limit int) []HistoryEntry {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > len(in) {
		limit = len(in)
	}
	out := make([]HistoryEntry, 0, limit)
	for i := len(in) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, in[i])
	}
	return out
}
