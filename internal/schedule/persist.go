package schedule

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"chatmate/internal/storage"
	logx "chatmate/pkg/logx"
)

// Restorer is implemented by job stores that survive a restart. Scheduler.Start
// re-arms every restored job.
type Restorer interface {
	Restore(ctx context.Context) ([]Details, error)
}

// PersistentJobStore keeps live jobs in memory and writes every registration
// and removal through to a storage.Store.
type PersistentJobStore struct {
	mem *MemoryJobStore
	st  storage.Store
	log logx.Logger
}

func NewPersistentJobStore(st storage.Store, log logx.Logger) *PersistentJobStore {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &PersistentJobStore{mem: NewMemoryJobStore(), st: st, log: log}
}

func (p *PersistentJobStore) Register(ctx context.Context, job *Job) error {
	d := job.Details()
	b, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "encode job")
	}
	if err := p.st.PutJob(ctx, storage.JobRecord{ID: d.JobID, CreatedAt: d.CreatedAt, Data: b}); err != nil {
		return errors.Wrap(err, "persist job")
	}
	return p.mem.Register(ctx, job)
}

func (p *PersistentJobStore) Lookup(id string) (*Job, bool) { return p.mem.Lookup(id) }

// Remove drops the job from memory first. A failed delete is only logged, so
// the job comes back on the next restart.
func (p *PersistentJobStore) Remove(ctx context.Context, id string) (*Job, bool) {
	j, ok := p.mem.Remove(ctx, id)
	if !ok {
		return nil, false
	}
	if err := p.st.DeleteJob(ctx, id); err != nil {
		p.log.Warn("delete persisted job failed", logx.String("job", id), logx.Err(err))
	}
	return j, true
}

func (p *PersistentJobStore) List() []*Job { return p.mem.List() }

func (p *PersistentJobStore) Restore(ctx context.Context) ([]Details, error) {
	recs, err := p.st.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Details, 0, len(recs))
	for _, r := range recs {
		var d Details
		if err := json.Unmarshal(r.Data, &d); err != nil {
			p.log.Warn("skipping undecodable job", logx.String("job", r.ID), logx.Err(err))
			continue
		}
		if d.JobID == "" {
			d.JobID = r.ID
		}
		out = append(out, d)
	}
	return out, nil
}

// PersistentHistory stores fire outcomes in a storage.Store.
type PersistentHistory struct {
	st storage.Store
}

func NewPersistentHistory(st storage.Store) *PersistentHistory {
	return &PersistentHistory{st: st}
}

func (h *PersistentHistory) Append(ctx context.Context, e HistoryEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "encode history entry")
	}
	return h.st.AppendHistory(ctx, storage.HistoryRecord{
		JobID:      e.JobID,
		ExecutedAt: e.ExecutedAt,
		Status:     string(e.Status),
		Data:       b,
	})
}

func (h *PersistentHistory) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	recs, err := h.st.RecentHistory(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(recs))
	for _, r := range recs {
		var e HistoryEntry
		if err := json.Unmarshal(r.Data, &e); err != nil {
			e = HistoryEntry{JobID: r.JobID, ExecutedAt: r.ExecutedAt, Status: RunStatus(r.Status)}
		}
		out = append(out, e)
	}
	return out, nil
}

func (h *PersistentHistory) Clear(ctx context.Context) (int, error) {
	return h.st.ClearHistory(ctx)
}
