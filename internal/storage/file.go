package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "chatmate/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.jobs.jsonl    (append-only journal of put/del ops, compacted periodically)
//   - <prefix>.history.jsonl (append-only JSON Lines)
//
// Both files are replayed into memory on open.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	jobsPath    string
	jobsFile    *os.File
	jobs        map[string]JobRecord
	jobsWrites  int
	compactEach int
	rename      func(oldpath, newpath string) error
	closed      bool

	historyPath string
	historyFile *os.File
	history     []HistoryRecord
}

type jobOp struct {
	Op  string     `json:"op"` // "put" | "del"
	ID  string     `json:"id,omitempty"`
	Job *JobRecord `json:"job,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:         log,
		jobsPath:    prefix + ".jobs.jsonl",
		historyPath: prefix + ".history.jsonl",
		jobs:        map[string]JobRecord{},
		compactEach: 200,
		rename:      os.Rename,
	}
	if err := replayJobs(s.jobsPath, s.jobs); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := replayHistory(s.historyPath, &s.history); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	jf, err := os.OpenFile(s.jobsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	hf, err := os.OpenFile(s.historyPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = jf.Close()
		return nil, err
	}
	s.jobsFile = jf
	s.historyFile = hf
	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("jobs", len(s.jobs)), logx.Int("history", len(s.history)))
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	var err1, err2 error
	if s.jobsFile != nil {
		err1 = s.jobsFile.Close()
		s.jobsFile = nil
	}
	if s.historyFile != nil {
		err2 = s.historyFile.Close()
		s.historyFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) PutJob(_ context.Context, r JobRecord) error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("job id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendJobOpLocked(jobOp{Op: "put", Job: &r}); err != nil {
		return err
	}
	s.jobs[r.ID] = r
	s.maybeCompactLocked()
	return nil
}

func (s *fileStore) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return nil
	}
	if err := s.appendJobOpLocked(jobOp{Op: "del", ID: id}); err != nil {
		return err
	}
	delete(s.jobs, id)
	s.maybeCompactLocked()
	return nil
}

func (s *fileStore) ListJobs(_ context.Context) ([]JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedJobs(s.jobs), nil
}

func (s *fileStore) appendJobOpLocked(op jobOp) error {
	if s.closed {
		return errors.New("jobs journal closed")
	}
	if s.jobsFile == nil {
		if err := s.reopenJobsLocked(); err != nil {
			return err
		}
	}
	return json.NewEncoder(s.jobsFile).Encode(op)
}

// maybeCompactLocked runs after the in-memory map reflects the last op.
func (s *fileStore) maybeCompactLocked() {
	s.jobsWrites++
	if s.jobsWrites%s.compactEach != 0 {
		return
	}
	if err := s.compactJobsLocked(); err != nil {
		s.log.Warn("jobs journal compact failed", logx.Err(err))
	}
}

// compactJobsLocked rewrites the journal with one put per live job. On
// failure the journal at jobsPath stays authoritative and is reopened.
func (s *fileStore) compactJobsLocked() error {
	tmp := s.jobsPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, r := range sortedJobs(s.jobs) {
		r := r
		if err := enc.Encode(jobOp{Op: "put", Job: &r}); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := s.jobsFile.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	s.jobsFile = nil
	renameErr := s.rename(tmp, s.jobsPath)
	if renameErr != nil {
		_ = os.Remove(tmp)
	}
	if err := s.reopenJobsLocked(); err != nil {
		if renameErr != nil {
			return errors.Join(renameErr, err)
		}
		return err
	}
	return renameErr
}

func (s *fileStore) reopenJobsLocked() error {
	jf, err := os.OpenFile(s.jobsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	s.jobsFile = jf
	return nil
}

func (s *fileStore) AppendHistory(_ context.Context, r HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return errors.New("history file closed")
	}
	if err := json.NewEncoder(s.historyFile).Encode(r); err != nil {
		return err
	}
	s.history = append(s.history, r)
	return nil
}

func (s *fileStore) RecentHistory(_ context.Context, limit int) ([]HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]HistoryRecord, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}

func (s *fileStore) ClearHistory(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return 0, errors.New("history file closed")
	}
	if err := s.historyFile.Truncate(0); err != nil {
		return 0, err
	}
	if _, err := s.historyFile.Seek(0, 0); err != nil {
		return 0, err
	}
	n := len(s.history)
	s.history = nil
	return n, nil
}

func replayJobs(path string, out map[string]JobRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var op jobOp
		if err := json.Unmarshal(sc.Bytes(), &op); err != nil {
			continue
		}
		switch op.Op {
		case "put":
			if op.Job != nil && op.Job.ID != "" {
				out[op.Job.ID] = *op.Job
			}
		case "del":
			delete(out, op.ID)
		}
	}
	return sc.Err()
}

func replayHistory(path string, out *[]HistoryRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var r HistoryRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		*out = append(*out, r)
	}
	return sc.Err()
}

func sortedJobs(m map[string]JobRecord) []JobRecord {
	out := make([]JobRecord, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
