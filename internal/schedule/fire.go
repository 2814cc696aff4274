package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	logx "chatmate/pkg/logx"
)

// fire runs one tick of a job. Delivery and enhancement failures end up in the
// history log; nothing propagates back to the driver.
func (s *Scheduler) fire(id string) {
	job, ok := s.store.Lookup(id)
	if !ok {
		s.log.Debug("fire for unknown job ignored", logx.String("job", id))
		return
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.Status() != StatusScheduled {
		return
	}

	_, timeout := s.settings()
	log := s.log.With(logx.String("job", id))
	log.Info("executing scheduled message")

	req := job.details.Request
	content := s.resolveContent(log, req, timeout)

	start := s.now()
	receipt, err := s.dispatch(req, content, timeout)
	entry := HistoryEntry{
		JobID:      id,
		ExecutedAt: start,
		Recipient:  req.Target(),
		Content:    content,
	}
	if err != nil {
		entry.Status = RunFailed
		entry.Error = err.Error()
		log.Error("scheduled message failed", logx.String("to", req.Target()), logx.Err(err))
	} else {
		entry.Status = RunSuccess
		entry.Result = receipt
		log.Info("scheduled message sent", logx.String("to", req.Target()), logx.Duration("took", s.now().Sub(start)))
	}

	hctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	if herr := s.history.Append(hctx, entry); herr != nil {
		log.Warn("history append failed", logx.Err(herr))
	}
	cancel()
	s.publish(EventFired, job, entry.Status, entry.Error)

	if !req.Repeat {
		s.retireLocked(job)
	}
}

// retireLocked removes a one-shot job after its fire. Call with job.mu held.
func (s *Scheduler) retireLocked(job *Job) {
	if !job.casStatus(StatusScheduled, StatusRetired) {
		return
	}
	s.driver.Disarm(job.armed())
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	s.store.Remove(ctx, job.ID())
	cancel()
	s.log.Debug("one-shot job retired", logx.String("job", job.ID()))
	s.publish(EventRetired, job, "", "")
}

// resolveContent returns the enhanced text, or the original on any enhancer problem.
func (s *Scheduler) resolveContent(log logx.Logger, req Request, timeout time.Duration) string {
	if !req.AIEnhance {
		return req.Content
	}
	if s.enhancer == nil {
		log.Warn("ai enhancement requested but no enhancer configured; using original message")
		return req.Content
	}
	var enhanced string
	err := s.bounded(timeout, func(ctx context.Context) error {
		out, err := s.enhancer.Enhance(ctx, req.Content, DefaultEnhanceProfile)
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return errors.New("enhancer returned empty content")
		}
		enhanced = out
		return nil
	})
	if err != nil {
		log.Warn("ai enhancement failed, using original message", logx.Err(err))
		return req.Content
	}
	log.Debug("message enhanced", logx.Int("from_len", len(req.Content)), logx.Int("to_len", len(enhanced)))
	return enhanced
}

func (s *Scheduler) dispatch(req Request, content string, timeout time.Duration) (Receipt, error) {
	var receipt Receipt
	err := s.bounded(timeout, func(ctx context.Context) error {
		var err error
		if req.SendMode == SendContact {
			receipt, err = s.backend.SendToContact(ctx, req.ContactName, content)
		} else {
			receipt, err = s.backend.SendToNumber(ctx, req.Recipient, content)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// bounded runs fn with a deadline. A collaborator that ignores its context is
// abandoned when the deadline passes; panics are turned into errors.
func (s *Scheduler) bounded(timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Newf("panic: %v", r)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Newf("timed out after %s", timeout)
		}
		return errors.Wrap(ctx.Err(), "scheduler stopping")
	}
}

// String makes HistoryEntry readable in logs and test failures.
func (e HistoryEntry) String() string {
	if e.Status == RunFailed {
		return fmt.Sprintf("%s %s %s: %s", e.ExecutedAt.Format(time.RFC3339), e.JobID, e.Status, e.Error)
	}
	return fmt.Sprintf("%s %s %s", e.ExecutedAt.Format(time.RFC3339), e.JobID, e.Status)
}
