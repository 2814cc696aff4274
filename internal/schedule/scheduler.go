package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"chatmate/internal/eventbus"
	logx "chatmate/pkg/logx"
)

const (
	DefaultTimezone        = "Asia/Kolkata"
	DefaultDispatchTimeout = 30 * time.Second

	EventScheduled = "job.scheduled"
	EventFired     = "job.fired"
	EventCancelled = "job.cancelled"
	EventRetired   = "job.retired"
)

// Config controls wall-clock interpretation and dispatch bounds.
type Config struct {
	Timezone        string // IANA TZ; empty means DefaultTimezone
	DispatchTimeout time.Duration
}

// Deps are the collaborators of a Scheduler. Backend is required; the rest
// default to in-memory implementations (Enhancer may stay nil).
type Deps struct {
	Backend  Backend
	Enhancer Enhancer
	Store    JobStore
	History  HistoryLog
	Driver   Driver
	Bus      eventbus.Bus
	Log      logx.Logger
	Now      func() time.Time
}

// JobEvent is published on the bus for job lifecycle transitions.
type JobEvent struct {
	JobID     string    `json:"jobId"`
	Recipient string    `json:"recipient"`
	Repeat    bool      `json:"repeat"`
	Status    RunStatus `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type Scheduler struct {
	mu  sync.Mutex
	cfg Config
	loc *time.Location

	backend  Backend
	enhancer Enhancer
	store    JobStore
	history  HistoryLog
	driver   Driver
	bus      eventbus.Bus
	log      logx.Logger
	now      func() time.Time

	// ctx bounds fire-time work; cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Backend == nil {
		return nil, ErrNoBackend
	}
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		backend:  deps.Backend,
		enhancer: deps.Enhancer,
		store:    deps.Store,
		history:  deps.History,
		driver:   deps.Driver,
		bus:      deps.Bus,
		log:      log,
		now:      deps.Now,
	}
	s.cfg = withDefaults(cfg)
	s.loc = loadLocation(s.cfg.Timezone, log)
	if s.store == nil {
		s.store = NewMemoryJobStore()
	}
	if s.history == nil {
		s.history = NewMemoryHistory(0)
	}
	if s.driver == nil {
		s.driver = NewCronDriver(s.loc, log.With(logx.String("comp", "driver")))
	}
	if s.bus == nil {
		s.bus = eventbus.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

func withDefaults(cfg Config) Config {
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultDispatchTimeout
	}
	return cfg
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Apply updates the dispatch timeout and the timezone used to derive rules of
// jobs scheduled from now on. Armed jobs keep the rule they were created with.
func (s *Scheduler) Apply(cfg Config) {
	cfg = withDefaults(cfg)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Timezone != s.cfg.Timezone {
		s.loc = loadLocation(cfg.Timezone, s.log)
		s.log.Info("timezone changed", logx.String("tz", s.loc.String()))
	}
	s.cfg = cfg
}

func (s *Scheduler) settings() (*time.Location, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc, s.cfg.DispatchTimeout
}

// Start restores persisted jobs (when the store supports it) and starts the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if r, ok := s.store.(Restorer); ok {
		saved, err := r.Restore(ctx)
		if err != nil {
			return errors.Wrap(err, "restore jobs")
		}
		for _, d := range saved {
			if err := s.rearm(ctx, d); err != nil {
				s.log.Warn("restore job failed", logx.String("job", d.JobID), logx.Err(err))
			}
		}
		if len(saved) > 0 {
			s.log.Info("jobs restored", logx.Int("count", len(saved)))
		}
	}
	s.driver.Start()
	loc, _ := s.settings()
	s.log.Info("scheduler started", logx.String("tz", loc.String()), logx.Int("jobs", len(s.store.List())))
	return nil
}

// Stop halts wake-ups, waits for in-flight fires until ctx is done, then
// cancels any dispatch still running.
func (s *Scheduler) Stop(ctx context.Context) {
	start := time.Now()
	s.driver.Stop(ctx)
	s.cancel()
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

func (s *Scheduler) validate(req Request, now time.Time) error {
	if strings.TrimSpace(req.Content) == "" {
		return validationf("content is required")
	}
	switch req.SendMode {
	case SendNumber:
		if req.Recipient == "" {
			return validationf("recipient phone number is required for sendMode %q", SendNumber)
		}
		if req.ContactName != "" {
			return validationf("contactName must not be set for sendMode %q", SendNumber)
		}
	case SendContact:
		if req.ContactName == "" {
			return validationf("contactName is required for sendMode %q", SendContact)
		}
		if req.Recipient != "" {
			return validationf("recipient must not be set for sendMode %q", SendContact)
		}
	case "":
		return validationf("sendMode is required when both or neither of recipient and contactName are set")
	default:
		return validationf("unknown sendMode %q", req.SendMode)
	}
	if req.ScheduleTime.IsZero() {
		return validationf("scheduleTime is required")
	}
	if !req.ScheduleTime.After(now) {
		return validationf("schedule time must be in the future")
	}
	return nil
}

// Schedule validates req and registers a job. It never dispatches synchronously.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (Summary, error) {
	req = req.normalized()
	now := s.now()
	if err := s.validate(req, now); err != nil {
		return Summary{}, err
	}
	loc, _ := s.settings()
	rule := RuleFor(req.ScheduleTime, req.Repeat, req.RepeatInterval, loc)
	req.ScheduleTime = rule.At

	job := newJob(Details{
		JobID:     uuid.NewString(),
		Request:   req,
		CronExpr:  rule.CronExpr(),
		CreatedAt: now,
	}, rule)
	if err := s.register(ctx, job); err != nil {
		return Summary{}, err
	}

	log := s.log.With(logx.String("job", job.ID()))
	log.Info("message scheduled",
		logx.String("mode", string(req.SendMode)),
		logx.String("to", req.Target()),
		logx.Time("at", rule.At),
		logx.String("rule", rule.Kind.String()),
		logx.String("cron", rule.CronExpr()),
		logx.Bool("ai_enhance", req.AIEnhance),
	)
	s.publish(EventScheduled, job, "", "")

	repeatInterval := req.RepeatInterval
	if !req.Repeat {
		repeatInterval = ""
	}
	return Summary{
		JobID:          job.ID(),
		ScheduleTime:   rule.At,
		Repeat:         req.Repeat,
		RepeatInterval: repeatInterval,
		Message:        "Message scheduled for " + rule.At.Format("2006-01-02 15:04:05 MST"),
	}, nil
}

// register stores the job and arms it. The job lock is held across both so an
// immediate fire waits until the handle is known.
func (s *Scheduler) register(ctx context.Context, job *Job) error {
	job.mu.Lock()
	defer job.mu.Unlock()
	if err := s.store.Register(ctx, job); err != nil {
		return errors.Wrap(err, "register job")
	}
	id := job.ID()
	h, err := s.driver.Arm(job.rule, func() { s.fire(id) })
	if err != nil {
		s.store.Remove(ctx, id)
		return errors.Wrap(err, "arm job")
	}
	job.handle.Store(uint64(h))
	return nil
}

func (s *Scheduler) rearm(ctx context.Context, d Details) error {
	if d.Status != "" && d.Status != StatusScheduled {
		return nil
	}
	if _, exists := s.store.Lookup(d.JobID); exists {
		return nil
	}
	loc, _ := s.settings()
	rule := RuleFor(d.ScheduleTime, d.Repeat, d.RepeatInterval, loc)
	d.Status = ""
	return s.register(ctx, newJob(d, rule))
}

// Cancel stops a scheduled job. A fire of the same job already in progress
// completes first; no fire starts after Cancel returns.
func (s *Scheduler) Cancel(ctx context.Context, id string) (CancelResult, error) {
	job, ok := s.store.Lookup(id)
	if !ok {
		return CancelResult{}, notFound(id)
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if !job.casStatus(StatusScheduled, StatusCancelled) {
		return CancelResult{}, notFound(id)
	}
	s.driver.Disarm(job.armed())
	s.store.Remove(ctx, id)

	s.log.Info("scheduled message cancelled", logx.String("job", id))
	s.publish(EventCancelled, job, "", "")
	return CancelResult{Success: true, Message: fmt.Sprintf("Scheduled message %s cancelled", id)}, nil
}

// List returns all scheduled jobs in registration order.
func (s *Scheduler) List() []Details {
	jobs := s.store.List()
	out := make([]Details, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Details())
	}
	return out
}

// History returns at most limit entries, newest first (limit <= 0 means 50).
func (s *Scheduler) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.history.Recent(ctx, limit)
}

// ClearHistory empties the execution log. Not recoverable.
func (s *Scheduler) ClearHistory(ctx context.Context) (int, error) {
	n, err := s.history.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("history cleared", logx.Int("count", n))
	return n, nil
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	tz := s.loc.String()
	timeout := s.cfg.DispatchTimeout
	s.mu.Unlock()

	jobs := s.store.List()
	items := make([]JobInfo, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, JobInfo{Details: j.Details(), Next: s.driver.Next(j.armed())})
	}
	return Snapshot{Timezone: tz, DispatchTimeout: timeout, Jobs: items}
}

func (s *Scheduler) publish(typ string, job *Job, status RunStatus, errMsg string) {
	s.bus.Publish(eventbus.Event{Type: typ, Data: JobEvent{
		JobID:     job.ID(),
		Recipient: job.details.Target(),
		Repeat:    job.details.Repeat,
		Status:    status,
		Error:     errMsg,
	}})
}
