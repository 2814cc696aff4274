package schedule

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type SendMode string

const (
	SendNumber  SendMode = "number"
	SendContact SendMode = "contact"
)

type Interval string

const (
	Hourly  Interval = "hourly"
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
)

func (i Interval) known() bool {
	switch i {
	case Hourly, Daily, Weekly, Monthly:
		return true
	}
	return false
}

// Status is the lifecycle state of a job.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusRetired   Status = "retired"
)

// RunStatus is the outcome of a single fire.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Request asks for a message to be sent at ScheduleTime, optionally repeating.
type Request struct {
	SendMode       SendMode  `json:"sendMode"`
	Recipient      string    `json:"phoneNumber,omitempty"`
	ContactName    string    `json:"contactName,omitempty"`
	Content        string    `json:"content"`
	ScheduleTime   time.Time `json:"scheduleTime"`
	Repeat         bool      `json:"repeat"`
	RepeatInterval Interval  `json:"repeatInterval,omitempty"`
	AIEnhance      bool      `json:"aiEnhance"`
}

// Target is the phone number or contact name the request addresses.
func (r Request) Target() string {
	if r.SendMode == SendContact {
		return r.ContactName
	}
	return r.Recipient
}

func (r Request) normalized() Request {
	r.Recipient = strings.TrimSpace(r.Recipient)
	r.ContactName = strings.TrimSpace(r.ContactName)
	r.RepeatInterval = Interval(strings.ToLower(strings.TrimSpace(string(r.RepeatInterval))))
	if r.SendMode == "" {
		switch {
		case r.Recipient != "" && r.ContactName == "":
			r.SendMode = SendNumber
		case r.ContactName != "" && r.Recipient == "":
			r.SendMode = SendContact
		}
	}
	if r.Repeat && !r.RepeatInterval.known() {
		r.RepeatInterval = Daily
	}
	return r
}

// Details is the snapshot of a job returned to callers.
type Details struct {
	JobID string `json:"jobId"`
	Request
	CronExpr  string    `json:"cronExpression"`
	CreatedAt time.Time `json:"createdAt"`
	Status    Status    `json:"status"`
}

// Summary is returned by Scheduler.Schedule.
type Summary struct {
	JobID          string    `json:"jobId"`
	ScheduleTime   time.Time `json:"scheduleTime"`
	Repeat         bool      `json:"repeat"`
	RepeatInterval Interval  `json:"repeatInterval,omitempty"`
	Message        string    `json:"message"`
}

type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Receipt is the backend's success payload, recorded verbatim.
type Receipt map[string]any

// HistoryEntry records one fire of a job. Entries are never mutated after append.
type HistoryEntry struct {
	JobID      string    `json:"jobId"`
	ExecutedAt time.Time `json:"executedAt"`
	Status     RunStatus `json:"status"`
	Recipient  string    `json:"recipient,omitempty"`
	Content    string    `json:"content,omitempty"`
	Result     Receipt   `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Job is a registered schedule. Details are immutable after registration; only
// the status changes, and only through compare-and-swap.
type Job struct {
	details Details
	rule    Rule
	status  atomic.Value // Status

	// mu serialises a fire against cancellation of the same job.
	mu     sync.Mutex
	handle atomic.Uint64
}

func newJob(d Details, rule Rule) *Job {
	j := &Job{details: d, rule: rule}
	j.status.Store(StatusScheduled)
	return j
}

func (j *Job) ID() string { return j.details.JobID }
func (j *Job) Rule() Rule { return j.rule }
func (j *Job) Status() Status {
	s, _ := j.status.Load().(Status)
	return s
}

// Details returns a copy with the current status.
func (j *Job) Details() Details {
	d := j.details
	d.Status = j.Status()
	return d
}

func (j *Job) armed() Handle { return Handle(j.handle.Load()) }

func (j *Job) casStatus(from, to Status) bool {
	return j.status.CompareAndSwap(from, to)
}

// JobInfo is a diagnostic view of a scheduled job.
type JobInfo struct {
	Details
	Next time.Time `json:"nextRun,omitempty"`
}

type Snapshot struct {
	Timezone        string        `json:"timezone"`
	DispatchTimeout time.Duration `json:"dispatchTimeout"`
	Jobs            []JobInfo     `json:"jobs"`
}
