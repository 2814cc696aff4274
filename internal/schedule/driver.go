package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"

	logx "chatmate/pkg/logx"
)

// Handle identifies an armed registration on a Driver.
type Handle uint64

// Driver turns rules into wake-ups. fire may be called concurrently for
// different handles; a Driver never calls fire for a disarmed handle after
// Disarm returns, except for a call already in progress.
type Driver interface {
	Arm(rule Rule, fire func()) (Handle, error)
	Disarm(h Handle)
	// Next reports the upcoming fire time of h, zero if unknown.
	Next(h Handle) time.Time
	Start()
	// Stop halts wake-ups and waits for in-flight fires until ctx is done.
	Stop(ctx context.Context)
}

type armed struct {
	rule  Rule
	fire  func()
	entry cron.EntryID
	timer *time.Timer
	ver   uint64
}

// CronDriver fires repeating rules through robfig/cron and one-shot rules
// through time.AfterFunc, all evaluated in a fixed location.
type CronDriver struct {
	mu      sync.Mutex
	loc     *time.Location
	log     logx.Logger
	c       *cron.Cron
	running bool
	seq     uint64
	entries map[Handle]*armed
	wg      sync.WaitGroup
}

func NewCronDriver(loc *time.Location, log logx.Logger) *CronDriver {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CronDriver{
		loc:     loc,
		log:     log,
		c:       cron.New(cron.WithLocation(loc)),
		entries: map[Handle]*armed{},
	}
}

func (d *CronDriver) Location() *time.Location { return d.loc }

func (d *CronDriver) Arm(rule Rule, fire func()) (Handle, error) {
	if fire == nil {
		return 0, errors.New("fire callback required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	h := Handle(d.seq)
	a := &armed{rule: rule, fire: fire}
	if rule.Repeating() {
		sched, err := rule.CronSchedule(d.loc)
		if err != nil {
			return 0, err
		}
		a.entry = d.c.Schedule(sched, cron.FuncJob(d.track(fire)))
	} else if d.running {
		d.startTimerLocked(h, a)
	}
	d.entries[h] = a
	return h, nil
}

// startTimerLocked arms a one-shot. Overdue instants fire immediately.
// Call with d.mu held.
func (d *CronDriver) startTimerLocked(h Handle, a *armed) {
	a.ver++
	ver := a.ver
	delay := time.Until(a.rule.At)
	if delay < 0 {
		delay = 0
	}
	a.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		cur, ok := d.entries[h]
		if !ok || cur.ver != ver || !d.running {
			d.mu.Unlock()
			return
		}
		d.wg.Add(1)
		d.mu.Unlock()
		defer d.wg.Done()
		a.fire()
	})
}

func (d *CronDriver) track(fire func()) func() {
	return func() {
		d.wg.Add(1)
		defer d.wg.Done()
		fire()
	}
}

func (d *CronDriver) Disarm(h Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.entries[h]
	if !ok {
		return
	}
	delete(d.entries, h)
	if a.entry != 0 {
		d.c.Remove(a.entry)
	}
	if a.timer != nil {
		a.timer.Stop()
	}
}

func (d *CronDriver) Next(h Handle) time.Time {
	d.mu.Lock()
	a, ok := d.entries[h]
	d.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	if a.entry != 0 {
		if next := d.c.Entry(a.entry).Next; !next.IsZero() {
			return next
		}
		return a.rule.Next(time.Now(), d.loc)
	}
	return a.rule.At
}

func (d *CronDriver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.c.Start()
	for h, a := range d.entries {
		if !a.rule.Repeating() {
			d.startTimerLocked(h, a)
		}
	}
	d.log.Debug("driver started", logx.String("tz", d.loc.String()), logx.Int("armed", len(d.entries)))
}

func (d *CronDriver) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	for _, a := range d.entries {
		if a.timer != nil {
			a.timer.Stop()
			a.timer = nil
		}
	}
	stopped := d.c.Stop()
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		d.log.Warn("driver stop timed out; fires still in flight")
	}
}
