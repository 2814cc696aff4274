package schedule

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

// RuleKind tags the variant held by a Rule.
type RuleKind int

const (
	OneShot RuleKind = iota
	HourlyRule
	DailyRule
	WeeklyRule
	MonthlyRule
)

func (k RuleKind) String() string {
	switch k {
	case OneShot:
		return "once"
	case HourlyRule:
		return "hourly"
	case DailyRule:
		return "daily"
	case WeeklyRule:
		return "weekly"
	case MonthlyRule:
		return "monthly"
	default:
		return fmt.Sprintf("RuleKind(%d)", int(k))
	}
}

// Rule is the temporal pattern governing when a job fires.
//
// Wall-clock fields are taken from At in the scheduler's timezone:
//
//	OneShot  fires exactly at At
//	Hourly   every hour at Minute
//	Daily    every day at Hour:Minute
//	Weekly   every Weekday at Hour:Minute
//	Monthly  every month on Day at Hour:Minute; months without Day are skipped
type Rule struct {
	Kind    RuleKind
	At      time.Time
	Minute  int
	Hour    int
	Day     int
	Weekday time.Weekday
	Month   time.Month
}

// RuleFor derives the rule for a target instant. An unknown interval on a
// repeating request falls back to daily.
func RuleFor(at time.Time, repeat bool, interval Interval, loc *time.Location) Rule {
	if loc == nil {
		loc = time.Local
	}
	t := at.In(loc)
	r := Rule{
		At:      t,
		Minute:  t.Minute(),
		Hour:    t.Hour(),
		Day:     t.Day(),
		Weekday: t.Weekday(),
		Month:   t.Month(),
	}
	if !repeat {
		r.Kind = OneShot
		return r
	}
	switch interval {
	case Hourly:
		r.Kind = HourlyRule
	case Weekly:
		r.Kind = WeeklyRule
	case Monthly:
		r.Kind = MonthlyRule
	default:
		r.Kind = DailyRule
	}
	return r
}

func (r Rule) Repeating() bool { return r.Kind != OneShot }

// CronExpr renders the rule as a standard 5-field cron expression.
// For one-shot rules it is informational only: the driver fires those on a timer.
func (r Rule) CronExpr() string {
	switch r.Kind {
	case OneShot:
		return fmt.Sprintf("%d %d %d %d *", r.Minute, r.Hour, r.Day, int(r.Month))
	case HourlyRule:
		return fmt.Sprintf("%d * * * *", r.Minute)
	case WeeklyRule:
		return fmt.Sprintf("%d %d * * %d", r.Minute, r.Hour, int(r.Weekday))
	case MonthlyRule:
		return fmt.Sprintf("%d %d %d * *", r.Minute, r.Hour, r.Day)
	default:
		return fmt.Sprintf("%d %d * * *", r.Minute, r.Hour)
	}
}

// CronSchedule translates a repeating rule to a robfig schedule. The rule is
// evaluated in the location of At; loc is used only when At is zero.
func (r Rule) CronSchedule(loc *time.Location) (cron.Schedule, error) {
	if !r.Repeating() {
		return nil, errors.Newf("%s rule has no cron schedule", r.Kind)
	}
	if !r.At.IsZero() {
		loc = r.At.Location()
	}
	sched, err := cron.ParseStandard(r.CronExpr())
	if err != nil {
		return nil, errors.Wrapf(err, "parse cron %q", r.CronExpr())
	}
	if spec, ok := sched.(*cron.SpecSchedule); ok && loc != nil {
		spec.Location = loc
	}
	return sched, nil
}

// Next returns the first fire time strictly after t, or zero when the rule
// never fires again.
func (r Rule) Next(t time.Time, loc *time.Location) time.Time {
	if !r.Repeating() {
		if r.At.After(t) {
			return r.At
		}
		return time.Time{}
	}
	sched, err := r.CronSchedule(loc)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(t)
}
