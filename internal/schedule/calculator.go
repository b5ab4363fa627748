// Package schedule computes when scheduled items next execute.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dcallag/stagehand/pkg/models"
)

// ErrInvalidSchedule indicates a malformed schedule description.
// Structural: callers must not retry.
var ErrInvalidSchedule = errors.New("invalid schedule")

// NextExecution returns the next execution instant for a schedule that has
// already executed executionCount times, or nil when no further executions
// are due. For custom cron patterns the next fire strictly after the
// `after` instant is used; the fixed patterns are pure arithmetic on the
// schedule's anchor instant.
func NextExecution(s models.Schedule, executionCount int, after time.Time) (*time.Time, error) {
	switch s.Type {
	case models.ScheduleOnce:
		if executionCount > 0 {
			return nil, nil
		}
		t := s.ExecuteAt
		return &t, nil
	case models.ScheduleRecurring:
		return nextRecurring(s, executionCount, after)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidSchedule, s.Type)
	}
}

func nextRecurring(s models.Schedule, executionCount int, after time.Time) (*time.Time, error) {
	rec := s.Recurrence
	if rec == nil {
		return nil, fmt.Errorf("%w: recurring schedule has no recurrence", ErrInvalidSchedule)
	}
	if rec.MaxExecutions > 0 && executionCount >= rec.MaxExecutions {
		return nil, nil
	}

	interval := rec.Interval
	if interval < 1 {
		interval = 1
	}
	// The k-th execution happens k steps past the anchor.
	k := executionCount + 1

	var next time.Time
	switch rec.Pattern {
	case models.RecurrenceDaily:
		next = s.ExecuteAt.AddDate(0, 0, interval*k)
	case models.RecurrenceWeekly:
		next = s.ExecuteAt.AddDate(0, 0, 7*interval*k)
		next = rollToAllowedWeekday(next, rec.DaysOfWeek)
	case models.RecurrenceMonthly:
		next = s.ExecuteAt.AddDate(0, interval*k, 0)
		if rec.DayOfMonth > 0 {
			next = pinDayOfMonth(next, rec.DayOfMonth)
		}
	case models.RecurrenceYearly:
		next = s.ExecuteAt.AddDate(interval*k, 0, 0)
	case models.RecurrenceCustom:
		sched, err := cron.ParseStandard(rec.CronExpr)
		if err != nil {
			return nil, fmt.Errorf("%w: cron expression %q: %v", ErrInvalidSchedule, rec.CronExpr, err)
		}
		base := after
		if base.Before(s.ExecuteAt) {
			base = s.ExecuteAt
		}
		next = sched.Next(base)
	default:
		return nil, fmt.Errorf("%w: unknown recurrence pattern %q", ErrInvalidSchedule, rec.Pattern)
	}

	if rec.EndDate != nil && next.After(*rec.EndDate) {
		return nil, nil
	}
	return &next, nil
}

// rollToAllowedWeekday advances t (at most six days) to the next weekday
// in the allowed set. An empty set allows every weekday.
func rollToAllowedWeekday(t time.Time, allowed []time.Weekday) time.Time {
	if len(allowed) == 0 {
		return t
	}
	set := make(map[time.Weekday]bool, len(allowed))
	for _, d := range allowed {
		set[d] = true
	}
	for i := 0; i < 7; i++ {
		if set[t.Weekday()] {
			return t
		}
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// pinDayOfMonth moves t to the given day of its month, clamping to the
// month's last day.
func pinDayOfMonth(t time.Time, day int) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	lastDay := firstOfNext.AddDate(0, 0, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(t.Year(), t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Validate checks a schedule at creation time so that malformed items never
// reach the daemon.
func Validate(s models.Schedule) error {
	if !s.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSchedule, s.Type)
	}
	if s.ExecuteAt.IsZero() {
		return fmt.Errorf("%w: execute_at is required", ErrInvalidSchedule)
	}
	if s.Type == models.ScheduleOnce {
		return nil
	}

	rec := s.Recurrence
	if rec == nil {
		return fmt.Errorf("%w: recurring schedule has no recurrence", ErrInvalidSchedule)
	}
	if !rec.Pattern.Valid() {
		return fmt.Errorf("%w: unknown recurrence pattern %q", ErrInvalidSchedule, rec.Pattern)
	}
	if rec.Pattern == models.RecurrenceCustom {
		if _, err := cron.ParseStandard(rec.CronExpr); err != nil {
			return fmt.Errorf("%w: cron expression %q: %v", ErrInvalidSchedule, rec.CronExpr, err)
		}
	}
	return nil
}
