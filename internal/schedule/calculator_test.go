package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcallag/stagehand/pkg/models"
)

func anchor() time.Time {
	return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func TestNextExecutionOnce(t *testing.T) {
	s := models.Schedule{Type: models.ScheduleOnce, ExecuteAt: anchor()}

	next, err := NextExecution(s, 0, anchor().Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, anchor(), *next)

	// After its single execution a once schedule is exhausted.
	next, err = NextExecution(s, 1, anchor())
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestNextExecutionDaily(t *testing.T) {
	s := models.Schedule{
		Type:      models.ScheduleRecurring,
		ExecuteAt: anchor(),
		Recurrence: &models.Recurrence{
			Pattern:  models.RecurrenceDaily,
			Interval: 1,
		},
	}

	next, err := NextExecution(s, 0, anchor())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, anchor().AddDate(0, 0, 1), *next)

	// The k-th execution is k days past the anchor, independent of drift.
	next, err = NextExecution(s, 4, anchor().AddDate(0, 0, 10))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, anchor().AddDate(0, 0, 5), *next)
}

func TestNextExecutionDailyInterval(t *testing.T) {
	s := models.Schedule{
		Type:      models.ScheduleRecurring,
		ExecuteAt: anchor(),
		Recurrence: &models.Recurrence{
			Pattern:  models.RecurrenceDaily,
			Interval: 3,
		},
	}

	next, err := NextExecution(s, 1, anchor())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, anchor().AddDate(0, 0, 6), *next)
}

func TestNextExecutionMaxExecutions(t *testing.T) {
	s := models.Schedule{
		Type:      models.ScheduleRecurring,
		ExecuteAt: anchor(),
		Recurrence: &models.Recurrence{
			Pattern:       models.RecurrenceDaily,
			Interval:      1,
			MaxExecutions: 3,
		},
	}

	next, err := NextExecution(s, 2, anchor())
	require.NoError(t, err)
	assert.NotNil(t, next)

	next, err = NextExecution(s, 3, anchor())
	require.NoError(t, err)
	assert.Nil(t, next, "max executions reached")
}

func TestNextExecutionEndDate(t *testing.T) {
	end := anchor().AddDate(0, 0, 2)
	s := models.Schedule{
		Type:      models.ScheduleRecurring,
		ExecuteAt: anchor(),
		Recurrence: &models.Recurrence{
			Pattern:  models.RecurrenceDaily,
			Interval: 1,
			EndDate:  &end,
		},
	}

	next, err := NextExecution(s, 1, anchor())
	require.NoError(t, err)
	assert.NotNil(t, next)

	next, err = NextExecution(s, 2, anchor())
	require.NoError(t, err)
	assert.Nil(t, next, "next occurrence falls past the end date")
}

func TestNextExecutionWeeklyRollsToAllowedWeekday(t *testing.T) {
	// anchor() is a Tuesday.
	s := models.Schedule{
		Type:      models.ScheduleRecurring,
		ExecuteAt: anchor(),
		Recurrence: &models.Recurrence{
			Pattern:    models.RecurrenceWeekly,
			Interval:   1,
			DaysOfWeek: []time.Weekday{time.Thursday},
		},
	}

	next, err := NextExecution(s, 0, anchor())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Thursday, next.Weekday())
	assert.Equal(t, anchor().AddDate(0, 0, 9), *next)
}

func TestNextExecutionMonthlyPinsDayOfMonth(t *testing.T) {
	start := time.Date(2026, time.January, 15, 8, 0, 0, 0, time.UTC)
	s := models.Schedule{
		Type:      models.ScheduleRecurring,
		ExecuteAt: start,
		Recurrence: &models.Recurrence{
			Pattern:    models.RecurrenceMonthly,
			Interval:   1,
			DayOfMonth: 31,
		},
	}

	// February has no 31st; the day clamps to the month's last day.
	next, err := NextExecution(s, 0, start)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, time.February, 28, 8, 0, 0, 0, time.UTC), *next)
}

func TestNextExecutionYearly(t *testing.T) {
	s := models.Schedule{
		Type:      models.ScheduleRecurring,
		ExecuteAt: anchor(),
		Recurrence: &models.Recurrence{
			Pattern:  models.RecurrenceYearly,
			Interval: 1,
		},
	}

	next, err := NextExecution(s, 0, anchor())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, anchor().AddDate(1, 0, 0), *next)
}

func TestNextExecutionCustomCron(t *testing.T) {
	s := models.Schedule{
		Type:      models.ScheduleRecurring,
		ExecuteAt: anchor(),
		Recurrence: &models.Recurrence{
			Pattern:  models.RecurrenceCustom,
			CronExpr: "0 9 * * 1", // Mondays at 09:00
		},
	}

	after := time.Date(2026, time.March, 11, 12, 0, 0, 0, time.UTC) // Wednesday
	next, err := NextExecution(s, 3, after)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC), *next)

	// The cron base never precedes the schedule anchor.
	next, err = NextExecution(s, 0, anchor().AddDate(0, 0, -30))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, next.After(anchor()))
}

func TestNextExecutionInvalid(t *testing.T) {
	_, err := NextExecution(models.Schedule{Type: "sometimes"}, 0, anchor())
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = NextExecution(models.Schedule{Type: models.ScheduleRecurring, ExecuteAt: anchor()}, 0, anchor())
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	s := models.Schedule{
		Type:       models.ScheduleRecurring,
		ExecuteAt:  anchor(),
		Recurrence: &models.Recurrence{Pattern: models.RecurrenceCustom, CronExpr: "not a cron"},
	}
	_, err = NextExecution(s, 0, anchor())
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       models.Schedule
		wantErr bool
	}{
		{
			"valid once",
			models.Schedule{Type: models.ScheduleOnce, ExecuteAt: anchor()},
			false,
		},
		{
			"missing execute_at",
			models.Schedule{Type: models.ScheduleOnce},
			true,
		},
		{
			"unknown type",
			models.Schedule{Type: "sometimes", ExecuteAt: anchor()},
			true,
		},
		{
			"recurring without recurrence",
			models.Schedule{Type: models.ScheduleRecurring, ExecuteAt: anchor()},
			true,
		},
		{
			"unknown pattern",
			models.Schedule{
				Type:       models.ScheduleRecurring,
				ExecuteAt:  anchor(),
				Recurrence: &models.Recurrence{Pattern: "fortnightly"},
			},
			true,
		},
		{
			"valid cron",
			models.Schedule{
				Type:       models.ScheduleRecurring,
				ExecuteAt:  anchor(),
				Recurrence: &models.Recurrence{Pattern: models.RecurrenceCustom, CronExpr: "*/5 * * * *"},
			},
			false,
		},
		{
			"invalid cron",
			models.Schedule{
				Type:       models.ScheduleRecurring,
				ExecuteAt:  anchor(),
				Recurrence: &models.Recurrence{Pattern: models.RecurrenceCustom, CronExpr: "99 99 * * *"},
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.s)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSchedule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
