package service

import (
	"time"

	"research-scheduler/internal/model"
)

// CalendarMonth is the data behind a month grid.
type CalendarMonth struct {
	Year        int
	Month       time.Month
	Label       string
	DaysInMonth int
	// FirstWeekday is the column of day 1, Monday = 0.
	FirstWeekday int
	// Days[d-1] holds the pending activities due on day d.
	Days [][]model.Activity
}

// On returns the activities due on day (1-based).
func (c CalendarMonth) On(day int) []model.Activity {
	if day < 1 || day > len(c.Days) {
		return nil
	}
	return c.Days[day-1]
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday returns the Monday-first column of the month's first day.
func FirstWeekday(year int, month time.Month) int {
	wd := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	return (int(wd) + 6) % 7
}

// ShiftMonth moves delta months from year/month.
func ShiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	return t.Year(), t.Month()
}

// MonthIndex maps each day of the month to its pending deadlines.
func MonthIndex(year int, month time.Month, list []model.Activity) CalendarMonth {
	days := DaysInMonth(year, month)
	cal := CalendarMonth{
		Year:         year,
		Month:        month,
		Label:        MonthLabel(year, month),
		DaysInMonth:  days,
		FirstWeekday: FirstWeekday(year, month),
		Days:         make([][]model.Activity, days),
	}

	byDate := make(map[string]int, days)
	for d := 1; d <= days; d++ {
		byDate[time.Date(year, month, d, 0, 0, 0, 0, time.UTC).Format(model.DateLayout)] = d
	}
	for _, a := range list {
		if !a.IsPending() {
			continue
		}
		if d, ok := byDate[a.Deadline]; ok {
			cal.Days[d-1] = append(cal.Days[d-1], a)
		}
	}
	return cal
}
