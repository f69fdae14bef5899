// Package schedule defines schedule templates, their periods, and
// employee assignments.
//
// Day-of-week numbering follows the server convention: 0=Monday .. 6=Sunday.
// Period times are wall-clock times of day; no period straddles midnight,
// and split days are expressed as multiple periods ordered by start time.
package schedule

import (
	"fmt"
	"sort"
	"time"
)

// Schedule is a named template owning an ordered set of periods.
type Schedule struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   string
}

// Period is one contiguous scheduled interval on a specific day-of-week.
type Period struct {
	ID         int64
	ScheduleID int64
	DayOfWeek  int // 0=Monday .. 6=Sunday
	Name       string
	Start      TimeOfDay
	End        TimeOfDay
	Active     bool
}

// Minutes returns the period length in whole minutes.
func (p Period) Minutes() int {
	return p.End.MinuteOfDay() - p.Start.MinuteOfDay()
}

// Assignment links an employee to a schedule over an effective date range.
// EndDate is empty for open-ended assignments. The active assignment for
// a date is the most-recent-effective non-expired active row.
type Assignment struct {
	ID            int64
	EmployeeID    int64
	ScheduleID    int64
	EffectiveDate string // YYYY-MM-DD
	EndDate       string // YYYY-MM-DD, empty when open
	Active        bool
	CreatedAt     string
}

// DayPlan is the set of active periods for one employee on one date,
// sorted ascending by start time. An empty plan means no schedule today.
type DayPlan []Period

// Sort orders the plan ascending by start time (stable on equal starts).
func (d DayPlan) Sort() {
	sort.SliceStable(d, func(i, j int) bool {
		return d[i].Start.MinuteOfDay() < d[j].Start.MinuteOfDay()
	})
}

// FirstStart returns the start of the earliest period.
// The plan must be non-empty and sorted.
func (d DayPlan) FirstStart() TimeOfDay {
	return d[0].Start
}

// LastEnd returns the end of the latest-ending period.
func (d DayPlan) LastEnd() TimeOfDay {
	last := d[0].End
	for _, p := range d[1:] {
		if p.End.MinuteOfDay() > last.MinuteOfDay() {
			last = p.End
		}
	}
	return last
}

// TotalMinutes returns the sum of period lengths, excluding gaps.
func (d DayPlan) TotalMinutes() int {
	var total int
	for _, p := range d {
		total += p.Minutes()
	}
	return total
}

// SpanMinutes returns the gross span from first start to last end,
// including gaps between periods.
func (d DayPlan) SpanMinutes() int {
	return d.LastEnd().MinuteOfDay() - d.FirstStart().MinuteOfDay()
}

// DayOfWeek converts a wall-clock time to the server's day numbering
// (0=Monday .. 6=Sunday).
func DayOfWeek(t time.Time) int {
	// Go numbers Sunday=0; shift so Monday=0.
	return (int(t.Weekday()) + 6) % 7
}

// TimeOfDay is a wall-clock time without a date, second resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "HH:MM:SS" (and tolerates "HH:MM").
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	n, err := fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second)
	if err != nil && n < 2 {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// String renders "HH:MM:SS", the storage format.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// MinuteOfDay returns minutes since midnight, ignoring seconds.
// Schedule arithmetic is whole-minute throughout.
func (t TimeOfDay) MinuteOfDay() int {
	return t.Hour*60 + t.Minute
}

// On anchors the time of day to the date (and location) of ref.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, t.Second, 0, ref.Location())
}
