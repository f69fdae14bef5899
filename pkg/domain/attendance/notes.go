package attendance

import "fmt"

// Classification notes are the human-readable strings stored on each
// event and shown on the kiosk card. The exact wording is part of the
// server contract; reports parse these strings.

// ClassifyTimeIn returns the note for a time_in event given the signed
// difference now − scheduled_start in whole minutes.
func ClassifyTimeIn(diffMinutes int) string {
	if diffMinutes <= 0 {
		return "Time In: On-time"
	}
	return fmt.Sprintf("Time In: Late by %d %s", diffMinutes, plural(diffMinutes))
}

// ClassifyTimeOut returns the note for a time_out event given the signed
// difference now − scheduled_end in whole minutes.
func ClassifyTimeOut(diffMinutes int) string {
	switch {
	case diffMinutes == 0:
		return "Time Out: On-time"
	case diffMinutes > 0:
		return fmt.Sprintf("Time Out: Overtime by %d %s", diffMinutes, plural(diffMinutes))
	default:
		m := -diffMinutes
		return fmt.Sprintf("Time Out: Undertime by %d %s", m, plural(m))
	}
}

// NoScheduleNote is the fallback when an event is recorded with no
// resolvable period for the day.
func NoScheduleNote(t LogType) string {
	if t == TimeIn {
		return "Time In: No schedule assigned"
	}
	return "Time Out: No schedule assigned"
}

// LeaveNote annotates a daily record covering an approved leave.
func LeaveNote(leaveType string) string {
	return fmt.Sprintf("On %s Leave", leaveType)
}

func plural(n int) string {
	if n == 1 {
		return "minute"
	}
	return "minutes"
}
