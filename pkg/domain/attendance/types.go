// Package attendance defines the attendance event and daily summary
// domain model, plus the classification note strings attached to events.
//
// CRITICAL: the daily summary columns named scheduled_hours and
// actual_hours store MINUTES. The field names are historical and the
// storage layout is frozen by the server; nothing on the write path may
// divide by 60.
package attendance

// LogType is the direction of an attendance event.
type LogType string

const (
	TimeIn  LogType = "time_in"
	TimeOut LogType = "time_out"
)

// SourceKiosk tags events recorded by this process.
const SourceKiosk = "kiosk"

// Daily summary statuses.
const (
	StatusIncomplete = "incomplete"
	StatusComplete   = "complete"
	StatusAbsent     = "absent"
	StatusLeave      = "leave"
)

// Storage layouts shared by the local and remote stores.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Log is one immutable attendance event. LogDate is derived from LogTime
// in the kiosk's local calendar. MirrorID is the server-assigned primary
// key once pushed; zero until then.
type Log struct {
	ID         int64
	EmployeeID int64
	LogDate    string // YYYY-MM-DD
	LogType    LogType
	LogTime    string // YYYY-MM-DD HH:MM:SS
	Source     string
	Notes      string
	CreatedAt  string
	Synced     bool
	SyncedAt   string
	MirrorID   int64
}

// NextLogType returns the type of the next event given today's events
// in log_time order: time_in first, then strict alternation keyed off
// the last event.
func NextLogType(today []Log) LogType {
	if len(today) == 0 {
		return TimeIn
	}
	if today[len(today)-1].LogType == TimeIn {
		return TimeOut
	}
	return TimeIn
}

// DailyRecord is the per-(employee, date) summary row.
//
// ScheduledMinutes and ActualMinutes map to the scheduled_hours and
// actual_hours columns (see package comment). TimeIn/TimeOut hold
// HH:MM:SS or are empty when unset. Minute counters read back as zero
// where the store holds NULL (absent/leave rows).
type DailyRecord struct {
	ID                    int64
	EmployeeID            int64
	Date                  string // YYYY-MM-DD
	TimeIn                string
	TimeOut               string
	ScheduledMinutes      int
	ActualMinutes         int
	LateMinutes           int
	EarlyDepartureMinutes int
	OvertimeMinutes       int
	BreakMinutes          int
	Status                string
	Notes                 string
	CalculatedAt          string
}

// Complete reports whether both endpoints are recorded.
func (d DailyRecord) Complete() bool {
	return d.TimeIn != "" && d.TimeOut != ""
}
