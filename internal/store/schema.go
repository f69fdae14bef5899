package store

// Local schema. The column layout mirrors the server tables for the
// synced streams; primary keys of server-owned tables are used as-is.
//
// CRITICAL: daily_attendance.scheduled_hours and actual_hours store
// MINUTES. The names are frozen by the server schema.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY,
		employee_id TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		middle_name TEXT,
		last_name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		department TEXT,
		position TEXT,
		status TEXT DEFAULT 'active',
		profile_photo TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
		last_synced TEXT DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS schedules (
		id INTEGER PRIMARY KEY,
		schedule_name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		last_synced TEXT DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS schedule_periods (
		id INTEGER PRIMARY KEY,
		schedule_id INTEGER NOT NULL,
		day_of_week INTEGER NOT NULL,
		period_name TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		is_active INTEGER DEFAULT 1,
		last_synced TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (schedule_id) REFERENCES schedules(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS employee_schedules (
		id INTEGER PRIMARY KEY,
		employee_id INTEGER NOT NULL,
		schedule_id INTEGER NOT NULL,
		effective_date TEXT NOT NULL,
		end_date TEXT,
		is_active INTEGER DEFAULT 1,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		last_synced TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (employee_id) REFERENCES employees(id) ON DELETE CASCADE,
		FOREIGN KEY (schedule_id) REFERENCES schedules(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS attendance_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL,
		log_date TEXT NOT NULL,
		log_type TEXT NOT NULL,
		log_time TEXT NOT NULL,
		source TEXT DEFAULT 'kiosk',
		notes TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		synced INTEGER DEFAULT 0,
		synced_at TEXT,
		mirror_id INTEGER,
		FOREIGN KEY (employee_id) REFERENCES employees(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS daily_attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL,
		attendance_date TEXT NOT NULL,
		time_in TEXT,
		time_out TEXT,
		scheduled_hours REAL,
		actual_hours REAL,
		late_minutes INTEGER DEFAULT 0,
		early_departure_minutes INTEGER DEFAULT 0,
		overtime_minutes INTEGER DEFAULT 0,
		break_time_minutes INTEGER DEFAULT 0,
		status TEXT DEFAULT 'incomplete',
		notes TEXT,
		calculated_at TEXT DEFAULT CURRENT_TIMESTAMP,
		last_synced TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (employee_id) REFERENCES employees(id) ON DELETE CASCADE,
		UNIQUE(employee_id, attendance_date)
	)`,

	`CREATE TABLE IF NOT EXISTS face_embeddings (
		id INTEGER PRIMARY KEY,
		employee_id INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		last_synced TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (employee_id) REFERENCES employees(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS sync_status (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL UNIQUE,
		last_pull_time TEXT,
		last_push_time TEXT,
		last_pull_success INTEGER DEFAULT 1,
		last_push_success INTEGER DEFAULT 1,
		pull_error_message TEXT,
		push_error_message TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_employee_code ON employees(employee_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance_logs(log_date)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_synced ON attendance_logs(synced)`,
	`CREATE INDEX IF NOT EXISTS idx_employee_attendance ON attendance_logs(employee_id, log_date)`,
	`CREATE INDEX IF NOT EXISTS idx_schedule_periods_schedule ON schedule_periods(schedule_id)`,
	`CREATE INDEX IF NOT EXISTS idx_employee_schedules_employee ON employee_schedules(employee_id)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_attendance_date ON daily_attendance(employee_id, attendance_date)`,
	`CREATE INDEX IF NOT EXISTS idx_face_embeddings_employee ON face_embeddings(employee_id)`,
}

// trackedStreams are the logical sync streams seeded into sync_status.
var trackedStreams = []string{
	"employees",
	"schedules",
	"schedule_periods",
	"employee_schedules",
	"attendance_logs",
	"daily_attendance",
	"face_embeddings",
}
