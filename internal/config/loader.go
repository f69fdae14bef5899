// Package config loads the kiosk configuration file.
//
// The format is line-based and deterministic: `key = value` pairs under
// [kiosk], [local], and [remote] section headers, with `#` comments.
// Unknown keys are rejected so typos fail loudly at startup.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the fully resolved kiosk configuration.
type Config struct {
	Kiosk  KioskConfig
	Local  LocalConfig
	Remote RemoteConfig
}

// KioskConfig holds verification and rules-engine tuning.
type KioskConfig struct {
	SimilarityThreshold      float64
	StabilizationSeconds     float64
	ReverifyCooldownSeconds  float64
	MinFaceRatio             float64
	MaxFaceRatio             float64
	LoginCooldownEnabled     bool
	LoginCooldownMinutes     int
	LogoutRestrictionEnabled bool
	PushIntervalSeconds      int
	PullIntervalSeconds      int
	DailyPushWindowDays      int
}

// LocalConfig locates the embedded local store and the embedding
// snapshot fallback file.
type LocalConfig struct {
	Path         string
	SnapshotPath string
}

// RemoteConfig holds the connection parameters for the central server.
type RemoteConfig struct {
	Host                  string
	Port                  int
	Database              string
	User                  string
	Password              string
	SSLMode               string
	ConnectTimeoutSeconds int
}

// DSN renders the remote configuration as a connection string.
func (r RemoteConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		r.Host, r.Port, r.Database, r.User, r.Password, r.SSLMode, r.ConnectTimeoutSeconds)
}

// ParseError describes a malformed configuration line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config line %d: %s", e.Line, e.Message)
}

// Default returns the built-in configuration. Every key has a working
// default so a missing file section is not an error.
func Default() *Config {
	return &Config{
		Kiosk: KioskConfig{
			SimilarityThreshold:      0.6,
			StabilizationSeconds:     1.5,
			ReverifyCooldownSeconds:  3.0,
			MinFaceRatio:             0.08,
			MaxFaceRatio:             0.50,
			LoginCooldownEnabled:     false,
			LoginCooldownMinutes:     60,
			LogoutRestrictionEnabled: true,
			PushIntervalSeconds:      5,
			PullIntervalSeconds:      60,
			DailyPushWindowDays:      7,
		},
		Local: LocalConfig{
			Path:         "kiosk_local.db",
			SnapshotPath: "authorized_embeddings.json",
		},
		Remote: RemoteConfig{
			Host:                  "localhost",
			Port:                  5432,
			Database:              "employee_management",
			User:                  "kiosk",
			SSLMode:               "disable",
			ConnectTimeoutSeconds: 5,
		},
	}
}

// LoadFromFile loads and validates a configuration file, starting from
// the defaults.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	currentSection := ""

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Section header: [kiosk], [local], [remote]
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			header := line[1 : len(line)-1]
			switch header {
			case "kiosk", "local", "remote":
				currentSection = header
			default:
				return nil, &ParseError{Line: lineNum, Message: "unknown section: " + header}
			}
			continue
		}

		// Key = value pair
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, &ParseError{Line: lineNum, Message: "invalid line format, expected 'key = value'"}
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		var applyErr error
		switch currentSection {
		case "kiosk":
			applyErr = applyKioskKey(&cfg.Kiosk, key, value)
		case "local":
			applyErr = applyLocalKey(&cfg.Local, key, value)
		case "remote":
			applyErr = applyRemoteKey(&cfg.Remote, key, value)
		default:
			applyErr = fmt.Errorf("key %q outside of any section", key)
		}
		if applyErr != nil {
			return nil, &ParseError{Line: lineNum, Message: applyErr.Error()}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyKioskKey(k *KioskConfig, key, value string) error {
	switch key {
	case "similarity_threshold":
		return parseFloat(value, &k.SimilarityThreshold)
	case "stabilization_seconds":
		return parseFloat(value, &k.StabilizationSeconds)
	case "reverify_cooldown_seconds":
		return parseFloat(value, &k.ReverifyCooldownSeconds)
	case "min_face_ratio":
		return parseFloat(value, &k.MinFaceRatio)
	case "max_face_ratio":
		return parseFloat(value, &k.MaxFaceRatio)
	case "login_cooldown_enabled":
		return parseBool(value, &k.LoginCooldownEnabled)
	case "login_cooldown_minutes":
		return parseInt(value, &k.LoginCooldownMinutes)
	case "logout_restriction_enabled":
		return parseBool(value, &k.LogoutRestrictionEnabled)
	case "push_interval_seconds":
		return parseInt(value, &k.PushIntervalSeconds)
	case "pull_interval_seconds":
		return parseInt(value, &k.PullIntervalSeconds)
	case "daily_attendance_push_window_days":
		return parseInt(value, &k.DailyPushWindowDays)
	default:
		return fmt.Errorf("unknown kiosk key: %s", key)
	}
}

func applyLocalKey(l *LocalConfig, key, value string) error {
	switch key {
	case "path":
		l.Path = value
	case "snapshot_path":
		l.SnapshotPath = value
	default:
		return fmt.Errorf("unknown local key: %s", key)
	}
	return nil
}

func applyRemoteKey(r *RemoteConfig, key, value string) error {
	switch key {
	case "host":
		r.Host = value
	case "port":
		return parseInt(value, &r.Port)
	case "database":
		r.Database = value
	case "user":
		r.User = value
	case "password":
		r.Password = value
	case "sslmode":
		r.SSLMode = value
	case "connect_timeout_seconds":
		return parseInt(value, &r.ConnectTimeoutSeconds)
	default:
		return fmt.Errorf("unknown remote key: %s", key)
	}
	return nil
}

func (c *Config) validate() error {
	k := c.Kiosk
	if k.SimilarityThreshold <= 0 || k.SimilarityThreshold >= 1 {
		return fmt.Errorf("similarity_threshold must be in (0, 1), got %v", k.SimilarityThreshold)
	}
	if k.MinFaceRatio <= 0 || k.MaxFaceRatio <= k.MinFaceRatio {
		return fmt.Errorf("face ratio band invalid: [%v, %v]", k.MinFaceRatio, k.MaxFaceRatio)
	}
	if k.StabilizationSeconds <= 0 || k.ReverifyCooldownSeconds <= 0 {
		return fmt.Errorf("stabilization and cooldown must be positive")
	}
	if k.PushIntervalSeconds <= 0 || k.PullIntervalSeconds <= 0 {
		return fmt.Errorf("sync intervals must be positive")
	}
	if c.Local.Path == "" {
		return fmt.Errorf("local path must not be empty")
	}
	return nil
}

func parseFloat(s string, dst *float64) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*dst = v
	return nil
}

func parseInt(s string, dst *int) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*dst = v
	return nil
}

func parseBool(s string, dst *bool) error {
	switch strings.ToLower(s) {
	case "true", "yes", "1", "on":
		*dst = true
	case "false", "no", "0", "off":
		*dst = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}
