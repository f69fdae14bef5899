package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiosk.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 0.6, cfg.Kiosk.SimilarityThreshold)
	assert.Equal(t, 1.5, cfg.Kiosk.StabilizationSeconds)
	assert.Equal(t, 3.0, cfg.Kiosk.ReverifyCooldownSeconds)
	assert.Equal(t, 0.08, cfg.Kiosk.MinFaceRatio)
	assert.Equal(t, 0.50, cfg.Kiosk.MaxFaceRatio)
	assert.False(t, cfg.Kiosk.LoginCooldownEnabled)
	assert.Equal(t, 60, cfg.Kiosk.LoginCooldownMinutes)
	assert.True(t, cfg.Kiosk.LogoutRestrictionEnabled)
	assert.Equal(t, 5, cfg.Kiosk.PushIntervalSeconds)
	assert.Equal(t, 60, cfg.Kiosk.PullIntervalSeconds)
	assert.Equal(t, 7, cfg.Kiosk.DailyPushWindowDays)
	assert.Equal(t, 5, cfg.Remote.ConnectTimeoutSeconds)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
# Kiosk tuning
[kiosk]
similarity_threshold = 0.7
login_cooldown_enabled = true
login_cooldown_minutes = 30

[local]
path = /var/lib/facekiosk/kiosk_local.db

[remote]
host = attendance.internal
port = 5433
database = employee_management
user = kiosk
password = secret
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Kiosk.SimilarityThreshold)
	assert.True(t, cfg.Kiosk.LoginCooldownEnabled)
	assert.Equal(t, 30, cfg.Kiosk.LoginCooldownMinutes)
	// Unset keys keep defaults.
	assert.True(t, cfg.Kiosk.LogoutRestrictionEnabled)
	assert.Equal(t, "/var/lib/facekiosk/kiosk_local.db", cfg.Local.Path)
	assert.Contains(t, cfg.Remote.DSN(), "host=attendance.internal")
	assert.Contains(t, cfg.Remote.DSN(), "connect_timeout=5")
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "[kiosk]\nsimilarity_treshold = 0.7\n")
	_, err := LoadFromFile(path)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	path := writeConfig(t, "[kiosk]\nsimilarity_threshold 0.7\n")
	_, err := LoadFromFile(path)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "key = value")
}

func TestLoadRejectsKeyOutsideSection(t *testing.T) {
	path := writeConfig(t, "similarity_threshold = 0.7\n")
	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadValidatesRanges(t *testing.T) {
	path := writeConfig(t, "[kiosk]\nsimilarity_threshold = 1.5\n")
	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "similarity_threshold")

	path = writeConfig(t, "[kiosk]\nmin_face_ratio = 0.6\n")
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "face ratio")
}
