package config

import (
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.ElementTimeout)
	assert.Equal(t, 10*time.Second, cfg.RaceTimeout)
	assert.Equal(t, 5*time.Second, cfg.LoginCooldown)
	assert.Equal(t, time.Second, cfg.ReserveCooldown)
	assert.Equal(t, 5*time.Second, cfg.ErrorCooldown)
	assert.Equal(t, "queue", cfg.Overflow)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.ConsoleAck)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Nil(t, cfg.SecretKey)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SLOTCHASER_RACE_TIMEOUT", "3s")
	t.Setenv("SLOTCHASER_MAX_SESSIONS", "4")
	t.Setenv("SLOTCHASER_OVERFLOW", "FAIL")
	t.Setenv("SLOTCHASER_LOG_LEVEL", "debug")
	t.Setenv("SLOTCHASER_HEADLESS", "true")
	t.Setenv("DRIVER_PATH", "/opt/chrome/chrome")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.RaceTimeout)
	assert.Equal(t, 4, cfg.MaxSessions)
	assert.Equal(t, "fail", cfg.Overflow)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "/opt/chrome/chrome", cfg.BrowserPath)
}

func TestInvalidSettings(t *testing.T) {
	tests := map[string]string{
		"SLOTCHASER_RACE_TIMEOUT":   "0s",
		"SLOTCHASER_LOGIN_COOLDOWN": "-1s",
		"SLOTCHASER_MAX_SESSIONS":   "-2",
		"SLOTCHASER_OVERFLOW":       "drop",
		"SLOTCHASER_LOG_FORMAT":     "xml",
		"SLOTCHASER_LOG_LEVEL":      "loud",
		"SLOTCHASER_SECRET_KEY":     "%%%",
	}
	for env, val := range tests {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, val)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestOperatorConsoleNeedsCredentials(t *testing.T) {
	t.Setenv("SLOTCHASER_LISTEN", ":8080")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLOTCHASER_OPERATOR_PASSWORD_HASH")

	t.Setenv("SLOTCHASER_OPERATOR_PASSWORD_HASH", "$2a$10$abc")
	_, err = FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLOTCHASER_COOKIE_HASH_KEY")

	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	t.Setenv("SLOTCHASER_COOKIE_HASH_KEY", key)
	t.Setenv("SLOTCHASER_COOKIE_BLOCK_KEY", key)
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Len(t, cfg.CookieBlockKey, 32)
}

func TestKeyFromFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "secret")
	raw := make([]byte, 32)
	raw[0] = 7
	require.NoError(t, os.WriteFile(p, []byte(base64.StdEncoding.EncodeToString(raw)+"\n"), 0o600))
	t.Setenv("SLOTCHASER_SECRET_KEY", p)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, raw, cfg.SecretKey)
}

func TestFlagsWinOverEnv(t *testing.T) {
	t.Setenv("SLOTCHASER_RACE_TIMEOUT", "3s")
	v := NewViper()
	v.Set(KeyRaceTimeout, "7s")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.RaceTimeout)
}
