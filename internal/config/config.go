package config

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "SLOTCHASER"

// Keys double as flag names; SLOTCHASER_<KEY> with dashes as underscores is
// the matching environment variable.
const (
	KeyHeadless        = "headless"
	KeyBrowserPath     = "browser-path"
	KeyPollInterval    = "poll-interval"
	KeyElementTimeout  = "element-timeout"
	KeyPostLogin       = "post-login-timeout"
	KeySettle          = "settle"
	KeyRaceTimeout     = "race-timeout"
	KeyLoginCooldown   = "login-cooldown"
	KeyReserveCooldown = "reserve-cooldown"
	KeyErrorCooldown   = "error-cooldown"
	KeyMaxSessions     = "max-sessions"
	KeyOverflow        = "overflow"
	KeyLaunchRate      = "launch-rate"
	KeyStopAfterAck    = "stop-after-ack"
	KeyConsoleAck      = "console-ack"
	KeyListenAddr      = "listen"
	KeyDatabaseURL     = "database-url"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"

	KeyOperatorHash   = "operator-password-hash"
	KeyCookieHashKey  = "cookie-hash-key"
	KeyCookieBlockKey = "cookie-block-key"
	KeySecretKey      = "secret-key"
)

type Config struct {
	// browser
	Headless    bool
	BrowserPath string

	// workflow timing
	PollInterval    time.Duration
	ElementTimeout  time.Duration
	PostLogin       time.Duration
	Settle          time.Duration
	RaceTimeout     time.Duration
	LoginCooldown   time.Duration
	ReserveCooldown time.Duration
	ErrorCooldown   time.Duration

	// fleet
	MaxSessions  int
	Overflow     string
	LaunchRate   float64
	StopAfterAck bool

	// operator
	ConsoleAck     bool
	ListenAddr     string
	OperatorHash   string
	CookieHashKey  []byte
	CookieBlockKey []byte

	DatabaseURL string
	SecretKey   []byte

	LogLevel  slog.Level
	LogFormat string
}

// Defaults are shared by viper and the cobra flag definitions.
var Defaults = map[string]any{
	KeyHeadless:        false,
	KeyBrowserPath:     "",
	KeyPollInterval:    250 * time.Millisecond,
	KeyElementTimeout:  10 * time.Second,
	KeyPostLogin:       10 * time.Second,
	KeySettle:          2 * time.Second,
	KeyRaceTimeout:     10 * time.Second,
	KeyLoginCooldown:   5 * time.Second,
	KeyReserveCooldown: 1 * time.Second,
	KeyErrorCooldown:   5 * time.Second,
	KeyMaxSessions:     0,
	KeyOverflow:        "queue",
	KeyLaunchRate:      2.0,
	KeyStopAfterAck:    false,
	KeyConsoleAck:      true,
	KeyListenAddr:      "",
	KeyDatabaseURL:     "",
	KeyLogLevel:        "info",
	KeyLogFormat:       "text",
}

// NewViper returns a viper instance wired to SLOTCHASER_* variables with
// defaults applied. Callers may bind flags on top.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for k, d := range Defaults {
		v.SetDefault(k, d)
	}
	// DRIVER_PATH is honoured for compatibility with older setups.
	_ = v.BindEnv(KeyBrowserPath, EnvPrefix+"_BROWSER_PATH", "DRIVER_PATH")
	for _, k := range []string{KeyOperatorHash, KeyCookieHashKey, KeyCookieBlockKey, KeySecretKey} {
		_ = v.BindEnv(k)
	}
	return v
}

func FromEnv() (Config, error) {
	return FromViper(NewViper())
}

func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Headless:        v.GetBool(KeyHeadless),
		BrowserPath:     v.GetString(KeyBrowserPath),
		PollInterval:    v.GetDuration(KeyPollInterval),
		ElementTimeout:  v.GetDuration(KeyElementTimeout),
		PostLogin:       v.GetDuration(KeyPostLogin),
		Settle:          v.GetDuration(KeySettle),
		RaceTimeout:     v.GetDuration(KeyRaceTimeout),
		LoginCooldown:   v.GetDuration(KeyLoginCooldown),
		ReserveCooldown: v.GetDuration(KeyReserveCooldown),
		ErrorCooldown:   v.GetDuration(KeyErrorCooldown),
		MaxSessions:     v.GetInt(KeyMaxSessions),
		Overflow:        strings.ToLower(v.GetString(KeyOverflow)),
		LaunchRate:      v.GetFloat64(KeyLaunchRate),
		StopAfterAck:    v.GetBool(KeyStopAfterAck),
		ConsoleAck:      v.GetBool(KeyConsoleAck),
		ListenAddr:      v.GetString(KeyListenAddr),
		OperatorHash:    v.GetString(KeyOperatorHash),
		DatabaseURL:     v.GetString(KeyDatabaseURL),
		LogFormat:       strings.ToLower(v.GetString(KeyLogFormat)),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}

	var err error
	if cfg.CookieHashKey, err = decodeKey(v.GetString(KeyCookieHashKey)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", envName(KeyCookieHashKey), err)
	}
	if cfg.CookieBlockKey, err = decodeKey(v.GetString(KeyCookieBlockKey)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", envName(KeyCookieBlockKey), err)
	}
	if cfg.SecretKey, err = decodeKey(v.GetString(KeySecretKey)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", envName(KeySecretKey), err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	positive := []struct {
		key string
		d   time.Duration
	}{
		{KeyPollInterval, c.PollInterval},
		{KeyElementTimeout, c.ElementTimeout},
		{KeyPostLogin, c.PostLogin},
		{KeyRaceTimeout, c.RaceTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive", p.key)
		}
	}
	for _, p := range []struct {
		key string
		d   time.Duration
	}{
		{KeySettle, c.Settle},
		{KeyLoginCooldown, c.LoginCooldown},
		{KeyReserveCooldown, c.ReserveCooldown},
		{KeyErrorCooldown, c.ErrorCooldown},
	} {
		if p.d < 0 {
			return fmt.Errorf("%s must not be negative", p.key)
		}
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("%s must not be negative", KeyMaxSessions)
	}
	if c.LaunchRate < 0 {
		return fmt.Errorf("%s must not be negative", KeyLaunchRate)
	}
	if c.Overflow != "queue" && c.Overflow != "fail" {
		return fmt.Errorf("%s must be queue or fail, got %q", KeyOverflow, c.Overflow)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, c.LogFormat)
	}
	if c.ListenAddr != "" {
		if c.OperatorHash == "" {
			return fmt.Errorf("%s is required when %s is set", envName(KeyOperatorHash), KeyListenAddr)
		}
		if len(c.CookieHashKey) == 0 || len(c.CookieBlockKey) == 0 {
			return fmt.Errorf("%s and %s are required when %s is set (run `slotchaser keys`)",
				envName(KeyCookieHashKey), envName(KeyCookieBlockKey), KeyListenAddr)
		}
		switch len(c.CookieBlockKey) {
		case 16, 24, 32:
		default:
			return fmt.Errorf("%s must decode to 16, 24 or 32 bytes", envName(KeyCookieBlockKey))
		}
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// decodeKey accepts base64 or a path to a file holding base64, as mounted
// by most secret stores. Empty input yields nil.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if b, err := os.ReadFile(s); err == nil {
		s = strings.TrimSpace(string(b))
	}
	dec, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	return dec, nil
}
