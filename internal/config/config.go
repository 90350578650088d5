package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Version is set at build time via -ldflags
// Default "dev" is used for development builds
var Version = "dev"

// FileName is the optional YAML config file inside DataDir.
const FileName = "gptimer.yaml"

// Config holds all application configuration. Values come from, in order of
// increasing precedence: defaults, <DataDir>/gptimer.yaml, GPTIMER_*
// environment variables and command-line flags.
type Config struct {
	// Port is the HTTP server listen port (default: 3095)
	Port string

	// LogLevel controls logging verbosity: "debug", "info", "warn", "error" (default: "info")
	LogLevel string

	// DataDir holds the database and logs (default: ConfigDir)
	DataDir string

	// ConfigDir holds timeout.txt (default: $XDG_CONFIG_HOME/gptimer)
	ConfigDir string

	// DatabasePath is the SQLite database file path (default: <DataDir>/gptimer.db)
	DatabasePath string

	// LogDir is the directory for log files (default: <DataDir>/logs)
	LogDir string

	// AlarmSound is the installed alarm file, tried first.
	AlarmSound string

	// FallbackSound is tried when AlarmSound is missing (default: alarm.wav in the working directory)
	FallbackSound string

	// AlarmPlayer is the command used by the exec backend (default: aplay)
	AlarmPlayer string

	// AlarmBackend selects how the alarm is played: "exec", "builtin" or "none"
	AlarmBackend string

	// WakeAlarm opts in to waking the machine from suspend before the countdown ends
	WakeAlarm bool

	// NotifyURLs are shoutrrr URLs notified when a countdown finishes
	NotifyURLs []string

	// APIKey protects the REST API when set
	APIKey string

	// RetentionDays is the number of days to keep run history (default: 90)
	// Set to 0 to disable automatic pruning
	RetentionDays int
}

// fileConfig mirrors Config for gptimer.yaml. Empty fields leave the default.
type fileConfig struct {
	Port          string   `yaml:"port"`
	LogLevel      string   `yaml:"log_level"`
	DatabasePath  string   `yaml:"database_path"`
	AlarmSound    string   `yaml:"alarm_sound"`
	FallbackSound string   `yaml:"fallback_sound"`
	AlarmPlayer   string   `yaml:"alarm_player"`
	AlarmBackend  string   `yaml:"alarm_backend"`
	WakeAlarm     *bool    `yaml:"wake_alarm"`
	NotifyURLs    []string `yaml:"notify_urls"`
	APIKey        string   `yaml:"api_key"`
	RetentionDays *int     `yaml:"retention_days"`
}

// Global singleton
var cfg *Config

// Load reads configuration with sensible defaults.
// Should be called once at application startup.
func Load() (*Config, error) {
	configDir := getEnvOrDefault("GPTIMER_CONFIG_DIR", "")
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	dataDir := getEnvOrDefault("GPTIMER_DATA_DIR", configDir)
	if absDataDir, err := filepath.Abs(dataDir); err == nil {
		dataDir = absDataDir
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	file, err := readFile(filepath.Join(dataDir, FileName))
	if err != nil {
		return nil, err
	}

	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	wake := false
	if file.WakeAlarm != nil {
		wake = *file.WakeAlarm
	}
	retention := 90
	if file.RetentionDays != nil {
		retention = *file.RetentionDays
	}

	notifyURLs := file.NotifyURLs
	if env := os.Getenv("GPTIMER_NOTIFY_URLS"); env != "" {
		notifyURLs = splitList(env)
	}

	cfg = &Config{
		Port:          getEnvOrDefault("GPTIMER_PORT", orDefault(file.Port, "3095")),
		LogLevel:      strings.ToLower(getEnvOrDefault("GPTIMER_LOG_LEVEL", orDefault(file.LogLevel, "info"))),
		DataDir:       dataDir,
		ConfigDir:     configDir,
		DatabasePath:  getEnvOrDefault("GPTIMER_DATABASE_PATH", orDefault(file.DatabasePath, filepath.Join(dataDir, "gptimer.db"))),
		LogDir:        logDir,
		AlarmSound:    getEnvOrDefault("GPTIMER_ALARM_SOUND", orDefault(file.AlarmSound, "/usr/share/gptimer/alarm.wav")),
		FallbackSound: getEnvOrDefault("GPTIMER_FALLBACK_SOUND", orDefault(file.FallbackSound, "alarm.wav")),
		AlarmPlayer:   getEnvOrDefault("GPTIMER_ALARM_PLAYER", orDefault(file.AlarmPlayer, "aplay")),
		AlarmBackend:  strings.ToLower(getEnvOrDefault("GPTIMER_ALARM_BACKEND", orDefault(file.AlarmBackend, "exec"))),
		WakeAlarm:     getEnvBoolOrDefault("GPTIMER_WAKE_ALARM", wake),
		NotifyURLs:    notifyURLs,
		APIKey:        getEnvOrDefault("GPTIMER_API_KEY", file.APIKey),
		RetentionDays: getEnvIntOrDefault("GPTIMER_RETENTION_DAYS", retention),
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}
	switch c.AlarmBackend {
	case "exec", "builtin", "none":
	default:
		c.AlarmBackend = "exec"
	}
}

// SoundPaths is the ordered list of alarm files to try.
func (c *Config) SoundPaths() []string {
	var paths []string
	for _, p := range []string{c.AlarmSound, c.FallbackSound} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// TimeoutPath is where the last configured duration is kept.
func (c *Config) TimeoutPath() string {
	return filepath.Join(c.ConfigDir, TimeoutFileName)
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/gptimer, falling back to
// ~/.config/gptimer and finally ./config.
func DefaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "gptimer")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "gptimer")
	}
	return "./config"
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// Get returns the current configuration. Panics if Load() hasn't been called.
func Get() *Config {
	if cfg == nil {
		panic("config.Load() must be called before config.Get()")
	}
	return cfg
}

// SetForTesting allows tests to set the global config without calling Load().
// This should ONLY be used in test code.
func SetForTesting(c *Config) {
	cfg = c
}

// NewTestConfig returns a minimal Config suitable for unit tests.
func NewTestConfig() *Config {
	return &Config{
		Port:          "8080",
		LogLevel:      "debug",
		DataDir:       "/tmp/gptimer-test",
		ConfigDir:     "/tmp/gptimer-test",
		DatabasePath:  "/tmp/gptimer-test/gptimer.db",
		LogDir:        "/tmp/gptimer-test/logs",
		AlarmSound:    "/usr/share/gptimer/alarm.wav",
		FallbackSound: "alarm.wav",
		AlarmPlayer:   "aplay",
		AlarmBackend:  "none",
		RetentionDays: 90,
	}
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable as an int or the default if not set/invalid.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable as a bool or the default if not set.
// Accepts "true", "1", "yes" as true values (case-insensitive).
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

// FlagOverrides holds command-line flag values that can override environment variables
type FlagOverrides struct {
	Port          *string
	LogLevel      *string
	DataDir       *string
	DatabasePath  *string
	AlarmSound    *string
	AlarmBackend  *string
	WakeAlarm     *bool
	RetentionDays *int
}

// ApplyFlags applies command-line flag overrides to the configuration.
// Should be called after Load() and after flag parsing.
// Only non-nil values with non-default flag values will override.
func ApplyFlags(flags FlagOverrides) {
	if cfg == nil {
		return
	}

	if flags.Port != nil && *flags.Port != "" {
		cfg.Port = *flags.Port
	}
	if flags.LogLevel != nil && *flags.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(*flags.LogLevel)
	}
	if flags.DataDir != nil && *flags.DataDir != "" {
		cfg.DataDir = *flags.DataDir
		cfg.LogDir = filepath.Join(cfg.DataDir, "logs")
	}
	if flags.DatabasePath != nil && *flags.DatabasePath != "" {
		cfg.DatabasePath = *flags.DatabasePath
	}
	if flags.AlarmSound != nil && *flags.AlarmSound != "" {
		cfg.AlarmSound = *flags.AlarmSound
	}
	if flags.AlarmBackend != nil && *flags.AlarmBackend != "" {
		cfg.AlarmBackend = strings.ToLower(*flags.AlarmBackend)
	}
	if flags.WakeAlarm != nil {
		cfg.WakeAlarm = *flags.WakeAlarm
	}
	if flags.RetentionDays != nil && *flags.RetentionDays >= 0 {
		cfg.RetentionDays = *flags.RetentionDays
	}
	cfg.normalize()
}
