package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearEnv blanks every GPTIMER_* variable Load reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"GPTIMER_PORT", "GPTIMER_LOG_LEVEL", "GPTIMER_DATA_DIR", "GPTIMER_CONFIG_DIR",
		"GPTIMER_DATABASE_PATH", "GPTIMER_ALARM_SOUND", "GPTIMER_FALLBACK_SOUND",
		"GPTIMER_ALARM_PLAYER", "GPTIMER_ALARM_BACKEND", "GPTIMER_WAKE_ALARM",
		"GPTIMER_NOTIFY_URLS", "GPTIMER_API_KEY", "GPTIMER_RETENTION_DAYS",
	} {
		t.Setenv(v, "")
	}
}

// =============================================================================
// Helper functions tests
// =============================================================================

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue string
		expected     string
	}{
		{name: "env set", key: "TEST_ENV_VAR", envValue: "custom-value", defaultValue: "default", expected: "custom-value"},
		{name: "env not set", key: "TEST_ENV_VAR_UNSET", envValue: "", defaultValue: "default", expected: "default"},
		{name: "empty default", key: "TEST_ENV_VAR_EMPTY", envValue: "", defaultValue: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvOrDefault(tt.key, tt.defaultValue)
			if got != tt.expected {
				t.Errorf("getEnvOrDefault() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetEnvIntOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue int
		expected     int
	}{
		{name: "valid int", key: "TEST_INT_VAR", envValue: "42", defaultValue: 10, expected: 42},
		{name: "invalid int", key: "TEST_INT_INVALID", envValue: "not-a-number", defaultValue: 10, expected: 10},
		{name: "negative int", key: "TEST_INT_NEG", envValue: "-5", defaultValue: 10, expected: -5},
		{name: "env not set", key: "TEST_INT_UNSET", envValue: "", defaultValue: 10, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvIntOrDefault(tt.key, tt.defaultValue)
			if got != tt.expected {
				t.Errorf("getEnvIntOrDefault() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetEnvBoolOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue bool
		expected     bool
	}{
		{name: "true lowercase", key: "TEST_BOOL_1", envValue: "true", defaultValue: false, expected: true},
		{name: "TRUE uppercase", key: "TEST_BOOL_2", envValue: "TRUE", defaultValue: false, expected: true},
		{name: "1", key: "TEST_BOOL_3", envValue: "1", defaultValue: false, expected: true},
		{name: "yes lowercase", key: "TEST_BOOL_4", envValue: "yes", defaultValue: false, expected: true},
		{name: "false", key: "TEST_BOOL_6", envValue: "false", defaultValue: true, expected: false},
		{name: "0", key: "TEST_BOOL_7", envValue: "0", defaultValue: true, expected: false},
		{name: "random string", key: "TEST_BOOL_9", envValue: "random", defaultValue: true, expected: false},
		{name: "env not set", key: "TEST_BOOL_UNSET", envValue: "", defaultValue: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvBoolOrDefault(tt.key, tt.defaultValue)
			if got != tt.expected {
				t.Errorf("getEnvBoolOrDefault() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" ntfy://a/b , ,gotify://c/d,")
	if len(got) != 2 || got[0] != "ntfy://a/b" || got[1] != "gotify://c/d" {
		t.Errorf("splitList() = %v", got)
	}
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %v, want nil", got)
	}
}

// =============================================================================
// Global accessor tests
// =============================================================================

func TestNewTestConfig(t *testing.T) {
	c := NewTestConfig()
	if c.Port != "8080" {
		t.Errorf("Port = %s, want 8080", c.Port)
	}
	if c.AlarmBackend != "none" {
		t.Errorf("AlarmBackend = %s, want none", c.AlarmBackend)
	}
	if len(c.SoundPaths()) != 2 {
		t.Errorf("SoundPaths() = %v, want 2 entries", c.SoundPaths())
	}
}

func TestSetForTesting(t *testing.T) {
	original := cfg
	defer func() { cfg = original }()

	SetForTesting(&Config{Port: "9999"})

	if got := Get(); got.Port != "9999" {
		t.Errorf("SetForTesting did not set config, Port = %s, want 9999", got.Port)
	}
}

func TestGet_PanicsWhenNotLoaded(t *testing.T) {
	original := cfg
	cfg = nil
	defer func() { cfg = original }()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Get() should panic when config is not loaded")
		}
	}()

	_ = Get()
}

// =============================================================================
// Load tests
// =============================================================================

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("GPTIMER_CONFIG_DIR", tmpDir)

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Port != "3095" {
		t.Errorf("Default Port = %s, want 3095", c.Port)
	}
	if c.LogLevel != "info" {
		t.Errorf("Default LogLevel = %s, want info", c.LogLevel)
	}
	if c.DataDir != tmpDir {
		t.Errorf("Default DataDir = %s, want %s", c.DataDir, tmpDir)
	}
	if c.DatabasePath != filepath.Join(tmpDir, "gptimer.db") {
		t.Errorf("Default DatabasePath = %s", c.DatabasePath)
	}
	if c.TimeoutPath() != filepath.Join(tmpDir, "timeout.txt") {
		t.Errorf("TimeoutPath() = %s", c.TimeoutPath())
	}
	if c.AlarmPlayer != "aplay" {
		t.Errorf("Default AlarmPlayer = %s, want aplay", c.AlarmPlayer)
	}
	if c.AlarmBackend != "exec" {
		t.Errorf("Default AlarmBackend = %s, want exec", c.AlarmBackend)
	}
	if paths := c.SoundPaths(); len(paths) != 2 || paths[0] != "/usr/share/gptimer/alarm.wav" || paths[1] != "alarm.wav" {
		t.Errorf("Default SoundPaths() = %v", paths)
	}
	if c.WakeAlarm {
		t.Error("Default WakeAlarm should be false")
	}
	if c.RetentionDays != 90 {
		t.Errorf("Default RetentionDays = %d, want 90", c.RetentionDays)
	}
	if len(c.NotifyURLs) != 0 {
		t.Errorf("Default NotifyURLs = %v, want none", c.NotifyURLs)
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	clearEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := filepath.Join(xdg, "gptimer")
	if c.ConfigDir != want {
		t.Errorf("ConfigDir = %s, want %s", c.ConfigDir, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("Load() should create %s: %v", want, err)
	}
}

func TestLoad_CustomEnvVars(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()

	t.Setenv("GPTIMER_DATA_DIR", tmpDir)
	t.Setenv("GPTIMER_CONFIG_DIR", filepath.Join(tmpDir, "cfg"))
	t.Setenv("GPTIMER_PORT", "8081")
	t.Setenv("GPTIMER_LOG_LEVEL", "DEBUG")
	t.Setenv("GPTIMER_ALARM_BACKEND", "Builtin")
	t.Setenv("GPTIMER_WAKE_ALARM", "yes")
	t.Setenv("GPTIMER_NOTIFY_URLS", "ntfy://ntfy.sh/timer,logger://")
	t.Setenv("GPTIMER_API_KEY", "secret")
	t.Setenv("GPTIMER_RETENTION_DAYS", "7")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Port != "8081" {
		t.Errorf("Port = %s, want 8081", c.Port)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", c.LogLevel)
	}
	if c.AlarmBackend != "builtin" {
		t.Errorf("AlarmBackend = %s, want builtin", c.AlarmBackend)
	}
	if !c.WakeAlarm {
		t.Error("WakeAlarm should be true")
	}
	if len(c.NotifyURLs) != 2 {
		t.Errorf("NotifyURLs = %v, want 2 entries", c.NotifyURLs)
	}
	if c.APIKey != "secret" {
		t.Errorf("APIKey = %s, want secret", c.APIKey)
	}
	if c.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", c.RetentionDays)
	}
	if c.TimeoutPath() != filepath.Join(tmpDir, "cfg", "timeout.txt") {
		t.Errorf("TimeoutPath() = %s", c.TimeoutPath())
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("GPTIMER_CONFIG_DIR", t.TempDir())
	t.Setenv("GPTIMER_LOG_LEVEL", "verbose")
	t.Setenv("GPTIMER_ALARM_BACKEND", "pulse")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.LogLevel != "info" {
		t.Errorf("Invalid log level should fall back to info, got %s", c.LogLevel)
	}
	if c.AlarmBackend != "exec" {
		t.Errorf("Invalid backend should fall back to exec, got %s", c.AlarmBackend)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("GPTIMER_CONFIG_DIR", tmpDir)

	yamlData := `port: "4000"
log_level: warn
alarm_backend: none
wake_alarm: true
retention_days: 0
notify_urls:
  - ntfy://ntfy.sh/a
`
	if err := os.WriteFile(filepath.Join(tmpDir, FileName), []byte(yamlData), 0644); err != nil {
		t.Fatal(err)
	}

	// env still wins over the file
	t.Setenv("GPTIMER_PORT", "5000")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Port != "5000" {
		t.Errorf("Port = %s, want 5000 from env", c.Port)
	}
	if c.LogLevel != "warn" {
		t.Errorf("LogLevel = %s, want warn from file", c.LogLevel)
	}
	if c.AlarmBackend != "none" {
		t.Errorf("AlarmBackend = %s, want none from file", c.AlarmBackend)
	}
	if !c.WakeAlarm {
		t.Error("WakeAlarm should come from file")
	}
	if c.RetentionDays != 0 {
		t.Errorf("RetentionDays = %d, want 0 from file", c.RetentionDays)
	}
	if len(c.NotifyURLs) != 1 || c.NotifyURLs[0] != "ntfy://ntfy.sh/a" {
		t.Errorf("NotifyURLs = %v", c.NotifyURLs)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("GPTIMER_CONFIG_DIR", tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, FileName), []byte("port: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}

func TestLoad_CreatesDirectories(t *testing.T) {
	clearEnv(t)
	dataDir := filepath.Join(t.TempDir(), "newdir", "gptimer")
	t.Setenv("GPTIMER_DATA_DIR", dataDir)
	t.Setenv("GPTIMER_CONFIG_DIR", dataDir)

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
		t.Error("Load() should create data directory")
	}
	if _, err := os.Stat(c.LogDir); os.IsNotExist(err) {
		t.Error("Load() should create log directory")
	}
}

// =============================================================================
// ApplyFlags tests
// =============================================================================

func TestApplyFlags_NilConfig(t *testing.T) {
	original := cfg
	cfg = nil
	defer func() { cfg = original }()

	port := "1234"
	ApplyFlags(FlagOverrides{Port: &port})
}

func TestApplyFlags_AllFlags(t *testing.T) {
	c := NewTestConfig()
	SetForTesting(c)
	defer func() { cfg = nil }()

	port := "9090"
	level := "ERROR"
	dataDir := "/srv/gptimer"
	dbPath := "/srv/gptimer/custom.db"
	sound := "/opt/sounds/bell.wav"
	backend := "builtin"
	wake := true
	retention := 30

	ApplyFlags(FlagOverrides{
		Port:          &port,
		LogLevel:      &level,
		DataDir:       &dataDir,
		DatabasePath:  &dbPath,
		AlarmSound:    &sound,
		AlarmBackend:  &backend,
		WakeAlarm:     &wake,
		RetentionDays: &retention,
	})

	if c.Port != "9090" {
		t.Errorf("Port = %s, want 9090", c.Port)
	}
	if c.LogLevel != "error" {
		t.Errorf("LogLevel = %s, want error", c.LogLevel)
	}
	if c.DataDir != dataDir || c.LogDir != filepath.Join(dataDir, "logs") {
		t.Errorf("DataDir = %s, LogDir = %s", c.DataDir, c.LogDir)
	}
	if c.DatabasePath != dbPath {
		t.Errorf("DatabasePath = %s, want %s", c.DatabasePath, dbPath)
	}
	if c.SoundPaths()[0] != sound {
		t.Errorf("AlarmSound = %s, want %s", c.AlarmSound, sound)
	}
	if c.AlarmBackend != "builtin" {
		t.Errorf("AlarmBackend = %s, want builtin", c.AlarmBackend)
	}
	if !c.WakeAlarm {
		t.Error("WakeAlarm should be true")
	}
	if c.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", c.RetentionDays)
	}
}

func TestApplyFlags_EmptyStringsNotApplied(t *testing.T) {
	c := NewTestConfig()
	c.Port = "original"
	SetForTesting(c)
	defer func() { cfg = nil }()

	empty := ""
	negative := -1
	ApplyFlags(FlagOverrides{
		Port:          &empty,
		RetentionDays: &negative,
	})

	if c.Port != "original" {
		t.Errorf("Empty string should not override, Port = %s, want original", c.Port)
	}
	if c.RetentionDays != 90 {
		t.Errorf("Negative retention should not override, got %d", c.RetentionDays)
	}
}

// =============================================================================
// TimeoutFile tests
// =============================================================================

func TestTimeoutFile_RoundTrip(t *testing.T) {
	f := TimeoutFile{Path: filepath.Join(t.TempDir(), "nested", TimeoutFileName)}

	if err := f.Write(1, 2, 3); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "01:02:03\n" {
		t.Errorf("file content = %q, want %q", data, "01:02:03\n")
	}

	h, m, s, ok := f.Read()
	if !ok || h != 1 || m != 2 || s != 3 {
		t.Errorf("Read() = %d, %d, %d, %v; want 1, 2, 3, true", h, m, s, ok)
	}
}

func TestTimeoutFile_Read(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantH   uint32
		wantM   uint32
		wantS   uint32
		wantOK  bool
	}{
		{name: "padded", content: "00:25:00\n", wantM: 25, wantOK: true},
		{name: "leading zero eight", content: "08:09:00\n", wantH: 8, wantM: 9, wantOK: true},
		{name: "unpadded", content: "1:2:3", wantH: 1, wantM: 2, wantS: 3, wantOK: true},
		{name: "large values", content: "99:99:99\n", wantH: 99, wantM: 99, wantS: 99, wantOK: true},
		{name: "garbage", content: "abc\n", wantOK: false},
		{name: "two fields", content: "10:20\n", wantOK: false},
		{name: "empty", content: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), TimeoutFileName)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			h, m, s, ok := TimeoutFile{Path: path}.Read()
			if ok != tt.wantOK || h != tt.wantH || m != tt.wantM || s != tt.wantS {
				t.Errorf("Read() = %d, %d, %d, %v; want %d, %d, %d, %v",
					h, m, s, ok, tt.wantH, tt.wantM, tt.wantS, tt.wantOK)
			}
		})
	}
}

func TestTimeoutFile_Missing(t *testing.T) {
	_, _, _, ok := TimeoutFile{Path: filepath.Join(t.TempDir(), "absent.txt")}.Read()
	if ok {
		t.Error("Read() of a missing file should report !ok")
	}
}
