package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// TimeoutFileName stores the last configured duration between sessions.
const TimeoutFileName = "timeout.txt"

// TimeoutFile reads and writes the "HH:MM:SS" duration file.
type TimeoutFile struct {
	Path string
}

// Read parses the stored duration. A missing or malformed file yields ok=false
// and the caller keeps its zero defaults.
func (f TimeoutFile) Read() (hours, minutes, seconds uint32, ok bool) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, 0, 0, false
	}
	n, err := fmt.Sscanf(string(data), "%d:%d:%d", &hours, &minutes, &seconds)
	if err != nil || n != 3 {
		return 0, 0, 0, false
	}
	return hours, minutes, seconds, true
}

// Write stores the duration, creating the config directory if needed.
func (f TimeoutFile) Write(hours, minutes, seconds uint32) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	line := fmt.Sprintf("%02d:%02d:%02d\n", hours, minutes, seconds)
	if err := os.WriteFile(f.Path, []byte(line), 0644); err != nil {
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	return nil
}
