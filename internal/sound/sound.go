// Package sound plays the alarm when a countdown finishes.
package sound

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mescon/gptimer/internal/timer"
)

const (
	// DefaultSoundPath is where packaged installs put the alarm.
	DefaultSoundPath = "/usr/share/gptimer/alarm.wav"
	// FallbackSoundPath is tried relative to the working directory.
	FallbackSoundPath = "alarm.wav"
	// DefaultPlayer is the command that plays the sound file.
	DefaultPlayer = "aplay"
)

// Backends accepted by New.
const (
	BackendExec    = "exec"
	BackendBuiltin = "builtin"
	BackendNone    = "none"
)

var (
	ErrNoSound        = errors.New("no alarm sound configured")
	ErrUnknownBackend = errors.New("unknown alarm backend")
)

// New returns the player for backend. BackendNone yields nil, which the
// engine treats as "no alarm".
func New(backend, command string, paths []string) (timer.AlarmPlayer, error) {
	if len(paths) == 0 {
		return nil, ErrNoSound
	}
	switch backend {
	case "", BackendExec:
		return NewExecPlayer(command, paths...), nil
	case BackendBuiltin:
		return NewBeepPlayer(paths...), nil
	case BackendNone:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}

// ResolveSound returns the first path that exists. When none exists the last
// one is returned anyway, so the failure surfaces from the player.
func ResolveSound(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[len(paths)-1]
}

// PlayerStatus reports whether the alarm can be played.
type PlayerStatus struct {
	Command    string `json:"command"`
	Available  bool   `json:"available"`
	Path       string `json:"path,omitempty"`
	Sound      string `json:"sound"`
	SoundFound bool   `json:"sound_found"`
}

// CheckPlayer looks up command and the sound file. Used for the startup log
// and the health endpoint.
func CheckPlayer(command string, paths []string) PlayerStatus {
	status := PlayerStatus{Command: command, Sound: ResolveSound(paths)}

	if command != "" {
		if path, err := resolveBinaryPath(command); err == nil {
			status.Available = true
			status.Path = path
		}
	}
	if status.Sound != "" {
		if _, err := os.Stat(status.Sound); err == nil {
			status.SoundFound = true
		}
	}
	return status
}

// resolveBinaryPath handles both absolute paths and PATH lookup.
func resolveBinaryPath(binaryPath string) (string, error) {
	if filepath.IsAbs(binaryPath) {
		if _, err := os.Stat(binaryPath); err != nil {
			return "", err
		}
		return binaryPath, nil
	}
	return exec.LookPath(binaryPath)
}
