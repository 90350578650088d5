package sound

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mescon/gptimer/internal/logger"
)

// ExecPlayer runs an external command on the resolved sound file.
type ExecPlayer struct {
	command string
	paths   []string
	run     func(name string, args ...string) error
	wg      sync.WaitGroup
}

// NewExecPlayer plays the first existing file of paths with command.
func NewExecPlayer(command string, paths ...string) *ExecPlayer {
	if command == "" {
		command = DefaultPlayer
	}
	return &ExecPlayer{
		command: command,
		paths:   paths,
		run:     runCommand,
	}
}

// Resolve returns the sound file Play would use right now.
func (p *ExecPlayer) Resolve() string {
	return ResolveSound(p.paths)
}

// Play starts the player in the background and returns immediately.
func (p *ExecPlayer) Play() {
	path := p.Resolve()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.run(p.command, path); err != nil {
			logger.Warnf("Failed to execute '%s %s': %v", p.command, path, err)
			return
		}
		logger.Debugf("Alarm played: %s", path)
	}()
}

// Wait blocks until every started player has exited.
func (p *ExecPlayer) Wait() {
	p.wg.Wait()
}

func runCommand(name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
