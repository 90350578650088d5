// Package tui is the terminal front end of gptimer: three duration fields,
// the remaining-time label, a progress bar and the wake alarm toggle.
package tui

import (
	"sync"

	"github.com/mescon/gptimer/internal/timer"
)

// Display is the timer.View of the terminal UI. The engine calls it under its
// own lock, so it only records values; the bubbletea model reads them back on
// its redraw tick.
type Display struct {
	mu          sync.Mutex
	remainingMs uint64
	currentMs   uint64
	maxMs       uint64
	disabled    map[timer.Control]bool
	errTitle    string
	err         error
}

var _ timer.View = (*Display)(nil)

func NewDisplay() *Display {
	return &Display{disabled: make(map[timer.Control]bool)}
}

func (d *Display) SetDisplay(remainingMs uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remainingMs = remainingMs
}

func (d *Display) SetProgress(currentMs, maxMs uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.currentMs = currentMs
	d.maxMs = maxMs
}

func (d *Display) Disable(control timer.Control) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disabled[control] = true
}

func (d *Display) ReportError(title string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errTitle = title
	d.err = err
}

// Snapshot is a copy of everything the engine last pushed.
type Snapshot struct {
	RemainingMs  uint64
	CurrentMs    uint64
	MaxMs        uint64
	WakeDisabled bool
	ErrTitle     string
	Err          error
}

// Label renders the remaining time as HH:MM:SS.d.
func (s Snapshot) Label() string {
	return timer.FormatRemaining(s.RemainingMs)
}

// Fraction is the progress bar fill, 1 at the start of a run and 0 at the end.
func (s Snapshot) Fraction() float64 {
	if s.MaxMs == 0 {
		return 0
	}
	return float64(s.CurrentMs) / float64(s.MaxMs)
}

func (d *Display) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		RemainingMs:  d.remainingMs,
		CurrentMs:    d.currentMs,
		MaxMs:        d.maxMs,
		WakeDisabled: d.disabled[timer.ControlWakeAlarm],
		ErrTitle:     d.errTitle,
		Err:          d.err,
	}
}

// ClearError dismisses the reported error.
func (d *Display) ClearError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errTitle = ""
	d.err = nil
}
