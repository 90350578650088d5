package timer

import (
	"time"

	"github.com/mescon/gptimer/internal/domain"
)

// Control identifies a UI element the engine may disable.
type Control string

// ControlWakeAlarm is the "wake from suspend" toggle.
const ControlWakeAlarm Control = "wake"

// View is the display side of the UI. The engine never knows about widgets;
// it only pushes values into these sinks.
type View interface {
	// SetDisplay shows the remaining time.
	SetDisplay(remainingMs uint64)
	// SetProgress sets a bar where current counts down from max to 0.
	SetProgress(currentMs, maxMs uint64)
	// Disable greys out a control whose capability is missing.
	Disable(control Control)
	// ReportError tells the user about a non-fatal failure.
	ReportError(title string, err error)
}

// Controls is what the UI calls on user actions.
type Controls interface {
	OnStart()
	OnPause()
	OnStop()
	OnDurationChanged(hours, minutes, seconds uint32)
}

// AlarmPlayer plays the finish sound. Play must not block.
type AlarmPlayer interface {
	Play()
}

// AlarmFactory creates one-shot OS alarms on the wake-capable clock.
type AlarmFactory interface {
	Create() (Alarm, error)
}

// Alarm is an OS timer able to wake the system from suspend.
type Alarm interface {
	Arm(delay time.Duration) error
	// Disarm deletes the alarm. Calling it twice is harmless.
	Disarm() error
}

// Publisher receives lifecycle events for history, metrics and notifications.
type Publisher interface {
	Publish(event domain.Event) error
}

// Views fans every call out to several views, in order.
type Views []View

var _ View = Views(nil)

func (vs Views) SetDisplay(remainingMs uint64) {
	for _, v := range vs {
		v.SetDisplay(remainingMs)
	}
}

func (vs Views) SetProgress(currentMs, maxMs uint64) {
	for _, v := range vs {
		v.SetProgress(currentMs, maxMs)
	}
}

func (vs Views) Disable(control Control) {
	for _, v := range vs {
		v.Disable(control)
	}
}

func (vs Views) ReportError(title string, err error) {
	for _, v := range vs {
		v.ReportError(title, err)
	}
}
