package timer

import (
	"errors"
	"fmt"
	"time"
)

const (
	HoursInMs = 60 * 60 * 1000
	MinsInMs  = 60 * 1000
	SecsInMs  = 1000

	// TickPeriod is the redraw interval; one decisecond of display resolution.
	TickPeriod = 100 * time.Millisecond

	// WakeMargin is subtracted from the wake alarm delay so the machine is
	// up slightly before the countdown ends.
	WakeMargin = 5 * time.Second

	// MaxField is the largest value each of hours, minutes and seconds takes.
	MaxField = 99
)

// ErrFieldRange is returned for a duration field above MaxField.
var ErrFieldRange = errors.New("duration fields must be between 0 and 99")

// TimerConfig is the configured countdown length as entered by the user.
type TimerConfig struct {
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

// DurationMs converts the three fields into milliseconds.
func (c TimerConfig) DurationMs() uint64 {
	return uint64(c.Hours)*HoursInMs +
		uint64(c.Minutes)*MinsInMs +
		uint64(c.Seconds)*SecsInMs
}

// Validate checks every field against MaxField. Minutes and seconds above 59
// are allowed and simply carry over.
func (c TimerConfig) Validate() error {
	if c.Hours > MaxField || c.Minutes > MaxField || c.Seconds > MaxField {
		return fmt.Errorf("%w: got %s", ErrFieldRange, c)
	}
	return nil
}

func (c TimerConfig) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hours, c.Minutes, c.Seconds)
}

// FormatRemaining renders milliseconds as HH:MM:SS.d where d is deciseconds.
func FormatRemaining(ms uint64) string {
	hours := ms / HoursInMs
	mins := (ms % HoursInMs) / MinsInMs
	secs := (ms % MinsInMs) / SecsInMs
	decis := (ms % SecsInMs) / 100

	return fmt.Sprintf("%02d:%02d:%02d.%1d", hours, mins, secs, decis)
}

// WakeDelay returns how far in the future the wake alarm should fire for a
// countdown with remainingMs left. Above the margin the delay is the whole
// seconds remaining minus WakeMargin; at or below it the remaining time is
// used unmodified, so the delay is never negative.
func WakeDelay(remainingMs uint64) time.Duration {
	secs := remainingMs / SecsInMs
	margin := uint64(WakeMargin / time.Second)

	if secs > margin {
		return time.Duration(secs-margin) * time.Second
	}
	return time.Duration(remainingMs) * time.Millisecond
}
