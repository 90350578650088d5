package clock

import (
	"errors"
	"fmt"
	"time"

	"github.com/mescon/gptimer/internal/logger"
)

// ClockID names a kernel (or runtime) clock.
type ClockID string

const (
	BoottimeAlarm ClockID = "CLOCK_BOOTTIME_ALARM"
	Boottime      ClockID = "CLOCK_BOOTTIME"
	MonotonicRaw  ClockID = "CLOCK_MONOTONIC_RAW"
	Monotonic     ClockID = "CLOCK_MONOTONIC"
	// Runtime is Go's monotonic clock reading, used where no kernel clock is
	// reachable.
	Runtime ClockID = "runtime-monotonic"
)

// ErrNoClock is returned when no candidate clock can be read.
var ErrNoClock = errors.New("no usable clock source")

// Source is a monotonic clock the engine can read elapsed time from.
type Source interface {
	ID() ClockID
	Read() (Instant, error)
}

// SelectElapsed returns the first candidate that can be read, in the order
// given. Candidates are expected to be ranked most precise first.
func SelectElapsed(candidates []Source) (Source, error) {
	for _, c := range candidates {
		if _, err := c.Read(); err != nil {
			logger.Debugf("Clock %s unavailable: %v", c.ID(), err)
			continue
		}
		logger.Debugf("Selected elapsed clock %s", c.ID())
		return c, nil
	}
	return nil, ErrNoClock
}

// WakeCapability is the outcome of probing for a clock that can wake the
// system from suspend.
type WakeCapability struct {
	Available bool
	Clock     ClockID
}

// ProbeWake checks the wake-capable candidates once. A missing wake clock is
// not an error: the caller disables the wake alarm feature instead.
func ProbeWake(candidates []Source) WakeCapability {
	for _, c := range candidates {
		if _, err := c.Read(); err != nil {
			logger.Debugf("Wake clock %s unavailable: %v", c.ID(), err)
			continue
		}
		logger.Debugf("Selected wake clock %s", c.ID())
		return WakeCapability{Available: true, Clock: c.ID()}
	}
	return WakeCapability{}
}

// runtimeSource reads Go's monotonic clock relative to process start.
type runtimeSource struct {
	base time.Time
}

// NewRuntimeSource returns a Source backed by the Go runtime's monotonic
// clock. It never fails.
func NewRuntimeSource() Source {
	return &runtimeSource{base: time.Now()}
}

func (r *runtimeSource) ID() ClockID { return Runtime }

func (r *runtimeSource) Read() (Instant, error) {
	return InstantOf(time.Since(r.base)), nil
}

// String is used in startup logs.
func (w WakeCapability) String() string {
	if !w.Available {
		return "unavailable"
	}
	return fmt.Sprintf("available (%s)", w.Clock)
}
