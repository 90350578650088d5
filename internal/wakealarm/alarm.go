// Package wakealarm creates one-shot OS timers on a clock that can bring the
// machine out of suspend.
package wakealarm

import "errors"

// ErrUnsupported is returned when the system has no wake-capable clock.
var ErrUnsupported = errors.New("wake alarms are not supported on this system")
