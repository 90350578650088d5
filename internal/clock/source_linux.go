//go:build linux

package clock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// kernelSource reads a clock through clock_gettime(2).
type kernelSource struct {
	id  ClockID
	num int32
}

func (k *kernelSource) ID() ClockID { return k.id }

func (k *kernelSource) Read() (Instant, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(k.num, &ts); err != nil {
		return Instant{}, fmt.Errorf("clock_gettime(%s): %w", k.id, err)
	}
	return Instant{Sec: int64(ts.Sec), Nsec: int64(ts.Nsec)}, nil
}

// ElapsedCandidates lists the elapsed clocks in preference order. BOOTTIME
// keeps counting across suspend, so a countdown interrupted by sleep still
// finishes on time once the machine is back.
func ElapsedCandidates() []Source {
	return []Source{
		&kernelSource{id: Boottime, num: unix.CLOCK_BOOTTIME},
		&kernelSource{id: MonotonicRaw, num: unix.CLOCK_MONOTONIC_RAW},
		&kernelSource{id: Monotonic, num: unix.CLOCK_MONOTONIC},
		NewRuntimeSource(),
	}
}

// WakeCandidates lists the clocks able to wake the system from suspend.
func WakeCandidates() []Source {
	return []Source{
		&kernelSource{id: BoottimeAlarm, num: unix.CLOCK_BOOTTIME_ALARM},
	}
}

// KernelClock returns the clock_gettime id for a ClockID, or false if the id
// has no kernel counterpart.
func KernelClock(id ClockID) (int, bool) {
	switch id {
	case BoottimeAlarm:
		return unix.CLOCK_BOOTTIME_ALARM, true
	case Boottime:
		return unix.CLOCK_BOOTTIME, true
	case MonotonicRaw:
		return unix.CLOCK_MONOTONIC_RAW, true
	case Monotonic:
		return unix.CLOCK_MONOTONIC, true
	}
	return 0, false
}
