//go:build !linux

package clock

// ElapsedCandidates lists the elapsed clocks in preference order. Outside
// Linux only the runtime monotonic clock is used.
func ElapsedCandidates() []Source {
	return []Source{NewRuntimeSource()}
}

// WakeCandidates is empty: wake alarms need CLOCK_BOOTTIME_ALARM.
func WakeCandidates() []Source {
	return nil
}

// KernelClock always reports false outside Linux.
func KernelClock(id ClockID) (int, bool) {
	return 0, false
}
