package clock

import "time"

const nsPerSec = int64(time.Second)

// Instant is a reading of an elapsed clock, split the way the kernel reports
// it: whole seconds plus a nanosecond remainder in [0, 1e9).
type Instant struct {
	Sec  int64
	Nsec int64
}

// InstantOf converts a duration since the clock's epoch into an Instant.
func InstantOf(d time.Duration) Instant {
	ns := int64(d)
	sec := ns / nsPerSec
	nsec := ns % nsPerSec
	if nsec < 0 {
		sec--
		nsec += nsPerSec
	}
	return Instant{Sec: sec, Nsec: nsec}
}

// Add returns i shifted by d.
func (i Instant) Add(d time.Duration) Instant {
	return InstantOf(time.Duration(i.Sec*nsPerSec+i.Nsec) + d)
}

// Before reports whether i is strictly earlier than j.
func (i Instant) Before(j Instant) bool {
	if i.Sec != j.Sec {
		return i.Sec < j.Sec
	}
	return i.Nsec < j.Nsec
}

// DiffMs returns end-start in milliseconds, rounded to the nearest
// millisecond with ties away from zero. Truncating instead would lose up to a
// millisecond per pause/resume segment.
//
// The result is anti-symmetric: DiffMs(a, b) == -DiffMs(b, a).
func DiffMs(end, start Instant) int64 {
	secs := end.Sec - start.Sec
	nsecs := end.Nsec - start.Nsec

	total := secs*nsPerSec + nsecs
	if total < 0 {
		return -((-total + 500000) / 1000000)
	}
	return (total + 500000) / 1000000
}
