//go:build linux

package wakealarm

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mescon/gptimer/internal/clock"
	"github.com/mescon/gptimer/internal/logger"
	"github.com/mescon/gptimer/internal/timer"
)

// Factory creates timerfd alarms on the probed wake clock.
type Factory struct {
	id  clock.ClockID
	num int
}

var _ timer.AlarmFactory = (*Factory)(nil)

// NewFactory returns a Factory for the clock found by clock.ProbeWake.
func NewFactory(capability clock.WakeCapability) (*Factory, error) {
	if !capability.Available {
		return nil, ErrUnsupported
	}
	num, ok := clock.KernelClock(capability.Clock)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no kernel timer", ErrUnsupported, capability.Clock)
	}
	return &Factory{id: capability.Clock, num: num}, nil
}

// Create opens a new timerfd. Creating an alarm on CLOCK_BOOTTIME_ALARM needs
// CAP_WAKE_ALARM; without it the kernel answers EPERM.
func (f *Factory) Create() (timer.Alarm, error) {
	fd, err := unix.TimerfdCreate(f.num, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("timerfd_create(%s): %w", f.id, err)
	}
	logger.Debugf("Created wake alarm fd %d on %s", fd, f.id)
	return &fdAlarm{fd: fd, id: f.id}, nil
}

type fdAlarm struct {
	mu     sync.Mutex
	fd     int
	id     clock.ClockID
	closed bool
}

// Arm sets a single relative expiration; no interval.
func (a *fdAlarm) Arm(delay time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("wake alarm on %s already disarmed", a.id)
	}
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(delay.Nanoseconds())}
	if err := unix.TimerfdSettime(a.fd, 0, &spec, nil); err != nil {
		return fmt.Errorf("timerfd_settime(%s): %w", a.id, err)
	}
	return nil
}

// Disarm closes the fd, which also cancels a pending expiration.
func (a *fdAlarm) Disarm() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if err := unix.Close(a.fd); err != nil {
		return fmt.Errorf("close wake alarm fd %d: %w", a.fd, err)
	}
	return nil
}
