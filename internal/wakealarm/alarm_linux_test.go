//go:build linux

package wakealarm

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/mescon/gptimer/internal/clock"
)

// CLOCK_BOOTTIME_ALARM needs CAP_WAKE_ALARM, so these tests use the
// monotonic clock with the same timerfd path.
func monotonicFactory(t *testing.T) *Factory {
	t.Helper()
	f, err := NewFactory(clock.WakeCapability{Available: true, Clock: clock.Monotonic})
	require.NoError(t, err)
	return f
}

func TestNewFactory_RuntimeClockHasNoKernelTimer(t *testing.T) {
	_, err := NewFactory(clock.WakeCapability{Available: true, Clock: clock.Runtime})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestAlarm_Expires(t *testing.T) {
	f := monotonicFactory(t)

	alarm, err := f.Create()
	require.NoError(t, err)
	defer alarm.Disarm()

	require.NoError(t, alarm.Arm(10*time.Millisecond))

	fd := alarm.(*fdAlarm).fd
	buf := make([]byte, 8)
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := unix.Read(fd, buf)
		if err == nil {
			require.Equal(t, 8, n)
			assert.Equal(t, uint64(1), binary.NativeEndian.Uint64(buf))
			return
		}
		require.ErrorIs(t, err, unix.EAGAIN)
		if time.Now().After(deadline) {
			t.Fatal("timerfd never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAlarm_DisarmIsIdempotent(t *testing.T) {
	f := monotonicFactory(t)

	alarm, err := f.Create()
	require.NoError(t, err)
	require.NoError(t, alarm.Arm(time.Hour))

	assert.NoError(t, alarm.Disarm())
	assert.NoError(t, alarm.Disarm())
	assert.Error(t, alarm.Arm(time.Second), "arming a closed alarm fails")
}
