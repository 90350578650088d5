package clock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// RealClock tests
// =============================================================================

func TestRealClock_Now(t *testing.T) {
	clock := NewRealClock()

	before := time.Now()
	got := clock.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("clock.Now() returned %v, want between %v and %v", got, before, after)
	}
}

func TestRealClock_AfterFunc(t *testing.T) {
	clock := NewRealClock()

	var wg sync.WaitGroup
	wg.Add(1)

	timer := clock.AfterFunc(10*time.Millisecond, wg.Done)
	require.NotNil(t, timer)

	wg.Wait()

	if timer.Stop() {
		t.Error("Stop() should return false when timer has already fired")
	}
}

func TestRealClock_AfterFunc_Stop_BeforeFiring(t *testing.T) {
	clock := NewRealClock()

	executed := make(chan struct{}, 1)
	timer := clock.AfterFunc(100*time.Millisecond, func() {
		executed <- struct{}{}
	})

	if !timer.Stop() {
		t.Error("Stop() should return true when timer hasn't fired yet")
	}

	select {
	case <-executed:
		t.Error("Callback should not execute after Stop()")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRealClock_ImplementsClock(t *testing.T) {
	var _ Clock = (*RealClock)(nil)
}

// =============================================================================
// Instant / DiffMs tests
// =============================================================================

func TestInstantOf_NormalizesNegative(t *testing.T) {
	got := InstantOf(-1500 * time.Millisecond)
	assert.Equal(t, Instant{Sec: -2, Nsec: 500000000}, got)
}

func TestInstant_Add(t *testing.T) {
	start := Instant{Sec: 10, Nsec: 900000000}
	got := start.Add(250 * time.Millisecond)
	assert.Equal(t, Instant{Sec: 11, Nsec: 150000000}, got)
}

func TestDiffMs(t *testing.T) {
	tests := []struct {
		name  string
		end   Instant
		start Instant
		want  int64
	}{
		{"zero", Instant{5, 0}, Instant{5, 0}, 0},
		{"whole seconds", Instant{7, 0}, Instant{5, 0}, 2000},
		{"positive sub-second", Instant{5, 250000000}, Instant{5, 0}, 250},
		{"borrow across second", Instant{6, 100000000}, Instant{5, 900000000}, 200},
		{"rounds down below half", Instant{0, 1499999}, Instant{0, 0}, 1},
		{"half rounds up", Instant{0, 1500000}, Instant{0, 0}, 2},
		{"half rounds up with borrow", Instant{1, 0}, Instant{0, 999500000}, 1},
		{"sub-millisecond", Instant{0, 400000}, Instant{0, 0}, 0},
		{"negative", Instant{5, 0}, Instant{7, 0}, -2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiffMs(tt.end, tt.start))
		})
	}
}

func TestDiffMs_AntiSymmetric(t *testing.T) {
	pairs := [][2]Instant{
		{{0, 0}, {0, 1500000}},
		{{3, 999999999}, {4, 1}},
		{{100, 123456789}, {42, 987654321}},
		{{1, 500000}, {1, 0}},
	}
	for _, p := range pairs {
		assert.Equal(t, -DiffMs(p[0], p[1]), DiffMs(p[1], p[0]), "pair %v", p)
	}
}

func TestDiffMs_NonNegativeWhenOrdered(t *testing.T) {
	a := Instant{Sec: 12, Nsec: 999999999}
	for _, d := range []time.Duration{0, time.Nanosecond, 499 * time.Microsecond, 3 * time.Hour} {
		b := a.Add(d)
		assert.GreaterOrEqual(t, DiffMs(b, a), int64(0))
	}
}

// =============================================================================
// Source selection tests
// =============================================================================

type fakeSource struct {
	id  ClockID
	err error
}

func (f *fakeSource) ID() ClockID { return f.id }

func (f *fakeSource) Read() (Instant, error) {
	return Instant{Sec: 1}, f.err
}

func TestSelectElapsed_FallsBackInOrder(t *testing.T) {
	candidates := []Source{
		&fakeSource{id: Boottime, err: errors.New("EINVAL")},
		&fakeSource{id: MonotonicRaw},
		&fakeSource{id: Monotonic},
	}

	src, err := SelectElapsed(candidates)
	require.NoError(t, err)
	assert.Equal(t, MonotonicRaw, src.ID())
}

func TestSelectElapsed_NoneUsable(t *testing.T) {
	_, err := SelectElapsed([]Source{&fakeSource{id: Monotonic, err: errors.New("EINVAL")}})
	assert.ErrorIs(t, err, ErrNoClock)
}

func TestProbeWake(t *testing.T) {
	got := ProbeWake([]Source{&fakeSource{id: BoottimeAlarm}})
	assert.True(t, got.Available)
	assert.Equal(t, BoottimeAlarm, got.Clock)

	got = ProbeWake([]Source{&fakeSource{id: BoottimeAlarm, err: errors.New("EINVAL")}})
	assert.False(t, got.Available)
	assert.Equal(t, "unavailable", got.String())
}

func TestElapsedCandidates_AlwaysSelectable(t *testing.T) {
	src, err := SelectElapsed(ElapsedCandidates())
	require.NoError(t, err)

	first, err := src.Read()
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := src.Read()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, DiffMs(second, first), int64(4))
}

func TestRuntimeSource(t *testing.T) {
	src := NewRuntimeSource()
	assert.Equal(t, Runtime, src.ID())
	_, err := src.Read()
	assert.NoError(t, err)
}
