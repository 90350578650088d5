package testutil

import (
	"errors"
	"sync"
	"time"

	"github.com/mescon/gptimer/internal/clock"
	"github.com/mescon/gptimer/internal/domain"
	"github.com/mescon/gptimer/internal/timer"
)

// =============================================================================
// MockClock - virtual time for both scheduling and elapsed readings
// =============================================================================

// MockClock implements clock.Clock and clock.Source over a virtual timeline.
// Nothing happens until the test calls Advance.
type MockClock struct {
	mu           sync.Mutex
	wall         time.Time
	elapsed      time.Duration
	pendingFuncs []pendingFunc
	readErr      error
}

type pendingFunc struct {
	executeAt time.Duration
	fn        func()
	stopped   bool
}

// MockTimer implements clock.Timer for testing.
type MockTimer struct {
	clock *MockClock
	index int
}

var (
	_ clock.Clock  = (*MockClock)(nil)
	_ clock.Source = (*MockClock)(nil)
)

// NewMockClock creates a MockClock starting at elapsed 1000s.
func NewMockClock() *MockClock {
	return &MockClock{
		wall:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		elapsed: 1000 * time.Second,
	}
}

// Now returns the virtual wall time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wall.Add(m.elapsed)
}

// ID implements clock.Source.
func (m *MockClock) ID() clock.ClockID {
	return clock.Monotonic
}

// Read implements clock.Source.
func (m *MockClock) Read() (clock.Instant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return clock.Instant{}, m.readErr
	}
	return clock.InstantOf(m.elapsed), nil
}

// FailReads makes subsequent Read calls return err (nil to recover).
func (m *MockClock) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// AfterFunc schedules f to run once virtual time passes d from now.
func (m *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := len(m.pendingFuncs)
	m.pendingFuncs = append(m.pendingFuncs, pendingFunc{
		executeAt: m.elapsed + d,
		fn:        f,
	})
	return &MockTimer{clock: m, index: index}
}

// Advance moves time forward and runs every callback that became due.
// Callbacks scheduled by those callbacks wait for the next Advance.
// Returns the number of callbacks executed.
func (m *MockClock) Advance(d time.Duration) int {
	m.mu.Lock()
	m.elapsed += d

	var toExecute []func()
	for i := range m.pendingFuncs {
		pf := &m.pendingFuncs[i]
		if !pf.stopped && pf.executeAt <= m.elapsed {
			toExecute = append(toExecute, pf.fn)
			pf.stopped = true
		}
	}
	m.mu.Unlock()

	for _, fn := range toExecute {
		fn()
	}
	return len(toExecute)
}

// Skip moves time forward without running callbacks, like a suspended machine.
func (m *MockClock) Skip(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed += d
}

// PendingCount returns the number of scheduled callbacks that haven't run or
// been stopped.
func (m *MockClock) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, pf := range m.pendingFuncs {
		if !pf.stopped {
			count++
		}
	}
	return count
}

// Stop prevents the timer from firing. Returns true if the timer was stopped,
// false if it had already fired or been stopped.
func (t *MockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.index < len(t.clock.pendingFuncs) && !t.clock.pendingFuncs[t.index].stopped {
		t.clock.pendingFuncs[t.index].stopped = true
		return true
	}
	return false
}

// =============================================================================
// MockView - records what the engine pushes to the UI
// =============================================================================

// ProgressUpdate is one SetProgress call.
type ProgressUpdate struct {
	Current uint64
	Max     uint64
}

// ReportedError is one ReportError call.
type ReportedError struct {
	Title string
	Err   error
}

// MockView implements timer.View and records every call.
type MockView struct {
	mu       sync.Mutex
	Displays []uint64
	Progress []ProgressUpdate
	Disabled []timer.Control
	Errors   []ReportedError
}

var _ timer.View = (*MockView)(nil)

func (v *MockView) SetDisplay(remainingMs uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Displays = append(v.Displays, remainingMs)
}

func (v *MockView) SetProgress(currentMs, maxMs uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Progress = append(v.Progress, ProgressUpdate{Current: currentMs, Max: maxMs})
}

func (v *MockView) Disable(control timer.Control) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Disabled = append(v.Disabled, control)
}

func (v *MockView) ReportError(title string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Errors = append(v.Errors, ReportedError{Title: title, Err: err})
}

// LastDisplay returns the most recent SetDisplay value formatted as HH:MM:SS.d.
func (v *MockView) LastDisplay() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.Displays) == 0 {
		return ""
	}
	return timer.FormatRemaining(v.Displays[len(v.Displays)-1])
}

// LastProgress returns the most recent SetProgress call.
func (v *MockView) LastProgress() ProgressUpdate {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.Progress) == 0 {
		return ProgressUpdate{}
	}
	return v.Progress[len(v.Progress)-1]
}

// ErrorCount returns the number of ReportError calls.
func (v *MockView) ErrorCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.Errors)
}

// =============================================================================
// MockPlayer / MockAlarmFactory / MockPublisher
// =============================================================================

// MockPlayer counts Play calls.
type MockPlayer struct {
	mu    sync.Mutex
	plays int
}

func (p *MockPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
}

// Plays returns how many times Play was called.
func (p *MockPlayer) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

// ErrAlarmCreate is the default failure of a MockAlarmFactory set to fail.
var ErrAlarmCreate = errors.New("timer_create: operation not permitted")

// MockAlarmFactory hands out MockAlarms and remembers them.
type MockAlarmFactory struct {
	mu        sync.Mutex
	CreateErr error
	ArmErr    error
	Alarms    []*MockAlarm
}

var _ timer.AlarmFactory = (*MockAlarmFactory)(nil)

func (f *MockAlarmFactory) Create() (timer.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	a := &MockAlarm{armErr: f.ArmErr}
	f.Alarms = append(f.Alarms, a)
	return a, nil
}

// Last returns the most recently created alarm, or nil.
func (f *MockAlarmFactory) Last() *MockAlarm {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Alarms) == 0 {
		return nil
	}
	return f.Alarms[len(f.Alarms)-1]
}

// MockAlarm records arm and disarm calls.
type MockAlarm struct {
	mu      sync.Mutex
	armErr  error
	Delay   time.Duration
	Armed   bool
	Disarms int
}

func (a *MockAlarm) Arm(delay time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.armErr != nil {
		return a.armErr
	}
	a.Delay = delay
	a.Armed = true
	return nil
}

func (a *MockAlarm) Disarm() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Armed = false
	a.Disarms++
	return nil
}

// IsArmed reports whether the alarm is currently armed.
func (a *MockAlarm) IsArmed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Armed
}

// MockPublisher collects published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	Err    error
}

func (p *MockPublisher) Publish(event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

// Subscribe is a no-op; MockPublisher only records.
func (p *MockPublisher) Subscribe(domain.EventType, func(domain.Event)) {}

// Types returns the published event types in order.
func (p *MockPublisher) Types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType)
	}
	return types
}

// Events returns a copy of the published events.
func (p *MockPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}
