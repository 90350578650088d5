// Package timer implements the countdown engine: duration bookkeeping,
// elapsed-time tracking across pause/resume, the 100ms tick that redraws the
// remaining time, wake alarm arming and the finish alarm.
package timer

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/mescon/gptimer/internal/clock"
	"github.com/mescon/gptimer/internal/domain"
	"github.com/mescon/gptimer/internal/logger"
)

// State is the engine's position in the countdown lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateFinished State = "finished"
)

const (
	eventStart  = "start"
	eventPause  = "pause"
	eventStop   = "stop"
	eventFinish = "finish"
)

// Origins recorded on lifecycle events.
const (
	OriginUI       = "ui"
	OriginAPI      = "api"
	OriginSchedule = "schedule"
)

var (
	// ErrTimerRunning is returned when the duration is edited mid-run.
	ErrTimerRunning = errors.New("timer is running")
	// ErrWakeUnavailable is returned when enabling wake alarms without a
	// wake-capable clock.
	ErrWakeUnavailable = errors.New("wake alarm not supported on this system")
)

// TimerState is the live countdown bookkeeping.
//
// While Running, ElapsedMs holds the time accumulated before the current
// segment; the live remaining time is DurationMs - (ElapsedMs + now - StartTime).
type TimerState struct {
	DurationMs     uint64
	ElapsedMs      uint64
	StartTime      clock.Instant
	Running        bool
	WakeAlarmArmed bool
}

// Options wires the engine to its collaborators. Alarms is nil when no
// wake-capable clock exists; Player and Publisher are optional.
type Options struct {
	Clock     clock.Clock
	Source    clock.Source
	View      View
	Player    AlarmPlayer
	Alarms    AlarmFactory
	Publisher Publisher
}

// Engine is the countdown state machine. All methods are safe to call from
// any goroutine; tick callbacks and user actions are serialized by mu.
type Engine struct {
	mu      sync.Mutex
	state   TimerState
	config  TimerConfig
	machine *fsm.FSM

	clock     clock.Clock
	source    clock.Source
	view      View
	player    AlarmPlayer
	alarms    AlarmFactory
	publisher Publisher

	wakeEnabled bool
	alarm       Alarm
	tick        clock.Timer
	// generation identifies the current run segment; ticks from an earlier
	// segment are dropped.
	generation uint64
	runID      string
}

var _ Controls = (*Engine)(nil)

// NewEngine creates an idle engine showing cfg's full duration. If no wake
// alarm factory is given the wake control is disabled on the view.
func NewEngine(cfg TimerConfig, opts Options) *Engine {
	e := &Engine{
		config:    cfg,
		clock:     opts.Clock,
		source:    opts.Source,
		view:      opts.View,
		player:    opts.Player,
		alarms:    opts.Alarms,
		publisher: opts.Publisher,
	}
	e.state.DurationMs = cfg.DurationMs()

	e.machine = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventStart, Src: []string{string(StateIdle), string(StatePaused), string(StateFinished)}, Dst: string(StateRunning)},
			{Name: eventPause, Src: []string{string(StateRunning)}, Dst: string(StatePaused)},
			{Name: eventStop, Src: []string{string(StateIdle), string(StateRunning), string(StatePaused), string(StateFinished)}, Dst: string(StateIdle)},
			{Name: eventFinish, Src: []string{string(StateRunning)}, Dst: string(StateFinished)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, ev *fsm.Event) {
				logger.Debugf("Timer %s -> %s (%s)", ev.Src, ev.Dst, ev.Event)
			},
		},
	)

	if e.alarms == nil {
		e.view.Disable(ControlWakeAlarm)
	}

	e.render(0)
	return e
}

// OnStart starts or resumes the countdown from the UI.
func (e *Engine) OnStart() { e.Start(OriginUI) }

// OnPause pauses the countdown from the UI.
func (e *Engine) OnPause() { e.Pause(OriginUI) }

// OnStop stops and resets the countdown from the UI.
func (e *Engine) OnStop() { e.Stop(OriginUI) }

// OnDurationChanged applies a field edit from the UI. Edits during a run are
// ignored.
func (e *Engine) OnDurationChanged(hours, minutes, seconds uint32) {
	if _, err := e.SetDuration(TimerConfig{Hours: hours, Minutes: minutes, Seconds: seconds}, OriginUI); err != nil {
		logger.Debugf("Ignoring duration change: %v", err)
	}
}

// Start begins a run from Idle or Finished, or resumes a Paused one.
// Starting while already running is a no-op.
func (e *Engine) Start(origin string) {
	e.mu.Lock()
	events := e.start(origin)
	e.mu.Unlock()
	e.publish(events)
}

func (e *Engine) start(origin string) []domain.Event {
	prev := e.current()
	if prev == StateRunning {
		logger.Debugf("Start ignored, timer already running")
		return nil
	}

	if err := e.machine.Event(context.Background(), eventStart); err != nil {
		logger.Warnf("Timer start rejected in state %s: %v", prev, err)
		return nil
	}

	eventType := domain.TimerResumed
	if prev != StatePaused {
		e.state.ElapsedMs = 0
		e.runID = uuid.NewString()
		eventType = domain.TimerStarted
	}

	e.state.StartTime = e.now()
	e.state.Running = true
	e.generation++
	e.scheduleTick(e.generation)

	events := []domain.Event{e.runEvent(eventType, e.state.ElapsedMs, origin)}

	if e.wakeEnabled && e.alarms != nil {
		if ev := e.armWakeAlarm(e.remaining(e.state.ElapsedMs)); ev != nil {
			events = append(events, *ev)
		}
	}

	logger.Infof("Timer %s: %s remaining", eventType, FormatRemaining(e.remaining(e.state.ElapsedMs)))
	return events
}

// Pause stops the tick and folds the current segment into the accumulated
// elapsed time. Ignored unless running.
func (e *Engine) Pause(origin string) {
	e.mu.Lock()
	events := e.pause(origin)
	e.mu.Unlock()
	e.publish(events)
}

func (e *Engine) pause(origin string) []domain.Event {
	if e.current() != StateRunning {
		logger.Debugf("Pause ignored in state %s", e.current())
		return nil
	}
	if err := e.machine.Event(context.Background(), eventPause); err != nil {
		logger.Warnf("Timer pause rejected: %v", err)
		return nil
	}

	e.disarmWakeAlarm()
	e.state.ElapsedMs = e.elapsedAt(e.now())
	e.cancelTick()
	e.state.Running = false

	logger.Infof("Timer paused: %s remaining", FormatRemaining(e.remaining(e.state.ElapsedMs)))
	return []domain.Event{e.runEvent(domain.TimerPaused, e.state.ElapsedMs, origin)}
}

// Stop resets the countdown to the full duration from any state.
func (e *Engine) Stop(origin string) {
	e.mu.Lock()
	events := e.stop(origin)
	e.mu.Unlock()
	e.publish(events)
}

func (e *Engine) stop(origin string) []domain.Event {
	prev := e.current()

	elapsed := e.state.ElapsedMs
	if prev == StateRunning {
		elapsed = e.elapsedAt(e.now())
	}

	if err := e.machine.Event(context.Background(), eventStop); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			logger.Warnf("Timer stop rejected: %v", err)
		}
	}

	e.disarmWakeAlarm()
	e.state.ElapsedMs = 0
	e.cancelTick()
	e.state.Running = false
	e.render(0)

	// a finished run already has its outcome recorded
	if prev == StateIdle || prev == StateFinished {
		e.runID = ""
		return nil
	}

	ev := e.runEvent(domain.TimerStopped, elapsed, origin)
	e.runID = ""
	logger.Infof("Timer stopped")
	return []domain.Event{ev}
}

// SetDuration replaces the configured duration and resets the display to it.
// Rejected with ErrTimerRunning while a run segment is active. A paused or
// finished run is discarded and the engine returns to Idle; origin is recorded
// on the events this produces.
func (e *Engine) SetDuration(cfg TimerConfig, origin string) (uint64, error) {
	e.mu.Lock()
	if e.state.Running {
		duration := e.state.DurationMs
		e.mu.Unlock()
		return duration, ErrTimerRunning
	}

	var events []domain.Event
	if prev := e.current(); prev == StatePaused || prev == StateFinished {
		events = e.stop(origin)
	}

	e.config = cfg
	e.state.DurationMs = cfg.DurationMs()
	e.state.ElapsedMs = 0
	e.render(0)

	events = append(events, domain.Event{
		AggregateType: domain.AggregateTimer,
		AggregateID:   domain.AggregateTimer,
		EventType:     domain.DurationChanged,
		EventData: map[string]interface{}{
			"hours":       int64(cfg.Hours),
			"minutes":     int64(cfg.Minutes),
			"seconds":     int64(cfg.Seconds),
			"duration_ms": int64(e.state.DurationMs),
			"source":      origin,
		},
		CreatedAt: e.clock.Now().UTC(),
	})
	duration := e.state.DurationMs
	e.mu.Unlock()

	e.publish(events)
	return duration, nil
}

// SetWakeEnabled records the user's wake alarm opt-in. It takes effect on the
// next Start or resume.
func (e *Engine) SetWakeEnabled(enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if enabled && e.alarms == nil {
		return ErrWakeUnavailable
	}
	e.wakeEnabled = enabled
	return nil
}

// Config returns the configured duration fields, for persisting at exit.
func (e *Engine) Config() TimerConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	State         State         `json:"state"`
	Config        TimerConfig   `json:"config"`
	DurationMs    uint64        `json:"duration_ms"`
	ElapsedMs     uint64        `json:"elapsed_ms"`
	RemainingMs   uint64        `json:"remaining_ms"`
	Display       string        `json:"display"`
	WakeAvailable bool          `json:"wake_available"`
	WakeEnabled   bool          `json:"wake_enabled"`
	WakeArmed     bool          `json:"wake_armed"`
	RunID         string        `json:"run_id,omitempty"`
	ElapsedClock  clock.ClockID `json:"elapsed_clock"`
}

// Status returns the current state with live elapsed time.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := e.state.ElapsedMs
	if e.state.Running {
		elapsed = e.elapsedAt(e.now())
	}
	remaining := e.remaining(elapsed)

	return Status{
		State:         e.current(),
		Config:        e.config,
		DurationMs:    e.state.DurationMs,
		ElapsedMs:     elapsed,
		RemainingMs:   remaining,
		Display:       FormatRemaining(remaining),
		WakeAvailable: e.alarms != nil,
		WakeEnabled:   e.wakeEnabled,
		WakeArmed:     e.state.WakeAlarmArmed,
		RunID:         e.runID,
		ElapsedClock:  e.source.ID(),
	}
}

// onTick runs every TickPeriod while a segment of generation gen is active.
func (e *Engine) onTick(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || !e.state.Running {
		e.mu.Unlock()
		return
	}

	elapsed := e.elapsedAt(e.now())
	if elapsed < e.state.DurationMs {
		e.render(elapsed)
		e.scheduleTick(gen)
		e.mu.Unlock()
		return
	}

	events := e.finish(elapsed)
	e.mu.Unlock()
	e.publish(events)
}

// finish moves a run that reached its duration into Finished and fires the
// alarm. Elapsed is kept at the finished value until the next Stop or Start.
func (e *Engine) finish(elapsed uint64) []domain.Event {
	if err := e.machine.Event(context.Background(), eventFinish); err != nil {
		logger.Warnf("Timer finish rejected: %v", err)
	}

	e.state.ElapsedMs = elapsed
	e.state.Running = false
	e.tick = nil
	e.disarmWakeAlarm()
	e.render(e.state.DurationMs)

	if e.player != nil {
		e.player.Play()
	}

	logger.Infof("Timer finished after %s", FormatRemaining(e.state.DurationMs))
	return []domain.Event{
		e.runEvent(domain.TimerFinished, elapsed, ""),
		{
			AggregateType: domain.AggregateTimerRun,
			AggregateID:   e.runID,
			EventType:     domain.AlarmPlayed,
			EventData:     map[string]interface{}{"duration_ms": int64(e.state.DurationMs)},
			CreatedAt:     e.clock.Now().UTC(),
		},
	}
}

// armWakeAlarm creates and arms a wake alarm. Failures are reported to the
// user and leave WakeAlarmArmed false; the tick keeps driving the countdown.
func (e *Engine) armWakeAlarm(remainingMs uint64) *domain.Event {
	delay := WakeDelay(remainingMs)
	if delay <= 0 {
		return nil
	}

	title := "Failed to create wake alarm"
	alarm, err := e.alarms.Create()
	if err == nil {
		if err = alarm.Arm(delay); err != nil {
			title = "Failed to arm wake alarm"
			_ = alarm.Disarm()
		}
	}
	if err != nil {
		logger.Warnf("%s: %v", title, err)
		e.view.ReportError(title, err)
		return &domain.Event{
			AggregateType: domain.AggregateTimerRun,
			AggregateID:   e.runID,
			EventType:     domain.WakeAlarmFailed,
			EventData:     map[string]interface{}{"error": err.Error()},
			CreatedAt:     e.clock.Now().UTC(),
		}
	}

	e.alarm = alarm
	e.state.WakeAlarmArmed = true
	logger.Debugf("Wake alarm armed for %s", delay)
	return &domain.Event{
		AggregateType: domain.AggregateTimerRun,
		AggregateID:   e.runID,
		EventType:     domain.WakeAlarmArmed,
		EventData:     map[string]interface{}{"delay_ms": delay.Milliseconds()},
		CreatedAt:     e.clock.Now().UTC(),
	}
}

func (e *Engine) disarmWakeAlarm() {
	if e.alarm == nil {
		return
	}
	if err := e.alarm.Disarm(); err != nil {
		logger.Debugf("Wake alarm disarm: %v", err)
	}
	e.alarm = nil
	e.state.WakeAlarmArmed = false
}

func (e *Engine) scheduleTick(gen uint64) {
	e.tick = e.clock.AfterFunc(TickPeriod, func() { e.onTick(gen) })
}

func (e *Engine) cancelTick() {
	if e.tick != nil {
		e.tick.Stop()
		e.tick = nil
	}
	e.generation++
}

func (e *Engine) current() State {
	return State(e.machine.Current())
}

// now reads the elapsed clock. A failed read after selection falls back to
// the segment start, which freezes the display rather than jumping.
func (e *Engine) now() clock.Instant {
	t, err := e.source.Read()
	if err != nil {
		logger.Warnf("Elapsed clock %s read failed: %v", e.source.ID(), err)
		return e.state.StartTime
	}
	return t
}

func (e *Engine) elapsedAt(now clock.Instant) uint64 {
	diff := clock.DiffMs(now, e.state.StartTime)
	if diff < 0 {
		diff = 0
	}
	return e.state.ElapsedMs + uint64(diff)
}

func (e *Engine) remaining(elapsed uint64) uint64 {
	if elapsed >= e.state.DurationMs {
		return 0
	}
	return e.state.DurationMs - elapsed
}

func (e *Engine) render(elapsed uint64) {
	remaining := e.remaining(elapsed)
	e.view.SetDisplay(remaining)
	e.view.SetProgress(remaining, e.state.DurationMs)
}

func (e *Engine) runEvent(t domain.EventType, elapsed uint64, origin string) domain.Event {
	return domain.Event{
		AggregateType: domain.AggregateTimerRun,
		AggregateID:   e.runID,
		EventType:     t,
		EventData: domain.RunEventData{
			DurationMs:  int64(e.state.DurationMs),
			ElapsedMs:   int64(elapsed),
			RemainingMs: int64(e.remaining(elapsed)),
			Source:      origin,
		}.Map(),
		CreatedAt: e.clock.Now().UTC(),
	}
}

// publish hands events to the publisher outside the engine lock.
func (e *Engine) publish(events []domain.Event) {
	if e.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := e.publisher.Publish(ev); err != nil {
			logger.Errorf("Failed to publish %s: %v", ev.EventType, err)
		}
	}
}
