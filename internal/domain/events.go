package domain

import (
	"time"
)

type EventType string

const (
	TimerStarted    EventType = "TimerStarted"
	TimerResumed    EventType = "TimerResumed"
	TimerPaused     EventType = "TimerPaused"
	TimerStopped    EventType = "TimerStopped"
	TimerFinished   EventType = "TimerFinished"
	DurationChanged EventType = "DurationChanged"

	WakeAlarmArmed  EventType = "WakeAlarmArmed"
	WakeAlarmFailed EventType = "WakeAlarmFailed"
	AlarmPlayed     EventType = "AlarmPlayed"

	NotificationSent   EventType = "NotificationSent"
	NotificationFailed EventType = "NotificationFailed"
)

// AggregateTimerRun groups all events of one countdown run, from Start (out
// of Idle or Finished) to Stop or Finish.
const AggregateTimerRun = "timer_run"

// AggregateTimer is used for events that happen outside a run, such as
// duration edits.
const AggregateTimer = "timer"

// AllEventTypes lists every event type, in lifecycle order.
var AllEventTypes = []EventType{
	TimerStarted,
	TimerResumed,
	TimerPaused,
	TimerStopped,
	TimerFinished,
	DurationChanged,
	WakeAlarmArmed,
	WakeAlarmFailed,
	AlarmPlayed,
	NotificationSent,
	NotificationFailed,
}

type Event struct {
	ID            int64                  `json:"id"`
	AggregateType string                 `json:"aggregate_type"`
	AggregateID   string                 `json:"aggregate_id"`
	EventType     EventType              `json:"event_type"`
	EventData     map[string]interface{} `json:"event_data"`
	EventVersion  int                    `json:"event_version"`
	CreatedAt     time.Time              `json:"created_at"`
}

// GetString safely extracts a string field from EventData.
func (e *Event) GetString(key string) (string, bool) {
	if e.EventData == nil {
		return "", false
	}
	v, ok := e.EventData[key].(string)
	return v, ok
}

// GetStringOr extracts a string field or returns the default value.
func (e *Event) GetStringOr(key, defaultVal string) string {
	if v, ok := e.GetString(key); ok {
		return v
	}
	return defaultVal
}

// GetInt64 safely extracts an integer field from EventData.
// Handles the numeric types produced both in-process and by JSON decoding.
func (e *Event) GetInt64(key string) (int64, bool) {
	if e.EventData == nil {
		return 0, false
	}
	switch v := e.EventData[key].(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// GetInt64Or extracts an int64 field or returns the default value.
func (e *Event) GetInt64Or(key string, defaultVal int64) int64 {
	if v, ok := e.GetInt64(key); ok {
		return v
	}
	return defaultVal
}

// RunEventData is the payload shared by the run lifecycle events.
type RunEventData struct {
	DurationMs  int64  `json:"duration_ms"`
	ElapsedMs   int64  `json:"elapsed_ms"`
	RemainingMs int64  `json:"remaining_ms"`
	Source      string `json:"source,omitempty"` // "ui", "api", "schedule"
}

// Map converts the payload into the generic EventData form.
func (d RunEventData) Map() map[string]interface{} {
	m := map[string]interface{}{
		"duration_ms":  d.DurationMs,
		"elapsed_ms":   d.ElapsedMs,
		"remaining_ms": d.RemainingMs,
	}
	if d.Source != "" {
		m["source"] = d.Source
	}
	return m
}

// ParseRunEventData extracts the run payload from an event.
func (e *Event) ParseRunEventData() (RunEventData, bool) {
	duration, ok := e.GetInt64("duration_ms")
	if !ok {
		return RunEventData{}, false
	}
	return RunEventData{
		DurationMs:  duration,
		ElapsedMs:   e.GetInt64Or("elapsed_ms", 0),
		RemainingMs: e.GetInt64Or("remaining_ms", 0),
		Source:      e.GetStringOr("source", ""),
	}, true
}
