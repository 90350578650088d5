package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mescon/gptimer/internal/domain"
)

// Run outcomes derived from the last lifecycle event.
const (
	RunRunning  = "running"
	RunPaused   = "paused"
	RunStopped  = "stopped"
	RunFinished = "finished"
)

// RunSummary is one countdown run as recorded in timer_events.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	DurationMs    int64     `json:"duration_ms"`
	ElapsedMs     int64     `json:"elapsed_ms"`
	Source        string    `json:"source,omitempty"`
	PauseCount    int       `json:"pause_count"`
	WakeArmed     bool      `json:"wake_armed"`
}

func runStatus(lastEvent string) string {
	switch domain.EventType(lastEvent) {
	case domain.TimerStarted, domain.TimerResumed:
		return RunRunning
	case domain.TimerPaused:
		return RunPaused
	case domain.TimerStopped:
		return RunStopped
	case domain.TimerFinished:
		return RunFinished
	}
	return ""
}

// ListRuns returns one page of runs, newest first. A non-positive limit
// means 50.
func (r *Repository) ListRuns(limit, offset int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := QueryWithRetry(r.DB, `
		SELECT run_id, started_at, last_updated_at, last_event, duration_ms, elapsed_ms, source, pause_count, wake_armed
		FROM timer_runs
		ORDER BY started_at DESC, run_id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			run                  RunSummary
			startedAt, updatedAt string
			lastEvent, source    sql.NullString
			duration, elapsed    sql.NullInt64
			wakeArmed            int
		)
		if err := rows.Scan(&run.RunID, &startedAt, &updatedAt, &lastEvent, &duration, &elapsed, &source, &run.PauseCount, &wakeArmed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = ParseTimestamp(startedAt)
		run.LastUpdatedAt = ParseTimestamp(updatedAt)
		run.Status = runStatus(lastEvent.String)
		run.DurationMs = duration.Int64
		run.ElapsedMs = elapsed.Int64
		run.Source = source.String
		run.WakeArmed = wakeArmed != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRuns returns the number of recorded runs.
func (r *Repository) CountRuns() (int, error) {
	var n int
	if err := r.DB.QueryRow("SELECT COUNT(*) FROM timer_runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// GetRunEvents returns every event of one run in the order they happened.
func (r *Repository) GetRunEvents(runID string) ([]domain.Event, error) {
	rows, err := QueryWithRetry(r.DB, `
		SELECT id, aggregate_type, aggregate_id, event_type, event_data, event_version, created_at
		FROM timer_events
		WHERE aggregate_type = ? AND aggregate_id = ?
		ORDER BY id
	`, domain.AggregateTimerRun, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var (
			e         domain.Event
			data      string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &data, &e.EventVersion, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &e.EventData); err != nil {
			return nil, fmt.Errorf("failed to decode event %d data: %w", e.ID, err)
		}
		e.CreatedAt = ParseTimestamp(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEvents returns how many events of each type are stored, for the
// metrics baseline at startup.
func (r *Repository) CountEvents() (map[domain.EventType]int64, error) {
	rows, err := QueryWithRetry(r.DB, "SELECT event_type, COUNT(*) FROM timer_events GROUP BY event_type")
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.EventType]int64)
	for rows.Next() {
		var t string
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[domain.EventType(t)] = n
	}
	return counts, rows.Err()
}
