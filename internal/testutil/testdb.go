package testutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mescon/gptimer/internal/db"
	"github.com/mescon/gptimer/internal/domain"
)

// NewTestDB creates an in-memory SQLite database with the production schema.
// Returns a database handle that should be closed by the caller.
func NewTestDB() (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to set pragma: %w", err)
	}

	if err := db.Migrate(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return sqlDB, nil
}

// SeedEvent inserts a single event into the test database.
func SeedEvent(sqlDB *sql.DB, event domain.Event) (int64, error) {
	if event.EventData == nil {
		event.EventData = map[string]interface{}{}
	}
	eventDataJSON, err := json.Marshal(event.EventData)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event data: %w", err)
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.EventVersion == 0 {
		event.EventVersion = 1
	}

	result, err := sqlDB.Exec(`
		INSERT INTO timer_events (aggregate_type, aggregate_id, event_type, event_data, event_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.AggregateType, event.AggregateID, string(event.EventType), string(eventDataJSON),
		event.EventVersion, event.CreatedAt.UTC().Format(db.TimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted ID: %w", err)
	}
	return id, nil
}

// SeedRun inserts a run's lifecycle events in order, one second apart.
func SeedRun(sqlDB *sql.DB, runID string, start time.Time, durationMs int64, types ...domain.EventType) error {
	for i, t := range types {
		_, err := SeedEvent(sqlDB, domain.Event{
			AggregateType: domain.AggregateTimerRun,
			AggregateID:   runID,
			EventType:     t,
			EventData: domain.RunEventData{
				DurationMs:  durationMs,
				ElapsedMs:   int64(i) * 1000,
				RemainingMs: durationMs - int64(i)*1000,
				Source:      "ui",
			}.Map(),
			CreatedAt: start.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// CountEventsByType counts events of a given type.
func CountEventsByType(sqlDB *sql.DB, eventType domain.EventType) (int, error) {
	var count int
	err := sqlDB.QueryRow("SELECT COUNT(*) FROM timer_events WHERE event_type = ?", string(eventType)).Scan(&count)
	return count, err
}

// SeedSchedule inserts an enabled preset schedule.
func SeedSchedule(sqlDB *sql.DB, cronExpr string, hours, minutes, seconds uint32, label string) (int64, error) {
	res, err := sqlDB.Exec(`
		INSERT INTO timer_schedules (cron_expression, hours, minutes, seconds, label, enabled)
		VALUES (?, ?, ?, ?, ?, 1)
	`, cronExpr, hours, minutes, seconds, label)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
