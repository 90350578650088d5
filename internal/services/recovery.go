package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/mescon/gptimer/internal/db"
	"github.com/mescon/gptimer/internal/domain"
	"github.com/mescon/gptimer/internal/eventbus"
	"github.com/mescon/gptimer/internal/logger"
)

// OriginRecovery is the source recorded on runs closed by RecoveryService.
const OriginRecovery = "recovery"

// recoveryQueryTimeout is the maximum time for database queries in recovery service.
const recoveryQueryTimeout = 30 * time.Second

// RecoveryService closes runs left open by a previous process. The engine
// always starts Idle, so any run still running or paused in the history was
// abandoned by a crash or a kill.
type RecoveryService struct {
	db       *sql.DB
	eventBus eventbus.Publisher
}

func NewRecoveryService(db *sql.DB, eb eventbus.Publisher) *RecoveryService {
	return &RecoveryService{db: db, eventBus: eb}
}

// openRun is a run whose last lifecycle event is not terminal.
type openRun struct {
	RunID       string
	LastEvent   string
	DurationMs  int64
	ElapsedMs   int64
	LastUpdated time.Time
}

// Run closes every open run with a TimerStopped event. Call once at startup,
// before the engine handles any action. Returns the number of runs closed.
func (r *RecoveryService) Run() int {
	runs, err := r.findOpenRuns()
	if err != nil {
		logger.Errorf("Recovery: Failed to find open runs: %v", err)
		return 0
	}

	if len(runs) == 0 {
		logger.Debugf("Recovery: No open runs found")
		return 0
	}

	logger.Infof("Recovery: Found %d runs left open by the previous session", len(runs))

	closed := 0
	for _, run := range runs {
		remaining := run.DurationMs - run.ElapsedMs
		if remaining < 0 {
			remaining = 0
		}
		err := r.eventBus.Publish(domain.Event{
			AggregateType: domain.AggregateTimerRun,
			AggregateID:   run.RunID,
			EventType:     domain.TimerStopped,
			EventData: domain.RunEventData{
				DurationMs:  run.DurationMs,
				ElapsedMs:   run.ElapsedMs,
				RemainingMs: remaining,
				Source:      OriginRecovery,
			}.Map(),
		})
		if err != nil {
			logger.Errorf("Recovery: Failed to close run %s: %v", run.RunID, err)
			continue
		}
		logger.Debugf("Recovery: Closed run %s (was %s, last update %s)", run.RunID, run.LastEvent, run.LastUpdated.Format(time.RFC3339))
		closed++
	}

	logger.Infof("Recovery: Complete - closed=%d", closed)
	return closed
}

// findOpenRuns collects the runs first; publishing writes to the same
// database.
func (r *RecoveryService) findOpenRuns() ([]openRun, error) {
	ctx, cancel := context.WithTimeout(context.Background(), recoveryQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, last_event, duration_ms, elapsed_ms, last_updated_at
		FROM timer_runs
		WHERE last_event IN (?, ?, ?)
	`, string(domain.TimerStarted), string(domain.TimerResumed), string(domain.TimerPaused))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []openRun
	for rows.Next() {
		var (
			run               openRun
			duration, elapsed sql.NullInt64
			lastUpdated       string
		)
		if err := rows.Scan(&run.RunID, &run.LastEvent, &duration, &elapsed, &lastUpdated); err != nil {
			logger.Debugf("Recovery: Failed to scan row: %v", err)
			continue
		}
		run.DurationMs = duration.Int64
		run.ElapsedMs = elapsed.Int64
		run.LastUpdated = db.ParseTimestamp(lastUpdated)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
