package services

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mescon/gptimer/internal/db"
	"github.com/mescon/gptimer/internal/logger"
	"github.com/mescon/gptimer/internal/timer"
)

// ErrScheduleNotFound is returned for an unknown schedule ID.
var ErrScheduleNotFound = errors.New("schedule not found")

// TimerRunner is the part of the engine a schedule drives.
type TimerRunner interface {
	Status() timer.Status
	SetDuration(cfg timer.TimerConfig, origin string) (uint64, error)
	Start(origin string)
}

// Schedule is a preset countdown started by a cron expression.
type Schedule struct {
	ID             int64             `json:"id"`
	CronExpression string            `json:"cron_expression"`
	Duration       timer.TimerConfig `json:"duration"`
	Label          string            `json:"label"`
	Enabled        bool              `json:"enabled"`
	CreatedAt      time.Time         `json:"created_at"`
	NextRun        *time.Time        `json:"next_run,omitempty"`
}

// Validate checks the cron expression and the preset duration.
func (s Schedule) Validate() error {
	if _, err := cron.ParseStandard(s.CronExpression); err != nil {
		return fmt.Errorf("invalid cron expression: %v", err)
	}
	return s.Duration.Validate()
}

type SchedulerService struct {
	db     *sql.DB
	runner TimerRunner
	cron   *cron.Cron
	jobs   map[int64]cron.EntryID
	mu     sync.Mutex
}

func NewSchedulerService(db *sql.DB, runner TimerRunner) *SchedulerService {
	return &SchedulerService{
		db:     db,
		runner: runner,
		cron:   cron.New(),
		jobs:   make(map[int64]cron.EntryID),
	}
}

func (s *SchedulerService) Start() {
	logger.Infof("Starting Scheduler Service...")
	s.cron.Start()
	if err := s.LoadSchedules(); err != nil {
		logger.Errorf("Failed to load schedules: %v", err)
	}
}

func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

// LoadSchedules replaces the registered jobs with the enabled schedules in
// the database.
func (s *SchedulerService) LoadSchedules() error {
	schedules, err := s.querySchedules("WHERE enabled = 1")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entryID := range s.jobs {
		s.cron.Remove(entryID)
	}
	s.jobs = make(map[int64]cron.EntryID)

	count := 0
	for _, sched := range schedules {
		if err := s.addJob(sched); err != nil {
			logger.Errorf("Failed to add job for schedule %d: %v", sched.ID, err)
		} else {
			count++
		}
	}
	logger.Infof("Loaded %d active timer schedules", count)
	return nil
}

// addJob registers sched with cron. Caller holds mu.
func (s *SchedulerService) addJob(sched Schedule) error {
	entryID, err := s.cron.AddFunc(sched.CronExpression, func() {
		s.trigger(sched)
	})
	if err != nil {
		return err
	}
	s.jobs[sched.ID] = entryID
	return nil
}

// trigger starts the preset unless a countdown is already running.
func (s *SchedulerService) trigger(sched Schedule) {
	if s.runner.Status().State == timer.StateRunning {
		logger.Infof("Skipping schedule %d (%s): timer already running", sched.ID, sched.Label)
		return
	}

	if _, err := s.runner.SetDuration(sched.Duration, timer.OriginSchedule); err != nil {
		logger.Infof("Skipping schedule %d (%s): %v", sched.ID, sched.Label, err)
		return
	}

	logger.Infof("Executing scheduled countdown %s (Schedule ID: %d, %s)", sched.Duration, sched.ID, sched.Label)
	s.runner.Start(timer.OriginSchedule)
}

func (s *SchedulerService) AddSchedule(sched Schedule) (int64, error) {
	if err := sched.Validate(); err != nil {
		return 0, err
	}

	res, err := db.ExecWithRetry(s.db, `
		INSERT INTO timer_schedules (cron_expression, hours, minutes, seconds, label, enabled)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sched.CronExpression, sched.Duration.Hours, sched.Duration.Minutes, sched.Duration.Seconds, sched.Label, sched.Enabled)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sched.ID = id

	if !sched.Enabled {
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.addJob(sched); err != nil {
		return id, fmt.Errorf("saved to DB but failed to schedule: %v", err)
	}

	return id, nil
}

func (s *SchedulerService) DeleteSchedule(id int64) error {
	res, err := db.ExecWithRetry(s.db, "DELETE FROM timer_schedules WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrScheduleNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[id]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, id)
	}

	return nil
}

// UpdateSchedule replaces every field of schedule sched.ID.
func (s *SchedulerService) UpdateSchedule(sched Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}

	res, err := db.ExecWithRetry(s.db, `
		UPDATE timer_schedules
		SET cron_expression = ?, hours = ?, minutes = ?, seconds = ?, label = ?, enabled = ?
		WHERE id = ?
	`, sched.CronExpression, sched.Duration.Hours, sched.Duration.Minutes, sched.Duration.Seconds,
		sched.Label, sched.Enabled, sched.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrScheduleNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[sched.ID]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, sched.ID)
	}

	if sched.Enabled {
		if err := s.addJob(sched); err != nil {
			logger.Errorf("Failed to reschedule job %d: %v", sched.ID, err)
		}
	}

	return nil
}

// ListSchedules returns every schedule, with the next fire time of the
// enabled ones once the scheduler is running.
func (s *SchedulerService) ListSchedules() ([]Schedule, error) {
	schedules, err := s.querySchedules("")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range schedules {
		entryID, ok := s.jobs[schedules[i].ID]
		if !ok {
			continue
		}
		if next := s.cron.Entry(entryID).Next; !next.IsZero() {
			schedules[i].NextRun = &next
		}
	}
	return schedules, nil
}

// querySchedules reads all rows before returning so no cursor stays open
// while jobs are registered.
func (s *SchedulerService) querySchedules(where string) ([]Schedule, error) {
	rows, err := db.QueryWithRetry(s.db, `
		SELECT id, cron_expression, hours, minutes, seconds, label, enabled, created_at
		FROM timer_schedules `+where+`
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := []Schedule{}
	for rows.Next() {
		var (
			sched     Schedule
			createdAt sql.NullString
		)
		if err := rows.Scan(&sched.ID, &sched.CronExpression, &sched.Duration.Hours, &sched.Duration.Minutes,
			&sched.Duration.Seconds, &sched.Label, &sched.Enabled, &createdAt); err != nil {
			logger.Errorf("Failed to scan schedule: %v", err)
			continue
		}
		sched.CreatedAt = db.ParseTimestamp(createdAt.String)
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}
