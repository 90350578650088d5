// Package app wires the countdown engine to its collaborators. Both binaries
// build exactly one App, which owns the single engine instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mescon/gptimer/internal/api"
	"github.com/mescon/gptimer/internal/auth"
	"github.com/mescon/gptimer/internal/clock"
	"github.com/mescon/gptimer/internal/config"
	"github.com/mescon/gptimer/internal/db"
	"github.com/mescon/gptimer/internal/eventbus"
	"github.com/mescon/gptimer/internal/logger"
	"github.com/mescon/gptimer/internal/metrics"
	"github.com/mescon/gptimer/internal/notifier"
	"github.com/mescon/gptimer/internal/services"
	"github.com/mescon/gptimer/internal/sound"
	"github.com/mescon/gptimer/internal/timer"
	"github.com/mescon/gptimer/internal/wakealarm"
)

// App is the top-level controller.
type App struct {
	cfg     *config.Config
	timeout config.TimeoutFile

	Engine    *timer.Engine
	Wake      clock.WakeCapability
	Repo      *db.Repository
	EventBus  *eventbus.EventBus
	Metrics   *metrics.MetricsService
	Notifier  *notifier.Notifier
	Scheduler *services.SchedulerService
	Hub       *api.WebSocketHub
	Server    *api.RESTServer

	stop     chan struct{}
	stopOnce sync.Once
}

// New probes the clocks, opens the database and builds the engine with views
// plus the websocket hub as its displays. Nothing runs until Start.
func New(cfg *config.Config, views ...timer.View) (*App, error) {
	a := &App{
		cfg:     cfg,
		timeout: config.TimeoutFile{Path: cfg.TimeoutPath()},
		stop:    make(chan struct{}),
	}

	source, err := clock.SelectElapsed(clock.ElapsedCandidates())
	if err != nil {
		return nil, fmt.Errorf("select elapsed clock: %w", err)
	}
	logger.Infof("✓ Elapsed clock: %s", source.ID())

	a.Wake = clock.ProbeWake(clock.WakeCandidates())
	var alarms timer.AlarmFactory
	if factory, err := wakealarm.NewFactory(a.Wake); err != nil {
		logger.Infof("⚠ Wake alarm disabled: %v", err)
	} else {
		alarms = factory
		logger.Infof("✓ Wake clock: %s", a.Wake)
	}

	player, err := sound.New(cfg.AlarmBackend, cfg.AlarmPlayer, cfg.SoundPaths())
	if err != nil {
		logger.Warnf("⚠ Alarm sound disabled: %v", err)
	}

	logger.Infof("Initializing database: %s", cfg.DatabasePath)
	a.Repo, err = db.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	logger.Infof("✓ Database initialized successfully")

	a.EventBus = eventbus.NewEventBus(a.Repo.DB)
	services.NewRecoveryService(a.Repo.DB, a.EventBus).Run()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewMetricsService(a.EventBus, registry)
	a.Notifier = notifier.NewNotifier(a.EventBus, cfg.NotifyURLs)
	a.Hub = api.NewWebSocketHub(a.EventBus)

	initial := a.loadDuration()
	a.Engine = timer.NewEngine(initial, timer.Options{
		Clock:     clock.NewRealClock(),
		Source:    source,
		View:      append(timer.Views(views), a.Hub),
		Player:    player,
		Alarms:    alarms,
		Publisher: a.EventBus,
	})
	if cfg.WakeAlarm {
		if err := a.Engine.SetWakeEnabled(true); err != nil {
			logger.Warnf("Wake alarm requested but %v", err)
		}
	}

	a.Metrics.TrackState(
		[]string{string(timer.StateIdle), string(timer.StateRunning), string(timer.StatePaused), string(timer.StateFinished)},
		func() string { return string(a.Engine.Status().State) },
	)

	a.Scheduler = services.NewSchedulerService(a.Repo.DB, a.Engine)

	var verifier *auth.KeyVerifier
	if cfg.APIKey != "" {
		if verifier, err = auth.NewKeyVerifier(cfg.APIKey); err != nil {
			a.Repo.Close()
			return nil, fmt.Errorf("hash API key: %w", err)
		}
	}

	a.Server = api.NewRESTServer(api.ServerDeps{
		Timer:       a.Engine,
		Runs:        a.Repo,
		Scheduler:   a.Scheduler,
		Notifier:    a.Notifier,
		Metrics:     a.Metrics,
		Hub:         a.Hub,
		KeyVerifier: verifier,
		Player:      sound.CheckPlayer(cfg.AlarmPlayer, cfg.SoundPaths()),
	})

	return a, nil
}

// loadDuration reads the duration stored at the last exit. A missing,
// malformed or out of range file yields zero.
func (a *App) loadDuration() timer.TimerConfig {
	h, m, s, ok := a.timeout.Read()
	if !ok {
		logger.Debugf("No stored duration in %s", a.timeout.Path)
		return timer.TimerConfig{}
	}
	cfg := timer.TimerConfig{Hours: h, Minutes: m, Seconds: s}
	if err := cfg.Validate(); err != nil {
		logger.Warnf("Ignoring stored duration %s: %v", cfg, err)
		return timer.TimerConfig{}
	}
	logger.Infof("✓ Restored duration %s", cfg)
	return cfg
}

// Start runs the background services: metrics, notifications, schedules and
// the daily history pruning.
func (a *App) Start() {
	a.Metrics.Start()
	a.Notifier.Start()

	if err := a.Scheduler.LoadSchedules(); err != nil {
		logger.Errorf("Failed to load schedules: %v", err)
	}
	a.Scheduler.Start()

	if a.cfg.RetentionDays > 0 {
		go a.maintenanceLoop()
	}
}

// maintenanceLoop prunes the run history daily at 3 AM local time.
func (a *App) maintenanceLoop() {
	for {
		now := time.Now()
		next3AM := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
		if now.After(next3AM) {
			next3AM = next3AM.Add(24 * time.Hour)
		}
		wait := time.NewTimer(next3AM.Sub(now))

		select {
		case <-a.stop:
			wait.Stop()
			return
		case <-wait.C:
			if err := a.Repo.RunMaintenance(a.cfg.RetentionDays); err != nil {
				logger.Errorf("Scheduled maintenance failed: %v", err)
			}
		}
	}
}

// Serve blocks serving the REST API on addr until Shutdown.
func (a *App) Serve(addr string) error {
	if err := a.Server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops any run, persists the configured duration and stops
// everything in reverse order of startup. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	a.stopOnce.Do(func() {
		close(a.stop)

		a.Engine.Stop(timer.OriginUI)

		cfg := a.Engine.Config()
		if err := a.timeout.Write(cfg.Hours, cfg.Minutes, cfg.Seconds); err != nil {
			logger.Errorf("Failed to save duration: %v", err)
			firstErr = err
		} else {
			logger.Infof("✓ Duration %s saved to %s", cfg, a.timeout.Path)
		}

		a.Scheduler.Stop()
		a.Notifier.Stop()

		if err := a.Server.Shutdown(ctx); err != nil {
			logger.Errorf("API Server shutdown error: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}

		a.EventBus.Shutdown()

		if err := a.Repo.GracefulClose(); err != nil {
			logger.Errorf("Failed to close database connection: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}
