package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mescon/gptimer/internal/app"
	"github.com/mescon/gptimer/internal/config"
	"github.com/mescon/gptimer/internal/logger"
)

func main() {
	// Define command line flags (these override environment variables)
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.BoolVar(showVersion, "v", false, "Print version and exit (shorthand)")

	// Configuration flags - all can also be set via environment variables (GPTIMER_*)
	flagPort := flag.String("port", "", "HTTP server port (env: GPTIMER_PORT, default: 3095)")
	flagLogLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (env: GPTIMER_LOG_LEVEL, default: info)")
	flagDataDir := flag.String("data-dir", "", "Data directory path (env: GPTIMER_DATA_DIR)")
	flagDatabasePath := flag.String("database-path", "", "Database file path (env: GPTIMER_DATABASE_PATH)")
	flagAlarmSound := flag.String("alarm-sound", "", "Alarm sound file (env: GPTIMER_ALARM_SOUND)")
	flagAlarmBackend := flag.String("alarm-backend", "", "Alarm backend: exec, builtin, none (env: GPTIMER_ALARM_BACKEND, default: exec)")
	flagWake := flag.Bool("wake", false, "Arm a wake alarm so countdowns finish across suspend (env: GPTIMER_WAKE_ALARM)")
	flagRetentionDays := flag.Int("retention-days", -1, "Days to keep run history, 0 to disable pruning (env: GPTIMER_RETENTION_DAYS, default: 90)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("gptimer %s\n", config.Version)
		os.Exit(0)
	}

	if _, err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	flagOverrides := config.FlagOverrides{
		Port:         flagPort,
		LogLevel:     flagLogLevel,
		DataDir:      flagDataDir,
		DatabasePath: flagDatabasePath,
		AlarmSound:   flagAlarmSound,
		AlarmBackend: flagAlarmBackend,
	}
	// Only an explicit -wake overrides the file and environment
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "wake" {
			flagOverrides.WakeAlarm = flagWake
		}
	})
	// Special handling for retention days: -1 means not set (use default), 0 means disable
	if *flagRetentionDays >= 0 {
		flagOverrides.RetentionDays = flagRetentionDays
	}
	config.ApplyFlags(flagOverrides)

	cfg := config.Get()

	logger.Init(cfg.LogDir)
	logger.SetLevel(cfg.LogLevel)

	logger.Infof("========================================")
	logger.Infof("Starting gptimer server %s...", config.Version)
	logger.Infof("========================================")

	logger.Infof("Configuration:")
	logger.Infof("  Port: %s", cfg.Port)
	logger.Infof("  Log Level: %s", cfg.LogLevel)
	logger.Infof("  Data Directory: %s", cfg.DataDir)
	logger.Infof("  Database: %s", cfg.DatabasePath)
	logger.Infof("  Duration File: %s", cfg.TimeoutPath())
	logger.Infof("  Alarm: %s (%s)", cfg.AlarmBackend, cfg.AlarmPlayer)
	if cfg.APIKey == "" {
		logger.Infof("  ⚠️  API key not set, the REST API is unauthenticated")
	}
	if cfg.RetentionDays > 0 {
		logger.Infof("  Data Retention: %d days", cfg.RetentionDays)
	} else {
		logger.Infof("  Data Retention: disabled (no automatic pruning)")
	}

	a, err := app.New(cfg)
	if err != nil {
		logger.Errorf("Failed to initialize: %v", err)
		os.Exit(1)
	}

	a.Start()
	logger.Infof("✓ All background services started")

	go func() {
		if err := a.Serve(":" + cfg.Port); err != nil {
			logger.Errorf("Failed to start API server: %v", err)
			os.Exit(1)
		}
	}()

	logger.Infof("========================================")
	logger.Infof("✓ gptimer %s started successfully", config.Version)
	logger.Infof("✓ Server listening on port %s", cfg.Port)
	logger.Infof("========================================")

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Infof("========================================")
	logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
	logger.Infof("========================================")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}

	logger.Infof("========================================")
	logger.Infof("✓ gptimer shutdown complete")
	logger.Infof("========================================")
}
