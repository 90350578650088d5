package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mescon/gptimer/internal/app"
	"github.com/mescon/gptimer/internal/config"
	"github.com/mescon/gptimer/internal/logger"
	"github.com/mescon/gptimer/internal/tui"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	flagListen := flag.String("listen", "", "Also serve the REST API on this address, e.g. :3095")
	flagLogLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (env: GPTIMER_LOG_LEVEL, default: info)")
	flagAlarmBackend := flag.String("alarm-backend", "", "Alarm backend: exec, builtin, none (env: GPTIMER_ALARM_BACKEND, default: exec)")
	flagWake := flag.Bool("wake", false, "Enable the wake alarm at startup (env: GPTIMER_WAKE_ALARM)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gptimer %s\n", config.Version)
		os.Exit(0)
	}

	if _, err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	overrides := config.FlagOverrides{
		LogLevel:     flagLogLevel,
		AlarmBackend: flagAlarmBackend,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "wake" {
			overrides.WakeAlarm = flagWake
		}
	})
	config.ApplyFlags(overrides)
	cfg := config.Get()

	// The terminal belongs to the UI; logs go to the file only.
	logger.InitFileOnly(cfg.LogDir)
	logger.SetLevel(cfg.LogLevel)
	logger.Infof("Starting gptimer %s", config.Version)

	display := tui.NewDisplay()
	a, err := app.New(cfg, display)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gptimer: %v\n", err)
		os.Exit(1)
	}
	a.Start()

	if *flagListen != "" {
		go func() {
			if err := a.Serve(*flagListen); err != nil {
				logger.Errorf("API server: %v", err)
			}
		}()
		logger.Infof("✓ REST API listening on %s", *flagListen)
	}

	_, runErr := tea.NewProgram(tui.New(a.Engine, display), tea.WithAltScreen()).Run()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "gptimer: %v\n", runErr)
		os.Exit(1)
	}
}
