package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mescon/gptimer/internal/domain"
	"github.com/mescon/gptimer/internal/eventbus"
	"github.com/mescon/gptimer/internal/logger"
)

// MetricsService exposes Prometheus metrics for the countdown timer
type MetricsService struct {
	eventBus eventbus.Publisher
	registry *prometheus.Registry

	// Counters
	runsTotal          *prometheus.CounterVec
	pausesTotal        prometheus.Counter
	resumesTotal       prometheus.Counter
	durationChanges    prometheus.Counter
	wakeAlarmsTotal    *prometheus.CounterVec
	alarmsPlayed       prometheus.Counter
	notificationsTotal *prometheus.CounterVec

	// Histograms
	runElapsed *prometheus.HistogramVec
}

// NewMetricsService creates the collectors and registers them with reg. A nil
// reg uses the global Prometheus registry.
func NewMetricsService(eb eventbus.Publisher, reg *prometheus.Registry) *MetricsService {
	m := &MetricsService{
		eventBus: eb,
		registry: reg,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gptimer_runs_total",
				Help: "Countdown runs by lifecycle outcome",
			},
			[]string{"outcome"}, // started, finished, stopped
		),

		pausesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gptimer_pauses_total",
			Help: "Total number of pauses",
		}),

		resumesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gptimer_resumes_total",
			Help: "Total number of resumes after a pause",
		}),

		durationChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gptimer_duration_changes_total",
			Help: "Total number of accepted duration edits",
		}),

		wakeAlarmsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gptimer_wake_alarms_total",
				Help: "Wake alarm arm attempts by outcome",
			},
			[]string{"outcome"}, // armed, failed
		),

		alarmsPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gptimer_alarms_played_total",
			Help: "Total number of finish alarms played",
		}),

		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gptimer_notifications_total",
				Help: "Total number of notifications sent by outcome",
			},
			[]string{"outcome"}, // sent, failed
		),

		runElapsed: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gptimer_run_elapsed_seconds",
				Help:    "Counted time of ended runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 16), // 1s to ~9 hours
			},
			[]string{"outcome"},
		),
	}

	m.registerer().MustRegister(
		m.runsTotal,
		m.pausesTotal,
		m.resumesTotal,
		m.durationChanges,
		m.wakeAlarmsTotal,
		m.alarmsPlayed,
		m.notificationsTotal,
		m.runElapsed,
	)

	return m
}

func (m *MetricsService) registerer() prometheus.Registerer {
	if m.registry != nil {
		return m.registry
	}
	return prometheus.DefaultRegisterer
}

// TrackState exports gptimer_state{state=...}, 1 for the current state and 0
// for the others. current is read on every scrape.
func (m *MetricsService) TrackState(states []string, current func() string) {
	for _, s := range states {
		state := s
		m.registerer().MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "gptimer_state",
				Help:        "Current countdown state",
				ConstLabels: prometheus.Labels{"state": state},
			},
			func() float64 {
				if current() == state {
					return 1
				}
				return 0
			},
		))
	}
}

// Start subscribes to events and updates metrics
func (m *MetricsService) Start() {
	m.eventBus.Subscribe(domain.TimerStarted, m.handleTimerStarted)
	m.eventBus.Subscribe(domain.TimerResumed, m.handleTimerResumed)
	m.eventBus.Subscribe(domain.TimerPaused, m.handleTimerPaused)
	m.eventBus.Subscribe(domain.TimerStopped, m.handleTimerStopped)
	m.eventBus.Subscribe(domain.TimerFinished, m.handleTimerFinished)
	m.eventBus.Subscribe(domain.DurationChanged, m.handleDurationChanged)
	m.eventBus.Subscribe(domain.WakeAlarmArmed, m.handleWakeAlarmArmed)
	m.eventBus.Subscribe(domain.WakeAlarmFailed, m.handleWakeAlarmFailed)
	m.eventBus.Subscribe(domain.AlarmPlayed, m.handleAlarmPlayed)
	m.eventBus.Subscribe(domain.NotificationSent, m.handleNotificationSent)
	m.eventBus.Subscribe(domain.NotificationFailed, m.handleNotificationFailed)

	logger.Infof("Metrics service started")
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (m *MetricsService) Handler() http.Handler {
	if m.registry != nil {
		return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Event handlers

func (m *MetricsService) handleTimerStarted(event domain.Event) {
	m.runsTotal.WithLabelValues("started").Inc()
}

func (m *MetricsService) handleTimerResumed(event domain.Event) {
	m.resumesTotal.Inc()
}

func (m *MetricsService) handleTimerPaused(event domain.Event) {
	m.pausesTotal.Inc()
}

func (m *MetricsService) handleTimerStopped(event domain.Event) {
	m.runsTotal.WithLabelValues("stopped").Inc()
	m.observeElapsed(event, "stopped")
}

func (m *MetricsService) handleTimerFinished(event domain.Event) {
	m.runsTotal.WithLabelValues("finished").Inc()
	m.observeElapsed(event, "finished")
}

func (m *MetricsService) observeElapsed(event domain.Event, outcome string) {
	if data, ok := event.ParseRunEventData(); ok {
		m.runElapsed.WithLabelValues(outcome).Observe(float64(data.ElapsedMs) / 1000)
	}
}

func (m *MetricsService) handleDurationChanged(event domain.Event) {
	m.durationChanges.Inc()
}

func (m *MetricsService) handleWakeAlarmArmed(event domain.Event) {
	m.wakeAlarmsTotal.WithLabelValues("armed").Inc()
}

func (m *MetricsService) handleWakeAlarmFailed(event domain.Event) {
	m.wakeAlarmsTotal.WithLabelValues("failed").Inc()
}

func (m *MetricsService) handleAlarmPlayed(event domain.Event) {
	m.alarmsPlayed.Inc()
}

func (m *MetricsService) handleNotificationSent(event domain.Event) {
	m.notificationsTotal.WithLabelValues("sent").Inc()
}

func (m *MetricsService) handleNotificationFailed(event domain.Event) {
	m.notificationsTotal.WithLabelValues("failed").Inc()
}
