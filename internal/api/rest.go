// Package api provides the REST API and websocket stream for gptimer. It
// controls the countdown, serves run history and manages scheduled presets.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mescon/gptimer/internal/auth"
	"github.com/mescon/gptimer/internal/db"
	"github.com/mescon/gptimer/internal/domain"
	"github.com/mescon/gptimer/internal/logger"
	"github.com/mescon/gptimer/internal/metrics"
	"github.com/mescon/gptimer/internal/notifier"
	"github.com/mescon/gptimer/internal/services"
	"github.com/mescon/gptimer/internal/sound"
	"github.com/mescon/gptimer/internal/timer"
	"github.com/mescon/gptimer/internal/web"
)

// TimerController is the engine surface the API drives.
type TimerController interface {
	Status() timer.Status
	Start(origin string)
	Pause(origin string)
	Stop(origin string)
	SetDuration(cfg timer.TimerConfig, origin string) (uint64, error)
	SetWakeEnabled(enabled bool) error
}

// RunStore reads the recorded run history.
type RunStore interface {
	ListRuns(limit, offset int) ([]db.RunSummary, error)
	CountRuns() (int, error)
	GetRunEvents(runID string) ([]domain.Event, error)
	GetDatabaseStats() (map[string]interface{}, error)
}

// ScheduleManager manages cron-triggered presets.
type ScheduleManager interface {
	ListSchedules() ([]services.Schedule, error)
	AddSchedule(sched services.Schedule) (int64, error)
	UpdateSchedule(sched services.Schedule) error
	DeleteSchedule(id int64) error
}

// NotificationTester lists notification targets and sends a test message to
// them.
type NotificationTester interface {
	Targets() []notifier.Target
	SendTest() error
}

type RESTServer struct {
	router     *gin.Engine
	httpServer *http.Server
	timer      TimerController
	runs       RunStore
	scheduler  ScheduleManager
	notifier   NotificationTester
	metrics    *metrics.MetricsService
	hub        *WebSocketHub
	keys       *auth.KeyVerifier
	player     sound.PlayerStatus
	startTime  time.Time
}

// ServerDeps contains all dependencies required for the REST server.
// Runs, Scheduler, Notifier, Metrics and Hub are optional; KeyVerifier nil
// leaves the API open.
type ServerDeps struct {
	Timer       TimerController
	Runs        RunStore
	Scheduler   ScheduleManager
	Notifier    NotificationTester
	Metrics     *metrics.MetricsService
	Hub         *WebSocketHub
	KeyVerifier *auth.KeyVerifier
	Player      sound.PlayerStatus
}

func NewRESTServer(deps ServerDeps) *RESTServer {
	// Set Gin to release mode for production (suppresses debug warnings)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Request ID middleware for correlation/tracing
	r.Use(func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = fmt.Sprintf("%d-%d", time.Now().UnixNano(), c.Request.ContentLength)
		}
		c.Set("request_id", reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	})

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		reqID := c.GetString("request_id")
		logger.Errorf("[PANIC RECOVERY] request_id=%s path=%s method=%s error=%v",
			reqID, c.Request.URL.Path, c.Request.Method, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"request_id": reqID,
		})
	}))

	r.Use(corsMiddleware(os.Getenv("GPTIMER_CORS_ORIGIN")))

	s := &RESTServer{
		router:    r,
		timer:     deps.Timer,
		runs:      deps.Runs,
		scheduler: deps.Scheduler,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		hub:       deps.Hub,
		keys:      deps.KeyVerifier,
		player:    deps.Player,
		startTime: time.Now(),
	}

	if s.hub != nil {
		s.hub.SetStatusSource(func() interface{} { return s.timer.Status() })
	}

	s.setupRoutes()

	return s
}

// corsMiddleware allows the comma-separated origins, "*" for any. Empty
// leaves the browser's same-origin policy in place.
func corsMiddleware(corsOrigins string) gin.HandlerFunc {
	allowedOrigins := make(map[string]bool)
	for _, origin := range strings.Split(corsOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if corsOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowedOrigins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, "+auth.HeaderName+", accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Router exposes the handler, for tests and for embedding.
func (s *RESTServer) Router() http.Handler {
	return s.router
}

func (s *RESTServer) setupRoutes() {
	// Prometheus metrics endpoint at root level (standard convention)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	// Browser display
	s.router.GET("/", s.serveIndex(web.Index))

	api := s.router.Group("/api")
	{
		// Health check endpoint (no authentication required)
		api.GET("/health", s.handleHealth)

		protected := api.Group("")
		protected.Use(s.authMiddleware())
		{
			// Countdown control
			protected.GET("/timer", s.getTimer)
			protected.POST("/timer/start", s.startTimer)
			protected.POST("/timer/pause", s.pauseTimer)
			protected.POST("/timer/stop", s.stopTimer)
			protected.PUT("/timer/duration", s.setDuration)
			protected.PUT("/timer/wake", s.setWake)

			// Run history
			protected.GET("/runs", s.getRuns)
			protected.GET("/runs/:id/events", s.getRunEvents)

			// Scheduled presets
			protected.GET("/schedules", s.getSchedules)
			protected.POST("/schedules", s.addSchedule)
			protected.PUT("/schedules/:id", s.updateSchedule)
			protected.DELETE("/schedules/:id", s.deleteSchedule)

			// Notifications
			protected.GET("/notifications", s.getNotifications)
			protected.POST("/notifications/test", s.testNotification)

			protected.GET("/ws", s.handleWebSocket)
		}
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
	})
}

// serveIndex serves the browser display page.
func (s *RESTServer) serveIndex(readFile func() ([]byte, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := readFile()
		if err != nil {
			logger.Errorf("Failed to read index.html: %v", err)
			c.String(http.StatusInternalServerError, "Failed to load page")
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "text/html; charset=utf-8", data)
	}
}

func (s *RESTServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// authMiddleware checks the API key when one is configured. Rejected keys
// count against FailedAuthLimiter so guessing is slowed down.
func (s *RESTServer) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.keys == nil {
			c.Next()
			return
		}

		token := c.GetHeader(auth.HeaderName)
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		// Also check query parameter (browsers can't set headers on websockets)
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMsgNoToken})
			return
		}

		if !s.keys.Check(token) {
			if !FailedAuthLimiter.Allow(c.ClientIP()) {
				FailedAuthLimiter.reject(c)
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMsgAuthenticationError})
			return
		}

		c.Next()
	}
}

func (s *RESTServer) handleWebSocket(c *gin.Context) {
	if s.hub == nil {
		respondServiceUnavailable(c, "WebSocket stream")
		return
	}
	s.hub.HandleConnection(c)
}
