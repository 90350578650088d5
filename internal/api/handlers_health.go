package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// formatUptime returns a human-readable uptime string
func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// handleHealth reports the countdown state plus the capabilities detected at
// startup. It is unauthenticated so monitors can poll it.
func (s *RESTServer) handleHealth(c *gin.Context) {
	status := s.timer.Status()
	overall := "healthy"

	dbHealth := gin.H{"status": "not_configured"}
	if s.runs != nil {
		if stats, err := s.runs.GetDatabaseStats(); err != nil {
			dbHealth = gin.H{"status": "error", "error": err.Error()}
			overall = "degraded"
		} else {
			dbHealth = gin.H{"status": "connected"}
			for k, v := range stats {
				dbHealth[k] = v
			}
		}
	}

	wsClients := 0
	if s.hub != nil {
		wsClients = s.hub.ClientCount()
	}

	uptime := time.Since(s.startTime)
	c.JSON(http.StatusOK, gin.H{
		"status":         overall,
		"uptime":         formatUptime(uptime),
		"uptime_seconds": int64(uptime.Seconds()),
		"timer": gin.H{
			"state":        status.State,
			"display":      status.Display,
			"remaining_ms": status.RemainingMs,
		},
		"clocks": gin.H{
			"elapsed":        status.ElapsedClock,
			"wake_available": status.WakeAvailable,
			"wake_enabled":   status.WakeEnabled,
		},
		"alarm":             s.player,
		"database":          dbHealth,
		"websocket_clients": wsClients,
	})
}
