package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// requireNotifier checks if the notifier is available, returning false and sending error if not
func (s *RESTServer) requireNotifier(c *gin.Context) bool {
	if s.notifier == nil {
		respondServiceUnavailable(c, "Notification service")
		return false
	}
	return true
}

func (s *RESTServer) getNotifications(c *gin.Context) {
	if !s.requireNotifier(c) {
		return
	}
	c.JSON(http.StatusOK, s.notifier.Targets())
}

func (s *RESTServer) testNotification(c *gin.Context) {
	if !s.requireNotifier(c) {
		return
	}

	if err := s.notifier.SendTest(); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Test notification sent"})
}
