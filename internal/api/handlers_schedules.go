package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mescon/gptimer/internal/services"
	"github.com/mescon/gptimer/internal/timer"
)

type scheduleRequest struct {
	CronExpression string            `json:"cron_expression"`
	Duration       timer.TimerConfig `json:"duration"`
	Label          string            `json:"label"`
	Enabled        *bool             `json:"enabled"`
}

// schedule converts the request; enabled defaults to true.
func (r scheduleRequest) schedule(id int64) services.Schedule {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return services.Schedule{
		ID:             id,
		CronExpression: r.CronExpression,
		Duration:       r.Duration,
		Label:          r.Label,
		Enabled:        enabled,
	}
}

// requireScheduler checks if the scheduler is available, returning false and sending error if not
func (s *RESTServer) requireScheduler(c *gin.Context) bool {
	if s.scheduler == nil {
		respondServiceUnavailable(c, "Scheduler")
		return false
	}
	return true
}

func (s *RESTServer) getSchedules(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}

	schedules, err := s.scheduler.ListSchedules()
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if schedules == nil {
		schedules = []services.Schedule{}
	}
	c.JSON(http.StatusOK, schedules)
}

func (s *RESTServer) addSchedule(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	sched := req.schedule(0)
	if err := sched.Validate(); err != nil {
		respondBadRequest(c, err, true)
		return
	}

	id, err := s.scheduler.AddSchedule(sched)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "Schedule added"})
}

func (s *RESTServer) updateSchedule(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, ErrMsgInvalidID, err)
		return
	}

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	sched := req.schedule(id)
	if err := sched.Validate(); err != nil {
		respondBadRequest(c, err, true)
		return
	}

	if err := s.scheduler.UpdateSchedule(sched); err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			respondNotFound(c, "Schedule")
			return
		}
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Schedule updated"})
}

func (s *RESTServer) deleteSchedule(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, ErrMsgInvalidID, err)
		return
	}

	if err := s.scheduler.DeleteSchedule(id); err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			respondNotFound(c, "Schedule")
			return
		}
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted"})
}
