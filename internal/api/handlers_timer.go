package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/gptimer/internal/timer"
)

func (s *RESTServer) getTimer(c *gin.Context) {
	c.JSON(http.StatusOK, s.timer.Status())
}

func (s *RESTServer) startTimer(c *gin.Context) {
	s.timer.Start(timer.OriginAPI)
	c.JSON(http.StatusOK, s.timer.Status())
}

func (s *RESTServer) pauseTimer(c *gin.Context) {
	s.timer.Pause(timer.OriginAPI)
	c.JSON(http.StatusOK, s.timer.Status())
}

func (s *RESTServer) stopTimer(c *gin.Context) {
	s.timer.Stop(timer.OriginAPI)
	c.JSON(http.StatusOK, s.timer.Status())
}

// setDuration replaces the configured duration. Editing is refused while a
// segment is counting down.
func (s *RESTServer) setDuration(c *gin.Context) {
	var req timer.TimerConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	if err := req.Validate(); err != nil {
		respondBadRequest(c, err, true)
		return
	}

	if _, err := s.timer.SetDuration(req, timer.OriginAPI); err != nil {
		if errors.Is(err, timer.ErrTimerRunning) {
			respondWithError(c, http.StatusConflict, ErrMsgTimerRunning, err)
			return
		}
		respondWithError(c, http.StatusInternalServerError, ErrMsgInvalidRequest, err)
		return
	}

	c.JSON(http.StatusOK, s.timer.Status())
}

func (s *RESTServer) setWake(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		respondBadRequest(c, err, false)
		return
	}

	if err := s.timer.SetWakeEnabled(*req.Enabled); err != nil {
		if errors.Is(err, timer.ErrWakeUnavailable) {
			respondWithError(c, http.StatusConflict, ErrMsgWakeUnavailable, err)
			return
		}
		respondWithError(c, http.StatusInternalServerError, ErrMsgInvalidRequest, err)
		return
	}

	c.JSON(http.StatusOK, s.timer.Status())
}
