package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *RESTServer) getRuns(c *gin.Context) {
	if s.runs == nil {
		respondServiceUnavailable(c, "Run history")
		return
	}

	p := ParsePagination(c, DefaultPaginationConfig())

	total, err := s.runs.CountRuns()
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	runs, err := s.runs.ListRuns(p.Limit, p.Offset)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       runs,
		"pagination": NewPaginationResponse(p, total),
	})
}

func (s *RESTServer) getRunEvents(c *gin.Context) {
	if s.runs == nil {
		respondServiceUnavailable(c, "Run history")
		return
	}

	events, err := s.runs.GetRunEvents(c.Param("id"))
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if len(events) == 0 {
		respondNotFound(c, "Run")
		return
	}

	c.JSON(http.StatusOK, events)
}
