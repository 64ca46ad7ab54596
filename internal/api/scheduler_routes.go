package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/filmvault/curator/internal/store"
)

type schedulerRequest struct {
	Cadence       store.SchedulerCadence `json:"cadence" binding:"required"`
	Enabled       bool                   `json:"enabled"`
	IntervalHours int                    `json:"interval_hours" binding:"min=1"`
}

func registerSchedulerRoutes(r *gin.Engine, s *Server) {
	g := r.Group("/scheduler")

	g.PUT("/:library_id", func(c *gin.Context) {
		libraryID, ok := parseIDParam(c, "library_id")
		if !ok {
			return
		}
		var req schedulerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		state := &store.SchedulerState{
			LibraryID:     libraryID,
			Cadence:       req.Cadence,
			Enabled:       req.Enabled,
			IntervalHours: req.IntervalHours,
		}
		if err := s.Scheduler.State.Upsert(c.Request.Context(), state); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	})

	g.GET("/due", func(c *gin.Context) {
		due, err := s.Scheduler.State.DueNow(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, due)
	})
}
