package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func registerSystemRoutes(r *gin.Engine, s *Server) {
	g := r.Group("/system")

	g.GET("/health", func(c *gin.Context) {
		stats, err := s.Queue.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "queue": stats})
	})

	g.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"http_addr":      s.Config.HTTPAddr,
			"workers":        s.Config.Workers,
			"lease_duration": s.Config.LeaseDuration.String(),
		})
	})

	g.GET("/activity", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		entries, err := s.Activity.Recent(limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	g.GET("/activity/ws", func(c *gin.Context) {
		if err := s.Activity.ServeWS(c.Writer, c.Request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
	})
}
