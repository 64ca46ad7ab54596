package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func registerProviderRoutes(r *gin.Engine, s *Server) {
	g := r.Group("/providers")

	g.GET("", func(c *gin.Context) {
		names := make([]string, 0, len(s.Providers.Providers))
		for name := range s.Providers.Providers {
			names = append(names, name)
		}
		states := s.Providers.Guard.States()
		c.JSON(http.StatusOK, gin.H{"configured": names, "breaker_states": states})
	})
}
