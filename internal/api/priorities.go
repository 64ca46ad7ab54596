package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/filmvault/curator/internal/priority"
)

type presetRequest struct {
	Name     string                         `json:"name" binding:"required"`
	Entries  map[priority.Category]map[string][]string `json:"entries"`
	Disabled map[string]bool               `json:"disabled"`
}

func registerPriorityRoutes(r *gin.Engine, s *Server) {
	g := r.Group("/priorities")

	g.GET("/:name", func(c *gin.Context) {
		preset, err := s.Presets.Get(c.Request.Context(), c.Param("name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, preset)
	})

	g.PUT("/:name", func(c *gin.Context) {
		var req presetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		preset := priority.Preset{Name: c.Param("name"), Entries: req.Entries, Disabled: req.Disabled}
		if err := s.Presets.Save(c.Request.Context(), preset); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, preset)
	})

	g.POST("/:name/activate", func(c *gin.Context) {
		if err := s.Presets.SetActive(c.Request.Context(), c.Param("name")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"active": c.Param("name")})
	})

	g.GET("/active", func(c *gin.Context) {
		name, err := s.Presets.ActiveName(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"active": name})
	})
}
