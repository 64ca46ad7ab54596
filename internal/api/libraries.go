package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/filmvault/curator/internal/store"
)

type createLibraryRequest struct {
	Name                        string `json:"name" binding:"required"`
	RootPath                    string `json:"root_path" binding:"required"`
	AutoScan                    bool   `json:"auto_scan"`
	AutoEnrich                  bool   `json:"auto_enrich"`
	AutoPublish                 bool   `json:"auto_publish"`
	ScanIntervalHours           int    `json:"scan_interval_hours" binding:"min=0"`
	ProviderUpdateIntervalHours int    `json:"provider_update_interval_hours" binding:"min=0"`
}

func registerLibraryRoutes(r *gin.Engine, s *Server) {
	g := r.Group("/libraries")

	g.GET("", func(c *gin.Context) {
		libs, err := s.Libraries.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, libs)
	})

	g.POST("", func(c *gin.Context) {
		var req createLibraryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		lib := &store.Library{
			Name:                        req.Name,
			RootPath:                    req.RootPath,
			AutoScan:                    req.AutoScan,
			AutoEnrich:                  req.AutoEnrich,
			AutoPublish:                 req.AutoPublish,
			ScanIntervalHours:           req.ScanIntervalHours,
			ProviderUpdateIntervalHours: req.ProviderUpdateIntervalHours,
		}
		id, err := s.Libraries.Create(c.Request.Context(), lib)
		if err != nil {
			respondError(c, err)
			return
		}
		lib.ID = id
		c.JSON(http.StatusCreated, lib)
	})

	g.GET("/:id", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		lib, err := s.Libraries.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, lib)
	})

	g.PUT("/:id", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		var req createLibraryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		lib := &store.Library{
			ID:                          id,
			Name:                        req.Name,
			RootPath:                    req.RootPath,
			AutoScan:                    req.AutoScan,
			AutoEnrich:                  req.AutoEnrich,
			AutoPublish:                 req.AutoPublish,
			ScanIntervalHours:           req.ScanIntervalHours,
			ProviderUpdateIntervalHours: req.ProviderUpdateIntervalHours,
		}
		if err := s.Libraries.Update(c.Request.Context(), lib); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, lib)
	})

	g.POST("/:id/scan", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		lib, err := s.Libraries.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		result, err := s.Scanner.ScanLibrary(c.Request.Context(), lib)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, result)
	})
}
