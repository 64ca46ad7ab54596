package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/filmvault/curator/internal/store"
)

func registerMovieRoutes(r *gin.Engine, s *Server) {
	g := r.Group("/movies")

	g.GET("", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		var libraryID *int64
		if v := c.Query("library_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err == nil {
				libraryID = &id
			}
		}
		movies, err := s.Movies.List(c.Request.Context(), libraryID, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, movies)
	})

	g.GET("/:id", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		movie, err := s.Movies.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, movie)
	})

	g.GET("/:id/assets", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		assetType := store.AssetType(c.Query("type"))
		if assetType == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type query parameter is required"})
			return
		}
		candidates, err := s.Assets.ListCandidates(c.Request.Context(), "movie", id, assetType)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, candidates)
	})

	g.POST("/:id/identify", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		var req struct {
			PrimaryDBID *int64  `json:"primary_db_id" binding:"required"`
			IMDbID      *string `json:"imdb_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		movie, err := s.Movies.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		movie.PrimaryDBID = req.PrimaryDBID
		movie.IMDbID = req.IMDbID
		movie.WorkflowState = store.StateIdentified
		if err := s.Movies.UpdateIdentity(c.Request.Context(), movie); err != nil {
			respondError(c, err)
			return
		}
		if err := s.Queue.Enqueue(c.Request.Context(), "enrich-metadata", store.PriorityHigh, map[string]any{
			"entity_id": id,
		}, "movie", id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, movie)
	})

	g.POST("/:id/refresh", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		var req struct {
			Force bool `json:"force"`
		}
		_ = c.ShouldBindJSON(&req)
		if err := s.Queue.Enqueue(c.Request.Context(), "enrich-metadata", store.PriorityHigh, map[string]any{
			"entity_id":     id,
			"force_refresh": req.Force,
		}, "movie", id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "enqueued"})
	})

	g.POST("/:id/trailer/select", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		var req struct {
			CandidateID int64 `json:"candidate_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.Assets.SelectTrailer(c.Request.Context(), "movie", id, req.CandidateID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "selected"})
	})

	g.GET("/:id/jobs", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		exists, err := s.Queue.Jobs.PendingOrProcessingExists(c.Request.Context(), "enrich-metadata", "movie", id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"enrich_pending_or_processing": exists})
	})
}
