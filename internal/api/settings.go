package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/filmvault/curator/internal/config"
)

// registerSettingsRoutes exposes the resolved runtime configuration
// read-only (it's file-and-env sourced, not a mutable settings table) and
// the recycle bin administration endpoints for soft-deleted entities.
func registerSettingsRoutes(r *gin.Engine, s *Server) {
	g := r.Group("/settings")

	g.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"players":       redactPlayerGroups(s.Config.Players),
			"notifications": redactNotifyChannels(s.Config.Notifications),
			"webhooks":      redactWebhookSources(s.Config.Webhooks),
			"log_level":     s.Config.LogLevel,
			"workers":       s.Config.Workers,
		})
	})

	rb := r.Group("/settings/recyclebin")

	rb.GET("", func(c *gin.Context) {
		entries, err := s.RecycleBin.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	rb.POST("/:entity_type/:entity_id/restore", func(c *gin.Context) {
		id, ok := parseIDParam(c, "entity_id")
		if !ok {
			return
		}
		if err := s.RecycleBin.Restore(c.Request.Context(), c.Param("entity_type"), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "restored"})
	})

	rb.DELETE("/:entity_type/:entity_id", func(c *gin.Context) {
		id, ok := parseIDParam(c, "entity_id")
		if !ok {
			return
		}
		if err := s.RecycleBin.Purge(c.Request.Context(), c.Param("entity_type"), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "purged"})
	})
}

// redactPlayerGroups strips auth tokens before returning settings over the API.
func redactPlayerGroups(groups []config.PlayerGroup) []gin.H {
	out := make([]gin.H, len(groups))
	for i, g := range groups {
		out[i] = gin.H{
			"library_id":  g.LibraryID,
			"type":        g.Type,
			"base_url":    g.BaseURL,
			"skip_active": g.SkipActive,
		}
	}
	return out
}

// redactNotifyChannels strips destination URLs, which commonly embed
// tokens (Discord webhook URLs, Slack tokens), before returning settings
// over the API.
func redactNotifyChannels(channels []config.NotifyChannel) []gin.H {
	out := make([]gin.H, len(channels))
	for i, ch := range channels {
		out[i] = gin.H{"name": ch.Name}
	}
	return out
}

// redactWebhookSources strips the HMAC secret before returning settings
// over the API.
func redactWebhookSources(sources []config.WebhookSource) []gin.H {
	out := make([]gin.H, len(sources))
	for i, src := range sources {
		out[i] = gin.H{
			"name":         src.Name,
			"path_prefix":  src.PathPrefix,
			"local_prefix": src.LocalPrefix,
			"hmac_configured": src.HMACSecret != "",
		}
	}
	return out
}
