package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/filmvault/curator/internal/webhook"
)

type webhookRequest struct {
	Kind  webhook.EventKind    `json:"event_type" binding:"required"`
	Movie webhook.MoviePayload `json:"movie"`
}

func registerWebhookRoutes(r *gin.Engine, s *Server) {
	r.POST("/webhooks/:source", func(c *gin.Context) {
		source := c.Param("source")
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		signature := c.GetHeader("X-Signature")
		if !s.Webhooks.VerifySignature(source, body, signature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		var req webhookRequest
		if err := json.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ev := webhook.Event{Source: source, Kind: req.Kind, Movie: req.Movie}
		correlationID := uuid.New().String()
		if err := s.Webhooks.Handle(c.Request.Context(), ev, correlationID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"correlation_id": correlationID})
	})
}
