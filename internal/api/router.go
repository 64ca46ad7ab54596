// Package api exposes the HTTP surface over gin-gonic/gin, grouped into one
// register function per namespace the way trailarr-trailarr's routes.go
// splits registerCastRoutes/registerMediaAndSettingsRoutes/etc., request
// validation via go-playground/validator/v10, and error responses rendered
// from errs.Error.HTTPStatus().
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/filmvault/curator/internal/activity"
	"github.com/filmvault/curator/internal/config"
	"github.com/filmvault/curator/internal/enrich"
	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/logging"
	"github.com/filmvault/curator/internal/priority"
	"github.com/filmvault/curator/internal/providers"
	"github.com/filmvault/curator/internal/publish"
	"github.com/filmvault/curator/internal/queue"
	"github.com/filmvault/curator/internal/scan"
	"github.com/filmvault/curator/internal/scheduler"
	"github.com/filmvault/curator/internal/store"
	"github.com/filmvault/curator/internal/webhook"
)

// Server holds every collaborator a handler needs, constructed once in
// cmd/server/main.go and threaded in as a value (spec.md §9 "no
// package-level singletons").
type Server struct {
	Libraries *store.LibraryRepo
	Movies    *store.MovieRepo
	Assets    *store.AssetRepo
	Presets   *store.PresetRepo
	RecycleBin *store.RecycleBinRepo

	Scanner    *scan.Scanner
	Enrich     *enrich.Pipeline
	Publisher  *publish.Publisher
	Queue      *queue.Queue
	Scheduler  *scheduler.Scheduler
	Webhooks   *webhook.Dispatcher
	Activity   *activity.Feed
	Config     *config.Config
	Providers  *providers.Orchestrator
	PriorityFor func(entityType string) *priority.Resolver
}

// NewRouter builds the gin engine with every namespace registered.
func NewRouter(s *Server) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("assettype", validateAssetType)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogMiddleware())

	registerLibraryRoutes(r, s)
	registerMovieRoutes(r, s)
	registerProviderRoutes(r, s)
	registerPriorityRoutes(r, s)
	registerSettingsRoutes(r, s)
	registerWebhookRoutes(r, s)
	registerSchedulerRoutes(r, s)
	registerSystemRoutes(r, s)

	return r
}

func validateAssetType(fl validator.FieldLevel) bool {
	switch store.AssetType(fl.Field().String()) {
	case store.AssetPoster, store.AssetFanart, store.AssetBanner, store.AssetClearLogo,
		store.AssetClearArt, store.AssetDiscArt, store.AssetLandscape, store.AssetCharacterArt,
		store.AssetTrailer, store.AssetSubtitle, store.AssetKeyArt, store.AssetThumb:
		return true
	default:
		return false
	}
}

// respondError maps an internal error to its HTTP status via
// errs.Error.HTTPStatus, falling back to 500 for unclassified errors.
func respondError(c *gin.Context, err error) {
	if tagged, ok := errs.As(err); ok {
		c.JSON(tagged.HTTPStatus(), gin.H{"error": tagged.Error(), "kind": string(tagged.Kind)})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return 0, false
	}
	return v, true
}

// requestLogMiddleware stamps every request with an id, logs its outcome at
// info level, and stashes an enriched logger on the request context so
// handlers reached via logging.Ctx(c.Request.Context()) inherit it.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		reqLogger := logging.Logger().With().Str("request_id", requestID).Logger()
		ctx := logging.WithContext(c.Request.Context(), reqLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		reqLogger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("request handled")
	}
}
