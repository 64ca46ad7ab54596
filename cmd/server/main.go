// Command curator-server runs the media-library curation engine: the job
// queue dispatcher, the per-library scan/enrich/provider-update scheduler,
// the webhook intake, and the HTTP API, all against one Postgres database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filmvault/curator/internal/activity"
	"github.com/filmvault/curator/internal/api"
	"github.com/filmvault/curator/internal/cache"
	"github.com/filmvault/curator/internal/config"
	"github.com/filmvault/curator/internal/enrich"
	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/logging"
	"github.com/filmvault/curator/internal/metrics"
	"github.com/filmvault/curator/internal/notify"
	"github.com/filmvault/curator/internal/player"
	"github.com/filmvault/curator/internal/priority"
	"github.com/filmvault/curator/internal/providers"
	"github.com/filmvault/curator/internal/publish"
	"github.com/filmvault/curator/internal/queue"
	"github.com/filmvault/curator/internal/scan"
	"github.com/filmvault/curator/internal/scheduler"
	"github.com/filmvault/curator/internal/store"
	"github.com/filmvault/curator/internal/webhook"
)

func main() {
	configPath := flag.String("config", os.Getenv("CURATOR_CONFIG"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogLevel, "json")
	log := logging.Logger()
	log.Info().Str("http_addr", cfg.HTTPAddr).Msg("starting curator")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Pool.Close()
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("bootstrap schema")
	}

	movies := store.NewMovieRepo(db)
	libraries := store.NewLibraryRepo(db)
	assets := store.NewAssetRepo(db)
	jobs := store.NewJobRepo(db)
	presets := store.NewPresetRepo(db)
	recycleBin := store.NewRecycleBinRepo(db)
	schedulerState := store.NewSchedulerRepo(db)
	activityRepo := store.NewActivityRepo(db)
	cacheEntries := store.NewCacheEntryStore(db)
	providerCache := store.NewProviderCacheAdapter(assets)

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	metricsRegistry := metrics.New(metricsReg)

	blobCache := cache.New(cfg.CacheRoot, cacheEntries)

	activityFeed, err := activity.New(filepath.Join(cfg.CacheRoot, "activity.db"), 500, activityRepo)
	if err != nil {
		log.Fatal().Err(err).Msg("open activity feed")
	}
	defer activityFeed.Close()

	priorityResolver, err := loadPriorityResolver(ctx, presets)
	if err != nil {
		log.Fatal().Err(err).Msg("load priority preset")
	}
	priorityFor := func(entityType string) *priority.Resolver { return priorityResolver }

	guard := providers.NewGuard()
	tmdb := providers.NewTMDbProvider(cfg.Providers.TMDbAPIKey)
	fanart := providers.NewFanartProvider(cfg.Providers.FanartAPIKey)
	ytdlp := providers.NewYtDlpProvider()

	orchestrator := providers.NewOrchestrator(priorityResolver, map[string]providers.MovieMetadataProvider{
		"tmdb": tmdb,
	}, guard, providerCache, 24*time.Hour)

	actorImages := providers.NewActorImageCache(tmdb, blobCache)
	publisher := publish.New(blobCache, movies, assets, actorImages)

	q := queue.New(jobs, metricsReg)
	q.LeaseDuration = cfg.LeaseDuration
	q.Workers = cfg.Workers

	scanner := scan.New(movies, assets, libraries, q)
	pipeline := enrich.New(movies, assets, libraries, orchestrator, ytdlp, priorityFor, q)
	pipeline.ImageProviders = []providers.ImageProvider{fanart}

	webhookSources := make([]webhook.Source, 0, len(cfg.Webhooks))
	for _, src := range cfg.Webhooks {
		webhookSources = append(webhookSources, webhook.Source{
			Name: src.Name, HMACSecret: src.HMACSecret,
			PathPrefix: src.PathPrefix, LocalPrefix: src.LocalPrefix,
		})
	}
	notifyNames := make([]string, 0, len(cfg.Notifications))
	notifyChannels := make([]*notify.Channel, 0, len(cfg.Notifications))
	for _, nc := range cfg.Notifications {
		ch, err := notify.New(nc.Name, nc.URL)
		if err != nil {
			log.Warn().Err(err).Str("channel", nc.Name).Msg("skipping notification channel")
			continue
		}
		notifyNames = append(notifyNames, nc.Name)
		notifyChannels = append(notifyChannels, ch)
	}
	notifyRegistry := notify.NewRegistry(notifyChannels)
	dispatcher := webhook.New(webhookSources, libraries, movies, scanner, q, notifyNames)

	playerAdapters := make(map[int64]*player.Adapter)
	playerGroups := make(map[int64]player.Group)
	for _, pg := range cfg.Players {
		var ext providers.ExternalPlayer
		switch strings.ToLower(pg.Type) {
		case "plex":
			ext = providers.NewPlexPlayer(pg.BaseURL, pg.Token, pg.SectionID)
		default:
			log.Warn().Str("type", pg.Type).Int64("library_id", pg.LibraryID).Msg("unsupported player type, skipping")
			continue
		}
		playerAdapters[pg.LibraryID] = player.New(ext)
		playerGroups[pg.LibraryID] = player.Group{LibraryID: pg.LibraryID, SkipActive: pg.SkipActive, PathMapping: pg.PathMapping}
	}

	sched := scheduler.New(schedulerState, jobs, q, metricsRegistry)

	registerHandlers(q, scanner, pipeline, publisher, movies, libraries, notifyRegistry, notifyNames, activityFeed, playerAdapters, playerGroups)

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start scheduler")
	}
	defer sched.Stop()

	go q.Run(ctx)

	srv := &api.Server{
		Libraries:   libraries,
		Movies:      movies,
		Assets:      assets,
		Presets:     presets,
		RecycleBin:  recycleBin,
		Scanner:     scanner,
		Enrich:      pipeline,
		Publisher:   publisher,
		Queue:       q,
		Scheduler:   sched,
		Webhooks:    dispatcher,
		Activity:    activityFeed,
		Config:      cfg,
		Providers:   orchestrator,
		PriorityFor: priorityFor,
	}
	router := api.NewRouter(srv)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{})))

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	log.Info().Msg("curator stopped")
}

// loadPriorityResolver reads the active custom preset, falling back to the
// balanced defaults when none has been activated yet.
func loadPriorityResolver(ctx context.Context, presets *store.PresetRepo) (*priority.Resolver, error) {
	name, err := presets.ActiveName(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return priority.New(priority.EntityMovie, priority.Preset{Name: "balanced"}), nil
	}
	p, err := presets.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return priority.New(priority.EntityMovie, priority.Preset{Name: "balanced"}), nil
	}
	return priority.New(priority.EntityMovie, *p), nil
}

func registerHandlers(q *queue.Queue, scanner *scan.Scanner, pipeline *enrich.Pipeline, publisher *publish.Publisher,
	movies *store.MovieRepo, libraries *store.LibraryRepo, notifyRegistry *notify.Registry, notifyNames []string, feed *activity.Feed,
	playerAdapters map[int64]*player.Adapter, playerGroups map[int64]player.Group) {

	q.RegisterHandler("scan-movie", func(ctx context.Context, job *store.Job) error {
		var payload struct {
			LibraryID int64  `json:"library_id"`
			EntityID  int64  `json:"entity_id"`
			Directory string `json:"directory"`
		}
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return errs.Wrap(errs.KindInputInvalid, err, "decode scan-movie payload")
		}
		if payload.LibraryID != 0 {
			lib, err := libraries.Get(ctx, payload.LibraryID)
			if err != nil {
				return err
			}
			_, err = scanner.ScanLibrary(ctx, lib)
			return err
		}
		movie, err := movies.Get(ctx, payload.EntityID)
		if err != nil {
			return err
		}
		lib, err := libraries.Get(ctx, movie.LibraryID)
		if err != nil {
			return err
		}
		dir := payload.Directory
		if dir == "" {
			dir = filepath.Dir(movie.FilePath)
		}
		_, err = scanner.ScanDirectory(ctx, lib, dir, nil)
		return err
	})

	q.RegisterHandler("provider-update", func(ctx context.Context, job *store.Job) error {
		var payload struct {
			LibraryID int64 `json:"library_id"`
		}
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return errs.Wrap(errs.KindInputInvalid, err, "decode provider-update payload")
		}
		list, err := movies.List(ctx, &payload.LibraryID, 500, 0)
		if err != nil {
			return err
		}
		for _, m := range list {
			if err := q.Enqueue(ctx, "enrich-metadata", store.PriorityLow, map[string]any{
				"entity_id":     m.ID,
				"force_refresh": true,
			}, "movie", m.ID); err != nil {
				return err
			}
		}
		return nil
	})

	q.RegisterHandler("enrich-metadata", func(ctx context.Context, job *store.Job) error {
		var payload struct {
			EntityID     int64 `json:"entity_id"`
			ForceRefresh bool  `json:"force_refresh"`
		}
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return errs.Wrap(errs.KindInputInvalid, err, "decode enrich-metadata payload")
		}
		return pipeline.Run(ctx, enrich.Input{
			EntityID:     payload.EntityID,
			EntityType:   "movie",
			ForceRefresh: payload.ForceRefresh,
			JobPriority:  job.Priority,
			PhaseConfig:  enrich.AllPhases(),
		})
	})

	q.RegisterHandler("publish", func(ctx context.Context, job *store.Job) error {
		var payload struct {
			EntityID   int64  `json:"entity_id"`
			EntityType string `json:"entity_type"`
		}
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return errs.Wrap(errs.KindInputInvalid, err, "decode publish payload")
		}
		movie, err := movies.Get(ctx, payload.EntityID)
		if err != nil {
			return err
		}
		base := filepath.Base(movie.FilePath)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		result, err := publisher.Run(ctx, publish.Input{
			EntityID:      movie.ID,
			EntityType:    payload.EntityType,
			LibraryPath:   filepath.Dir(movie.FilePath),
			MediaBaseName: base,
			PhaseConfig: publish.PhaseConfig{
				PublishAssets:   true,
				PublishActors:   true,
				PublishTrailers: true,
				GenerateNFO:     true,
			},
		})
		if err != nil {
			return err
		}
		if !result.Success() {
			return errs.New(errs.KindProviderUnavailable, "publish completed with errors").WithContext("errors", len(result.Errors))
		}

		if adapter, ok := playerAdapters[movie.LibraryID]; ok {
			externalID := ""
			if movie.PrimaryDBID != nil {
				externalID = fmt.Sprintf("%d", *movie.PrimaryDBID)
			}
			if err := adapter.Published(ctx, playerGroups[movie.LibraryID], filepath.Dir(movie.FilePath), externalID); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Int64("movie_id", movie.ID).Msg("player sync failed after publish")
			}
		}

		return feed.Publish(ctx, "published", payload.EntityType, payload.EntityID, fmt.Sprintf("published %d assets", result.AssetsCopied))
	})

	for _, name := range notifyNames {
		channelName := name
		q.RegisterHandler("notify-"+channelName, func(ctx context.Context, job *store.Job) error {
			var payload struct {
				EntityID int64  `json:"entity_id"`
				Event    string `json:"event"`
			}
			if err := json.Unmarshal(job.Payload, &payload); err != nil {
				return errs.Wrap(errs.KindInputInvalid, err, "decode notify payload")
			}
			ch, ok := notifyRegistry.Get(channelName)
			if !ok {
				return errs.New(errs.KindConfiguration, "unknown notification channel").WithContext("channel", channelName)
			}
			return ch.Send(ctx, providers.NotificationPayload{
				Title:      "curator",
				Message:    payload.Event,
				EntityType: "movie",
				EntityID:   payload.EntityID,
			})
		})
	}
}
