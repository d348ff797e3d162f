package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/halcyon-social/halcyon/appview/internal/api"
	"github.com/halcyon-social/halcyon/appview/internal/auth"
	"github.com/halcyon-social/halcyon/appview/internal/blob"
	"github.com/halcyon-social/halcyon/appview/internal/cache"
	"github.com/halcyon-social/halcyon/appview/internal/config"
	"github.com/halcyon-social/halcyon/appview/internal/factory"
	"github.com/halcyon-social/halcyon/appview/internal/feedgen"
	"github.com/halcyon-social/halcyon/appview/internal/health"
	"github.com/halcyon-social/halcyon/appview/internal/hydration"
	"github.com/halcyon-social/halcyon/appview/internal/identity"
	"github.com/halcyon-social/halcyon/appview/internal/logger"
	"github.com/halcyon-social/halcyon/appview/internal/metrics"
	"github.com/halcyon-social/halcyon/appview/internal/prefs"
	"github.com/halcyon-social/halcyon/appview/internal/services"
	"github.com/halcyon-social/halcyon/appview/internal/store"
	"github.com/halcyon-social/halcyon/appview/internal/views"
)

func main() {
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud)")
	flag.Parse()

	// Local .env is a convenience for development; absent in deployment.
	_ = godotenv.Load()

	log := logger.New("appview")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *buildTarget != "" {
		cfg.BuildTarget = *buildTarget
		if err := cfg.ResolveDefaults(); err != nil {
			log.Fatal().Err(err).Msg("invalid build-target override")
		}
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("appview starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------- Storage -----------------------
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("store unavailable")
	}

	// -------- Metrics -----------------------
	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTP(reg)
	loaderMetrics, err := hydration.NewMetrics(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("metrics registration failed")
	}
	handleCacheMetrics, err := cache.NewMetrics(reg, "handles")
	if err != nil {
		log.Fatal().Err(err).Msg("metrics registration failed")
	}
	prefsCacheMetrics, err := cache.NewMetrics(reg, "prefs")
	if err != nil {
		log.Fatal().Err(err).Msg("metrics registration failed")
	}

	// -------- Caches & collaborators --------
	handleCache := cache.NewTTL[string](ctx, cfg.HandleCacheTTL, cfg.CacheSweepInterval, handleCacheMetrics)
	defer handleCache.Close()
	prefsTTL := prefs.NewTTL(ctx, cfg.PrefsCacheTTL, cfg.CacheSweepInterval, prefsCacheMetrics)
	defer prefsTTL.Close()

	id := identity.NewResolver(st.Actors(), handleCache, cfg.HandleResolverURL, log)
	blobs := blob.NewResolver(cfg.ImgURIBase)
	loader := hydration.NewLoader(st, log, cfg.HydrationTimeout, loaderMetrics)
	composer := views.NewComposer(blobs)

	var fg *feedgen.Client
	if cfg.FeedGenURL != "" {
		fg = feedgen.NewClient(cfg.FeedGenURL, log)
	}

	feedSvc := services.NewFeedService(st, loader, composer, fg, nil, cfg.DefaultPageSize, log)
	actorSvc := services.NewActorService(id, loader, composer, prefs.NewCache(st.Prefs(), prefsTTL), log)
	authorizer := auth.NewAuthorizerFactory(cfg).CreateAuthorizer()

	// -------- Health monitor ----------------
	storeChecker := store.NewStoreHealthChecker(st, log, 5*time.Second)
	monitor := health.NewServiceHealthChecker(log, storeChecker)
	go storeChecker.Start(ctx, 30*time.Second)
	go monitor.Start(ctx, 30*time.Second)

	// -------- Router & server ---------------
	handler := api.NewHandler(feedSvc, actorSvc, id, authorizer, log)
	router := api.NewRouter(handler, api.NewHealthHandler(monitor.IsHealthy), httpMetrics, metrics.Handler(reg))

	server := &http.Server{
		Addr:         cfg.GetHTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server exited")
}
