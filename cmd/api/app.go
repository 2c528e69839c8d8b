package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/placereviews/internal/api"
	"github.com/onnwee/placereviews/internal/auth"
	"github.com/onnwee/placereviews/internal/config"
	"github.com/onnwee/placereviews/internal/db"
	"github.com/onnwee/placereviews/internal/detail"
	"github.com/onnwee/placereviews/internal/engagement"
	"github.com/onnwee/placereviews/internal/health"
	"github.com/onnwee/placereviews/internal/jobs"
	"github.com/onnwee/placereviews/internal/media"
	"github.com/onnwee/placereviews/internal/middleware"
	"github.com/onnwee/placereviews/internal/place"
	"github.com/onnwee/placereviews/internal/ranking"
	"github.com/onnwee/placereviews/internal/review"
	"github.com/onnwee/placereviews/internal/route"
	"github.com/onnwee/placereviews/internal/vote"
)

const (
	sessionSweepInterval   = time.Minute
	rateLimitCleanupPeriod = time.Minute
)

// app is the wired server: its HTTP handler plus the background work and
// connections it owns.
type app struct {
	handler  http.Handler
	registry *prometheus.Registry
	sessions *engagement.Sessions
	jobs     *jobs.Metrics
	logger   *slog.Logger

	// memLimits is set when rate limits are kept in process.
	memLimits *middleware.InMemoryRateLimitStore
	closers   []func() error
}

// newApp builds every component from cfg. Without a database URL the seeded
// in-memory store is used; without a Redis URL rate limits stay in process.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		registry: prometheus.NewRegistry(),
		jobs:     jobs.NewMetrics(),
		logger:   logger,
	}

	httpMetrics := middleware.NewMetrics()
	mediaMetrics := media.NewMetrics()
	engagementMetrics := engagement.NewMetrics()
	routeMetrics := route.NewMetrics()
	for _, register := range []func(prometheus.Registerer) error{
		httpMetrics.Register,
		mediaMetrics.Register,
		engagementMetrics.Register,
		routeMetrics.Register,
		a.jobs.Register,
	} {
		if err := register(a.registry); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	healthCfg := api.HealthHandlersConfig{
		RoutingChecker: health.NewRoutingChecker(cfg.RoutingURL),
		Logger:         logger,
	}

	var store review.Store
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		store = review.NewPostgresStore(conn, logger)
		healthCfg.DBChecker = health.NewDBChecker(conn)
		logger.Info("connected to database")
	} else {
		mem := review.NewInMemoryStore()
		review.Seed(mem)
		store = mem
		logger.Warn("DATABASE_URL not set, serving seeded in-memory reviews")
	}

	var signer media.Signer
	if cfg.StorageConfigured() {
		s3, err := media.NewS3Signer(media.S3SignerConfig{
			Endpoint:        cfg.StorageEndpoint,
			Region:          cfg.StorageRegion,
			AccessKeyID:     cfg.StorageAccessKeyID,
			SecretAccessKey: cfg.StorageSecretAccessKey,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init media signer: %w", err)
		}
		signer = s3
	} else {
		logger.Info("object storage not configured, media references are served unsigned")
	}
	resolver := media.NewResolver(signer, media.ResolverConfig{
		TTL:     cfg.SignedURLTTL(),
		Logger:  logger,
		Metrics: mediaMetrics,
	})

	ranks, err := ranking.LoadTiers(cfg.RankTiersPath)
	if err != nil {
		logger.Warn("using default rank tiers", "path", cfg.RankTiersPath, "error", err)
	} else if cfg.RankTiersPath != "" {
		logger.Info("loaded rank tiers", "path", cfg.RankTiersPath, "tiers", len(ranks.Tiers()))
	}

	a.sessions = engagement.NewSessions(func() *engagement.Cache {
		return engagement.NewCache(store, resolver, engagement.Config{
			Concurrency: cfg.EnrichmentConcurrency,
			Ranks:       ranks,
			Logger:      logger,
			Metrics:     engagementMetrics,
		})
	}, logger, engagementMetrics, engagement.WithMaxSessions(cfg.MaxSessions))

	routes := route.NewResolver(route.NewClient(route.ClientConfig{
		BaseURL: cfg.RoutingURL,
		Profile: cfg.RoutingProfile,
		Timeout: cfg.RoutingTimeout(),
	}), route.ResolverConfig{Logger: logger, Metrics: routeMetrics})

	var limits middleware.RateLimitStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		limits = middleware.NewRedisRateLimitStore(client,
			middleware.WithStoreMetrics(httpMetrics),
			middleware.WithStoreLogger(logger),
		)
		healthCfg.RedisChecker = health.NewRedisChecker(client)
	} else {
		a.memLimits = middleware.NewInMemoryRateLimitStore()
		limits = a.memLimits
	}

	fallback := cfg.FallbackOrigin()
	loader := detail.NewLoader(store, resolver, logger)
	mux := api.NewRouter(api.Routes{
		Health: api.NewHealthHandlers(healthCfg),
		Search: api.NewSearchHandlers(api.SearchHandlersConfig{
			Sessions: a.sessions,
			Routes:   routes,
			Fallback: fallback,
			Logger:   logger,
		}),
		Reviews: api.NewReviewHandlers(store, loader, vote.NewMachine(store, logger)),
		Route:   api.NewRouteHandlers(store, routes, fallback),
		Places:  api.NewPlaceHandlers(place.NewDirectory(store, resolver, logger)),
		Ranks:   api.NewRankHandlers(ranks),
		Metrics: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),

		MutationLimit: middleware.RateLimiter(limits, middleware.DefaultMutationLimit(), middleware.UserOrIPKey, httpMetrics),
		ReadLimit:     middleware.RateLimiter(limits, middleware.DefaultSearchLimit(), middleware.UserOrIPKey, httpMetrics),
	})

	jwtService := auth.NewJWTService(cfg.JWTSecret, auth.WithPreviousSecret(cfg.JWTPreviousSecret))

	// Outermost first: RequestID -> Logging -> Tracing -> HTTPMetrics -> CORS -> Authenticate.
	var handler http.Handler = mux
	handler = middleware.Authenticate(jwtService, logger)(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.Logging(logger)(handler)
	a.handler = middleware.RequestID(handler)

	return a, nil
}

// startBackground runs the idle session sweeper and, for in-process rate
// limits, the expired window cleanup until ctx is done.
func (a *app) startBackground(ctx context.Context, sessionIdle time.Duration) {
	go a.sessions.RunSweeper(ctx, sessionSweepInterval, sessionIdle, a.jobs)
	if a.memLimits != nil {
		go a.memLimits.RunCleanup(ctx, rateLimitCleanupPeriod, a.jobs)
	}
}

// Close releases database and Redis connections.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("failed to close connections", "error", err)
	}
}
