// Package main is the entry point for the datacube-explorer API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/config"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/infra/catalogcache"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/infra/memory"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/infra/postgres"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/infra/postgres/migrations"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/infra/provider/registry"
	rediscache "github.com/DeZhao-Zhang/datacube-explorer/internal/infra/redis"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/job"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/logger"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/metrics"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/region"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/search"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/stac"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/validator"
	"github.com/DeZhao-Zhang/datacube-explorer/pkg/locker"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// indexStore is what the service needs from a record source backend.
type indexStore interface {
	domain.DatasetRepository
	Ping(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(
		logger.Config{
			Level:   cfg.Logger.Level,
			Format:  cfg.Logger.Format,
			Output:  cfg.Logger.Output,
			Verbose: cfg.Logger.Verbose,
		},
		logger.SentryConfig{
			Enabled:     cfg.Sentry.Enabled,
			DSN:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		},
	)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting datacube-explorer",
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("version", version),
	)

	loc, err := cfg.Search.Location()
	if err != nil {
		log.Fatal("invalid search configuration", zap.Error(err))
	}

	var m *metrics.Provider
	if cfg.Metrics.Enabled {
		m = metrics.Init(metrics.Config{Enabled: true, Path: cfg.Metrics.Path, Version: version})
	}

	ctx := context.Background()

	// Record source
	store, closeStore := openIndex(ctx, cfg, log.Logger)
	defer closeStore()

	if cfg.Index.SeedFixture {
		if err := memory.SeedFixture(ctx, store); err != nil {
			log.Fatal("failed to seed fixture", zap.Error(err))
		}
		log.Info("fixture datasets loaded", zap.Int("count", memory.FixtureTotal))
	}

	// Redis backs the summary cache and the scheduler lock
	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.Sync.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr()))
	}

	var cache domain.Cache
	if cfg.Cache.Enabled {
		cache = rediscache.NewCache(redisClient, log.Logger, cfg.Cache.KeyPrefix)
		log.Info("summary cache enabled",
			zap.Duration("summary_ttl", cfg.Cache.SummaryTTL),
			zap.String("key_prefix", cfg.Cache.KeyPrefix),
		)
	} else {
		log.Info("summary cache disabled")
	}

	// Search pipeline
	catalog := catalogcache.New(store, cfg.Catalog.LRUSize, cfg.Catalog.LRUTTL)
	resolver := search.NewResolver(catalog, search.ResolverConfig{
		DefaultLimit: cfg.Search.DefaultPageSize,
		MaxLimit:     cfg.Search.MaxPageSize,
		Location:     loc,
	})
	if cfg.Cursor.Secret == "" {
		log.Warn("cursor.secret is empty; cursors will not survive a restart or work across replicas")
	}
	codec, err := search.NewCursorCodec(cfg.Cursor.Secret, cfg.Cursor.TTL)
	if err != nil {
		log.Fatal("failed to create cursor codec", zap.Error(err))
	}
	paginator := search.NewPaginator(store, codec, resolver, m, log.Logger)

	links := stac.NewLinks(cfg.App.BaseURL)
	summaries := service.NewSummaryService(store, cache, cfg.Cache.SummaryTTL, m, log.Logger)
	searchSvc := service.NewSearchService(
		store,
		catalog,
		resolver,
		paginator,
		stac.NewFormatter(links, log.Logger),
		links,
		summaries,
		service.CatalogInfo{Title: cfg.App.Title, Description: cfg.App.Description},
		log.Logger,
	)

	outliner, err := region.NewCoder(cfg.Overview.OutlineResolution)
	if err != nil {
		log.Fatal("invalid outline resolution", zap.Error(err))
	}
	overviewSvc := service.NewOverviewService(
		store,
		catalog,
		outliner,
		service.OverviewConfig{
			Location:      loc,
			MaxFootprints: cfg.Overview.MaxFootprints,
		},
		log.Logger,
	)

	// Ingest
	coder, err := region.NewCoder(cfg.Sync.RegionResolution)
	if err != nil {
		log.Fatal("invalid region resolution", zap.Error(err))
	}
	syncSvc := service.NewSyncService(
		store,
		registry.NewProviders(cfg.Provider, log.Logger),
		log.Logger,
		service.WithSummaries(summaries),
		service.WithCatalog(catalog),
		service.WithRegionCoder(coder),
		service.WithBatchSize(cfg.Sync.BatchSize),
		service.WithMetrics(m),
	)

	// Create HTTP server
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Port:        cfg.App.Port,
			BodyLimit:   1024 * 1024, // 1MB
			Debug:       cfg.App.Debug,
			BaseURL:     cfg.App.BaseURL,
			Location:    loc,
			MetricsPath: metricsPath,
		},
		searchSvc,
		overviewSvc,
		syncSvc,
		store,
		validator.New(),
		m,
		log.Logger,
	)

	// Start sync scheduler with distributed locking
	var scheduler *job.SyncScheduler
	if cfg.Sync.Enabled {
		scheduler = job.NewSyncScheduler(
			syncSvc,
			job.SyncConfig{
				Interval:  cfg.Sync.Interval,
				Timeout:   cfg.Sync.Timeout,
				OnStartup: cfg.Sync.OnStartup,
			},
			log.Logger,
			locker.NewRedisLocker(redisClient, cfg.Cache.KeyPrefix, log.Logger),
		)
		scheduler.Start(cfg.Sync.OnStartup)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutdown signal received")

		if scheduler != nil {
			scheduler.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.App.ShutdownWithContext(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
	}()

	// Start server
	if err := server.Start(cfg.App.Port); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

// openIndex connects the configured record source backend and returns a
// function releasing it.
func openIndex(ctx context.Context, cfg *config.Config, log *zap.Logger) (indexStore, func()) {
	if cfg.Index.Backend == "memory" {
		log.Info("using in-memory index")
		return memory.NewStore(), func() {}
	}

	db, err := postgres.NewConnection(
		postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			Name:         cfg.Database.Name,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			MaxLifetime:  cfg.Database.MaxLifetime,
			Debug:        cfg.App.Debug,
		},
		log,
	)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := migrations.Run(db); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("database migrations completed")

	repo := postgres.NewRepository(db)
	if err := repo.Ping(ctx); err != nil {
		log.Fatal("database not reachable", zap.Error(err))
	}

	return repo, func() { _ = postgres.Close(db) }
}
