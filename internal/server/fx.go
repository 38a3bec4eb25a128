// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-prerender/internal/analytics"
	"github.com/JakeFAU/jobboard-prerender/internal/analytics/sinks"
	"github.com/JakeFAU/jobboard-prerender/internal/api"
	"github.com/JakeFAU/jobboard-prerender/internal/clock"
	"github.com/JakeFAU/jobboard-prerender/internal/clock/system"
	"github.com/JakeFAU/jobboard-prerender/internal/config"
	"github.com/JakeFAU/jobboard-prerender/internal/gone"
	"github.com/JakeFAU/jobboard-prerender/internal/hash/sha256"
	"github.com/JakeFAU/jobboard-prerender/internal/id/uuid"
	"github.com/JakeFAU/jobboard-prerender/internal/logging"
	"github.com/JakeFAU/jobboard-prerender/internal/lookup"
	"github.com/JakeFAU/jobboard-prerender/internal/policy/ratelimit"
	"github.com/JakeFAU/jobboard-prerender/internal/prerender"
	"github.com/JakeFAU/jobboard-prerender/internal/refresh"
	"github.com/JakeFAU/jobboard-prerender/internal/render"
	"github.com/JakeFAU/jobboard-prerender/internal/spa"
	"github.com/JakeFAU/jobboard-prerender/internal/storage/memory"
	pgstore "github.com/JakeFAU/jobboard-prerender/internal/storage/postgres"
	"github.com/JakeFAU/jobboard-prerender/internal/storage/rest"
	"github.com/JakeFAU/jobboard-prerender/internal/store"
	"github.com/JakeFAU/jobboard-prerender/internal/telemetry"
	"github.com/JakeFAU/jobboard-prerender/internal/tracking"
)

// defaultHTTPTimeout bounds outbound datastore and gone-list requests when
// no timeout is configured.
const defaultHTTPTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	clock        clock.Clock
	apiServer    *api.Server
	hub          *analytics.Hub
	warmer       *refresh.Warmer
	pgStore      *pgstore.Store
	pubsubClient *pubsub.Client
	storage      *storage.Client
	redis        *redis.Client
	tracer       *sdktrace.TracerProvider
	httpClient   *http.Client
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Only non-sensitive fields are logged.
	type SanitizedConfig struct {
		ServerPort int      `json:"server_port"`
		BaseURL    string   `json:"base_url"`
		Backend    string   `json:"datastore_backend"`
		Sinks      []string `json:"analytics_sinks"`
	}
	safeCfg := SanitizedConfig{
		ServerPort: cfg.Server.Port,
		BaseURL:    cfg.Site.BaseURL,
		Backend:    cfg.Datastore.Backend,
		Sinks:      cfg.Analytics.Sinks,
	}
	logger.Info("Creating application", zap.Any("config", safeCfg))
	timeout := cfg.Datastore.REST.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &App{
		cfg:        cfg,
		logger:     logger,
		clock:      system.New(),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Handler exposes the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.warmer != nil {
		if err := a.warmer.Start(ctx); err != nil {
			return fmt.Errorf("start refresh: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.warmer != nil {
		if err := a.warmer.Stop(ctx); err != nil {
			a.logger.Warn("refresh stop failed", zap.Error(err))
		}
	}
	// The hub closes its sinks, so it goes before the clients they use.
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("analytics hub close failed", zap.Error(err))
		}
	}
	a.closeInfrastructure()
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer provider shutdown failed", zap.Error(err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		Service:     cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	app.logger.Info("building application dependencies")

	if cfg.Telemetry.Enabled {
		app.tracer, err = telemetry.InitTracerProvider(ctx, telemetry.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Version:     cfg.Telemetry.Version,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("telemetry init failed: %w", err)
		}
	}

	jobs, visits, err := setupDatastore(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	goneCache, err := setupGone(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	app.hub, err = setupAnalytics(ctx, app, visits)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	renderer := render.New(render.Config{
		BaseURL:      cfg.Site.BaseURL,
		SiteName:     cfg.Site.Name,
		TrackingPath: cfg.Tracking.Path,
	})
	var finder prerender.Finder
	if jobs != nil {
		finder = lookup.Default(jobs, logger.Named("lookup"))
	}
	configured := jobs != nil && cfg.DatastoreConfigured()
	if !configured {
		app.logger.Warn("datastore credentials missing; crawlers will get configuration errors",
			zap.String("backend", cfg.Datastore.Backend))
	}
	handler := prerender.New(prerender.Config{
		Renderer:       renderer,
		Finder:         finder,
		Jobs:           jobs,
		Gone:           goneCache,
		Configured:     func() bool { return configured },
		DedupWindow:    cfg.Dedup.Window,
		HomepageTTL:    cfg.Homepage.TTL,
		HomepageLimit:  cfg.Homepage.Limit,
		ProviderHeader: cfg.Cache.ProviderHeader,
		Tagger:         sha256.New(),
		Emitter:        app.hub,
		Clock:          app.clock,
		Logger:         logger.Named("prerender"),
	})

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Tracking.RPS,
		DefaultBurst: cfg.Tracking.Burst,
	})
	pixel := tracking.NewHandler(app.hub, limiter, logger.Named("tracking"))

	fallback, err := spa.New(spa.Config{Origin: cfg.SPA.Origin, Dir: cfg.SPA.Dir}, logger.Named("spa"))
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("spa init failed: %w", err)
	}

	app.apiServer = api.NewServer(api.Options{
		Prerender:      handler,
		Renderer:       renderer,
		Gone:           goneCache,
		GoneAllTraffic: cfg.Gone.AllTraffic,
		Pixel:          pixel,
		TrackingPath:   cfg.Tracking.Path,
		Fallback:       fallback,
		IDs:            uuid.New(),
		Clock:          app.clock,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger.Named("api"),
	})

	if cfg.Refresh.Enabled {
		tasks := []refresh.Task{{Name: "gone_list", Run: goneCache.Refresh}}
		if configured {
			tasks = append(tasks, refresh.Task{Name: "homepage", Run: handler.RefreshHomepage})
		}
		app.warmer = refresh.New(cfg.Refresh.Spec, logger.Named("refresh"), tasks...)
	}
	return app, nil
}

// setupDatastore returns the job reader and visit writer for the configured
// backend. jobs is nil when the backend cannot be reached for lack of
// credentials.
func setupDatastore(ctx context.Context, app *App) (store.Jobs, store.VisitWriter, error) {
	cfg := app.cfg.Datastore
	switch cfg.Backend {
	case config.BackendPostgres:
		if cfg.Postgres.DSN == "" {
			app.logger.Warn("No DSN specified for postgres datastore")
			return nil, nil, nil
		}
		var err error
		app.pgStore, err = pgstore.New(ctx, pgstore.Config{
			DSN:             cfg.Postgres.DSN,
			JobsTable:       cfg.Postgres.JobsTable,
			VisitsTable:     cfg.Postgres.VisitsTable,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		app.logger.Info("using postgres datastore", zap.String("table", cfg.Postgres.JobsTable))
		return app.pgStore, app.pgStore, nil
	case config.BackendMemory:
		jobs := memory.NewJobStore()
		if cfg.SeedFile != "" {
			var err error
			if jobs, err = memory.LoadFile(cfg.SeedFile); err != nil {
				return nil, nil, fmt.Errorf("memory store seed failed: %w", err)
			}
		}
		app.logger.Info("using in-memory datastore", zap.String("seed_file", cfg.SeedFile))
		return jobs, jobs, nil
	default:
		client, err := rest.New(rest.Config{
			URL:         cfg.REST.URL,
			Key:         cfg.REST.Key,
			Table:       cfg.REST.Table,
			VisitsTable: cfg.REST.VisitsTable,
			Timeout:     cfg.REST.Timeout,
		}, app.httpClient)
		if err != nil {
			return nil, nil, fmt.Errorf("rest datastore init failed: %w", err)
		}
		app.logger.Info("using rest datastore",
			zap.String("table", cfg.REST.Table), zap.Bool("configured", client.Configured()))
		return client, client, nil
	}
}

func setupGone(ctx context.Context, app *App) (*gone.Cache, error) {
	location := app.cfg.GoneSource()
	if gone.IsGCS(location) {
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
	}
	src, err := gone.NewSource(location, app.storage, app.httpClient)
	if err != nil {
		return nil, fmt.Errorf("gone source init failed: %w", err)
	}
	app.logger.Info("gone list source", zap.String("source", src.String()), zap.Duration("ttl", app.cfg.Gone.TTL))
	return gone.NewCache(src, gone.CacheConfig{
		TTL:    app.cfg.Gone.TTL,
		Clock:  app.clock,
		Logger: app.logger.Named("gone"),
	}), nil
}

func setupAnalytics(ctx context.Context, app *App, visits store.VisitWriter) (*analytics.Hub, error) {
	cfg := app.cfg
	var sinkList []analytics.Sink
	for _, name := range cfg.Analytics.Sinks {
		switch name {
		case config.SinkLog:
			sinkList = append(sinkList, sinks.NewLogSink(app.logger.Named("visits")))
		case config.SinkDatastore:
			if visits == nil {
				app.logger.Warn("datastore visit sink requested without a datastore, skipping")
				continue
			}
			// Only pixel hits are stored so a prerendered page and the
			// pixel it embeds do not count the same visit twice.
			sinkList = append(sinkList, sinks.NewVisitSink(visits, analytics.SourcePixel))
		case config.SinkPubSub:
			var err error
			app.pubsubClient, err = pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
			if err != nil {
				return nil, fmt.Errorf("pubsub client init failed: %w", err)
			}
			sinkList = append(sinkList, sinks.NewPubSubSink(app.pubsubClient.Topic(cfg.PubSub.TopicName)))
			app.logger.Info("Pub/Sub visit sink initialized",
				zap.String("project", cfg.PubSub.ProjectID), zap.String("topic", cfg.PubSub.TopicName))
		case config.SinkRedis:
			app.redis = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			sinkList = append(sinkList, sinks.NewRedisSink(app.redis, cfg.Redis.Stream, cfg.Redis.MaxLen))
			app.logger.Info("redis visit sink initialized",
				zap.String("addr", cfg.Redis.Addr), zap.String("stream", cfg.Redis.Stream))
		}
	}
	hubCfg := analytics.Config{
		BufferSize:     cfg.Analytics.BufferSize,
		MaxBatchEvents: cfg.Analytics.BatchSize,
		MaxBatchWait:   cfg.Analytics.BatchWait,
		SinkTimeout:    cfg.Analytics.SinkTimeout,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         app.logger.Named("analytics_hub"),
		IDs:            uuid.New(),
		Clock:          app.clock,
	}
	hub := analytics.NewHub(hubCfg, sinkList...)
	app.logger.Info("analytics hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return hub, nil
}
