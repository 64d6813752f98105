package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/bookineo/bookineo/pkg/database"
	"github.com/bookineo/bookineo/pkg/health"
	pkgkafka "github.com/bookineo/bookineo/pkg/kafka"
	"github.com/bookineo/bookineo/pkg/middleware"
	"github.com/bookineo/bookineo/pkg/tracing"
	"github.com/bookineo/bookineo/services/api/internal/auth"
	"github.com/bookineo/bookineo/services/api/internal/config"
	"github.com/bookineo/bookineo/services/api/internal/event"
	handler "github.com/bookineo/bookineo/services/api/internal/handler/http"
	"github.com/bookineo/bookineo/services/api/internal/repository"
	"github.com/bookineo/bookineo/services/api/internal/repository/cache"
	"github.com/bookineo/bookineo/services/api/internal/repository/postgres"
	"github.com/bookineo/bookineo/services/api/internal/service"
	"github.com/bookineo/bookineo/services/api/internal/storage"
	"github.com/bookineo/bookineo/services/api/internal/storage/memory"
	s3storage "github.com/bookineo/bookineo/services/api/internal/storage/s3"
	"github.com/bookineo/bookineo/services/api/migrations"
)

// App wires together all dependencies and runs the API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	stopBackground context.CancelFunc
	tracerShutdown func(context.Context) error
}

type blobStores struct {
	images  storage.Storage
	avatars storage.Storage
	media   http.Handler
	ping    health.Checker
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "bookineo-api",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	if err := a.wire(ctx); err != nil {
		// Release whatever was opened before the failure.
		_ = a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// PostgreSQL.
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.URL = cfg.DatabaseURL
	pgCfg.MaxConns = cfg.DBMaxConns
	pgCfg.MinConns = cfg.DBMinConns

	pool, err := database.NewPostgresPool(ctx, pgCfg, logger)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL")

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "api"); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	// Redis backs the box cache and consumer idempotency.
	var boxCache repository.BoxCache = cache.NopBoxCache{}
	var idempotency pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(24 * time.Hour)
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = rdb
		boxCache = cache.NewBoxCache(rdb, cfg.BoxCacheTTL)
		idempotency = pkgkafka.NewRedisIdempotencyStore(rdb, "bookineo:cleanup:", 24*time.Hour)
		logger.Info("connected to Redis", slog.Duration("box_cache_ttl", cfg.BoxCacheTTL))
	}

	// Object storage.
	blobs, err := newBlobStores(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("object storage initialized", slog.String("driver", cfg.StorageDriver))

	// Events. Without brokers, cleanup events are handled in process.
	cleanup := event.NewCleanupConsumer(blobs.images, blobs.avatars, logger)
	cleanupHandler := pkgkafka.IdempotentHandler(idempotency, cleanup.Handle, logger)

	var publisher pkgkafka.Publisher
	if cfg.KafkaEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		publisher = a.producer

		for _, topic := range cleanup.Topics() {
			a.consumers = append(a.consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  cfg.CleanupConsumerGroup,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6,
			}, cleanupHandler, logger, pkgkafka.WithDLQ(a.dlq)))
		}
		logger.Info("kafka initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Int("consumers", len(a.consumers)),
		)
	} else {
		publisher = event.NewInlinePublisher(cleanupHandler, cleanup.Topics(), logger)
		logger.Info("kafka disabled, handling cleanup events in process")
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewRefreshTokenRepository(pool)
	boxRepo := postgres.NewBoxRepository(pool)
	favoriteRepo := postgres.NewFavoriteRepository(pool)
	visitRepo := postgres.NewVisitRepository(pool)

	svcs := handler.Services{
		Auth:      service.NewAuthService(userRepo, tokenRepo, jwtManager, eventProducer, logger),
		Users:     service.NewUserService(userRepo, boxRepo, visitRepo, tokenRepo, boxCache, blobs.avatars, eventProducer, logger),
		Boxes:     service.NewBoxService(boxRepo, userRepo, boxCache, blobs.images, eventProducer, logger),
		Favorites: service.NewFavoriteService(favoriteRepo, eventProducer, logger),
		Visits:    service.NewVisitService(visitRepo, userRepo, eventProducer, logger),
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if a.redis != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}
	if blobs.ping != nil {
		healthHandler.RegisterNonCritical("storage", blobs.ping)
	}

	// HTTP router.
	bgCtx, stop := context.WithCancel(context.Background())
	a.stopBackground = stop

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	router := handler.NewRouter(bgCtx, svcs, jwtManager, healthHandler, logger, handler.RouterConfig{
		CORS:           cors,
		AuthRateRPS:    cfg.AuthRateLimitRPS,
		AuthRateBurst:  cfg.AuthRateLimitBurst,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Media:          blobs.media,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func newBlobStores(ctx context.Context, cfg *config.Config) (*blobStores, error) {
	if cfg.StorageDriver == "memory" {
		mem := memory.New(cfg.PublicBaseURL)
		return &blobStores{images: mem, avatars: mem, media: handler.MediaHandler(mem)}, nil
	}

	s3cfg := s3storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	}
	client, err := s3storage.NewClient(ctx, s3cfg)
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	boxCfg, avatarCfg := s3cfg, s3cfg
	boxCfg.Bucket = cfg.S3BoxBucket
	avatarCfg.Bucket = cfg.S3AvatarBucket
	images := s3storage.New(client, boxCfg)
	avatars := s3storage.New(client, avatarCfg)

	return &blobStores{
		images:  images,
		avatars: avatars,
		ping: func(ctx context.Context) error {
			return errors.Join(images.Ping(ctx), avatars.Ping(ctx))
		},
	}, nil
}

// Run starts the HTTP server and the cleanup consumers, blocking until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown drains HTTP traffic, then flushes spans and closes clients.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error

	if a.stopBackground != nil {
		a.stopBackground()
	}
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
