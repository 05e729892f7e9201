package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker/v2"
	eventapp "github.com/storefront/inventory/internal/application/event"
	appinv "github.com/storefront/inventory/internal/application/inventory"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/cache"
	"github.com/storefront/inventory/internal/infrastructure/config"
	"github.com/storefront/inventory/internal/infrastructure/event"
	"github.com/storefront/inventory/internal/infrastructure/logger"
	"github.com/storefront/inventory/internal/infrastructure/messaging"
	"github.com/storefront/inventory/internal/infrastructure/persistence"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
	"github.com/storefront/inventory/internal/infrastructure/scheduler"
	"github.com/storefront/inventory/internal/infrastructure/telemetry"
	"github.com/storefront/inventory/internal/interfaces/http/handler"
	"github.com/storefront/inventory/internal/interfaces/http/middleware"
	"github.com/storefront/inventory/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = baseLog.Sync() }()

	ctx := context.Background()
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}

	// OTLP log export wraps the base logger, so it comes first
	logsCfg := telemetryCfg
	logsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, logsCfg, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log := loggerProvider.Bridge(baseLog, logger.ParseLevel(cfg.Telemetry.LogsLevel))

	log.Info("Starting inventory service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", cfg.App.Version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	metricsCfg := telemetryCfg
	metricsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled
	meterProvider, err := telemetry.NewMeterProvider(ctx, metricsCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiler.Enabled,
		ServerAddress:     cfg.Profiler.ServerAddress,
		ApplicationName:   cfg.Profiler.ApplicationName,
		BasicAuthUser:     cfg.Profiler.BasicAuthUser,
		BasicAuthPassword: cfg.Profiler.BasicAuthPassword,
		ProfileMutex:      cfg.Profiler.ProfileMutex,
		ProfileBlock:      cfg.Profiler.ProfileBlock,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.GormLevel),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithLockWaitThreshold(cfg.Database.LockWaitWarn),
		logger.WithIgnoreRecordNotFoundError(true),
	)
	db, err := persistence.Open(ctx, &cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		if err := db.DB.AutoMigrate(models.AllModels()...); err != nil {
			log.Fatal("Auto-migration failed", zap.Error(err))
		}
		log.Warn("Schema auto-migrated; use cmd/migrate outside development")
	}

	// Events
	serializer := event.NewEventSerializer()
	event.RegisterInventoryEvents(serializer)
	outboxPublisher := event.NewOutboxPublisher(serializer, event.WithMaxRetries(cfg.Event.MaxRetries))
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	repos := persistence.NewRepositories(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB, outboxPublisher)

	var metrics appinv.Metrics = appinv.NoopMetrics{}
	if meterProvider.IsEnabled() {
		inventoryMetrics, err := telemetry.NewInventoryMetrics(
			meterProvider.Meter("inventory"),
			telemetry.GaugeSources{
				Reservations: repos.Reservations,
				Alerts:       repos.Alerts,
				Outbox:       outboxRepo,
			},
			log,
		)
		if err != nil {
			log.Error("Failed to register inventory metrics, continuing without them", zap.Error(err))
		} else {
			metrics = inventoryMetrics
			defer inventoryMetrics.Stop()
		}
	}

	// Application services
	monitor := appinv.NewAlertMonitor(cfg.Alert.LowStockThreshold, txScope, metrics, log)
	stockService := appinv.NewStockService(repos, txScope, monitor, metrics, log)
	reservationService := appinv.NewReservationService(repos, txScope, monitor, metrics, appinv.ReservationConfig{
		DefaultTTL: cfg.Reservation.DefaultTTL,
		MaxTTL:     cfg.Reservation.MaxTTL,
	}, log)
	expirationService := appinv.NewExpirationService(repos, txScope, monitor, metrics, cfg.Reservation.SweepBatchSize, log)
	movementService := appinv.NewMovementService(repos, log)
	alertService := appinv.NewAlertService(repos, txScope, log)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	stores, err := cache.NewStoreFactory(
		cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		cfg.Redis.Enabled,
		cache.WithLogger(log),
		cache.WithKeyPrefix(cfg.Redis.KeyPrefix),
	).Create(ctx)
	if err != nil {
		log.Fatal("Failed to create cache stores", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing cache stores", zap.Error(err))
		}
	}()

	eventBus := event.NewInMemoryEventBus(log)
	alertHandler := event.NewIdempotentHandler(
		appinv.NewAlertRaisedHandler(appinv.NewLoggingAlertNotifier(log), log),
		stores.Idempotency,
		log,
		event.WithHandlerName("alert-notifier"),
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Event.IdempotencyTTL,
			Enabled: true,
		}),
		event.WithMeter(meterProvider.Meter("inventory")),
	)
	eventBus.Subscribe(alertHandler, inventory.EventTypeAlertRaised)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	var sink event.OutboxSink = event.NewBusSink(eventBus, serializer)
	var kafkaSink *messaging.KafkaSink
	if cfg.Kafka.Enabled {
		kafkaCfg := messaging.KafkaConfig{
			Brokers:         cfg.Kafka.Brokers,
			Topic:           cfg.Kafka.Topic,
			BatchTimeout:    cfg.Kafka.BatchTimeout,
			WriteTimeout:    cfg.Kafka.WriteTimeout,
			BreakerFailures: cfg.Kafka.BreakerFailures,
			BreakerTimeout:  cfg.Kafka.BreakerTimeout,
		}
		kafkaSink = messaging.NewKafkaSink(messaging.NewKafkaWriter(kafkaCfg), kafkaCfg, log)
		sink = event.MultiSink{sink, kafkaSink}
		log.Info("Kafka outbox sink enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	var outboxProcessor *event.OutboxProcessor
	if cfg.Event.ProcessorEnabled {
		outboxProcessor = event.NewOutboxProcessor(outboxRepo, sink, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  cfg.Event.CleanupInterval,
		}, log)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	jobs := scheduler.NewScheduler(stores.Locker, log)
	if cfg.Reservation.SweepEnabled {
		if err := jobs.Register(scheduler.NewExpirySweepJob(expirationService, log), scheduler.JobConfig{
			Interval:   cfg.Reservation.SweepInterval,
			LockTTL:    cfg.Reservation.SweepLockTTL,
			RunOnStart: true,
		}); err != nil {
			log.Fatal("Failed to register expiry sweep", zap.Error(err))
		}
	}
	if err := jobs.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	secureCfg := middleware.DefaultSecurityConfig()
	secureCfg.HSTSEnabled = cfg.App.Env == "production"

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       cfg.Telemetry.MetricsEnabled,
		}),
		middleware.ProfilingWithConfig(middleware.ProfilingConfig{
			Enabled:   profiler.IsEnabled(),
			SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
		}),
		middleware.SecureWithConfig(secureCfg),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	checks := map[string]handler.HealthChecker{"database": db}
	if stores.Redis() {
		checks["redis"] = stores
	}
	if kafkaSink != nil {
		checks["kafka"] = breakerCheck{sink: kafkaSink}
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, checks)
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		r.Use(middleware.RateLimit(rateLimiter))
	}

	r.Register(router.NewRouteGroup("").GET("/ping", systemHandler.Ping))
	inventoryRoutes := router.NewInventoryRoutes(router.InventoryHandlers{
		Stock:        handler.NewStockHandler(stockService, movementService),
		Reservations: handler.NewReservationHandler(reservationService, expirationService),
		Movements:    handler.NewMovementHandler(movementService),
		Alerts:       handler.NewAlertHandler(alertService),
		Outbox:       handler.NewOutboxHandler(outboxService),
	})
	r.Register(inventoryRoutes).Setup()
	log.Debug("Inventory routes registered", zap.Strings("routes", inventoryRoutes.Routes()))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down server", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Stop intake first, then the background workers, then flush telemetry
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if rateLimiter != nil {
		rateLimiter.Stop()
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping scheduler", zap.Error(err))
	}
	if outboxProcessor != nil {
		if err := outboxProcessor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Error("Error closing Kafka writer", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		baseLog.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited")
}

// breakerCheck reports the Kafka sink unhealthy while its circuit breaker is open
type breakerCheck struct {
	sink *messaging.KafkaSink
}

func (b breakerCheck) Ping(context.Context) error {
	if state := b.sink.State(); state == gobreaker.StateOpen {
		return fmt.Errorf("circuit breaker %s", state)
	}
	return nil
}
