package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/infrastructure/cache"
	"github.com/afp/backend/internal/infrastructure/config"
	"github.com/afp/backend/internal/infrastructure/event"
	"github.com/afp/backend/internal/infrastructure/logger"
	"github.com/afp/backend/internal/infrastructure/migration"
	"github.com/afp/backend/internal/infrastructure/persistence"
	"github.com/afp/backend/internal/infrastructure/persistence/memory"
	"github.com/afp/backend/internal/infrastructure/storage"
	"github.com/afp/backend/internal/infrastructure/telemetry"
	"github.com/afp/backend/internal/infrastructure/trigger"
	"github.com/afp/backend/internal/interfaces/http/handler"
	"github.com/afp/backend/internal/interfaces/http/middleware"
	"github.com/afp/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// backends groups the stores selected by database.driver
type backends struct {
	scope   appcert.TransactionScope
	ledgers *appcert.LedgerService
	records *appcert.RecordService
	health  handler.Pinger
	close   func() error
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("failed to read .env: " + err.Error())
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting certification service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := mp.Meter("afp-certifier")

	stores, err := openBackends(cfg, log, mp)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}

	objects, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	guard, err := cache.NewFileGuardFactory(cfg.Redis, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		log.Fatal("Failed to initialize in-flight guard", zap.Error(err))
	}

	var publisher appcert.EventPublisher = event.NewLogPublisher(log)
	var kafka *event.KafkaPublisher
	if cfg.Events.KafkaEnabled {
		kafka = event.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		publisher = kafka
		log.Info("Publishing file events to Kafka",
			zap.Strings("brokers", cfg.Events.KafkaBrokers),
			zap.String("topic", cfg.Events.KafkaTopic))
	}

	metrics, err := telemetry.NewCertificationMetrics(meter)
	if err != nil {
		log.Fatal("Failed to initialize certification metrics", zap.Error(err))
	}

	batch := appcert.NewBatchService(stores.scope, log,
		appcert.WithInFlightGuard(guard),
		appcert.WithEventPublisher(publisher),
		appcert.WithMetrics(metrics),
		appcert.WithFileTimeout(cfg.Certification.FileTimeout),
	)
	uploads := appcert.NewUploadService(objects, cfg.Storage.IncomingPrefix)

	admin := middleware.AdminAuth(middleware.AdminAuthConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		Logger: log,
	})
	if cfg.Auth.JWTSecret == "" {
		log.Warn("No JWT secret configured, admin routes are unauthenticated")
	}

	engine := router.New(router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		MaxBodyBytes:   cfg.HTTP.MaxUploadSize,
		CORS: middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
			MaxAge:       12 * time.Hour,
		},
	}, log, handler.NewHealthHandler(stores.health)).
		Register(handler.NewUploadHandler(uploads)).
		Register(handler.NewCertificationHandler(batch, admin)).
		Register(handler.NewRecordHandler(stores.records)).
		Register(handler.NewLedgerHandler(stores.ledgers, admin)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	var poller *trigger.ArrivalPoller
	if cfg.Trigger.Enabled {
		poller = trigger.NewArrivalPoller(trigger.PollerConfig{
			Schedule:           cfg.Trigger.Schedule,
			TimeZone:           cfg.Trigger.TimeZone,
			MaxConcurrentFiles: cfg.Trigger.MaxConcurrentFiles,
			IncomingPrefix:     cfg.Storage.IncomingPrefix,
			ProcessedPrefix:    cfg.Storage.ProcessedPrefix,
			SkippedPrefix:      cfg.Storage.SkippedPrefix,
		}, objects, batch, log)
		if err := poller.Start(ctx); err != nil {
			log.Fatal("Failed to start arrival poller", zap.Error(err))
		}
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// In-progress files finish before their ledgers go away.
	if poller != nil {
		if err := poller.Stop(shutdownCtx); err != nil {
			log.Error("Arrival poller did not stop cleanly", zap.Error(err))
		}
	}
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			log.Error("Failed to close Kafka writer", zap.Error(err))
		}
	}
	if closer, ok := guard.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error("Failed to close in-flight guard", zap.Error(err))
		}
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush metrics", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}
	if err := stores.close(); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// openBackends connects the ledger and record stores for database.driver
func openBackends(cfg *config.Config, log *zap.Logger, mp *telemetry.MeterProvider) (*backends, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("Using in-memory ledgers, data is lost on restart")
		store := memory.NewStore(cfg.Certification.LockTimeout)
		return &backends{
			scope:   store,
			ledgers: appcert.NewLedgerService(store),
			records: appcert.NewRecordService(store),
			close:   func() error { return nil },
		}, nil
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	tracing := telemetry.DefaultDBTracingConfig()
	tracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		tracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}
	if err := telemetry.NewDBTracingPlugin(tracing, log).Register(db.DB); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, err
	}
	if _, err := telemetry.RegisterDBPoolMetrics(mp.Meter("afp-certifier/db"), sqlDB); err != nil {
		log.Warn("Failed to register connection pool metrics", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		m, err := migration.New(sqlDB, cfg.Database.MigrationsPath, log)
		if err != nil {
			return nil, err
		}
		if err := m.Up(); err != nil {
			return nil, err
		}
		// Closing the migrator would close the shared pool.
	}

	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	return &backends{
		scope:   persistence.NewGormTransactionScope(db.DB, cfg.Certification.LockTimeout),
		ledgers: appcert.NewLedgerService(ledgerRepo),
		records: appcert.NewRecordService(persistence.NewGormRecordRepository(db.DB)),
		health:  db,
		close:   db.Close,
	}, nil
}

// openStorage connects the claim file bucket for storage.driver
func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (appcert.ObjectStorage, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("Using in-memory object storage")
		return storage.NewMemoryObjectStorage(), nil
	}
	s3, err := storage.NewS3ObjectStorage(ctx, &cfg.Storage, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3, nil
}
