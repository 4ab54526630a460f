package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appallocation "github.com/erp/allocation/internal/application/allocation"
	"github.com/erp/allocation/internal/infrastructure/config"
	"github.com/erp/allocation/internal/infrastructure/event"
	"github.com/erp/allocation/internal/infrastructure/logger"
	"github.com/erp/allocation/internal/infrastructure/persistence"
	"github.com/erp/allocation/internal/infrastructure/telemetry"
	"github.com/erp/allocation/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (default: search for config.toml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	// OTLP log export tees into the zap core, so build it before anything logs much
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log = logProvider.Bridge(log, logger.ParseLevel(cfg.Telemetry.LogsLevel))

	log.Info("Starting allocation service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: cfg.App.Name,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles unavailable", zap.Error(err))
		}
	}
	traceCfg := tracerProvider.GetConfig()
	log.Info("Telemetry configured",
		zap.Bool("tracing", tracerProvider.IsEnabled()),
		zap.Float64("sampling_ratio", traceCfg.SamplingRatio),
		zap.String("collector", traceCfg.CollectorEndpoint),
		zap.Bool("metrics", meterProvider.IsEnabled()),
		zap.Bool("span_profiles", tracerProvider.IsSpanProfilesEnabled()),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully",
		zap.String("host", cfg.Database.Host),
		zap.String("isolation_level", cfg.Database.IsolationLevel),
	)

	dbTracingCfg := telemetry.DefaultDBTracingConfig()
	dbTracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	dbTracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	dbTracing := telemetry.NewDBTracingPlugin(dbTracingCfg, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	uowFactory := persistence.NewGormUnitOfWorkFactory(db.DB,
		persistence.WithIsolationLevel(persistence.ParseIsolationLevel(cfg.Database.IsolationLevel)),
		persistence.WithLogger(log),
	)

	eventBus := event.NewInMemoryEventBus(log)
	var forwarder *event.RedisEventForwarder
	if cfg.Redis.Enabled {
		forwarder, err = event.NewRedisEventForwarder(event.RedisConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, event.WithChannelPrefix(cfg.Redis.ChannelPrefix), event.WithForwarderLogger(log))
		if err != nil {
			log.Fatal("Failed to connect event forwarder", zap.Error(err))
		}
		eventBus.Subscribe(forwarder)
		log.Info("Redis event forwarding enabled",
			zap.String("addr", cfg.Redis.Addr()),
			zap.String("channel_prefix", cfg.Redis.ChannelPrefix),
		)
	}

	meter := meterProvider.Meter("allocation")
	allocationMetrics, err := telemetry.NewAllocationMetrics(meter, log)
	if err != nil {
		log.Fatal("Failed to create allocation metrics", zap.Error(err))
	}

	service := appallocation.NewService(uowFactory, log)
	service.SetEventPublisher(eventBus)
	service.SetAllocationMetrics(allocationMetrics)

	mode := gin.DebugMode
	if cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}
	engine := router.NewEngine(router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		Mode:           mode,
		TracingEnabled: tracerProvider.IsEnabled(),
		Meter:          meter,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		Logger:         log,
		Allocations:    service,
		DB:             db,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Reverse order of construction; the log exporter goes last so the
	// messages above still get shipped.
	if forwarder != nil {
		if err := forwarder.Close(); err != nil {
			log.Error("Error closing event forwarder", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := meterProvider.Shutdown(flushCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(flushCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	if err := logProvider.Shutdown(flushCtx); err != nil {
		log.Error("Error shutting down log exporter", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}
