package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/weatherdesk/weather-record-service/internal/client"
	"github.com/weatherdesk/weather-record-service/internal/config"
	httphandler "github.com/weatherdesk/weather-record-service/internal/http"
	"github.com/weatherdesk/weather-record-service/internal/lifecycle"
	"github.com/weatherdesk/weather-record-service/internal/observability"
	"github.com/weatherdesk/weather-record-service/internal/service"
	"github.com/weatherdesk/weather-record-service/internal/store"
	"github.com/weatherdesk/weather-record-service/internal/traffic"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.WeatherAPIKey == "" {
		logger.Warn("WEATHERSTACK_API_KEY not set; POST /weather will fail with a configuration error")
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		ServiceName: cfg.TracingServiceName,
	})
	if err != nil {
		logger.Fatal("tracing", zap.Error(err))
	}
	if cfg.TracingEnabled {
		logger.Info("tracing enabled", zap.String("endpoint", cfg.TracingEndpoint))
	}

	weatherClient, err := client.NewWeatherstackClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	var recordStore store.RecordStore
	var memcachedStore *store.MemcachedStore
	switch cfg.StoreBackend {
	case config.StoreBackendMemcached:
		mc, err := store.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached store", zap.Error(err))
		}
		memcachedStore = mc
		recordStore = store.Instrument(mc, config.StoreBackendMemcached)
		logger.Info("store backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		recordStore = store.Instrument(store.NewMemoryStore(), config.StoreBackendInMemory)
		logger.Info("store backend: in_memory")
	}

	tracker := traffic.NewTracker(cfg.DegradedWindow)
	records := service.NewRecordService(weatherClient, recordStore, tracker)

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		Version:          version,
	}
	if memcachedStore != nil {
		healthConfig.StorePing = memcachedStore.Ping
	}

	state := &lifecycle.State{}
	handler := httphandler.NewHandler(records, weatherClient, state, tracker, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.Strings("cors_allowed_origins", cfg.CORSAllowedOrigins))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	state.MarkReady()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	state.MarkShuttingDown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := observability.FlushTelemetry(flushCtx, logger, shutdownTracing); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcachedStore != nil {
		if err := memcachedStore.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
