package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"storefront/internal/config"
	httpapi "storefront/internal/http"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/internal/service"

	_ "storefront/docs"
)

// @title Storefront API
// @version 1.0
// @description Storefront view: catalog, cart, discount codes and admin panel over the shop backend.
// @host localhost:9091
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Options{ServiceName: "storefront"})
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})
	if !cfg.App.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gateway, err := newGateway(cfg, log, metrics.NewGatewayMetrics(reg))
	if err != nil {
		log.Fatal().Err(err).Msg("backend setup failed")
	}

	sf := service.NewStorefront(gateway, service.WithLogger(log))
	srv := httpapi.NewServer(sf, log, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// first render shows the loading state until this completes
	go func() {
		if err := sf.Load(logger.WithLogger(ctx, log)); err != nil {
			log.Error().Err(err).Msg("initial load failed")
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.App.Addr,
		Handler: srv.Engine(),
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("backend", cfg.Backend.Mode).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		return
	}
	log.Info().Msg("server stopped")
}

// newGateway выбирает источник данных по STOREFRONT_BACKEND_MODE
func newGateway(cfg *config.Config, log zerolog.Logger, m *metrics.GatewayMetrics) (repository.Gateway, error) {
	if cfg.Backend.Mode != config.BackendMemory {
		return repository.NewClient(cfg.Backend.APIURL,
			repository.WithLogger(log),
			repository.WithMetrics(m),
		), nil
	}
	mem := repository.NewMemoryBackend()
	for _, it := range repository.SeedCatalog() {
		if err := mem.CreateItem(context.Background(), &it); err != nil {
			return nil, err
		}
	}
	log.Warn().Msg("using in-memory backend; data is lost on restart")
	return mem, nil
}
