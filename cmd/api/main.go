package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tracelayer/tracking-api/internal/config"
	"github.com/tracelayer/tracking-api/internal/httpserver"
	"github.com/tracelayer/tracking-api/internal/logging"
	"github.com/tracelayer/tracking-api/internal/metrics"
	"github.com/tracelayer/tracking-api/internal/scheduler"
	"github.com/tracelayer/tracking-api/internal/segment"
)

// main boots the service: config → logger → Segment client → scheduler → HTTP server.
func main() {
	// A missing timezone is a startup failure: refuse to come up without one.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup failed:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.APIKey == "" {
		log.Warn().Msg("api_key is empty, every protected route will return 401")
	}

	m := metrics.New()

	fwd, err := segment.NewForwarder(cfg, log, m)
	if err != nil {
		log.Fatal().Err(err).Msg("segment client init failed")
	}
	svc := segment.NewService(fwd, log, m, cfg.SourceName)

	// Background worker draining deferred deliveries after each response.
	worker := scheduler.NewWorker(log)

	router := httpserver.NewRouter(cfg, svc, worker, m, log)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("env", cfg.Env).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	// Drain scheduled deliveries, then flush the Segment client.
	worker.Close()
	if err := fwd.Close(); err != nil {
		log.Error().Err(err).Msg("segment client close")
	}
}
