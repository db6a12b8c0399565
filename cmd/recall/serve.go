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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	chiTransport "github.com/kailas-cloud/recall/internal/transport/chi"
	captureuc "github.com/kailas-cloud/recall/internal/usecase/capture"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
)

func serveCMD(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *env)
		},
	}
}

func runServe(parent context.Context, env string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, env)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger
	defer func() { _ = logger.Sync() }()

	cc := a.cfg.Capture
	capture := captureuc.New(captureuc.Config{
		Command:     cc.Command,
		Args:        cc.Args,
		Workdir:     cc.Workdir,
		Artifact:    cc.Artifact,
		Probe:       time.Duration(cc.ProbeMS) * time.Millisecond,
		StopTimeout: time.Duration(cc.StopTimeoutSec) * time.Second,
	}, logger.Named("capture"))

	// Nil entries are skipped; avoid typed nil pointers in the map.
	deps := map[string]healthuc.Pinger{}
	if a.cache != nil {
		deps["cache"] = a.cache
	}
	if a.model != nil {
		deps["model"] = modelPinger{a.model}
	}
	health := healthuc.New(a.query, capture, a.cfg.Model.ModelID, deps)

	a.buildIndex(ctx)

	server := chiTransport.NewServer(a.query, health, capture, a.cfg.Index.DefaultTopK)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:     a.cfg.Auth.APIKeys,
		CORSOrigins: a.cfg.HTTP.CORSOrigins,
	}, logger)

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			capture.Shutdown(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// capture cleanup needs its own budget beyond the HTTP drain
	captureCtx, captureCancel := context.WithTimeout(context.Background(), 2*time.Duration(cc.StopTimeoutSec)*time.Second)
	defer captureCancel()
	capture.Shutdown(captureCtx)

	logger.Info("Server stopped gracefully")
	return nil
}

// modelPinger adapts a model health check to the health.Pinger interface.
type modelPinger struct {
	hc domain.HealthChecker
}

func (p modelPinger) Ping(ctx context.Context) error {
	if err := p.hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("model health check: %w", err)
	}
	return nil
}
