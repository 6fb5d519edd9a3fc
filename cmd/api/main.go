package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	apiconfig "dcf_valuation/pkg/api/config"
	"dcf_valuation/pkg/api/valuation"
	"dcf_valuation/pkg/core/config"
	"dcf_valuation/pkg/core/logging"
	"dcf_valuation/pkg/core/store"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runs, err := openRunStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rt := config.NewRuntime(cfg.Engine)
	mux := http.NewServeMux()
	valuation.NewHandler(rt, runs, logger, cfg.Server.CORSOrigin, cfg.Report.Currency).Register(mux)
	apiconfig.NewHandler(rt, logger).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.Int("horizon_years", cfg.Engine.HorizonYears),
			zap.Int("wacc_points", cfg.Engine.Grid.WACCPoints),
			zap.Int("growth_points", cfg.Engine.Grid.GrowthPoints),
		)
		logger.Info("routes",
			zap.Strings("endpoints", []string{
				"POST /api/dcf",
				"POST /api/dcf/report",
				"GET  /api/dcf/runs/{id}",
				"GET  /api/healthcheck",
				"GET  /api/config",
				"POST /api/config/grid",
			}),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRunStore picks Postgres when DATABASE_URL is set, a file store when a
// directory is configured, and no persistence otherwise.
func openRunStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*store.RunStore, error) {
	switch {
	case cfg.DatabaseURL != "":
		if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
			// Same fallback as an unreachable cache: keep serving without it.
			logger.Warn("database unavailable, falling back", zap.Error(err))
			if cfg.Dir == "" {
				return nil, nil
			}
			return store.NewRunStore(nil, cfg.Dir)
		}
		runs, err := store.NewRunStore(store.GetPool(), "")
		if err != nil {
			return nil, err
		}
		logger.Info("run persistence enabled", zap.String("backend", runs.Backend()))
		return runs, nil
	case cfg.Dir != "":
		runs, err := store.NewRunStore(nil, cfg.Dir)
		if err != nil {
			return nil, err
		}
		logger.Info("run persistence enabled", zap.String("backend", runs.Backend()))
		return runs, nil
	default:
		logger.Info("run persistence disabled")
		return nil, nil
	}
}
