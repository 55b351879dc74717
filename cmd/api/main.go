package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/safar/koloa-ledger/internal/api"
	"github.com/safar/koloa-ledger/internal/authz"
	"github.com/safar/koloa-ledger/internal/config"
	"github.com/safar/koloa-ledger/internal/database"
	"github.com/safar/koloa-ledger/internal/logging"
	"github.com/safar/koloa-ledger/internal/metrics"
	"github.com/safar/koloa-ledger/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("connected to database")

	router := api.NewRouter(api.RouterParams{
		Backend: store.New(db),
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics.New(),
		Policy:  authz.DefaultPolicy(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", slog.String("port", cfg.Server.Port), slog.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
