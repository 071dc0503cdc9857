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

	"uph-engine/internal/config"
	"uph-engine/internal/scheduler"
	generate_excel "uph-engine/internal/service/generate-excel"
	"uph-engine/internal/service/recompute"
	"uph-engine/internal/service/uph"
	"uph-engine/internal/storage/mysql"
)

func main() {
	cfg := config.MustConfig()

	log := setupLogger(cfg.Env, cfg.Log.ErrorFile)

	storage, err := mysql.New(cfg.Storage)
	if err != nil {
		log.Error("failed to open db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	engine := uph.NewEngine(log, storage, storage, storage, uph.MethodologyFromConfig(cfg.Methodology), uph.Options{
		States:   cfg.Recompute.States,
		PageSize: cfg.Recompute.PageSize,
		Workers:  cfg.Recompute.Workers,
	})

	manager := recompute.NewManager(log, engine, storage, recompute.Options{
		Windows: cfg.Recompute.Windows,
		Timeout: cfg.Recompute.Timeout,
		History: cfg.Recompute.History,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Warm(ctx); err != nil {
		if errors.Is(err, mysql.ErrNoPublishedRun) {
			log.Info("no published uph results yet, waiting for the first recompute")
		} else {
			log.Warn("failed to load published results", slog.String("error", err.Error()))
		}
	}

	excelService := generate_excel.NewGenerateService(manager)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      routes(*cfg, log, manager, excelService),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Recompute.Schedule != "" {
		sched, err := scheduler.New(log, cfg.Recompute.Schedule, time.UTC, manager)
		if err != nil {
			log.Error("invalid recompute schedule", slog.String("error", err.Error()))
			os.Exit(1)
		}
		g.Go(func() error {
			sched.Run(gCtx)
			return nil
		})
	}

	g.Go(func() error {
		err := config.Watch(gCtx, log, config.Path(), func(c *config.Config) {
			engine.SetMethodology(uph.MethodologyFromConfig(c.Methodology))
		})
		if err != nil {
			log.Warn("config hot reload disabled", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		manager.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", slog.String("error", err.Error()))
		return
	}

	log.Info("server stopped")
}
