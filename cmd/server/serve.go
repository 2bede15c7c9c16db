package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
	"github.com/mattfryer/bookstack-addon/internal/config"
	"github.com/mattfryer/bookstack-addon/internal/configsync"
	"github.com/mattfryer/bookstack-addon/internal/coordinator"
	httpapi "github.com/mattfryer/bookstack-addon/internal/http"
	"github.com/mattfryer/bookstack-addon/internal/http/handlers"
	"github.com/mattfryer/bookstack-addon/internal/model"
	"github.com/mattfryer/bookstack-addon/internal/service"
	"github.com/mattfryer/bookstack-addon/internal/storage"
)

func newBookStackClient(opts model.Options) (coordinator.API, error) {
	client, err := bookstack.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		return err
	}

	repo, err := storage.New(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		return err
	}
	defer repo.Close()

	cfgManager := configsync.NewManager(configsync.NewClient(cfg.OptionsPath), logger)
	if _, err := cfgManager.Refresh(ctx); err != nil {
		logger.Warn("initial config refresh failed", "err", err)
	}

	svc := service.New(repo, cfgManager, newBookStackClient, logger)
	defer svc.Stop()
	if err := svc.Reconcile(ctx); err != nil {
		logger.Error("failed to start sessions", "err", err)
	}

	reload := func(source string) {
		refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		changed, err := cfgManager.Refresh(refreshCtx)
		if err != nil {
			logger.Warn("config refresh failed", "source", source, "err", err)
			return
		}
		if !changed {
			return
		}
		logger.Info("options changed; restarting affected sessions", "source", source)
		if err := svc.Reconcile(ctx); err != nil {
			logger.Error("failed to reconcile sessions", "err", err)
		}
	}

	go runConfigFallbackRefresh(ctx, cfg.ConfigRefreshInterval, reload)

	if cfg.WatchEnabled() {
		watcher := configsync.NewWatcher(cfg.HABaseURL, cfg.SupervisorToken, logger)
		go watcher.Run(ctx, func() { reload("event") })
	} else {
		logger.Warn("SUPERVISOR_TOKEN is empty; config sync watcher disabled")
	}

	api := handlers.New(svc, cfgManager, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", httpServer.Addr)
	if err := httpapi.RunServer(ctx, httpServer, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func runConfigFallbackRefresh(ctx context.Context, interval time.Duration, reload func(source string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reload("periodic")
		}
	}
}
