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

	"golang.org/x/sync/errgroup"

	"habit-sync/internal/api"
	"habit-sync/internal/cache"
	"habit-sync/internal/config"
	"habit-sync/internal/connectivity"
	"habit-sync/internal/habits"
	"habit-sync/internal/logs"
	"habit-sync/internal/manager"
	"habit-sync/internal/metrics"
	"habit-sync/internal/notify"
	"habit-sync/internal/queue"
	"habit-sync/internal/remote"
	"habit-sync/internal/store"
	"habit-sync/internal/ttl"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "habitsync:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.toml (default ~/.config/habit-sync/config.toml)")
	startOffline := flag.Bool("offline", false, "start in offline mode until the probe succeeds")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logger
	logger := logs.NewLogger(cfg.LogBuffer, cfg.LogLevel)
	logger.SetErrorCallback(func(e logs.Entry) {
		fmt.Fprintf(os.Stderr, "%s ERROR [%s] %s\n", e.TimeStamp.Format(time.RFC3339), e.Namespace, e.Message)
	})

	// Metrics
	metricsRegistry := metrics.NewRegistry()

	// Store
	backend, err := store.NewFileBackend(cfg.StorePath())
	if err != nil {
		return err
	}
	kv := store.NewKV(backend, metricsRegistry)
	dataCache := cache.New(kv, metricsRegistry)

	notifier := notify.Logged{Next: notify.NewConsole(os.Stdout), Logger: logger.With("notify")}

	// Connectivity
	monitor := connectivity.NewMonitor(!*startOffline, notifier, logger, metricsRegistry)
	actions := queue.New(kv, monitor.IsOnline, logger, metricsRegistry)
	monitor.SetReplayer(actions)

	// Remote + domain
	opts := []remote.Option{}
	if cfg.APIToken != "" {
		opts = append(opts, remote.WithToken(cfg.APIToken))
	}
	client, err := remote.NewClient(cfg.APIBaseURL, logger, opts...)
	if err != nil {
		return err
	}

	service, err := habits.NewService(client, actions, manager.Deps{
		Cache:    dataCache,
		Online:   monitor,
		Notifier: notifier,
		Logger:   logger,
		Metrics:  metricsRegistry,
	}, habits.Config{
		CacheTTL:        cfg.CacheTTL,
		Retry:           cfg.Retry,
		AutoRefresh:     cfg.RefreshEnabled,
		RefreshInterval: cfg.RefreshInterval,
	})
	if err != nil {
		return err
	}

	// Restores the queue and replays it when online.
	if err := monitor.Start(ctx); err != nil {
		logger.WarnErr("queue restore failed, starting empty", err, nil)
	}
	if err := service.Load(ctx, false); err != nil {
		logger.WarnErr("initial habit load failed, serving cached data if any", err, nil)
	}

	// API
	handler := api.NewHandler(metricsRegistry, logger, actions, monitor, dataCache, service)
	server := &http.Server{
		Addr:              cfg.AdminBind,
		Handler:           api.RegisterRoutes(http.NewServeMux(), handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		connectivity.NewProber(monitor, cfg.Probe, logger, metricsRegistry).Start(gctx)
		return nil
	})
	g.Go(func() error {
		service.Run(gctx)
		return nil
	})
	if cfg.SweepEnabled {
		g.Go(func() error {
			ttl.NewSweeper(kv, cfg.SweepInterval, logger, metricsRegistry).Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("admin api listening on " + cfg.AdminBind)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
