package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dirsize/dirsize-exporter/exporter/internal/api"
	"github.com/dirsize/dirsize-exporter/exporter/internal/auth"
	"github.com/dirsize/dirsize-exporter/exporter/internal/config"
	"github.com/dirsize/dirsize-exporter/exporter/internal/measure"
	"github.com/dirsize/dirsize-exporter/exporter/internal/metrics"
	"github.com/dirsize/dirsize-exporter/exporter/internal/scraper"
	"github.com/dirsize/dirsize-exporter/exporter/internal/store"
	"github.com/dirsize/dirsize-exporter/exporter/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "scrape once, print the metrics to stdout and exit")
	flag.Parse()

	// Logs go to stderr in -once mode so stdout holds only the exposition.
	logOut := io.Writer(os.Stdout)
	if *once {
		logOut = os.Stderr
	}
	slog.SetDefault(newLogger(logOut, config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "err", err)
	}

	slog.Info("dirsize-exporter starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(logOut, cfg.Log)
	slog.SetDefault(logger)

	slog.Info("config loaded",
		"directories", len(cfg.Exporter.Directories),
		"interval", cfg.Exporter.Interval(),
		"max_depth", cfg.Exporter.MaxDepth,
		"listen", cfg.Server.ListenAddr(),
		"auth_mode", cfg.Server.Auth.Mode,
	)
	if len(cfg.Exporter.Directories) == 0 {
		slog.Warn("no directories configured; exporter will only serve runtime metrics")
	}

	m := metrics.New(metrics.NewRegistry())
	st := store.New(cfg.EffectiveSnapshotTTL())
	walker := measure.New(logger, measure.WithMaxDepth(cfg.Exporter.MaxDepth))
	sched := scraper.New(cfg.Exporter.Directories, m, walker,
		scraper.WithLogger(logger),
		scraper.WithRecorder(st),
	)

	if *once {
		_, scrapeErr := sched.ScrapeOnce(context.Background())
		if err := metrics.WriteText(os.Stdout, m.Registry()); err != nil {
			slog.Error("failed to write metrics", "err", err)
			os.Exit(1)
		}
		if scrapeErr != nil {
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Subscribed before the first cycle so its completion is pushed.
	hub := ws.New(st, logger)

	g, gCtx := errgroup.WithContext(ctx)

	// Scrape loop: once now, then every interval. Returns after the
	// in-flight cycle finishes.
	g.Go(func() error {
		return sched.Run(gCtx, cfg.Exporter.Interval())
	})

	// Drop directories that stopped being reported from the status API.
	g.Go(func() error {
		return st.Run(gCtx)
	})

	g.Go(func() error {
		return hub.Run(gCtx)
	})

	// Targets are fixed for the process lifetime; a changed file only warns.
	g.Go(func() error {
		err := config.Watch(gCtx, *configPath, func(updated *config.Config) {
			if !config.SameTargets(cfg.Exporter.Directories, updated.Exporter.Directories) ||
				updated.Exporter.IntervalSeconds != cfg.Exporter.IntervalSeconds {
				slog.Warn("config changed on disk, restart to apply new directories or interval",
					"directories", len(updated.Exporter.Directories),
					"interval_seconds", updated.Exporter.IntervalSeconds,
				)
			}
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
		return nil
	})

	requireKey := auth.APIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.Header, cfg.Server.Auth.Key())
	if cfg.Server.Auth.Mode == "apikey" && cfg.Server.Auth.Key() == "" {
		slog.Warn("auth mode is apikey but no key is set, status API is open", "key_env", cfg.Server.Auth.KeyEnv)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.MetricsPath, m.Handler(logger))
	mux.Handle("/api/", requireKey(api.New(st)))
	mux.Handle("/ws/stream", requireKey(hub))

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", httpSrv.Addr, "metrics_path", cfg.Server.MetricsPath)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("dirsize-exporter stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("dirsize-exporter shut down")
}

// newLogger builds the process logger from the log section of the config.
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	if lc.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
