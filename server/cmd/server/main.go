package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/facultyload/facultyload/server/internal/alerts"
	"github.com/facultyload/facultyload/server/internal/api"
	"github.com/facultyload/facultyload/server/internal/auth"
	"github.com/facultyload/facultyload/server/internal/config"
	"github.com/facultyload/facultyload/server/internal/dataset"
	"github.com/facultyload/facultyload/server/internal/metrics"
	"github.com/facultyload/facultyload/server/internal/refresh"
	"github.com/facultyload/facultyload/server/internal/security"
	"github.com/facultyload/facultyload/server/internal/source"
	"github.com/facultyload/facultyload/server/internal/store"
	"github.com/facultyload/facultyload/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory (e.g. ui/dist); leave empty to disable")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("facultyload-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	lvl, _ := config.ParseLogLevel(cfg.Server.LogLevel)
	level.Set(lvl)

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"source_configured", cfg.Source.URL != "",
		"strict_rows", cfg.Pipeline.StrictRows,
		"refresh", cfg.Refresh.Schedule,
		"snapshot_ttl", cfg.Server.Snapshot.TTL,
	)

	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Snapshot history with background TTL eviction.
	st := store.New(cfg.Server.Snapshot.TTL, cfg.Server.Snapshot.Keep)
	go st.Run(ctx)

	reg := metrics.New()
	alertEngine := alerts.New(cfg.Server.Alerts)
	certs := &security.Tracker{}

	loader := dataset.New(source.New(cfg.Source), cfg.Pipeline.StrictRows, dataset.Deps{
		Store:   st,
		Alerts:  alertEngine,
		Metrics: reg,
	})

	// WebSocket hub: pushes the latest snapshot to dashboards.
	hub := ws.New(st, cfg.Server.Stream.Interval)
	reg.SetClientsFunc(hub.Count)
	go hub.Run(ctx)

	tasks := refresh.Tasks{
		Loader: loader,
		Certs:  certs,
		Source: func() config.SourceConfig { return current.Load().Source },
		OnDone: hub.Publish,
	}
	sched := refresh.New(tasks.Run, cfg.Source.Timeout*time.Duration(cfg.Source.Retry.MaxAttempts+1))
	if err := sched.SetSchedule(cfg.Refresh.Schedule); err != nil {
		slog.Error("failed to schedule refresh", "err", err)
		os.Exit(1)
	}
	go sched.Run(ctx)
	// Warm the store so the stream and cached routes have data at once.
	go sched.RunNow(ctx)

	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			prev := current.Swap(next)
			if lvl, err := config.ParseLogLevel(next.Server.LogLevel); err == nil {
				level.Set(lvl)
			}
			loader.SetFetcher(source.New(next.Source))
			loader.SetStrict(next.Pipeline.StrictRows)
			alertEngine.SetConfig(next.Server.Alerts)
			if err := sched.SetSchedule(next.Refresh.Schedule); err != nil {
				slog.Warn("config: refresh schedule rejected", "err", err)
			}
			if next.Server.HTTPPort != prev.Server.HTTPPort || next.Server.Auth != prev.Server.Auth {
				slog.Warn("config: server port and auth changes apply after restart")
			}
			slog.Info("config reloaded", "source_configured", next.Source.URL != "")
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(api.Options{
		Loader:        loader,
		Store:         st,
		Alerts:        alertEngine,
		Certs:         certs,
		Clients:       hub.Count,
		LocalInsights: cfg.Insights.LocalFallbackEnabled(),
	}))
	httpMux.Handle("/metrics", reg.Handler())
	httpMux.Handle("/ws/stream", hub)

	// Optional: serve the pre-built dashboard from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := filepath.Join(*uiDir, filepath.Clean("/"+r.URL.Path))
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, filepath.Join(*uiDir, "index.html"))
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	handler := api.Chain(httpMux,
		api.RequestID,
		api.AccessLog(reg),
		api.CORS(cfg.Server.CORS.AllowOrigin),
		auth.APIKey(
			cfg.Server.Auth.Mode,
			cfg.Server.Auth.EffectiveHeader(),
			cfg.Server.Auth.Key(),
			"/api/health",
		),
	)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("facultyload-server shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	alertEngine.Wait()
}
