package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/obsidianstack/healthboard/pkg/history"
	"github.com/obsidianstack/healthboard/server/internal/alerts"
	"github.com/obsidianstack/healthboard/server/internal/api"
	"github.com/obsidianstack/healthboard/server/internal/auth"
	"github.com/obsidianstack/healthboard/server/internal/config"
	"github.com/obsidianstack/healthboard/server/internal/receiver"
	"github.com/obsidianstack/healthboard/server/internal/store"
	"github.com/obsidianstack/healthboard/server/internal/ws"
)

const broadcastInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard's static files from this directory; empty disables")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.Info("healthboard-server starting", "config", *configPath)

	if err := run(*configPath, *uiDir); err != nil {
		slog.Error("healthboard-server failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath, uiDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sc := cfg.Server
	slog.Info("config loaded",
		"http_port", sc.HTTPPort,
		"auth_mode", sc.Auth.Mode,
		"report_ttl", sc.Report.TTL,
		"history_backend", sc.History.Backend,
		"alert_rules", len(sc.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(sc.Report.TTL)
	go st.Run(ctx)

	alertEngine := alerts.New(sc.Alerts)
	hub := ws.New(st, broadcastInterval)
	go hub.Run(ctx)

	recvOpts := []receiver.Option{
		receiver.WithEvaluator(alertEngine),
		receiver.WithEvaluator(hub),
	}
	apiOpts := []api.Option{api.WithAlerts(alertEngine)}

	if sc.History.Backend != "" {
		hist, err := history.Open(ctx, history.Config{
			Backend: sc.History.Backend,
			Path:    sc.History.Path,
			DSN:     sc.History.DSN(),
			Recent:  sc.History.Recent,
		})
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer hist.Close()
		recvOpts = append(recvOpts, receiver.WithHistory(hist))
		apiOpts = append(apiOpts, api.WithHistory(hist))
	}

	requireKey := auth.APIKey(sc.Auth.Mode, sc.Auth.EffectiveHeader(), sc.Auth.Key())
	apiOpts = append(apiOpts, api.WithReceiver(requireKey(receiver.New(st, recvOpts...))))

	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(st, apiOpts...))
	mux.Handle("/ws/stream", hub)
	if uiDir != "" {
		mux.Handle("/", spa(uiDir))
		slog.Info("serving UI static files", "dir", uiDir)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("healthboard-server shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// spa serves files from dir and falls back to index.html for unknown paths
// so client-side routes resolve.
func spa(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
