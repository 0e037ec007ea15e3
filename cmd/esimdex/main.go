package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/esimdex/api"
	"github.com/use-agent/esimdex/cache"
	"github.com/use-agent/esimdex/catalog"
	"github.com/use-agent/esimdex/config"
	"github.com/use-agent/esimdex/extractor"
	"github.com/use-agent/esimdex/fetcher"
	"github.com/use-agent/esimdex/models"
	"github.com/use-agent/esimdex/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("esimdex starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"fetchMode", cfg.Fetcher.Mode,
	)

	// ── 3. Build the fetcher for the configured extraction path ─────
	// The browser only launches when a mode that can use it is selected.
	f, cleanup, err := buildFetcher(cfg)
	if err != nil {
		slog.Error("failed to initialise fetcher", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// ── 4. Extraction pass: fetch raw catalog → normalized products ─
	ex := extractor.New()
	runExtraction := func(ctx context.Context) ([]models.Product, models.SourceMode, error) {
		raw, err := f.FetchCatalog(ctx)
		if err != nil {
			notifyRefreshFailed(cfg.Webhook, err)
			return nil, "", err
		}

		products, diags, err := ex.Extract(raw)
		if err != nil {
			notifyRefreshFailed(cfg.Webhook, err)
			return nil, raw.Mode, err
		}
		for _, d := range diags {
			slog.Warn("skipped malformed catalog entry",
				"entry", d.Entry,
				"reason", d.Reason,
			)
		}

		notifyRefreshed(cfg.Webhook, raw.Mode, len(products), len(diags))
		return products, raw.Mode, nil
	}

	// ── 5. Snapshot cache + query service ───────────────────────────
	manager := cache.NewManager(runExtraction, cache.Options{
		StaleAfter:     cfg.Cache.StaleAfter,
		WaitForRefresh: cfg.Cache.WaitForRefresh,
	})
	svc := catalog.NewService(manager)

	// ── 6. Setup router and HTTP server ─────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(svc, cfg, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// cleanup() runs via defer — kills the browser when one was launched.
	slog.Info("esimdex stopped")
}

// buildFetcher wires the fetch path selected by config: the browser-rendered
// path, the direct-API path, or auto (API first, browser fallback). The
// returned cleanup shuts the browser down when one was launched.
func buildFetcher(cfg *config.Config) (fetcher.Fetcher, func(), error) {
	switch cfg.Fetcher.Mode {
	case "api":
		return fetcher.NewAPI(cfg.Fetcher), func() {}, nil

	case "browser":
		b, err := fetcher.NewBrowser(cfg.Browser, cfg.Fetcher)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil

	case "auto":
		b, err := fetcher.NewBrowser(cfg.Browser, cfg.Fetcher)
		if err != nil {
			return nil, nil, err
		}
		return fetcher.NewFallback(fetcher.NewAPI(cfg.Fetcher), b), b.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown fetch mode %q (want browser, api, or auto)", cfg.Fetcher.Mode)
	}
}

func notifyRefreshed(cfg config.WebhookConfig, mode models.SourceMode, products, skipped int) {
	if cfg.URL == "" {
		return
	}
	webhook.DeliverAsync(cfg.URL, cfg.Secret, &webhook.Event{
		Type:      webhook.EventRefreshed,
		Timestamp: time.Now().Unix(),
		Data: map[string]any{
			"source_mode": mode,
			"products":    products,
			"skipped":     skipped,
		},
	})
}

func notifyRefreshFailed(cfg config.WebhookConfig, err error) {
	if cfg.URL == "" {
		return
	}
	webhook.DeliverAsync(cfg.URL, cfg.Secret, &webhook.Event{
		Type:      webhook.EventRefreshFailed,
		Timestamp: time.Now().Unix(),
		Data:      map[string]any{"error": err.Error()},
	})
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
