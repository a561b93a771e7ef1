package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/productpulse/pulse/internal/api"
	"github.com/productpulse/pulse/internal/catalog"
	"github.com/productpulse/pulse/internal/config"
	"github.com/productpulse/pulse/internal/enrich"
	"github.com/productpulse/pulse/internal/generation"
	"github.com/productpulse/pulse/internal/media"
	"github.com/productpulse/pulse/internal/metrics"
	"github.com/productpulse/pulse/internal/provider"
	"github.com/productpulse/pulse/internal/scrape"
	"github.com/productpulse/pulse/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pulse server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running pulse server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pulse system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "pulse.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pipeline is every long-lived component the server runs.
type pipeline struct {
	collector  *metrics.Collector
	enricher   *enrich.Service
	generator  *generation.Service
	handler    *api.Handler
	mcp        *server.MCPServer
	sweepEvery time.Duration
}

// newPipeline wires the components from cfg. Missing provider keys are not
// an error here; requests fail with a configuration error instead.
func newPipeline(ctx context.Context, cfg config.Config, store *storage.Store, reg *prometheus.Registry) (*pipeline, error) {
	collector := metrics.NewCollector(store, 0, 0)
	rec := metrics.Multi{metrics.NewPrometheus(reg), collector}

	cache := catalog.NewCache(cfg.CacheTTL(), cfg.Retail.CacheSize)
	lookup := catalog.NewClient(cfg.Retail.SerpAPIKey, cache, rec, catalog.WithTimeout(cfg.RetailTimeout()))
	if !lookup.Configured() {
		slog.Warn("retailer search key missing, requests that need a retailer lookup will fail", "env", "PULSE_SERPAPI_KEY")
	}
	ecfg := enrich.DefaultConfig()
	ecfg.Threshold = cfg.Retail.ConfidenceThreshold
	ecfg.Budget = cfg.Retail.LookupBudget
	ecfg.MaxLinks = cfg.Retail.MaxLinks
	ecfg.Timeout = cfg.RetailTimeout()
	enricher := enrich.NewService(lookup, cache, rec, ecfg)

	describer, err := newDescriber(ctx, cfg)
	if err != nil {
		return nil, err
	}
	prober := media.NewProber(cfg.ProbeTimeout(), rec)
	generator := generation.NewService(describer, enricher, prober, rec)

	scraper := scrape.New(scrape.WithTimeout(cfg.RetailTimeout()))
	handler := api.NewHandler(api.Deps{
		Generator:       generator,
		Enricher:        enricher,
		Metrics:         rec,
		Summary:         collector,
		Erasures:        store,
		Scraper:         scraper,
		Gatherer:        reg,
		MetricsKey:      cfg.Metrics.ReadKey,
		AllowedOrigins:  cfg.AllowedOrigins(),
		RateLimitMax:    cfg.RateLimit.Max,
		RateLimitWindow: cfg.RateLimitWindow(),
	})

	var mcpSrv *server.MCPServer
	if cfg.Server.MCPEnabled {
		mcpSrv = api.NewMCPServer(api.MCPDeps{
			Generator: generator,
			Enricher:  enricher,
			Summary:   collector,
			Erasures:  store,
			Scraper:   scraper,
		})
	}

	return &pipeline{
		collector:  collector,
		enricher:   enricher,
		generator:  generator,
		handler:    handler,
		mcp:        mcpSrv,
		sweepEvery: cfg.CacheSweepInterval(),
	}, nil
}

func newDescriber(ctx context.Context, cfg config.Config) (provider.Describer, error) {
	switch cfg.AI.Backend {
	case "gemini":
		model := cfg.AI.Model
		if model == provider.DefaultModel {
			model = ""
		}
		g, err := provider.NewGemini(ctx, cfg.AI.ProviderKey, model)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return g, nil
	default:
		return provider.NewOpenAI(cfg.AI.ProviderKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AITimeout()), nil
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "pulse version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("pulse is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("pulse is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p, err := newPipeline(ctx, cfg, store, reg)
	if err != nil {
		return err
	}

	collectorDone := make(chan struct{})
	go func() {
		p.collector.Run(ctx)
		close(collectorDone)
	}()
	if p.sweepEvery > 0 {
		go p.enricher.RunSweeper(ctx, p.sweepEvery)
	}

	if p.mcp != nil {
		stdioSrv := server.NewStdioServer(p.mcp)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "pulse listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	// The collector flushes its buffer on the way out.
	stop()
	<-collectorDone
	return err
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("pulse is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop pulse (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to pulse (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("AI backend", "%s (%s)", cfg.AI.Backend, cfg.AI.Model)
	printStatus("AI key", "%s", configuredLabel(cfg.AI.ProviderKey))
	printStatus("Retail key", "%s", configuredLabel(cfg.Retail.SerpAPIKey))
	printStatus("Retail cache", "%d entries, ttl %s", cfg.Retail.CacheSize, cfg.CacheTTL())
	printStatus("MCP", "%t", cfg.Server.MCPEnabled)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)

	if store, err := storage.Open(cfg.Storage.DataDir); err == nil {
		if last, err := store.LastErasure(); err == nil {
			printStatus("Last erase", "%s", last.ErasedAt.Format(time.RFC3339))
		}
		store.Close()
	}
	return nil
}

func configuredLabel(secret string) string {
	if secret == "" {
		return colorize(colorYellow, "missing")
	}
	return colorize(colorGreen, "configured")
}
