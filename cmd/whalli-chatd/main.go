package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Whalli/whalli-sub000/internal/cache"
	"github.com/Whalli/whalli-sub000/internal/chat"
	"github.com/Whalli/whalli-sub000/internal/config"
	"github.com/Whalli/whalli-sub000/internal/httpapi"
	"github.com/Whalli/whalli-sub000/internal/logging"
	"github.com/Whalli/whalli-sub000/internal/message"
	"github.com/Whalli/whalli-sub000/internal/observability"
	"github.com/Whalli/whalli-sub000/internal/policy"
	"github.com/Whalli/whalli-sub000/internal/provider"
	"github.com/Whalli/whalli-sub000/internal/session"
	"github.com/Whalli/whalli-sub000/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "whalli-chatd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Local development drops secrets into a .env file; its absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	var logWriter io.Writer
	if cfg.Logging.JSON {
		logWriter = os.Stdout
	}
	log := logging.New(logWriter, cfg.Logging.Level)

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)

	ctx := context.Background()
	sessions, err := session.NewStore(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("session store init failed: %w", err)
	}
	defer sessions.Close()

	messages, err := message.NewStore(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("message store init failed: %w", err)
	}
	defer messages.Close()

	responseCache, err := cache.New(ctx, cfg.Cache.Backend, cfg.Cache.RedisAddr)
	if err != nil {
		return fmt.Errorf("cache init failed: %w", err)
	}
	defer responseCache.Close()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	log.Info().Strs("vendors", registry.Vendors()).Msg("provider registry ready")

	order := make([]policy.Tier, 0, len(cfg.Tiers.Order))
	for _, t := range cfg.Tiers.Order {
		order = append(order, policy.Tier(t))
	}
	curated := make(map[policy.Tier][]string, len(cfg.Tiers.Models))
	for tier, models := range cfg.Tiers.Models {
		curated[policy.Tier(tier)] = models
	}
	accessPolicy := policy.NewAccessPolicy(order, curated)

	catalog := make(map[string]chat.ModelInfo, len(cfg.Models))
	for _, m := range cfg.Models {
		catalog[m.ID] = chat.ModelInfo{ID: m.ID, Vendor: m.Vendor, DisplayName: m.DisplayName}
	}

	orchestrator := chat.New(chat.Options{
		Sessions:   sessions,
		Messages:   messages,
		Cache:      responseCache,
		Registry:   registry,
		Policy:     accessPolicy,
		Tasks:      workspace.NewMemoryTaskService(),
		Projects:   workspace.NewMemoryProjectService(),
		Catalog:    catalog,
		Metrics:    metrics,
		Logger:     logging.Component(log, "chat"),
		SessionTTL: cfg.Session.TTL,
		CacheTTL:   cfg.Cache.ResponseTTL,
		TokenDelay: 10 * time.Millisecond,
	})

	api := httpapi.New(orchestrator, logging.Component(log, "http"), registry.Vendors(), cfg.Server.AllowAnyOrigin)
	httpServer := &http.Server{
		Addr:    cfg.Server.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	if ms, ok := sessions.(*session.MemoryStore); ok {
		ms.StartJanitor(runCtx, time.Minute)
	}
	if mc, ok := responseCache.(*cache.MemoryStore); ok {
		mc.StartJanitor(runCtx, time.Minute)
	}

	go func() {
		log.Info().Str("addr", cfg.Server.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info().Msg("shutdown complete")
	return nil
}

// buildRegistry registers one adapter per vendor the catalog references. A
// vendor without an adapter, or an adapter without credentials, fails startup
// rather than silently degrading.
func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	byVendor := make(map[string][]string)
	for _, m := range cfg.Models {
		byVendor[m.Vendor] = append(byVendor[m.Vendor], m.ID)
	}

	var adapters []provider.Adapter
	for _, vendor := range cfg.Vendors() {
		creds := cfg.Providers[vendor]
		models := byVendor[vendor]
		var a provider.Adapter
		switch vendor {
		case "anthropic":
			a = provider.NewAnthropicAdapter(creds.APIKey, creds.BaseURL).Serving(models...)
		case "openai":
			a = provider.NewOpenAIAdapter(creds.APIKey, creds.BaseURL).Serving(models...)
		case "google":
			a = provider.NewGoogleAdapter(creds.APIKey, creds.BaseURL).Serving(models...)
		case "mock":
			a = provider.NewMockAdapter("This ", "is ", "a ", "mock ", "response.").Serving(models...)
		default:
			return nil, fmt.Errorf("catalog references vendor %q but no adapter exists for it", vendor)
		}
		if !a.Configured() {
			return nil, fmt.Errorf("vendor %q is in the catalog but has no API key configured", vendor)
		}
		adapters = append(adapters, a)
	}
	return provider.NewRegistry(adapters...), nil
}
