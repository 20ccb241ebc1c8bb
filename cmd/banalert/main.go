package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"banalert/internal/alerts"
	"banalert/internal/api"
	"banalert/internal/auth"
	"banalert/internal/config"
	"banalert/internal/engine"
	"banalert/internal/ingest"
	"banalert/internal/logging"
	"banalert/internal/metrics"
	"banalert/internal/notify"
	"banalert/internal/storage"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		cfgPath     = flag.String("config", "", "optional path to YAML or JSON config; environment overrides it")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()
	if *showVersion {
		fmt.Println(Version)
		return
	}

	cfg, err := config.Load(config.ResolvePath(*cfgPath), os.LookupEnv)
	if err != nil {
		logging.NewLogger("error").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("banalert starting", "version", Version, "debug_logs", cfg.DebugLogs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if store != nil {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = store.Init(initCtx)
		cancel()
		if err != nil {
			logger.Error("storage schema init failed", "driver", cfg.Storage.Driver, "err", err)
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("audit storage enabled", "driver", cfg.Storage.Driver)
	}

	m := metrics.New()
	history := alerts.NewStore(cfg.History.StoreLimit)
	webhook := notify.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Timeout)
	eng := engine.NewEngine(cfg, logger, webhook, history, store, m)

	rest := ingest.NewRESTServer(cfg, auth.New(cfg.Auth.APIKey), eng, m, logger)
	if _, err := ingest.StartREST(ctx, rest); err != nil {
		logger.Error("rest ingest failed to start", "err", err)
		os.Exit(1)
	}
	api.Start(ctx, api.NewServer(cfg, history, store, m, logger, Version))
	ingest.StartKafka(ctx, cfg.Ingest.Kafka, eng, logger)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	// Give the listeners' shutdown goroutines a moment to drain.
	time.Sleep(200 * time.Millisecond)
	logger.Info("banalert stopped")
}
