package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"CryptoIngest/internal/collector"
	"CryptoIngest/internal/config"
	"CryptoIngest/internal/notifier"
	"CryptoIngest/internal/pipeline"
	"CryptoIngest/internal/recorder"
	"CryptoIngest/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] CryptoIngest starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init fetcher
	var fetcher collector.Fetcher
	switch cfg.DataSource.Provider {
	case "mock":
		fetcher = &collector.MockFetcher{}
	default:
		fetcher = collector.NewBinanceFetcher(cfg.DataSource.BaseURL, cfg.Proxy)
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())

	// Init pipeline
	pcfg, err := cfg.PipelineConfig()
	if err != nil {
		log.Fatalf("[FATAL] pipeline config: %v", err)
	}
	p, err := pipeline.New(pcfg, fetcher)
	if err != nil {
		log.Fatalf("[FATAL] init pipeline: %v", err)
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Init Telegram notifier
	var tn *notifier.TelegramNotifier
	var sender scheduler.Sender
	if cfg.NotifyEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.NewScheduler(ctx, p, sender, rec)

	// One-shot mode
	if cfg.Schedule.Cron == "" {
		if _, err := sched.RunNow(); err != nil {
			rec.Close()
			cancel()
			os.Exit(1)
		}
		log.Println("[INFO] CryptoIngest finished")
		return
	}

	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		log.Fatalf("[FATAL] register cron task: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing ingestion now")
		go sched.RunNow()
	}

	log.Printf("[INFO] CryptoIngest is running on %q. Press Ctrl+C to stop.", cfg.Schedule.Cron)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Println("[INFO] shutdown signal received, stopping...")
}
