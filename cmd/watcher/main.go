package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"TakaneWatch/internal/collector"
	"TakaneWatch/internal/config"
	"TakaneWatch/internal/engine"
	"TakaneWatch/internal/listing"
	"TakaneWatch/internal/notifier"
	"TakaneWatch/internal/recorder"
	"TakaneWatch/internal/scanner"
	"TakaneWatch/internal/scheduler"
	"TakaneWatch/internal/server"
	"TakaneWatch/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] TakaneWatch starting...")

	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] .env loaded")
	}

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
	fetcher := collector.NewYahooFetcher(cfg.Proxy)
	log.Printf("[INFO] data source: %s", fetcher.Name())

	// Init listing source with its daily cache
	src := listing.NewCache(
		listing.NewHTTPSource(cfg.Listing.URL, cfg.Listing.Segments, cfg.Proxy),
		time.Duration(cfg.Listing.TTLHours)*time.Hour,
	)

	// Init master store
	st := store.New(cfg.Store.CSVPath)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Init Telegram notifier (optional)
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		log.Println("[INFO] Telegram break alerts enabled")
	}

	// Init scanner
	scanCfg := scanner.Config{
		Workers:   cfg.Scan.Workers,
		Attempts:  cfg.Scan.Attempts,
		Backoff:   time.Duration(cfg.Scan.BackoffMS) * time.Millisecond,
		JitterMin: time.Duration(cfg.Scan.JitterMinMS) * time.Millisecond,
		JitterMax: time.Duration(cfg.Scan.JitterMaxMS) * time.Millisecond,
		Engine: engine.Config{
			Policy:     engine.ApproachPolicy(cfg.Scan.ApproachPolicy),
			BandPct:    cfg.Scan.ApproachBandPct,
			RatioFloor: cfg.Scan.ApproachRatio,
		},
	}
	sc := scanner.New(fetcher, src, st, rec, tn, scanCfg)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, sc, src)
	if err := sched.RegisterAll(cfg.Schedule.ScanCron, cfg.Schedule.ListingCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Init API server
	handlers := server.NewHandlers(ctx, sc, fetcher, cfg.Scan.ChartMonths)
	srv := server.New(cfg.Server.Port, handlers)
	srv.Start()

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing scan now")
		go sched.RunScanNow()
	}

	log.Println("[INFO] TakaneWatch is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] API server shutdown: %v", err)
	}
	log.Println("[INFO] TakaneWatch stopped")
}
