package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"TakaneWatch/internal/listing"
	"TakaneWatch/internal/scanner"
)

// Scheduler manages the cron tasks: periodic scans during market hours
// and a daily listing-cache warmup.
type Scheduler struct {
	Cron    *cron.Cron
	Scanner *scanner.Scanner
	Listing listing.Source
	Ctx     context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, sc *scanner.Scanner, src listing.Source) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Scanner: sc,
		Listing: src,
		Ctx:     ctx,
	}
}

// RegisterAll registers the scan and listing-refresh tasks.
func (s *Scheduler) RegisterAll(scanCron, listingCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	if _, err := s.Cron.AddFunc(listingCron, s.refreshListing); err != nil {
		return fmt.Errorf("register listing refresh: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunScanNow executes a scan immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunScanNow() {
	s.scanTask()
}

func (s *Scheduler) scanTask() {
	log.Println("[INFO] running scheduled scan")
	if _, err := s.Scanner.Scan(s.Ctx); err != nil {
		if errors.Is(err, scanner.ErrScanInProgress) {
			log.Println("[WARN] scheduled scan skipped: previous scan still running")
			return
		}
		log.Printf("[ERROR] scheduled scan: %v", err)
	}
}

func (s *Scheduler) refreshListing() {
	listings, err := s.Listing.List()
	if err != nil {
		log.Printf("[ERROR] listing refresh: %v", err)
		return
	}
	log.Printf("[INFO] listing refreshed: %d symbols", len(listings))
}
