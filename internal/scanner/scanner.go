package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"TakaneWatch/internal/collector"
	"TakaneWatch/internal/engine"
	"TakaneWatch/internal/listing"
	"TakaneWatch/internal/model"
	"TakaneWatch/internal/notifier"
	"TakaneWatch/internal/recorder"
	"TakaneWatch/internal/store"
)

// ErrScanInProgress is returned when a scan is requested while one is running.
var ErrScanInProgress = errors.New("a scan is already in progress")

// Config tunes the batch scan.
type Config struct {
	Workers   int           // bounded fetch parallelism
	Attempts  int           // fetch attempts per symbol
	Backoff   time.Duration // delay between attempts
	JitterMin time.Duration // politeness delay before each fetch
	JitterMax time.Duration
	Engine    engine.Config
}

// DefaultConfig mirrors the operational defaults: 5 workers, 3 attempts
// with a 1s backoff, 100-200ms of politeness jitter per fetch.
func DefaultConfig() Config {
	return Config{
		Workers:   5,
		Attempts:  3,
		Backoff:   time.Second,
		JitterMin: 100 * time.Millisecond,
		JitterMax: 200 * time.Millisecond,
		Engine:    engine.DefaultConfig(),
	}
}

// Scanner runs batch scans over the symbol universe and holds the most
// recent classified result set for the presentation layer.
type Scanner struct {
	fetcher  collector.Fetcher
	listing  listing.Source
	store    *store.Store
	recorder recorder.Recorder
	notifier *notifier.TelegramNotifier // optional
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	progress model.Progress
	results  []model.ScanResult
	last     *model.ScanReport
}

// New creates a Scanner. tn may be nil when Telegram is not configured.
func New(f collector.Fetcher, src listing.Source, st *store.Store, rec recorder.Recorder, tn *notifier.TelegramNotifier, cfg Config) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &Scanner{
		fetcher:  f,
		listing:  src,
		store:    st,
		recorder: rec,
		notifier: tn,
		cfg:      cfg,
		now:      time.Now,
	}
}

type outcome struct {
	code    string
	res     *model.ScanResult
	skipped bool
	err     error
}

// Scan runs one full batch: universe lookup, per-symbol fetch + engine
// update on a bounded worker pool, serialized merge, wholesale store
// save. Per-symbol failures never abort the batch; a previously
// persisted symbol that fails this cycle keeps its last record.
func (s *Scanner) Scan(ctx context.Context) (*model.ScanReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	s.running = true
	s.progress = model.Progress{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	started := s.now()
	today := midnight(started)

	universe, err := s.listing.List()
	if err != nil {
		return nil, fmt.Errorf("listing source: %w", err)
	}
	prior, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	log.Printf("[INFO] scan started: %d symbols, %d persisted", len(universe), len(prior))

	s.mu.Lock()
	s.progress.Total = len(universe)
	s.mu.Unlock()

	jobs := make(chan model.Listing)
	out := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for l := range jobs {
				out <- s.scanSymbol(ctx, l, prior, today)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, l := range universe {
			select {
			case <-ctx.Done():
				return
			case jobs <- l:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	// Workers return independent results; the merge below is the only
	// place shared state is touched, and it runs on this goroutine.
	var results []model.ScanResult
	var failures []model.ScanFailure
	skipped := 0
	for o := range out {
		s.mu.Lock()
		s.progress.Done++
		done, total := s.progress.Done, s.progress.Total
		s.mu.Unlock()
		if done%500 == 0 {
			log.Printf("[INFO] scan progress: %d/%d", done, total)
		}

		if o.err != nil {
			failures = append(failures, model.ScanFailure{Code: o.code, Reason: o.err.Error()})
			continue
		}
		if o.skipped {
			skipped++
		}
		results = append(results, *o.res)
	}
	if err := ctx.Err(); err != nil {
		log.Printf("[WARN] scan aborted: %v", err)
		return nil, err
	}

	// Merge-based save: seed with every previously persisted record so
	// symbols that failed this cycle are never dropped from the table.
	merged := make(map[string]model.SymbolState, len(prior)+len(results))
	for code, st := range prior {
		merged[code] = st
	}
	breaks := 0
	var breakResults []model.ScanResult
	for _, r := range results {
		merged[r.State.Code] = r.State
		if r.Status.IsBreak() {
			breaks++
			breakResults = append(breakResults, r)
		}
	}
	if err := s.store.Save(merged); err != nil {
		return nil, fmt.Errorf("save store: %w", err)
	}

	rep := &model.ScanReport{
		ID:        uuid.New().String(),
		StartedAt: started,
		Duration:  s.now().Sub(started),
		Universe:  len(universe),
		Updated:   len(results) - skipped,
		Skipped:   skipped,
		Breaks:    breaks,
		Failures:  failures,
	}

	s.mu.Lock()
	s.results = results
	s.last = rep
	s.mu.Unlock()

	if err := s.recorder.RecordScan(rep); err != nil {
		log.Printf("[ERROR] record scan: %v", err)
	}
	for i := range breakResults {
		if err := s.recorder.RecordHighEvent(rep.ID, &breakResults[i]); err != nil {
			log.Printf("[ERROR] record high event: %v", err)
		}
	}
	if breaks > 0 && s.notifier != nil {
		if err := s.notifier.NotifyBreaks(ctx, rep, breakResults); err != nil {
			log.Printf("[ERROR] send break alert: %v", err)
		}
	}

	log.Printf("[INFO] scan %s done in %s: %d updated, %d skipped, %d failed, %d breaks",
		rep.ID, rep.Duration.Round(time.Millisecond), rep.Updated, rep.Skipped, len(rep.Failures), rep.Breaks)
	return rep, nil
}

func (s *Scanner) scanSymbol(ctx context.Context, l model.Listing, prior map[string]model.SymbolState, today time.Time) outcome {
	p, known := prior[l.Code]
	if known && !p.LastUpdate.Before(today) {
		// Store already reflects today (or later, under clock skew):
		// no fetch, re-derive the classification from the record.
		p.Name, p.Market = l.Name, l.Market
		return outcome{code: l.Code, res: engine.Classify(s.cfg.Engine, p, today), skipped: true}
	}

	if err := sleepCtx(ctx, s.jitter()); err != nil {
		return outcome{code: l.Code, err: err}
	}

	var bars []model.OHLCV
	var err error
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		if known {
			// Refetch from the watermark inclusive: the provider may
			// have revised that day's bar intraday.
			bars, err = s.fetcher.FetchHistory(l.Code, p.LastUpdate)
		} else {
			bars, err = s.fetcher.FetchFullHistory(l.Code)
		}
		if err == nil {
			break
		}
		if attempt < s.cfg.Attempts {
			if serr := sleepCtx(ctx, s.cfg.Backoff); serr != nil {
				return outcome{code: l.Code, err: serr}
			}
		}
	}
	if err != nil {
		return outcome{code: l.Code, err: fmt.Errorf("fetch after %d attempts: %w", s.cfg.Attempts, err)}
	}

	var priorPtr *model.SymbolState
	if known {
		priorPtr = &p
	}
	res, err := engine.Update(s.cfg.Engine, priorPtr, bars, today)
	if err != nil {
		return outcome{code: l.Code, err: err}
	}
	res.State.Code = l.Code
	res.State.Name = l.Name
	res.State.Market = l.Market
	return outcome{code: l.Code, res: res}
}

// Running reports whether a scan is currently executing.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Progress returns the advisory completion counter of the current scan.
func (s *Scanner) Progress() model.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Results returns a copy of the most recent classified result set.
func (s *Scanner) Results() []model.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScanResult, len(s.results))
	copy(out, s.results)
	return out
}

// LastReport returns the report of the most recent completed scan.
func (s *Scanner) LastReport() *model.ScanReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scanner) jitter() time.Duration {
	if s.cfg.JitterMax <= s.cfg.JitterMin {
		return s.cfg.JitterMin
	}
	return s.cfg.JitterMin + time.Duration(rand.Int63n(int64(s.cfg.JitterMax-s.cfg.JitterMin)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
