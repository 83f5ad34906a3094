package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"TakaneWatch/internal/model"
)

// oneYearSessions approximates one year of trading days.
const oneYearSessions = 251

var (
	// ErrNoData means a symbol has no price history at all on first fetch.
	ErrNoData = errors.New("no price history")
	// ErrBadBar means a fetched bar is missing its High or Close.
	ErrBadBar = errors.New("malformed bar")
)

// ApproachPolicy selects how the "approaching a high" band is computed.
type ApproachPolicy string

const (
	// ApproachDeviation flags a symbol when its percent deviation from a
	// high is within -BandPct.
	ApproachDeviation ApproachPolicy = "deviation"
	// ApproachRatio flags a symbol when its price is at or above
	// high * RatioFloor.
	ApproachRatio ApproachPolicy = "ratio"
)

// Config holds the classification thresholds.
type Config struct {
	Policy     ApproachPolicy
	BandPct    float64 // deviation policy, percent below the high
	RatioFloor float64 // ratio policy, multiplicative floor
}

// DefaultConfig matches the deviation variant: flag within 5% of a high.
func DefaultConfig() Config {
	return Config{Policy: ApproachDeviation, BandPct: 5.0, RatioFloor: 0.96}
}

type extreme struct {
	price float64
	date  time.Time
}

// Update merges freshly fetched bars into a symbol's prior state and
// classifies the result. It is a pure function: no I/O, no clock reads.
//
// prior may be nil (first scan for the symbol), in which case bars must
// cover the full available history. For an existing symbol, bars cover
// the window from the persisted watermark (inclusive) through today; a
// re-fetched watermark-day bar is harmless because the merge only takes
// maxima over the window.
func Update(cfg Config, prior *model.SymbolState, bars []model.OHLCV, today time.Time) (*model.ScanResult, error) {
	if prior == nil {
		return initial(cfg, bars, today)
	}
	if len(bars) == 0 {
		// Market closed, or the provider returned nothing. Keep the
		// record untouched, watermark included, so the same window is
		// fetched again next cycle.
		return Classify(cfg, *prior, today), nil
	}
	if err := checkBars(bars); err != nil {
		return nil, err
	}

	// The classification baseline merges the prior highs with every bar
	// before the final one: a multi-day gap must not lose intervening
	// highs, and the final bar is "today so far" rather than history.
	ath := extreme{prior.AllTimeHigh, prior.AllTimeHighDate}
	oneYear := extreme{prior.OneYearHigh, prior.OneYearHighDate}
	for _, b := range bars[:len(bars)-1] {
		if b.High > ath.price {
			ath = extreme{b.High, b.Date}
		}
		if b.High > oneYear.price {
			oneYear = extreme{b.High, b.Date}
		}
	}

	current := bars[len(bars)-1]
	res := classify(cfg, current.Close, ath, oneYear, today)

	// Persisted highs fold in the full window including the final bar.
	maxInPeriod := bars[0].High
	for _, b := range bars[1:] {
		if b.High > maxInPeriod {
			maxInPeriod = b.High
		}
	}

	st := *prior
	if maxInPeriod >= st.AllTimeHigh {
		st.AllTimeHigh = maxInPeriod
		st.AllTimeHighDate = today
	}
	if maxInPeriod >= st.OneYearHigh {
		st.OneYearHigh = maxInPeriod
		st.OneYearHighDate = today
	}
	st.LastPrice = current.Close
	st.LastUpdate = today

	res.State = st
	return res, nil
}

// initial computes the state for a never-scanned symbol from its full
// history. The final bar is excluded from the historical highs so the
// current session can register as a breakout instead of being folded
// into its own baseline.
func initial(cfg Config, bars []model.OHLCV, today time.Time) (*model.ScanResult, error) {
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	if err := checkBars(bars); err != nil {
		return nil, err
	}

	hist := bars[:len(bars)-1]
	if len(hist) == 0 {
		// Brand-new listing with a single bar: nothing to exclude.
		hist = bars
	}
	ath := maxHigh(hist)
	oneYear := ath
	if len(bars) > oneYearSessions {
		oneYear = maxHigh(bars[len(bars)-1-oneYearSessions : len(bars)-1])
	}

	current := bars[len(bars)-1]
	res := classify(cfg, current.Close, ath, oneYear, today)

	st := model.SymbolState{
		AllTimeHigh:     ath.price,
		AllTimeHighDate: ath.date,
		OneYearHigh:     oneYear.price,
		OneYearHighDate: oneYear.date,
		LastPrice:       current.Close,
		LastUpdate:      today,
	}
	// The current session still counts toward the persisted marks.
	if current.High >= st.AllTimeHigh {
		st.AllTimeHigh = current.High
		st.AllTimeHighDate = today
	}
	if current.High >= st.OneYearHigh {
		st.OneYearHigh = current.High
		st.OneYearHighDate = today
	}

	res.State = st
	return res, nil
}

// Classify re-derives a classification from an already-persisted state
// without fetching, e.g. when the watermark shows the record is current.
func Classify(cfg Config, st model.SymbolState, today time.Time) *model.ScanResult {
	res := classify(cfg, st.LastPrice,
		extreme{st.AllTimeHigh, st.AllTimeHighDate},
		extreme{st.OneYearHigh, st.OneYearHighDate},
		today)
	res.State = st
	return res
}

// classify applies the strict priority order: an all-time-high match
// always wins over a one-year match, which wins over the approach bands.
// Raw float values are compared throughout; rounding is presentation-only.
func classify(cfg Config, price float64, ath, oneYear extreme, today time.Time) *model.ScanResult {
	devATH := deviationPct(price, ath.price)
	dev1y := deviationPct(price, oneYear.price)

	res := &model.ScanResult{CurrentPrice: price}
	switch {
	case price >= ath.price:
		res.Status = model.StatusATHBreak
	case price >= oneYear.price:
		res.Status = model.StatusOneYearBreak
	case cfg.near(price, ath.price, devATH):
		res.Status = model.StatusNearATH
	case cfg.near(price, oneYear.price, dev1y):
		res.Status = model.StatusNearOneYear
	default:
		res.Status = model.StatusIdle
	}

	// Breaks and near-misses on the all-time track report against the
	// all-time mark; everything else reports against the one-year mark.
	if res.Status == model.StatusATHBreak || res.Status == model.StatusNearATH {
		res.RelevantHigh = ath.price
		res.DeviationPct = devATH
		res.DaysSince = daysBetween(ath.date, today)
	} else {
		res.RelevantHigh = oneYear.price
		res.DeviationPct = dev1y
		res.DaysSince = daysBetween(oneYear.date, today)
	}
	return res
}

func (c Config) near(price, high, devPct float64) bool {
	if c.Policy == ApproachRatio {
		return high > 0 && price >= high*c.RatioFloor
	}
	return high > 0 && devPct >= -c.BandPct
}

func deviationPct(price, high float64) float64 {
	if high == 0 {
		return 0
	}
	return (price/high - 1) * 100
}

func maxHigh(bars []model.OHLCV) extreme {
	best := extreme{bars[0].High, bars[0].Date}
	for _, b := range bars[1:] {
		if b.High > best.price {
			best = extreme{b.High, b.Date}
		}
	}
	return best
}

func checkBars(bars []model.OHLCV) error {
	for _, b := range bars {
		if b.High <= 0 || b.Close <= 0 || math.IsNaN(b.High) || math.IsNaN(b.Close) {
			return fmt.Errorf("%w: %s high=%v close=%v", ErrBadBar, b.Date.Format("2006-01-02"), b.High, b.Close)
		}
	}
	return nil
}

// daysBetween counts calendar days from one date to another, ignoring
// the time-of-day component.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
