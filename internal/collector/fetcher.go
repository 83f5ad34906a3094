package collector

import (
	"time"

	"TakaneWatch/internal/model"
)

// Fetcher defines the interface for fetching daily price history.
// All methods return bars in ascending date order.
type Fetcher interface {
	// FetchFullHistory returns every available daily bar for a symbol.
	FetchFullHistory(code string) ([]model.OHLCV, error)
	// FetchHistory returns daily bars from start (inclusive) through the
	// most recent session.
	FetchHistory(code string, start time.Time) ([]model.OHLCV, error)
	// FetchChart returns a fixed recent window for drill-down charting.
	FetchChart(code string, months int) ([]model.OHLCV, error)
	Name() string
}
