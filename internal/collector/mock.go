package collector

import (
	"fmt"
	"sync"
	"time"

	"TakaneWatch/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu      sync.Mutex
	History map[string][]model.OHLCV // full history per code
	Fail    map[string]int          // fail the first N calls per code
	Calls   map[string]int
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		History: make(map[string][]model.OHLCV),
		Fail:    make(map[string]int),
		Calls:   make(map[string]int),
	}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) fetch(code string) ([]model.OHLCV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[code]++
	if m.Fail[code] > 0 {
		m.Fail[code]--
		return nil, fmt.Errorf("mock: transient failure for %s", code)
	}
	return m.History[code], nil
}

func (m *MockFetcher) FetchFullHistory(code string) ([]model.OHLCV, error) {
	return m.fetch(code)
}

func (m *MockFetcher) FetchHistory(code string, start time.Time) ([]model.OHLCV, error) {
	bars, err := m.fetch(code)
	if err != nil {
		return nil, err
	}
	var out []model.OHLCV
	for _, b := range bars {
		if !b.Date.Before(start) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MockFetcher) FetchChart(code string, months int) ([]model.OHLCV, error) {
	return m.fetch(code)
}

// CallCount reports how many fetches were made for a code.
func (m *MockFetcher) CallCount(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[code]
}
