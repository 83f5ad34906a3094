package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"TakaneWatch/internal/collector"
	"TakaneWatch/internal/model"
	"TakaneWatch/internal/recorder"
	"TakaneWatch/internal/scanner"
	"TakaneWatch/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSource struct {
	listings []model.Listing
}

func (s *stubSource) List() ([]model.Listing, error) { return s.listings, nil }

// flatHistory builds days bars whose history peaks at histHigh, with a
// final session closing at lastClose.
func flatHistory(days int, histHigh, lastClose float64) []model.OHLCV {
	base := time.Now().UTC().Truncate(24 * time.Hour)
	bars := make([]model.OHLCV, 0, days)
	for i := days - 1; i >= 0; i-- {
		h, c := histHigh, histHigh-5
		if i == 0 {
			h, c = lastClose, lastClose
		}
		bars = append(bars, model.OHLCV{
			Date: base.AddDate(0, 0, -i), Open: c, High: h, Low: c - 1, Close: c, Volume: 5000,
		})
	}
	return bars
}

func newTestServer(t *testing.T) (*Server, *collector.MockFetcher, *scanner.Scanner) {
	t.Helper()
	fetcher := collector.NewMockFetcher()
	// 9501 closes on its high above all history: an all-time break.
	fetcher.History["9501"] = flatHistory(50, 320, 320)
	// 9502 closes well under its high: idle.
	fetcher.History["9502"] = flatHistory(50, 500, 400)
	src := &stubSource{listings: []model.Listing{
		{Code: "9501", Name: "東京電力", Market: "プライム"},
		{Code: "9502", Name: "中部電力", Market: "プライム"},
	}}

	st := store.New(filepath.Join(t.TempDir(), "master.csv"))
	cfg := scanner.DefaultConfig()
	cfg.JitterMin = 0
	cfg.JitterMax = 0
	sc := scanner.New(fetcher, src, st, recorder.NewNoopRecorder(), nil, cfg)

	h := NewHandlers(context.Background(), sc, fetcher, 6)
	return New("0", h), fetcher, sc
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestGetResults_Grouping(t *testing.T) {
	srv, _, sc := newTestServer(t)
	if _, err := sc.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, srv, "GET", "/api/v1/results")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data map[string][]struct {
			Code         string  `json:"code"`
			CurrentPrice float64 `json:"current_price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data["ath_break"]) != 1 || resp.Data["ath_break"][0].Code != "9501" {
		t.Errorf("ath_break group = %+v", resp.Data["ath_break"])
	}
	if len(resp.Data["idle"]) != 1 || resp.Data["idle"][0].Code != "9502" {
		t.Errorf("idle group = %+v", resp.Data["idle"])
	}
}

func TestGetResultsByStatus(t *testing.T) {
	srv, _, sc := newTestServer(t)
	if _, err := sc.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, srv, "GET", "/api/v1/results/ath_break")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = doRequest(t, srv, "GET", "/api/v1/results/bogus")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown status", w.Code)
	}
}

func TestGetChart(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, "GET", "/api/v1/chart/9501")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code    string         `json:"code"`
		Bars    []model.OHLCV  `json:"bars"`
		Summary map[string]any `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "9501" || len(resp.Bars) != 50 {
		t.Errorf("chart payload: code=%s bars=%d", resp.Code, len(resp.Bars))
	}
	if resp.Summary["window_high"].(float64) != 320 {
		t.Errorf("window_high = %v, want 320", resp.Summary["window_high"])
	}

	w = doRequest(t, srv, "GET", "/api/v1/chart/0000")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown code", w.Code)
	}
}

func TestTriggerScan(t *testing.T) {
	srv, _, sc := newTestServer(t)

	w := doRequest(t, srv, "POST", "/api/v1/scan")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	// Wait for the async scan to finish before checking status reporting.
	deadline := time.Now().Add(5 * time.Second)
	for sc.LastReport() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sc.LastReport() == nil {
		t.Fatal("triggered scan never completed")
	}

	w = doRequest(t, srv, "GET", "/api/v1/scan/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Running    bool             `json:"running"`
		LastReport *model.ScanReport `json:"last_report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Running {
		t.Error("scan still reported running")
	}
	if resp.LastReport == nil || resp.LastReport.Universe != 2 {
		t.Errorf("last_report = %+v", resp.LastReport)
	}
}
