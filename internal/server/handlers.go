package server

import (
	"context"
	"log"
	"math"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"TakaneWatch/internal/collector"
	"TakaneWatch/internal/model"
	"TakaneWatch/internal/scanner"
)

// Handlers holds the collaborators the API needs.
type Handlers struct {
	scanner     *scanner.Scanner
	fetcher     collector.Fetcher
	ctx         context.Context // base context for API-triggered scans
	chartMonths int
}

// NewHandlers creates the API handlers. ctx outlives any single request
// so a triggered scan keeps running after the HTTP response.
func NewHandlers(ctx context.Context, sc *scanner.Scanner, f collector.Fetcher, chartMonths int) *Handlers {
	if chartMonths <= 0 {
		chartMonths = 6
	}
	return &Handlers{scanner: sc, fetcher: f, ctx: ctx, chartMonths: chartMonths}
}

func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resultRow is the presentation shape of one classified symbol. All
// rounding happens here: one decimal for prices, two for deviations.
type resultRow struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Market       string  `json:"market"`
	CurrentPrice float64 `json:"current_price"`
	High         float64 `json:"high"`
	DaysSince    int     `json:"days_since"`
	DeviationPct float64 `json:"deviation_pct"`
}

func toRow(r model.ScanResult) resultRow {
	return resultRow{
		Code:         r.State.Code,
		Name:         r.State.Name,
		Market:       r.State.Market,
		CurrentPrice: round(r.CurrentPrice, 1),
		High:         round(r.RelevantHigh, 1),
		DaysSince:    r.DaysSince,
		DeviationPct: round(r.DeviationPct, 2),
	}
}

func groupResults(results []model.ScanResult) map[model.Status][]resultRow {
	buckets := make(map[model.Status][]model.ScanResult)
	for _, r := range results {
		buckets[r.Status] = append(buckets[r.Status], r)
	}

	groups := make(map[model.Status][]resultRow, len(model.Statuses))
	for _, status := range model.Statuses {
		rs := buckets[status]
		if status.IsBreak() {
			// Fresh breaks sorted by how long the old high stood.
			sort.Slice(rs, func(i, j int) bool { return rs[i].DaysSince < rs[j].DaysSince })
		} else {
			// Approaches sorted closest-to-the-high first.
			sort.Slice(rs, func(i, j int) bool { return rs[i].DeviationPct > rs[j].DeviationPct })
		}
		rows := make([]resultRow, len(rs))
		for i, r := range rs {
			rows[i] = toRow(r)
		}
		groups[status] = rows
	}
	return groups
}

func (h *Handlers) GetResults(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": groupResults(h.scanner.Results())})
}

func (h *Handlers) GetResultsByStatus(c *gin.Context) {
	status := model.Status(c.Param("status"))
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + string(status)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": groupResults(h.scanner.Results())[status]})
}

func (h *Handlers) TriggerScan(c *gin.Context) {
	if h.scanner.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "a scan is already in progress"})
		return
	}
	go func() {
		if _, err := h.scanner.Scan(h.ctx); err != nil && err != scanner.ErrScanInProgress {
			log.Printf("[ERROR] api-triggered scan: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (h *Handlers) ScanStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":     h.scanner.Running(),
		"progress":    h.scanner.Progress(),
		"last_report": h.scanner.LastReport(),
	})
}

// GetChart serves the read-only drill-down: a fixed recent window of
// daily bars, bypassing the watermark and store entirely.
func (h *Handlers) GetChart(c *gin.Context) {
	code := c.Param("code")
	bars, err := h.fetcher.FetchChart(code, h.chartMonths)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "fetch chart: " + err.Error()})
		return
	}
	if len(bars) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no chart data for " + code})
		return
	}

	last := bars[len(bars)-1]
	windowHigh := bars[0].High
	for _, b := range bars[1:] {
		if b.High > windowHigh {
			windowHigh = b.High
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"code": code,
		"bars": bars,
		"summary": gin.H{
			"last_close":  round(last.Close, 1),
			"window_high": round(windowHigh, 1),
			"last_volume": last.Volume,
		},
	})
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
