package model

import "time"

// Status classifies how close a symbol trades to its high-water marks.
type Status string

const (
	StatusATHBreak     Status = "ath_break"
	StatusOneYearBreak Status = "one_year_break"
	StatusNearATH      Status = "near_ath"
	StatusNearOneYear  Status = "near_one_year"
	StatusIdle         Status = "idle"
)

// Statuses lists all classifications in display order.
var Statuses = []Status{StatusATHBreak, StatusOneYearBreak, StatusNearATH, StatusNearOneYear, StatusIdle}

// Valid reports whether s is one of the known classifications.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsBreak reports whether s marks a fresh high.
func (s Status) IsBreak() bool {
	return s == StatusATHBreak || s == StatusOneYearBreak
}

// ScanResult is the classified outcome for one symbol in one scan cycle.
// The classification is derived, never persisted.
type ScanResult struct {
	State        SymbolState `json:"state"`
	Status       Status      `json:"status"`
	CurrentPrice float64     `json:"current_price"`
	RelevantHigh float64     `json:"relevant_high"`
	DeviationPct float64     `json:"deviation_pct"`
	DaysSince    int         `json:"days_since"`
}

// ScanFailure records a symbol that could not be updated this cycle.
type ScanFailure struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// ScanReport summarizes one full batch scan.
type ScanReport struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Universe  int           `json:"universe"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Breaks    int           `json:"breaks"`
	Failures  []ScanFailure `json:"failures,omitempty"`
}

// Progress is an advisory completion counter for a running scan.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}
