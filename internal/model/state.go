package model

import "time"

// SymbolState is the persisted high-water-mark record for one symbol.
// AllTimeHigh is always >= OneYearHigh, and LastUpdate never moves
// backwards across successive scans.
type SymbolState struct {
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Market          string    `json:"market"`
	AllTimeHigh     float64   `json:"all_time_high"`
	AllTimeHighDate time.Time `json:"all_time_high_date"`
	OneYearHigh     float64   `json:"one_year_high"`
	OneYearHighDate time.Time `json:"one_year_high_date"`
	LastPrice       float64   `json:"last_price"`
	LastUpdate      time.Time `json:"last_update"`
}
