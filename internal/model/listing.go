package model

// Listing identifies one tradable symbol from the exchange list.
// Code is kept as a string to preserve leading zeros.
type Listing struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
}
