package model

import "encoding/json"

// Bar represents one trading day's OHLCV data for a single symbol.
// Prices are in the quote currency (CNY for CN A-shares). Volume is in
// shares, Amount in currency units, matching the data-sync service payloads.
type Bar struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"vol"`
	Amount   float64 `json:"amount"`
	AvgPrice float64 `json:"avg_price"` // execution reference price, (O+H+L+C)/4
}

// FillAvgPrice computes the execution-reference price from OHLC when the
// data service omitted it. Leaves an already-set value untouched.
func (b *Bar) FillAvgPrice() {
	if b.AvgPrice == 0 && b.Open > 0 && b.High > 0 && b.Low > 0 && b.Close > 0 {
		b.AvgPrice = (b.Open + b.High + b.Low + b.Close) / 4
	}
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
