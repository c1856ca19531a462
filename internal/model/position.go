package model

// Position represents an open long position in the simulated ledger.
// Qty is always a non-negative multiple of the board lot; a position whose
// quantity reaches zero is removed from the ledger, never kept as a zero row.
type Position struct {
	Symbol    string  `json:"symbol"`
	Qty       int64   `json:"qty"`
	AvgCost   float64 `json:"avg_cost"`   // quantity-weighted average entry price
	LastPrice float64 `json:"last_price"` // latest known execution-reference price
}

// MarketValue returns the position's value at the last known price.
func (p *Position) MarketValue() float64 {
	return float64(p.Qty) * p.LastPrice
}

// UnrealizedPnL computes unrealized profit/loss at the last known price.
func (p *Position) UnrealizedPnL() float64 {
	return (p.LastPrice - p.AvgCost) * float64(p.Qty)
}
