package model

// BuyIntent is a pending buy order for the next simulated trading day.
// Qty has already been rounded down to the board lot at submission time.
// At most one live intent per symbol exists in a queue (last write wins).
type BuyIntent struct {
	Symbol string `json:"symbol"`
	Qty    int64  `json:"qty"`
}

// SellIntent is a pending whole-position sell for the next simulated
// trading day. Partial sells do not exist.
type SellIntent struct {
	Symbol string `json:"symbol"`
}
