package model

import "context"

// ── Market Data Port ──
// This interface decouples the simulation engine from concrete data sources
// (data-sync REST service, Redis cache, in-memory fixtures). The engine only
// ever reads: it never writes market data.

// MarketData provides the trading calendar and daily execution bars.
type MarketData interface {
	// TradingDays returns the ordered list of trading-day dates (YYYY-MM-DD)
	// in [start, end], inclusive, per the exchange calendar.
	TradingDays(ctx context.Context, start, end string) ([]string, error)

	// DailyBars returns one day's bar per symbol in a single batched lookup.
	// A symbol missing from the result map means no bar exists for that day
	// and is treated as "no fill" by the caller.
	DailyBars(ctx context.Context, symbols []string, date string) (map[string]Bar, error)
}
