// Package memory provides an in-memory MarketData implementation backed by
// fixtures. It serves tests and offline backtests where the data-sync
// service is unavailable.
package memory

import (
	"context"

	"simtrade/internal/model"
)

// Provider holds a fixed trading calendar and per-symbol daily bars.
type Provider struct {
	days []string
	bars map[string]map[string]model.Bar // symbol -> date -> bar
}

// New creates a provider over the given ordered trading-day calendar.
func New(days []string) *Provider {
	return &Provider{
		days: days,
		bars: make(map[string]map[string]model.Bar),
	}
}

// AddBar registers a daily bar fixture. The execution-reference price is
// derived from OHLC when not set, like the data-sync service does.
func (p *Provider) AddBar(symbol string, bar model.Bar) {
	bar.FillAvgPrice()
	byDate, ok := p.bars[symbol]
	if !ok {
		byDate = make(map[string]model.Bar)
		p.bars[symbol] = byDate
	}
	byDate[bar.Date] = bar
}

// TradingDays returns calendar days within [start, end], inclusive.
func (p *Provider) TradingDays(_ context.Context, start, end string) ([]string, error) {
	var out []string
	for _, d := range p.days {
		if d >= start && d <= end {
			out = append(out, d)
		}
	}
	return out, nil
}

// DailyBars returns the bar per symbol for one date. Symbols without a bar
// are simply absent from the result.
func (p *Provider) DailyBars(_ context.Context, symbols []string, date string) (map[string]model.Bar, error) {
	out := make(map[string]model.Bar, len(symbols))
	for _, sym := range symbols {
		if bar, ok := p.bars[sym][date]; ok {
			out[sym] = bar
		}
	}
	return out, nil
}

// Bars returns all fixture bars for a symbol in calendar order, for feeding
// indicator computations in backtests.
func (p *Provider) Bars(symbol string) []model.Bar {
	byDate := p.bars[symbol]
	out := make([]model.Bar, 0, len(byDate))
	for _, d := range p.days {
		if bar, ok := byDate[d]; ok {
			out = append(out, bar)
		}
	}
	return out
}
