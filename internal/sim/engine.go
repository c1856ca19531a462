package sim

import (
	"context"
	"fmt"

	"simtrade/internal/model"
)

// Side of a simulated order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Outcome classifies what happened to a queued intent during AdvanceDay.
type Outcome string

const (
	OutcomeFilled Outcome = "FILLED"

	// Drop reasons. Dropped orders raise no error and leave no trace in the
	// state — the DayReport is the only record they ever existed.
	DropNoBar            Outcome = "NO_BAR"
	DropBadPrice         Outcome = "BAD_PRICE"
	DropInsufficientCash Outcome = "INSUFFICIENT_CASH"
	DropNoPosition       Outcome = "NO_POSITION"
	DropBelowLot         Outcome = "BELOW_LOT"
)

// OrderResult describes the outcome of one queued intent.
type OrderResult struct {
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Qty      int64   `json:"qty"`
	Price    float64 `json:"price"`
	Gross    float64 `json:"gross"`
	Fee      float64 `json:"fee"`
	Slippage float64 `json:"slippage"`
	Outcome  Outcome `json:"outcome"`
}

// Filled reports whether the order executed.
func (r OrderResult) Filled() bool { return r.Outcome == OutcomeFilled }

// DayReport is the diagnostic record of one AdvanceDay transition. It lets
// callers distinguish "nothing was queued" from "queued but dropped"; the
// state itself keeps no record of drops.
type DayReport struct {
	Date    string        `json:"date"`
	Results []OrderResult `json:"results"`
}

// Fills returns only the executed orders.
func (d DayReport) Fills() []OrderResult {
	var out []OrderResult
	for _, r := range d.Results {
		if r.Filled() {
			out = append(out, r)
		}
	}
	return out
}

// Drops returns only the dropped orders.
func (d DayReport) Drops() []OrderResult {
	var out []OrderResult
	for _, r := range d.Results {
		if !r.Filled() {
			out = append(out, r)
		}
	}
	return out
}

// AdvanceDay executes one simulation step: fetch the next day's bars in a
// single batched call, fill queued sells then queued buys, clear both
// queues, and advance the clock.
//
// The transition is atomic at the step level: a fetch error returns the
// input state unchanged and the step may be retried. Within a successful
// fetch, individual orders are independently filled or dropped — an order
// either fully executes at its computed size or is fully dropped; partial
// fills do not exist. Queues are cleared unconditionally, so dropped orders
// never carry over to the following day.
func AdvanceDay(ctx context.Context, md model.MarketData, st State, costs Costs) (State, DayReport, error) {
	next, ok := st.NextDate()
	if !ok {
		return st, DayReport{}, ErrEndOfRange
	}

	// One batched lookup covers queued symbols plus held symbols, so open
	// positions get marked to market on days they don't trade.
	symbols := tradeSymbols(st)
	bars, err := md.DailyBars(ctx, symbols, next)
	if err != nil {
		return st, DayReport{}, fmt.Errorf("fetch bars for %s: %w", next, err)
	}

	ns := st.clone()
	report := DayReport{Date: next}

	for sym, pos := range ns.Positions {
		if bar, ok := bars[sym]; ok && bar.AvgPrice > 0 {
			pos.LastPrice = bar.AvgPrice
			ns.Positions[sym] = pos
		}
	}

	// Sells strictly before buys: sale proceeds fund same-day buys.
	for _, si := range ns.SellQueue {
		report.Results = append(report.Results, executeSell(&ns, bars, si, costs))
	}
	for _, bi := range ns.BuyQueue {
		report.Results = append(report.Results, executeBuy(&ns, bars, bi, costs))
	}

	ns.SellQueue = nil
	ns.BuyQueue = nil
	ns.CurrentIndex++
	return ns, report, nil
}

// tradeSymbols returns the union of queued and held symbols, queue order
// first, for the batched bar fetch.
func tradeSymbols(st State) []string {
	seen := make(map[string]bool, len(st.SellQueue)+len(st.BuyQueue)+len(st.Positions))
	out := make([]string, 0, len(st.SellQueue)+len(st.BuyQueue)+len(st.Positions))
	add := func(sym string) {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	for _, si := range st.SellQueue {
		add(si.Symbol)
	}
	for _, bi := range st.BuyQueue {
		add(bi.Symbol)
	}
	for sym := range st.Positions {
		add(sym)
	}
	return out
}

func executeSell(ns *State, bars map[string]model.Bar, si model.SellIntent, costs Costs) OrderResult {
	res := OrderResult{Symbol: si.Symbol, Side: SideSell}

	pos, ok := ns.Positions[si.Symbol]
	if !ok {
		res.Outcome = DropNoPosition
		return res
	}
	res.Qty = pos.Qty

	bar, ok := bars[si.Symbol]
	if !ok {
		res.Outcome = DropNoBar
		return res
	}
	if bar.AvgPrice <= 0 {
		res.Outcome = DropBadPrice
		return res
	}

	gross := float64(pos.Qty) * bar.AvgPrice
	fee := gross * costs.FeeRate
	slippage := gross * costs.SlippageRate

	ns.Cash += gross - fee - slippage
	delete(ns.Positions, si.Symbol) // whole position, removed not zeroed

	res.Price = bar.AvgPrice
	res.Gross = gross
	res.Fee = fee
	res.Slippage = slippage
	res.Outcome = OutcomeFilled
	return res
}

func executeBuy(ns *State, bars map[string]model.Bar, bi model.BuyIntent, costs Costs) OrderResult {
	// Re-round at execution time; intents are rounded at submission already.
	qty := RoundToLot(bi.Qty)
	res := OrderResult{Symbol: bi.Symbol, Side: SideBuy, Qty: qty}
	if qty == 0 {
		res.Outcome = DropBelowLot
		return res
	}

	bar, ok := bars[bi.Symbol]
	if !ok {
		res.Outcome = DropNoBar
		return res
	}
	if bar.AvgPrice <= 0 {
		res.Outcome = DropBadPrice
		return res
	}

	gross := float64(qty) * bar.AvgPrice
	fee := gross * costs.FeeRate
	slippage := gross * costs.SlippageRate
	cost := gross + fee + slippage
	if cost > ns.Cash {
		res.Outcome = DropInsufficientCash
		return res
	}

	ns.Cash -= cost

	pos := ns.Positions[bi.Symbol]
	pos.Symbol = bi.Symbol
	if pos.Qty+qty > 0 {
		// Quantity-weighted average of old and new holdings; fees stay out
		// of the cost basis, matching the desktop app.
		pos.AvgCost = (float64(pos.Qty)*pos.AvgCost + float64(qty)*bar.AvgPrice) / float64(pos.Qty+qty)
	}
	pos.Qty += qty
	pos.LastPrice = bar.AvgPrice
	ns.Positions[bi.Symbol] = pos

	res.Price = bar.AvgPrice
	res.Gross = gross
	res.Fee = fee
	res.Slippage = slippage
	res.Outcome = OutcomeFilled
	return res
}
