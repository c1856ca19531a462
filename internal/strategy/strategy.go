// Package strategy provides trading strategies for headless backtesting.
//
// A Strategy observes daily bar history and the current simulation state and
// emits intents for the next trading day. The backtest driver enqueues those
// intents and advances the simulation, so strategies rehearse against exactly
// the same execution rules as the interactive UI.
package strategy

import (
	"simtrade/internal/model"
	"simtrade/internal/sim"
)

// Action represents a trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Signal is an intent emitted by a strategy for the next trading day.
type Signal struct {
	StrategyName string `json:"strategy_name"`
	Action       Action `json:"action"`
	Symbol       string `json:"symbol"`
	Qty          int64  `json:"qty"` // buys only; sells are whole-position
	Reason       string `json:"reason"`
}

// Strategy is the interface all backtest strategies implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// OnDay is called once per simulated day, after bars through that day
	// are known, with per-symbol history in calendar order. Returned
	// signals are queued for the next trading day.
	OnDay(date string, history map[string][]model.Bar, st sim.State) []Signal
}
