// Package sim implements the day-stepped paper-trading engine.
//
// Simulation state is an explicit value type transformed by pure transition
// functions: every operation returns a new State and leaves its input
// untouched. The only suspension point is the market-data fetch inside
// AdvanceDay; everything else is synchronous computation. This keeps the
// engine UI-independent and lets headless backtests drive the same
// transitions in a loop.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"simtrade/internal/model"
)

// LotSize is the board lot for CN A-shares. All position and order
// quantities are non-negative multiples of it.
const LotSize = 100

// Default proportional costs applied to the gross value of every fill.
const (
	DefaultFeeRate      = 0.0005
	DefaultSlippageRate = 0.0005
)

var (
	ErrInvalidDateRange = errors.New("sim: start date after end date")
	ErrEmptyCalendar    = errors.New("sim: no trading days in range")
	ErrNonPositiveCash  = errors.New("sim: initial cash must be positive")
	ErrBelowLot         = errors.New("sim: quantity rounds below one board lot")
	ErrNoPosition       = errors.New("sim: no open position for symbol")
	ErrEndOfRange       = errors.New("sim: already at the last trading day")
)

// Costs holds the proportional transaction costs of the simulation.
type Costs struct {
	FeeRate      float64 `json:"fee_rate"`
	SlippageRate float64 `json:"slippage_rate"`
}

// DefaultCosts returns the standard fee/slippage configuration.
func DefaultCosts() Costs {
	return Costs{FeeRate: DefaultFeeRate, SlippageRate: DefaultSlippageRate}
}

// State is the complete simulation state for one rehearsal session.
// It is a value: transition functions copy it rather than mutate it.
// Lifetime is a single in-memory session — there is no durable persistence.
type State struct {
	SessionID    string                    `json:"session_id"`
	TradingDays  []string                  `json:"trading_days"`
	CurrentIndex int                       `json:"current_index"`
	InitialCash  float64                   `json:"initial_cash"`
	Cash         float64                   `json:"cash"`
	Positions    map[string]model.Position `json:"positions"`
	BuyQueue     []model.BuyIntent         `json:"buy_queue"`
	SellQueue    []model.SellIntent        `json:"sell_queue"`
}

// New starts a simulation session over [start, end] with the given cash.
// The trading calendar is fetched once from the provider; configuration
// errors surface synchronously and no state is created.
func New(ctx context.Context, md model.MarketData, start, end string, initialCash float64) (State, error) {
	if start > end {
		return State{}, ErrInvalidDateRange
	}
	if initialCash <= 0 {
		return State{}, ErrNonPositiveCash
	}
	days, err := md.TradingDays(ctx, start, end)
	if err != nil {
		return State{}, fmt.Errorf("fetch trading days: %w", err)
	}
	if len(days) == 0 {
		return State{}, ErrEmptyCalendar
	}
	return State{
		SessionID:   uuid.NewString(),
		TradingDays: days,
		InitialCash: initialCash,
		Cash:        initialCash,
		Positions:   make(map[string]model.Position),
	}, nil
}

// CurrentDate returns the trading day the simulation currently stands on.
func (st State) CurrentDate() string {
	if len(st.TradingDays) == 0 {
		return ""
	}
	return st.TradingDays[st.CurrentIndex]
}

// CanAdvance reports whether another simulated day exists.
func (st State) CanAdvance() bool {
	return st.CurrentIndex < len(st.TradingDays)-1
}

// NextDate returns the next trading day, or ok=false at the end of range.
func (st State) NextDate() (string, bool) {
	if !st.CanAdvance() {
		return "", false
	}
	return st.TradingDays[st.CurrentIndex+1], true
}

// RoundToLot floors a share quantity to the nearest board-lot multiple.
func RoundToLot(qty int64) int64 {
	if qty < 0 {
		return 0
	}
	return qty - qty%LotSize
}

// EnqueueBuy queues a buy intent for the next trading day. The quantity is
// floor-rounded to the board lot at submission; a request that rounds to
// zero is rejected. A second intent for the same symbol replaces the first
// (last write wins, not cumulative).
func (st State) EnqueueBuy(symbol string, qty int64) (State, error) {
	rounded := RoundToLot(qty)
	if rounded == 0 {
		return st, ErrBelowLot
	}
	ns := st.clone()
	for i := range ns.BuyQueue {
		if ns.BuyQueue[i].Symbol == symbol {
			ns.BuyQueue[i].Qty = rounded
			return ns, nil
		}
	}
	ns.BuyQueue = append(ns.BuyQueue, model.BuyIntent{Symbol: symbol, Qty: rounded})
	return ns, nil
}

// EnqueueSell queues a whole-position sell for the next trading day.
// Rejected when the symbol has no open position; a duplicate intent for an
// already-queued symbol is a no-op.
func (st State) EnqueueSell(symbol string) (State, error) {
	if _, ok := st.Positions[symbol]; !ok {
		return st, ErrNoPosition
	}
	for _, si := range st.SellQueue {
		if si.Symbol == symbol {
			return st, nil
		}
	}
	ns := st.clone()
	ns.SellQueue = append(ns.SellQueue, model.SellIntent{Symbol: symbol})
	return ns, nil
}

// CancelBuy removes a queued buy intent by symbol. Never touches the ledger.
func (st State) CancelBuy(symbol string) State {
	ns := st.clone()
	out := ns.BuyQueue[:0]
	for _, bi := range ns.BuyQueue {
		if bi.Symbol != symbol {
			out = append(out, bi)
		}
	}
	ns.BuyQueue = out
	return ns
}

// CancelSell removes a queued sell intent by symbol. Never touches the ledger.
func (st State) CancelSell(symbol string) State {
	ns := st.clone()
	out := ns.SellQueue[:0]
	for _, si := range ns.SellQueue {
		if si.Symbol != symbol {
			out = append(out, si)
		}
	}
	ns.SellQueue = out
	return ns
}

// clone deep-copies the mutable parts of the state. TradingDays is shared:
// it is immutable after New.
func (st State) clone() State {
	ns := st
	ns.Positions = make(map[string]model.Position, len(st.Positions))
	for k, v := range st.Positions {
		ns.Positions[k] = v
	}
	ns.BuyQueue = append([]model.BuyIntent(nil), st.BuyQueue...)
	ns.SellQueue = append([]model.SellIntent(nil), st.SellQueue...)
	return ns
}
