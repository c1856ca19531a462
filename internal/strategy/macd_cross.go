package strategy

import (
	"fmt"
	"log"

	"simtrade/internal/indicator"
	"simtrade/internal/model"
	"simtrade/internal/sim"
)

// MACDCross trades MACD signal-line crossovers on daily bars.
//
// Buy signal: DIF crosses above DEA (golden cross)
// Sell signal: DIF crosses below DEA (death cross)
//
// A KDJ filter skips buys when J is overbought (> 100): a golden cross into
// an already-stretched move is usually chasing.
type MACDCross struct {
	name         string
	cashFraction float64 // fraction of current cash per buy
	jCeiling     float64
}

// NewMACDCross creates the strategy. cashFraction is the share of current
// cash committed per buy signal, e.g. 0.25.
func NewMACDCross(cashFraction float64) *MACDCross {
	if cashFraction <= 0 || cashFraction > 1 {
		cashFraction = 0.25
	}
	return &MACDCross{
		name:         "MACD_Cross",
		cashFraction: cashFraction,
		jCeiling:     100,
	}
}

func (s *MACDCross) Name() string { return s.name }

func (s *MACDCross) OnDay(date string, history map[string][]model.Bar, st sim.State) []Signal {
	var signals []Signal

	for symbol, bars := range history {
		// Need two points to detect a cross.
		if len(bars) < 2 {
			continue
		}
		macd := indicator.MACD(bars, 0, 0, 0)
		last := len(bars) - 1
		prevDiff := macd.DIF[last-1] - macd.DEA[last-1]
		currDiff := macd.DIF[last] - macd.DEA[last]

		_, held := st.Positions[symbol]

		if prevDiff <= 0 && currDiff > 0 && !held {
			kdj := indicator.KDJ(bars, 0, 0, 0)
			if kdj.J[last] > s.jCeiling {
				log.Printf("[strategy] %s: golden cross on %s filtered by J %.1f > %.0f",
					s.name, symbol, kdj.J[last], s.jCeiling)
				continue
			}
			qty := s.sizeBuy(st.Cash, bars[last].Close)
			if qty == 0 {
				continue
			}
			signals = append(signals, Signal{
				StrategyName: s.name,
				Action:       ActionBuy,
				Symbol:       symbol,
				Qty:          qty,
				Reason:       fmt.Sprintf("MACD golden cross on %s", date),
			})
		}

		if prevDiff >= 0 && currDiff < 0 && held {
			signals = append(signals, Signal{
				StrategyName: s.name,
				Action:       ActionSell,
				Symbol:       symbol,
				Reason:       fmt.Sprintf("MACD death cross on %s", date),
			})
		}
	}

	return signals
}

// sizeBuy converts a cash budget into a lot-rounded share quantity.
func (s *MACDCross) sizeBuy(cash, price float64) int64 {
	if price <= 0 {
		return 0
	}
	budget := cash * s.cashFraction
	return sim.RoundToLot(int64(budget / price))
}
