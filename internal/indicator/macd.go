package indicator

import "simtrade/internal/model"

// Default MACD periods, matching the desktop charting defaults.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// MACDSeries holds MACD output series aligned with the input bars.
type MACDSeries struct {
	DIF  []float64 `json:"dif"`  // EMA(close, fast) − EMA(close, slow)
	DEA  []float64 `json:"dea"`  // EMA(DIF, signal)
	Hist []float64 `json:"hist"` // (DIF − DEA) × 2
}

// MACD computes moving-average convergence/divergence over daily closes.
// Non-positive periods fall back to the defaults.
func MACD(bars []model.Bar, fast, slow, signal int) MACDSeries {
	if fast <= 0 {
		fast = DefaultMACDFast
	}
	if slow <= 0 {
		slow = DefaultMACDSlow
	}
	if signal <= 0 {
		signal = DefaultMACDSignal
	}

	closes := make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}

	fastEMA := ema(closes, fast)
	slowEMA := ema(closes, slow)

	dif := make([]float64, len(bars))
	for i := range dif {
		dif[i] = fastEMA[i] - slowEMA[i]
	}

	dea := ema(dif, signal)

	hist := make([]float64, len(bars))
	for i := range hist {
		hist[i] = (dif[i] - dea[i]) * 2
	}

	return MACDSeries{DIF: dif, DEA: dea, Hist: hist}
}
