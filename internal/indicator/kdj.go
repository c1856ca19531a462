package indicator

import "simtrade/internal/model"

// Default KDJ periods, matching the desktop charting defaults.
const (
	DefaultKDJWindow  = 9
	DefaultKDJKPeriod = 3
	DefaultKDJDPeriod = 3
)

// KDJSeries holds stochastic oscillator output series aligned with the
// input bars. J is left unclamped and may fall outside [0, 100]; any
// clamping for display is the caller's job.
type KDJSeries struct {
	K []float64 `json:"k"`
	D []float64 `json:"d"`
	J []float64 `json:"j"`
}

// KDJ computes the stochastic oscillator over daily bars. RSV is taken over
// a rolling window of the last n bars, clipped to the available history at
// the start of the series. Non-positive periods fall back to the defaults.
func KDJ(bars []model.Bar, n, kPeriod, dPeriod int) KDJSeries {
	if n <= 0 {
		n = DefaultKDJWindow
	}
	if kPeriod <= 0 {
		kPeriod = DefaultKDJKPeriod
	}
	if dPeriod <= 0 {
		dPeriod = DefaultKDJDPeriod
	}

	rsv := make([]float64, len(bars))
	for i := range bars {
		lo := i - n + 1
		if lo < 0 {
			lo = 0
		}
		windowHigh := bars[lo].High
		windowLow := bars[lo].Low
		for j := lo + 1; j <= i; j++ {
			if bars[j].High > windowHigh {
				windowHigh = bars[j].High
			}
			if bars[j].Low < windowLow {
				windowLow = bars[j].Low
			}
		}
		if windowHigh == windowLow {
			// Flat window — avoid division by zero
			rsv[i] = 50
		} else {
			rsv[i] = (bars[i].Close - windowLow) / (windowHigh - windowLow) * 100
		}
	}

	k := smoothedMA(rsv, kPeriod)
	d := smoothedMA(k, dPeriod)

	j := make([]float64, len(bars))
	for i := range j {
		j[i] = 3*k[i] - 2*d[i]
	}

	return KDJSeries{K: k, D: d, J: j}
}
