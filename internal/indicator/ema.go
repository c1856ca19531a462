// Package indicator provides technical indicator calculations over daily bars.
//
// All functions are pure: they take a bar slice and return derived series
// positionally aligned with the input, one entry per input bar. They hold no
// state between calls, never mutate their input, and are safe to call
// concurrently. An empty input yields empty output series.
package indicator

// ema computes an exponential moving average with smoothing factor
// k = 2/(period+1). The first sample seeds the average directly — there is
// no SMA warm-up, so early-index values differ from textbook EMA. Charting
// parity with the desktop app depends on this seeding; do not change it.
func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// smoothedMA computes a Wilder-style smoothed moving average:
// S_t = (m-1)/m * S_{t-1} + 1/m * X_t, seeded by the first sample.
func smoothedMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	m := float64(period)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1]*(m-1)/m + values[i]/m
	}
	return out
}
