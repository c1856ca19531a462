package indicator

import (
	"math"
	"testing"

	"simtrade/internal/model"
)

func TestKDJ_Empty(t *testing.T) {
	out := KDJ(nil, 9, 3, 3)
	if len(out.K) != 0 || len(out.D) != 0 || len(out.J) != 0 {
		t.Fatalf("expected empty series, got k=%d d=%d j=%d", len(out.K), len(out.D), len(out.J))
	}
}

func TestKDJ_SingleFlatBar(t *testing.T) {
	bars := []model.Bar{{Date: "2024-01-02", Open: 100, High: 100, Low: 100, Close: 100}}
	out := KDJ(bars, 9, 3, 3)
	// Flat window: RSV = 50, K and D seed on it, J = 3K − 2D = 50.
	if out.K[0] != 50 || out.D[0] != 50 || out.J[0] != 50 {
		t.Errorf("expected k=d=j=50, got k=%v d=%v j=%v", out.K[0], out.D[0], out.J[0])
	}
}

func TestKDJ_JConsistency(t *testing.T) {
	bars := makeBars(10, 12, 9, 14, 13, 11, 15, 16, 12, 14, 17)
	out := KDJ(bars, 9, 3, 3)
	for i := range out.J {
		want := 3*out.K[i] - 2*out.D[i]
		if math.Abs(out.J[i]-want) > 1e-12 {
			t.Errorf("index %d: j=%v want %v", i, out.J[i], want)
		}
	}
}

func TestKDJ_WindowClipping(t *testing.T) {
	// Close sits at the window high on every bar of a rising series, so
	// RSV = 100 throughout once high > low; K converges toward 100 from the
	// seeded first value.
	bars := []model.Bar{
		{High: 11, Low: 9, Close: 11},
		{High: 12, Low: 10, Close: 12},
		{High: 13, Low: 11, Close: 13},
	}
	out := KDJ(bars, 9, 3, 3)

	// rsv[0] = (11-9)/(11-9)*100 = 100, seeds K and D.
	if out.K[0] != 100 || out.D[0] != 100 {
		t.Fatalf("expected seeded k=d=100, got k=%v d=%v", out.K[0], out.D[0])
	}
	// rsv[1] = (12-9)/(12-9)*100 = 100 over the clipped 2-bar window.
	if math.Abs(out.K[1]-100) > 1e-12 {
		t.Errorf("expected k[1]=100, got %v", out.K[1])
	}
}

func TestKDJ_SmoothingRecurrence(t *testing.T) {
	bars := makeBars(10, 20, 15, 25, 18)
	out := KDJ(bars, 3, 3, 3)

	// Recompute RSV/K/D by hand with the clipped 3-bar window.
	rsv := make([]float64, len(bars))
	for i := range bars {
		lo := i - 2
		if lo < 0 {
			lo = 0
		}
		hi, lw := bars[lo].High, bars[lo].Low
		for j := lo + 1; j <= i; j++ {
			if bars[j].High > hi {
				hi = bars[j].High
			}
			if bars[j].Low < lw {
				lw = bars[j].Low
			}
		}
		if hi == lw {
			rsv[i] = 50
		} else {
			rsv[i] = (bars[i].Close - lw) / (hi - lw) * 100
		}
	}
	k, d := rsv[0], rsv[0]
	for i := range bars {
		if i > 0 {
			k = k*2/3 + rsv[i]/3
			d = d*2/3 + k/3
		}
		if math.Abs(out.K[i]-k) > 1e-12 {
			t.Errorf("index %d: k=%v want %v", i, out.K[i], k)
		}
		if math.Abs(out.D[i]-d) > 1e-12 {
			t.Errorf("index %d: d=%v want %v", i, out.D[i], d)
		}
	}
}

func TestKDJ_PureAndIdempotent(t *testing.T) {
	bars := makeBars(10, 12, 9, 14, 13)
	before := make([]model.Bar, len(bars))
	copy(before, bars)

	first := KDJ(bars, 9, 3, 3)
	second := KDJ(bars, 9, 3, 3)
	for i := range first.K {
		if first.K[i] != second.K[i] || first.D[i] != second.D[i] || first.J[i] != second.J[i] {
			t.Fatalf("index %d: repeated calls disagree", i)
		}
	}
	for i := range bars {
		if bars[i] != before[i] {
			t.Fatalf("index %d: input bars mutated", i)
		}
	}
}
