package sim

import (
	"context"
	"fmt"
	"math"
	"testing"

	"pgregory.net/rapid"

	"simtrade/internal/marketdata/memory"
)

// Property: lot sizing and non-negative cash hold across any sequence of
// enqueue/cancel/advance operations against a randomized market.

func TestProperty_LedgerInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numDays := rapid.IntRange(2, 12).Draw(t, "numDays")
		days := make([]string, numDays)
		for i := range days {
			days[i] = fmt.Sprintf("2024-03-%02d", i+1)
		}

		symbols := []string{"CN:000001", "CN:600000", "CN:300750"}
		md := memory.New(days)
		for _, sym := range symbols {
			for _, d := range days {
				// Some symbol/day pairs have no bar at all (no fill).
				if rapid.Float64Range(0, 1).Draw(t, "haveBar") < 0.8 {
					price := rapid.Float64Range(1, 500).Draw(t, "price")
					md.AddBar(sym, barAt(d, price))
				}
			}
		}

		initialCash := rapid.Float64Range(10_000, 5_000_000).Draw(t, "initialCash")
		st, err := New(context.Background(), md, days[0], days[numDays-1], initialCash)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			sym := rapid.SampledFrom(symbols).Draw(t, "sym")
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				qty := rapid.Int64Range(1, 5000).Draw(t, "qty")
				if ns, err := st.EnqueueBuy(sym, qty); err == nil {
					st = ns
				}
			case 1:
				if ns, err := st.EnqueueSell(sym); err == nil {
					st = ns
				}
			case 2:
				st = st.CancelBuy(sym)
			case 3:
				st = st.CancelSell(sym)
			case 4:
				if !st.CanAdvance() {
					continue
				}
				ns, report, err := AdvanceDay(context.Background(), md, st, DefaultCosts())
				if err != nil {
					t.Fatalf("AdvanceDay: %v", err)
				}
				// Cash conservation: the only sources/sinks of cash are
				// filled buys and sells from this step's report.
				delta := 0.0
				for _, r := range report.Fills() {
					if r.Side == SideSell {
						delta += r.Gross - r.Fee - r.Slippage
					} else {
						delta -= r.Gross + r.Fee + r.Slippage
					}
				}
				if math.Abs(ns.Cash-(st.Cash+delta)) > 1e-6 {
					t.Fatalf("cash not conserved: before=%v delta=%v after=%v", st.Cash, delta, ns.Cash)
				}
				st = ns
			}

			if st.Cash < 0 {
				t.Fatalf("cash went negative: %v", st.Cash)
			}
			for _, pos := range st.Positions {
				if pos.Qty <= 0 {
					t.Fatalf("position %s has qty %d; zero rows must be removed", pos.Symbol, pos.Qty)
				}
				if pos.Qty%LotSize != 0 {
					t.Fatalf("position %s qty %d not a lot multiple", pos.Symbol, pos.Qty)
				}
				if pos.AvgCost < 0 {
					t.Fatalf("position %s has negative avg cost %v", pos.Symbol, pos.AvgCost)
				}
			}
			for _, bi := range st.BuyQueue {
				if bi.Qty%LotSize != 0 || bi.Qty == 0 {
					t.Fatalf("queued buy %s qty %d not a positive lot multiple", bi.Symbol, bi.Qty)
				}
			}
		}
	})
}

// Property: queue semantics — at most one live buy intent per symbol, and a
// replacement overwrites rather than accumulates.

func TestProperty_BuyQueueLastWriteWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		md := memory.New(testDays)
		st, err := New(context.Background(), md, testDays[0], testDays[len(testDays)-1], 1_000_000)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		sym := "CN:000001"
		var lastAccepted int64
		n := rapid.IntRange(1, 20).Draw(t, "n")
		for i := 0; i < n; i++ {
			qty := rapid.Int64Range(1, 10_000).Draw(t, "qty")
			ns, err := st.EnqueueBuy(sym, qty)
			if err != nil {
				continue
			}
			st = ns
			lastAccepted = RoundToLot(qty)
		}

		count := 0
		for _, bi := range st.BuyQueue {
			if bi.Symbol == sym {
				count++
				if bi.Qty != lastAccepted {
					t.Fatalf("queued qty %d, want last accepted %d", bi.Qty, lastAccepted)
				}
			}
		}
		if count > 1 {
			t.Fatalf("%d live intents for one symbol", count)
		}
	})
}
