package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"simtrade/internal/model"
)

func barAt(date string, price float64) model.Bar {
	return model.Bar{Date: date, Open: price, High: price, Low: price, Close: price, AvgPrice: price}
}

// failingProvider returns an error from DailyBars to exercise fetch-failure
// atomicity. TradingDays succeeds so a session can be started.
type failingProvider struct {
	days []string
}

func (f *failingProvider) TradingDays(_ context.Context, start, end string) ([]string, error) {
	return f.days, nil
}

func (f *failingProvider) DailyBars(context.Context, []string, string) (map[string]model.Bar, error) {
	return nil, errors.New("service unavailable")
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestAdvanceDay_BuyWithRounding(t *testing.T) {
	md := newTestProvider()
	md.AddBar("CN:000001", barAt("2024-01-03", 10))

	st := mustStart(t, md, 1_000_000)
	st, err := st.EnqueueBuy("CN:000001", 1350)
	if err != nil {
		t.Fatalf("EnqueueBuy: %v", err)
	}

	ns, report, err := AdvanceDay(context.Background(), md, st, DefaultCosts())
	if err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}

	// gross = 1300 × 10 = 13,000; fee + slippage = 13.
	approx(t, "cash", ns.Cash, 986_987)
	pos, ok := ns.Positions["CN:000001"]
	if !ok {
		t.Fatal("expected an open position")
	}
	if pos.Qty != 1300 {
		t.Errorf("qty = %d, want 1300", pos.Qty)
	}
	approx(t, "avg cost", pos.AvgCost, 10)

	if ns.CurrentDate() != "2024-01-03" {
		t.Errorf("clock did not advance: %s", ns.CurrentDate())
	}
	if len(ns.BuyQueue) != 0 || len(ns.SellQueue) != 0 {
		t.Error("queues not cleared")
	}
	fills := report.Fills()
	if len(fills) != 1 || fills[0].Qty != 1300 {
		t.Errorf("unexpected fills: %+v", fills)
	}
	// Input state untouched.
	if st.Cash != 1_000_000 || len(st.Positions) != 0 {
		t.Error("AdvanceDay mutated its input state")
	}
}

func TestAdvanceDay_FullSell(t *testing.T) {
	md := newTestProvider()
	md.AddBar("CN:000001", barAt("2024-01-03", 10))
	md.AddBar("CN:000001", barAt("2024-01-04", 12))

	st := mustStart(t, md, 1_000_000)
	st, _ = st.EnqueueBuy("CN:000001", 1350)
	st, _, err := AdvanceDay(context.Background(), md, st, DefaultCosts())
	if err != nil {
		t.Fatalf("buy day: %v", err)
	}

	st, err = st.EnqueueSell("CN:000001")
	if err != nil {
		t.Fatalf("EnqueueSell: %v", err)
	}
	ns, report, err := AdvanceDay(context.Background(), md, st, DefaultCosts())
	if err != nil {
		t.Fatalf("sell day: %v", err)
	}

	// gross = 1300 × 12 = 15,600; fee + slippage = 15.6; proceeds 15,584.4.
	approx(t, "cash", ns.Cash, 986_987+15_584.4)
	if _, ok := ns.Positions["CN:000001"]; ok {
		t.Error("position should be removed after a full sell, not zeroed")
	}
	fills := report.Fills()
	if len(fills) != 1 || fills[0].Side != SideSell {
		t.Errorf("unexpected fills: %+v", fills)
	}
	approx(t, "sell gross", fills[0].Gross, 15_600)
}

func TestAdvanceDay_InsufficientFunds(t *testing.T) {
	md := newTestProvider()
	md.AddBar("CN:600000", barAt("2024-01-03", 1000))

	st := mustStart(t, md, 1_000_000)
	st, _ = st.EnqueueBuy("CN:600000", 100_000) // cost ≫ cash

	ns, report, err := AdvanceDay(context.Background(), md, st, DefaultCosts())
	if err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}
	if ns.Cash != 1_000_000 || len(ns.Positions) != 0 {
		t.Errorf("drop must not touch the ledger: cash=%v positions=%d", ns.Cash, len(ns.Positions))
	}
	if len(ns.BuyQueue) != 0 {
		t.Error("dropped order must still leave the queue")
	}
	drops := report.Drops()
	if len(drops) != 1 || drops[0].Outcome != DropInsufficientCash {
		t.Errorf("unexpected drops: %+v", drops)
	}
}

func TestAdvanceDay_MissingBarDropsSilently(t *testing.T) {
	md := newTestProvider() // no bars at all

	st := mustStart(t, md, 1_000_000)
	st.Positions["CN:000001"] = model.Position{Symbol: "CN:000001", Qty: 200, AvgCost: 10, LastPrice: 10}
	st, _ = st.EnqueueSell("CN:000001")
	st, _ = st.EnqueueBuy("CN:600000", 100)

	ns, report, err := AdvanceDay(context.Background(), md, st, DefaultCosts())
	if err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}
	if ns.Cash != 1_000_000 {
		t.Errorf("cash changed on dropped orders: %v", ns.Cash)
	}
	if ns.Positions["CN:000001"].Qty != 200 {
		t.Error("sell with no bar must keep the position")
	}
	if len(report.Drops()) != 2 {
		t.Errorf("expected 2 drops, got %+v", report.Results)
	}
	for _, d := range report.Drops() {
		if d.Outcome != DropNoBar {
			t.Errorf("expected NO_BAR, got %s", d.Outcome)
		}
	}
}

func TestAdvanceDay_SellProceedsFundSameDayBuy(t *testing.T) {
	md := newTestProvider()
	md.AddBar("CN:000001", barAt("2024-01-03", 10))
	md.AddBar("CN:600000", barAt("2024-01-03", 20))

	st := mustStart(t, md, 100)
	st.Positions["CN:000001"] = model.Position{Symbol: "CN:000001", Qty: 1000, AvgCost: 8}
	st, _ = st.EnqueueSell("CN:000001")
	st, _ = st.EnqueueBuy("CN:600000", 400)

	ns, report, err := AdvanceDay(context.Background(), md, st, Costs{})
	if err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}
	// Zero costs: sell adds 10,000; the 8,000 buy must succeed only because
	// sells execute first.
	approx(t, "cash", ns.Cash, 100+10_000-8_000)
	if len(report.Fills()) != 2 {
		t.Errorf("expected both orders to fill, got %+v", report.Results)
	}
	if ns.Positions["CN:600000"].Qty != 400 {
		t.Errorf("buy position missing: %+v", ns.Positions)
	}
}

func TestAdvanceDay_FetchFailureLeavesStateUnchanged(t *testing.T) {
	md := &failingProvider{days: testDays}
	st := mustStart(t, md, 1_000_000)
	st, _ = st.EnqueueBuy("CN:000001", 100)

	ns, _, err := AdvanceDay(context.Background(), md, st, DefaultCosts())
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if ns.CurrentIndex != st.CurrentIndex {
		t.Error("clock advanced despite fetch failure")
	}
	if len(ns.BuyQueue) != 1 {
		t.Error("queue cleared despite fetch failure — step must be retryable")
	}
	if ns.Cash != st.Cash {
		t.Error("cash changed despite fetch failure")
	}
}

func TestAdvanceDay_EndOfRange(t *testing.T) {
	md := newTestProvider()
	st := mustStart(t, md, 1000)
	st.CurrentIndex = len(st.TradingDays) - 1

	if _, _, err := AdvanceDay(context.Background(), md, st, DefaultCosts()); !errors.Is(err, ErrEndOfRange) {
		t.Errorf("got %v, want ErrEndOfRange", err)
	}
}

func TestAdvanceDay_MarkToMarket(t *testing.T) {
	md := newTestProvider()
	md.AddBar("CN:000001", barAt("2024-01-03", 10))
	md.AddBar("CN:000001", barAt("2024-01-04", 14))

	st := mustStart(t, md, 1_000_000)
	st, _ = st.EnqueueBuy("CN:000001", 100)
	st, _, _ = AdvanceDay(context.Background(), md, st, Costs{})

	// No orders queued on day two, held symbol is still refreshed.
	ns, _, err := AdvanceDay(context.Background(), md, st, Costs{})
	if err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}
	approx(t, "last price", ns.Positions["CN:000001"].LastPrice, 14)
	approx(t, "market value", MarketValue(ns), 1400)
	approx(t, "equity", TotalEquity(ns), ns.Cash+1400)
}

func TestValuation(t *testing.T) {
	st := mustStart(t, newTestProvider(), 10_000)
	st.Positions["CN:000001"] = model.Position{Symbol: "CN:000001", Qty: 100, AvgCost: 10, LastPrice: 12}
	st.Cash = 9_000

	approx(t, "market value", MarketValue(st), 1_200)
	approx(t, "equity", TotalEquity(st), 10_200)
	approx(t, "yield", YieldPct(st), 2)
}
