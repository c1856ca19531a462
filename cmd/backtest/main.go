// cmd/backtest drives the simulation engine headlessly: a strategy observes
// daily bars, its signals are queued, and the engine advances day by day
// under the same fee/slippage/lot rules the interactive UI uses.
//
// Usage:
//
//	go run ./cmd/backtest --start=2024-01-02 --end=2024-06-28 \
//	    --symbols=CN:000001,CN:600000 --cash=1000000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"simtrade/config"
	"simtrade/internal/marketdata/cache"
	"simtrade/internal/marketdata/httpapi"
	"simtrade/internal/model"
	"simtrade/internal/sim"
	"simtrade/internal/store/sqlite"
	"simtrade/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	godotenv.Load()

	start := flag.String("start", "", "Simulation start date (YYYY-MM-DD)")
	end := flag.String("end", "", "Simulation end date (YYYY-MM-DD)")
	symbolsStr := flag.String("symbols", "", "Comma-separated symbols to trade, e.g. CN:000001,CN:600000")
	cash := flag.Float64("cash", 1_000_000, "Initial cash")
	fraction := flag.Float64("fraction", 0.25, "Fraction of cash per buy signal")
	journalPath := flag.String("journal", "", "SQLite journal path (empty = no journal)")
	flag.Parse()

	symbols := parseSymbols(*symbolsStr)
	if *start == "" || *end == "" || len(symbols) == 0 {
		log.Fatal("[backtest] --start, --end and --symbols are required")
	}

	cfg := config.Load()
	var provider model.MarketData = httpapi.New(cfg.DataServiceURL)
	if cfg.RedisAddr != "" {
		cached, err := cache.New(provider, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[backtest] redis cache unavailable, using direct provider: %v", err)
		} else {
			provider = cached
			defer cached.Close()
		}
	}

	var journal *sqlite.Journal
	if *journalPath != "" {
		j, err := sqlite.NewJournal(*journalPath)
		if err != nil {
			log.Fatalf("[backtest] journal open failed: %v", err)
		}
		journal = j
		defer j.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	costs := sim.Costs{FeeRate: cfg.FeeRate, SlippageRate: cfg.SlippageRate}
	st, err := sim.New(ctx, provider, *start, *end, *cash)
	if err != nil {
		log.Fatalf("[backtest] session init failed: %v", err)
	}
	log.Printf("[backtest] session %s: %d trading days, cash=%.2f",
		st.SessionID, len(st.TradingDays), st.Cash)

	strat := strategy.NewMACDCross(*fraction)
	history := make(map[string][]model.Bar, len(symbols))
	if err := appendBars(ctx, provider, history, symbols, st.CurrentDate()); err != nil {
		log.Fatalf("[backtest] seed bars failed: %v", err)
	}

	fills, drops := 0, 0
	for st.CanAdvance() {
		if ctx.Err() != nil {
			log.Printf("[backtest] interrupted on %s", st.CurrentDate())
			break
		}

		for _, sig := range strat.OnDay(st.CurrentDate(), history, st) {
			var err error
			var ns sim.State
			switch sig.Action {
			case strategy.ActionBuy:
				ns, err = st.EnqueueBuy(sig.Symbol, sig.Qty)
			case strategy.ActionSell:
				ns, err = st.EnqueueSell(sig.Symbol)
			}
			if err != nil {
				log.Printf("[backtest] skip %s %s: %v", sig.Action, sig.Symbol, err)
				continue
			}
			st = ns
		}

		ns, report, err := sim.AdvanceDay(ctx, provider, st, costs)
		if err != nil {
			log.Fatalf("[backtest] advance from %s failed: %v", st.CurrentDate(), err)
		}
		st = ns

		fills += len(report.Fills())
		drops += len(report.Drops())
		for _, r := range report.Results {
			log.Printf("[backtest] %s %s %s qty=%d price=%.3f outcome=%s",
				report.Date, r.Side, r.Symbol, r.Qty, r.Price, r.Outcome)
		}
		if journal != nil {
			if err := journal.RecordDay(st.SessionID, report); err != nil {
				log.Printf("[backtest] journal write failed: %v", err)
			}
		}

		if err := appendBars(ctx, provider, history, symbols, st.CurrentDate()); err != nil {
			log.Fatalf("[backtest] bars for %s failed: %v", st.CurrentDate(), err)
		}
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Trading days:     %-17d ║\n", len(st.TradingDays))
	fmt.Printf("║  Orders filled:    %-17d ║\n", fills)
	fmt.Printf("║  Orders dropped:   %-17d ║\n", drops)
	fmt.Printf("║  Final cash:       %-17.2f ║\n", st.Cash)
	fmt.Printf("║  Market value:     %-17.2f ║\n", sim.MarketValue(st))
	fmt.Printf("║  Total equity:     %-17.2f ║\n", sim.TotalEquity(st))
	fmt.Printf("║  Yield:            %-16.2f%% ║\n", sim.YieldPct(st))
	fmt.Println("╚══════════════════════════════════════╝")
}

// appendBars fetches one day's bars for the watched symbols and extends the
// per-symbol history used by the strategy.
func appendBars(ctx context.Context, md model.MarketData, history map[string][]model.Bar,
	symbols []string, date string) error {
	bars, err := md.DailyBars(ctx, symbols, date)
	if err != nil {
		return err
	}
	for _, sym := range symbols {
		if bar, ok := bars[sym]; ok {
			history[sym] = append(history[sym], bar)
		}
	}
	return nil
}

func parseSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
