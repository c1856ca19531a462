package sim

// MarketValue returns the value of all open positions at their last known
// execution-reference prices.
func MarketValue(st State) float64 {
	var total float64
	for _, pos := range st.Positions {
		total += pos.MarketValue()
	}
	return total
}

// TotalEquity returns cash plus market value.
func TotalEquity(st State) float64 {
	return st.Cash + MarketValue(st)
}

// YieldPct returns the session return as a percentage of initial cash.
func YieldPct(st State) float64 {
	if st.InitialCash <= 0 {
		return 0
	}
	return (TotalEquity(st) - st.InitialCash) / st.InitialCash * 100
}
