package domain

// Trade represents a single trade from a strategy's history, either a
// completed backtest trade or a live fill reported by the telemetry pipeline.
type Trade struct {
	Pair      string   // instrument identifier, e.g. "EURUSD"
	PnL       float64  // signed profit/loss in account currency
	EntryTime int64    // entry timestamp (ms)
	CloseTime *int64   // close timestamp (ms); nil while the position is open
}

// Closed reports whether the trade has been closed.
func (t *Trade) Closed() bool {
	return t.CloseTime != nil
}

// ClosedPnLs extracts the P&L sequence of closed trades in input order.
func ClosedPnLs(trades []Trade) []float64 {
	var pnls []float64
	for i := range trades {
		if trades[i].Closed() {
			pnls = append(pnls, trades[i].PnL)
		}
	}
	return pnls
}
