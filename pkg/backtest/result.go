package backtest

import (
	"time"

	"github.com/raykavin/patternrun/pkg/ledger"
	"github.com/raykavin/patternrun/pkg/metric"
	"github.com/samber/lo"
)

// EquityPoint is the marked-to-market account value at the close of one day
type EquityPoint struct {
	Date           time.Time
	PortfolioValue float64
	Price          float64
}

// RoundTrip pairs an entry with the exit that closed it
type RoundTrip struct {
	Entry ledger.Trade
	Exit  ledger.Trade
	// Profit is net of both commissions
	Profit float64
	// Return is Profit relative to the capital committed at entry
	Return float64
}

// Result is the performance summary of one backtest
type Result struct {
	Ticker    string
	StartDate time.Time
	EndDate   time.Time

	InitialCapital float64
	FinalCapital   float64

	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	MaxDrawdown      float64
	BuyAndHoldReturn float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	AverageWin    float64
	AverageLoss   float64
	ProfitFactor  float64
	Payoff        float64
	SQN           float64

	TotalCommission float64
}

// Report holds everything a run produced
type Report struct {
	Result     Result
	Equity     []EquityPoint
	Trades     []ledger.Trade
	RoundTrips []RoundTrip
}

func newReport(ticker string, capital float64, account *ledger.Ledger, equity []EquityPoint, firstPrice, lastPrice float64) *Report {
	trades := account.Trades()
	trips := pairTrades(trades)

	r := &Report{
		Equity:     equity,
		Trades:     trades,
		RoundTrips: trips,
	}

	profits := lo.Map(trips, func(t RoundTrip, _ int) float64 { return t.Profit })
	wins := lo.Filter(profits, func(p float64, _ int) bool { return p > 0 })
	losses := lo.Filter(profits, func(p float64, _ int) bool { return p < 0 })

	final := account.Value(nil)
	res := Result{
		Ticker:          ticker,
		InitialCapital:  capital,
		FinalCapital:    final,
		TotalReturn:     (final - capital) / capital,
		SharpeRatio:     metric.Sharpe(r.DailyReturns()),
		MaxDrawdown:     metric.MaxDrawdown(r.values()),
		TotalTrades:     len(trips),
		WinningTrades:   len(wins),
		LosingTrades:    len(losses),
		AverageWin:      metric.Mean(wins),
		AverageLoss:     metric.Mean(losses),
		ProfitFactor:    metric.ProfitFactor(profits),
		Payoff:          metric.Payoff(profits),
		SQN:             metric.SQN(profits),
		TotalCommission: account.TotalCommission(),
	}

	if len(equity) > 0 {
		res.StartDate = equity[0].Date
		res.EndDate = equity[len(equity)-1].Date
	}
	days := res.EndDate.Sub(res.StartDate).Hours() / 24
	res.AnnualizedReturn = metric.AnnualizedReturn(res.TotalReturn, days)

	if len(trips) > 0 {
		res.WinRate = float64(len(wins)) / float64(len(trips))
	}
	if firstPrice > 0 {
		res.BuyAndHoldReturn = lastPrice/firstPrice - 1
	}

	r.Result = res
	return r
}

// pairTrades matches the i-th sell with the i-th buy in execution order
func pairTrades(trades []ledger.Trade) []RoundTrip {
	buys := lo.Filter(trades, func(t ledger.Trade, _ int) bool { return t.Action == ledger.ActionBuy })
	sells := lo.Filter(trades, func(t ledger.Trade, _ int) bool { return t.Action == ledger.ActionSell })

	n := min(len(buys), len(sells))
	trips := make([]RoundTrip, 0, n)
	for i := 0; i < n; i++ {
		entry, exit := buys[i], sells[i]
		cost := entry.GrossAmount + entry.Commission
		profit := exit.GrossAmount - exit.Commission - cost
		trip := RoundTrip{Entry: entry, Exit: exit, Profit: profit}
		if cost > 0 {
			trip.Return = profit / cost
		}
		trips = append(trips, trip)
	}
	return trips
}

func (r *Report) values() []float64 {
	return lo.Map(r.Equity, func(p EquityPoint, _ int) float64 { return p.PortfolioValue })
}

// DailyReturns returns the day-over-day fractional changes of the equity curve
func (r *Report) DailyReturns() []float64 {
	return metric.Returns(r.values())
}

// TradeReturns returns the fractional return of every round trip
func (r *Report) TradeReturns() []float64 {
	return lo.Map(r.RoundTrips, func(t RoundTrip, _ int) float64 { return t.Return })
}
