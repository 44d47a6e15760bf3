package backtest

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/patternrun/pkg/metric"
)

const bootstrapSamples = 10_000

// Summary renders the result table, a histogram of trade returns and bootstrap
// confidence intervals of the per-trade statistics
func (r *Report) Summary(w io.Writer) error {
	res := r.Result

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Ticker", "Trades", "Win", "Loss", "% Win", "Payoff", "Pr Fact.", "SQN", "Return", "B&H"})
	table.Append([]string{
		res.Ticker,
		strconv.Itoa(res.TotalTrades),
		strconv.Itoa(res.WinningTrades),
		strconv.Itoa(res.LosingTrades),
		fmt.Sprintf("%.1f %%", res.WinRate*100),
		fmt.Sprintf("%.3f", res.Payoff),
		fmt.Sprintf("%.3f", res.ProfitFactor),
		fmt.Sprintf("%.1f", res.SQN),
		fmt.Sprintf("%.2f %%", res.TotalReturn*100),
		fmt.Sprintf("%.2f %%", res.BuyAndHoldReturn*100),
	})
	table.Render()

	var out bytes.Buffer
	out.Write(buffer.Bytes())
	fmt.Fprintf(&out, "\nPERIOD          = %s .. %s\n", res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&out, "INITIAL CAPITAL = %.2f\n", res.InitialCapital)
	fmt.Fprintf(&out, "FINAL CAPITAL   = %.2f\n", res.FinalCapital)
	fmt.Fprintf(&out, "ANNUALIZED      = %.2f %%\n", res.AnnualizedReturn*100)
	fmt.Fprintf(&out, "SHARPE          = %.3f\n", res.SharpeRatio)
	fmt.Fprintf(&out, "MAX DRAWDOWN    = %.2f %%\n", res.MaxDrawdown*100)
	fmt.Fprintf(&out, "AVG WIN / LOSS  = %.2f / %.2f\n", res.AverageWin, res.AverageLoss)
	fmt.Fprintf(&out, "COMMISSION      = %.2f\n", res.TotalCommission)

	returns := r.TradeReturns()
	if len(returns) > 0 {
		fmt.Fprintln(&out, "\n------ RETURN -------")
		percent := make([]float64, len(returns))
		for i, v := range returns {
			percent[i] = v * 100
		}
		hist := histogram.Hist(15, percent)
		if err := histogram.Fprint(&out, hist, histogram.Linear(10)); err != nil {
			return err
		}

		fmt.Fprintln(&out, "\n------ CONFIDENCE INTERVAL (95%) -------")
		rng := rand.New(rand.NewSource(metric.DefaultBootstrapSeed))
		returnsInterval := metric.Bootstrap(rng, returns, metric.Mean, bootstrapSamples, 0.95)
		payoffInterval := metric.Bootstrap(rng, returns, metric.Payoff, bootstrapSamples, 0.95)
		profitFactorInterval := metric.Bootstrap(rng, returns, metric.ProfitFactor, bootstrapSamples, 0.95)

		fmt.Fprintf(&out, "RETURN:      %.2f%% (%.2f%% ~ %.2f%%)\n",
			returnsInterval.Mean*100, returnsInterval.Lower*100, returnsInterval.Upper*100)
		fmt.Fprintf(&out, "PAYOFF:      %.2f (%.2f ~ %.2f)\n",
			payoffInterval.Mean, payoffInterval.Lower, payoffInterval.Upper)
		fmt.Fprintf(&out, "PROF.FACTOR: %.2f (%.2f ~ %.2f)\n",
			profitFactorInterval.Mean, profitFactorInterval.Lower, profitFactorInterval.Upper)
	}

	_, err := w.Write(out.Bytes())
	return err
}

// SaveReturns writes the return of every round trip to filename, one per line
func (r *Report) SaveReturns(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, value := range r.TradeReturns() {
		if _, err = file.WriteString(fmt.Sprintf("%.4f\n", value)); err != nil {
			return err
		}
	}
	return nil
}
