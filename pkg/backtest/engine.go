// Package backtest simulates a signal source over a daily price history and
// reports the resulting performance.
package backtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/raykavin/patternrun/pkg/ledger"
	"github.com/raykavin/patternrun/pkg/strategy"
	"github.com/schollz/progressbar/v3"
)

var (
	ErrInvalidCapital    = errors.New("initial capital must be positive")
	ErrInvalidCommission = errors.New("commission must not be negative")
	ErrIndicatorMismatch = errors.New("indicator set does not cover the series")
	ErrNilSource         = errors.New("nil signal source")
)

// Engine runs backtests. Options given to NewEngine apply to every run and
// can be overridden per run. An Engine holds no run state and is safe for
// concurrent use.
type Engine struct {
	defaults []Option
}

// NewEngine creates an engine with default options
func NewEngine(opts ...Option) *Engine {
	return &Engine{defaults: opts}
}

// Run simulates source over the series. The source only ever sees bars up to the
// step being decided. A position left open after the last bar is closed at its close.
func (e *Engine) Run(ctx context.Context, series *core.PriceSeries, source strategy.SignalSource, opts ...Option) (*Report, error) {
	cfg := defaultConfig()
	for _, opt := range append(append([]Option(nil), e.defaults...), opts...) {
		opt(&cfg)
	}

	if series == nil || series.Len() == 0 {
		return nil, core.ErrEmptySeries
	}
	if source == nil {
		return nil, ErrNilSource
	}
	if cfg.capital <= 0 {
		return nil, fmt.Errorf("%w: %.2f", ErrInvalidCapital, cfg.capital)
	}
	if cfg.commission < 0 {
		return nil, fmt.Errorf("%w: %.2f", ErrInvalidCommission, cfg.commission)
	}

	set := cfg.indicators
	if set == nil {
		set = indicator.NewSet(series, cfg.indicatorConfig)
	} else if set.Len() != series.Len() {
		return nil, fmt.Errorf("%w: %d bars, set has %d", ErrIndicatorMismatch, series.Len(), set.Len())
	}

	ticker := cfg.ticker
	if ticker == "" {
		ticker = series.Ticker
	}
	if ticker == "" {
		ticker = "ASSET"
	}

	from, to, ok := series.IndexRange(cfg.start, cfg.end)
	if !ok {
		cfg.log.Warnf("date range %s..%s selects no bars, using the full series",
			cfg.start.Format("2006-01-02"), cfg.end.Format("2006-01-02"))
	}

	log := cfg.log.WithField("ticker", ticker)
	log.Debugf("simulating %d bars from %s", to-from+1, series.Time[from].Format("2006-01-02"))

	var bar *progressbar.ProgressBar
	if cfg.progress {
		bar = progressbar.Default(int64(to - from + 1))
	}

	account := ledger.New(cfg.capital, cfg.commission)
	source = strategy.Safe(source)
	equity := make([]EquityPoint, 0, to-from+1)
	long := false

	for i := from; i <= to; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		price := series.Close[i]
		date := series.Time[i]

		vector := core.VectorAt(series, i, set.Snapshot(i))
		vector.Ticker = ticker

		signal, err := source.Decide(vector)
		if err != nil {
			log.WithError(err).Warnf("signal source failed at %s, holding", date.Format("2006-01-02"))
			signal = core.Hold
		}

		switch {
		case signal == core.Buy && !long:
			shares := ledger.Affordable(cfg.sizing.budget(account.Cash()), price, cfg.commission)
			if shares == 0 {
				break
			}
			if _, err := account.Buy(ticker, shares, price, date); err != nil {
				log.WithError(err).Debug("buy skipped")
				break
			}
			long = true

		case signal == core.Sell && long:
			if err := closePosition(account, ticker, price, series, i); err != nil {
				return nil, err
			}
			long = false
		}

		equity = append(equity, EquityPoint{
			Date:           date,
			PortfolioValue: account.Value(map[string]float64{ticker: price}),
			Price:          price,
		})

		if bar != nil {
			if err := bar.Add(1); err != nil {
				log.Warnf("update progressbar fail: %v", err)
			}
		}
	}

	if long {
		if err := closePosition(account, ticker, series.Close[to], series, to); err != nil {
			return nil, err
		}
		equity[len(equity)-1].PortfolioValue = account.Value(nil)
		log.Debug("open position closed at the last bar")
	}

	report := newReport(ticker, cfg.capital, account, equity, series.Close[from], series.Close[to])
	log.Infof("backtest done: %d trades, return %.2f%%", report.Result.TotalTrades, report.Result.TotalReturn*100)
	return report, nil
}

func closePosition(account *ledger.Ledger, ticker string, price float64, series *core.PriceSeries, i int) error {
	pos, ok := account.Position(ticker)
	if !ok {
		return nil
	}
	if _, err := account.Sell(ticker, pos.Shares, price, series.Time[i]); err != nil {
		return fmt.Errorf("closing position: %w", err)
	}
	return nil
}
