package backtest

import (
	"time"

	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/raykavin/patternrun/pkg/logger"
)

// Sizing decides how much of the available cash a buy may spend
type Sizing struct {
	fraction float64
}

// AllCash spends all available cash on every entry
func AllCash() Sizing { return Sizing{fraction: 1} }

// FixedFraction spends the fraction f of the available cash, clamped to (0, 1]
func FixedFraction(f float64) Sizing {
	if f <= 0 || f > 1 {
		f = 1
	}
	return Sizing{fraction: f}
}

// Fraction returns the share of cash committed per entry
func (s Sizing) Fraction() float64 {
	if s.fraction == 0 {
		return 1
	}
	return s.fraction
}

func (s Sizing) budget(cash float64) float64 {
	return cash * s.Fraction()
}

type config struct {
	start, end      time.Time
	capital         float64
	commission      float64
	sizing          Sizing
	ticker          string
	indicators      *indicator.Set
	indicatorConfig indicator.Config
	log             logger.Logger
	progress        bool
}

func defaultConfig() config {
	return config{
		capital:         10_000,
		sizing:          AllCash(),
		indicatorConfig: indicator.DefaultConfig(),
		log:             logger.Nop(),
	}
}

// Option configures a backtest run
type Option func(*config)

// WithDateRange restricts the simulation to [start, end]. Zero times are unbounded.
func WithDateRange(start, end time.Time) Option {
	return func(c *config) {
		c.start, c.end = start, end
	}
}

// WithInitialCapital sets the starting cash
func WithInitialCapital(capital float64) Option {
	return func(c *config) {
		c.capital = capital
	}
}

// WithCommission sets the flat fee charged per trade
func WithCommission(commission float64) Option {
	return func(c *config) {
		c.commission = commission
	}
}

// WithPositionSizing sets the entry sizing policy
func WithPositionSizing(sizing Sizing) Option {
	return func(c *config) {
		c.sizing = sizing
	}
}

// WithTicker overrides the ticker recorded on trades
func WithTicker(ticker string) Option {
	return func(c *config) {
		c.ticker = ticker
	}
}

// WithIndicators reuses a precomputed indicator set. It must cover the series being run.
func WithIndicators(set *indicator.Set) Option {
	return func(c *config) {
		c.indicators = set
	}
}

// WithIndicatorConfig sets the indicator settings used when no set is supplied
func WithIndicatorConfig(cfg indicator.Config) Option {
	return func(c *config) {
		c.indicatorConfig = cfg
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(c *config) {
		c.log = logger.OrNop(log)
	}
}

// WithProgress shows a progress bar on stderr while simulating
func WithProgress(enabled bool) Option {
	return func(c *config) {
		c.progress = enabled
	}
}
