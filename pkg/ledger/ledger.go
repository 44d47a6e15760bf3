// Package ledger keeps the cash, open positions and trade log of a simulated account.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

var (
	ErrInvalidShares      = errors.New("shares must be positive")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoPosition         = errors.New("no open position")
)

// Action is the side of a trade
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Trade is an executed buy or sell. Trades are never modified once recorded.
type Trade struct {
	Ticker      string
	Action      Action
	Shares      int
	Price       float64
	Date        time.Time
	GrossAmount float64
	Commission  float64
}

// Position is an open holding with its cost basis
type Position struct {
	Ticker    string
	Shares    int
	AvgCost   float64
	TotalCost float64
}

// TradeError wraps a rejected ledger operation
type TradeError struct {
	Err    error
	Action Action
	Ticker string
	Shares int
	Price  float64
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("%s %d %s @ %.4f: %v", e.Action, e.Shares, e.Ticker, e.Price, e.Err)
}

func (e *TradeError) Unwrap() error { return e.Err }

// Ledger is the single source of truth for cash and holdings of one account.
// It is safe for concurrent use, but concurrent backtests should each own a Ledger.
type Ledger struct {
	mu sync.RWMutex

	cash       float64
	commission float64
	positions  map[string]*Position
	trades     []Trade
}

// New creates a ledger holding only cash. Commission is a flat amount per trade.
func New(cash, commission float64) *Ledger {
	return &Ledger{
		cash:       cash,
		commission: commission,
		positions:  make(map[string]*Position),
		trades:     make([]Trade, 0),
	}
}

// Commission returns the flat fee charged per trade
func (l *Ledger) Commission() float64 { return l.commission }

// Cash returns the available cash
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// Buy purchases shares, debiting shares*price plus commission
func (l *Ledger) Buy(ticker string, shares int, price float64, date time.Time) (Trade, error) {
	if err := validate(ActionBuy, ticker, shares, price); err != nil {
		return Trade{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	gross := float64(shares) * price
	if !fits(shares, price, l.commission, l.cash) {
		return Trade{}, &TradeError{Err: ErrInsufficientFunds, Action: ActionBuy, Ticker: ticker, Shares: shares, Price: price}
	}

	l.cash -= gross + l.commission

	pos, ok := l.positions[ticker]
	if !ok {
		pos = &Position{Ticker: ticker}
		l.positions[ticker] = pos
	}
	pos.TotalCost += gross
	pos.Shares += shares
	pos.AvgCost = pos.TotalCost / float64(pos.Shares)

	return l.record(ActionBuy, ticker, shares, price, date, gross), nil
}

// Sell disposes of shares, crediting shares*price minus commission.
// The position is removed when no shares remain.
func (l *Ledger) Sell(ticker string, shares int, price float64, date time.Time) (Trade, error) {
	if err := validate(ActionSell, ticker, shares, price); err != nil {
		return Trade{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[ticker]
	if !ok {
		return Trade{}, &TradeError{Err: ErrNoPosition, Action: ActionSell, Ticker: ticker, Shares: shares, Price: price}
	}
	if shares > pos.Shares {
		return Trade{}, &TradeError{Err: ErrInsufficientShares, Action: ActionSell, Ticker: ticker, Shares: shares, Price: price}
	}

	gross := float64(shares) * price
	l.cash += gross - l.commission

	pos.Shares -= shares
	if pos.Shares == 0 {
		delete(l.positions, ticker)
	} else {
		// average cost of the remaining shares is unchanged
		pos.TotalCost = pos.AvgCost * float64(pos.Shares)
	}

	return l.record(ActionSell, ticker, shares, price, date, gross), nil
}

func (l *Ledger) record(action Action, ticker string, shares int, price float64, date time.Time, gross float64) Trade {
	trade := Trade{
		Ticker:      ticker,
		Action:      action,
		Shares:      shares,
		Price:       price,
		Date:        date,
		GrossAmount: gross,
		Commission:  l.commission,
	}
	l.trades = append(l.trades, trade)
	return trade
}

func validate(action Action, ticker string, shares int, price float64) error {
	if shares <= 0 {
		return &TradeError{Err: ErrInvalidShares, Action: action, Ticker: ticker, Shares: shares, Price: price}
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return &TradeError{Err: ErrInvalidPrice, Action: action, Ticker: ticker, Shares: shares, Price: price}
	}
	return nil
}

// Value marks the account to market. Positions without a price are valued at cost.
func (l *Ledger) Value(prices map[string]float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := l.cash
	for ticker, pos := range l.positions {
		if price, ok := prices[ticker]; ok {
			total += float64(pos.Shares) * price
			continue
		}
		total += pos.TotalCost
	}
	return total
}

// Position returns a copy of the open position, false when flat
func (l *Ledger) Position(ticker string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[ticker]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of every open position ordered by ticker
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Ticker < positions[j].Ticker })
	return positions
}

// Trades returns a copy of the trade log in execution order
func (l *Ledger) Trades() []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	trades := make([]Trade, len(l.trades))
	copy(trades, l.trades)
	return trades
}

// TotalCommission returns the fees paid so far
func (l *Ledger) TotalCommission() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return float64(len(l.trades)) * l.commission
}

// Clone returns an independent copy of the ledger
func (l *Ledger) Clone() *Ledger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	clone := New(l.cash, l.commission)
	for ticker, pos := range l.positions {
		p := *pos
		clone.positions[ticker] = &p
	}
	clone.trades = append(clone.trades, l.trades...)
	return clone
}

// Affordable returns how many whole shares budget buys at price after commission.
// The count always passes the same check Buy applies.
func Affordable(budget, price, commission float64) int {
	if price <= 0 || budget <= commission {
		return 0
	}

	n := int(math.Floor((budget - commission) / price))
	for n > 0 && !fits(n, price, commission, budget) {
		n--
	}
	for fits(n+1, price, commission, budget) {
		n++
	}
	return n
}

// fits reports whether shares*price plus commission stays within budget
func fits(shares int, price, commission, budget float64) bool {
	return float64(shares)*price+commission <= budget
}
