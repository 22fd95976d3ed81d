package journal

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Theme is the display preference.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// ParseTheme parses "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case Light, Dark:
		return t, nil
	default:
		return "", fmt.Errorf("unknown theme %q (use light|dark)", s)
	}
}

// Book is the whole journal state: positions, liquid cash, strategy and the
// analysis history.
//
// A Book is not safe for concurrent use, see the store package for that.
type Book struct {
	Currency  string
	Positions []*Position
	Cash      Money
	Strategy  Strategy
	History   []*Analysis // newest first
	Theme     Theme
}

// NewBook creates an empty book whose amounts are in currency cur.
func NewBook(cur string) *Book {
	return &Book{
		Currency:  cur,
		Positions: []*Position{},
		Cash:      M(0, cur),
		Strategy:  DefaultStrategy(),
		History:   []*Analysis{},
		Theme:     Light,
	}
}

// Position returns the position for symbol or nil.
func (b *Book) Position(symbol string) *Position {
	symbol = NormalizeSymbol(symbol)
	for _, p := range b.Positions {
		if p.Symbol == symbol {
			return p
		}
	}
	return nil
}

// Symbols returns the symbols of all positions.
func (b *Book) Symbols() []string {
	symbols := make([]string, 0, len(b.Positions))
	for _, p := range b.Positions {
		symbols = append(symbols, p.Symbol)
	}
	return symbols
}

// PositionInfo holds the optional descriptive fields of a new position.
type PositionInfo struct {
	Company string
	Sector  string
	Price   *Money
}

// AddPosition records an opening holding of shares at average cost price. It
// does not touch the liquid cash: the shares were bought before the journal.
// Adding to an existing symbol behaves like a buy on it.
func (b *Book) AddPosition(symbol string, shares Quantity, price Money, on time.Time, info PositionInfo) (*Position, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	p := b.Position(symbol)
	isNew := p == nil
	if isNew {
		p = NewPosition(symbol, b.Currency)
	}
	if _, err := p.Buy(shares, price.In(b.Currency), on); err != nil {
		return nil, err
	}
	if info.Company != "" {
		p.Company = info.Company
	}
	if info.Sector != "" {
		p.Sector = info.Sector
	}
	if info.Price != nil {
		cp := info.Price.In(b.Currency)
		p.CurrentPrice = &cp
	}
	if isNew {
		b.Positions = append(b.Positions, p)
	}
	return p, nil
}

// Record applies a buy or a sell on symbol and adjusts the liquid cash: a buy
// debits shares × price, a sell credits it. Buying an unknown symbol opens a
// new position, selling one is an error.
func (b *Book) Record(symbol string, typ TxType, shares Quantity, price Money, on time.Time) (Transaction, error) {
	price = price.In(b.Currency)
	p := b.Position(symbol)
	switch typ {
	case BuyTx:
		isNew := p == nil
		if isNew {
			p = NewPosition(symbol, b.Currency)
			if p.Symbol == "" {
				return Transaction{}, fmt.Errorf("symbol is required")
			}
		}
		tx, err := p.Buy(shares, price, on)
		if err != nil {
			return tx, err
		}
		if isNew {
			b.Positions = append(b.Positions, p)
		}
		b.Cash = b.Cash.Sub(tx.Amount())
		return tx, nil
	case SellTx:
		if p == nil {
			return Transaction{}, fmt.Errorf("cannot sell %q: %w", symbol, ErrUnknownSymbol)
		}
		tx, err := p.Sell(shares, price, on)
		if err != nil {
			return tx, err
		}
		b.Cash = b.Cash.Add(tx.Amount())
		return tx, nil
	default:
		return Transaction{}, fmt.Errorf("unsupported transaction type %q", typ)
	}
}

// Remove deletes the position for symbol.
func (b *Book) Remove(symbol string) error {
	symbol = NormalizeSymbol(symbol)
	i := slices.IndexFunc(b.Positions, func(p *Position) bool { return p.Symbol == symbol })
	if i < 0 {
		return fmt.Errorf("cannot remove %q: %w", symbol, ErrUnknownSymbol)
	}
	b.Positions = slices.Delete(b.Positions, i, i+1)
	return nil
}

// Clear removes every position. Cash, strategy and history are kept.
func (b *Book) Clear() {
	b.Positions = []*Position{}
}

// SetCash overwrites the liquid cash balance.
func (b *Book) SetCash(m Money) {
	b.Cash = m.In(b.Currency)
}

// Merge folds imported positions into the book. Each imported transaction is
// replayed as a buy on the matching position, so average costs combine.
func (b *Book) Merge(imported []*Position) error {
	for _, in := range imported {
		p := b.Position(in.Symbol)
		isNew := p == nil
		if isNew {
			p = NewPosition(in.Symbol, b.Currency)
		}
		// replay oldest first
		for i := len(in.Transactions) - 1; i >= 0; i-- {
			tx := in.Transactions[i]
			if _, err := p.Buy(tx.Shares, tx.Price.In(b.Currency), tx.Date); err != nil {
				return fmt.Errorf("cannot import %s: %w", in.Symbol, err)
			}
		}
		if isNew {
			b.Positions = append(b.Positions, p)
		}
	}
	return nil
}

// ApplyQuotes updates current prices and descriptive fields from quotes. It
// returns the number of positions updated.
func (b *Book) ApplyQuotes(quotes map[string]Quote) int {
	n := 0
	for _, p := range b.Positions {
		q, ok := quotes[p.Symbol]
		if !ok || !q.Price.IsPositive() {
			continue
		}
		price := q.Price.In(b.Currency)
		p.CurrentPrice = &price
		if q.Company != "" {
			p.Company = q.Company
		}
		if q.Sector != "" {
			p.Sector = q.Sector
		}
		n++
	}
	return n
}

// AddAnalysis prepends a to the history.
func (b *Book) AddAnalysis(a *Analysis) {
	b.History = slices.Insert(b.History, 0, a)
}

// Latest returns the most recent analysis or nil.
func (b *Book) Latest() *Analysis {
	if len(b.History) == 0 {
		return nil
	}
	return b.History[0]
}

// Analysis returns the analysis with id or nil.
func (b *Book) Analysis(id string) *Analysis {
	for _, a := range b.History {
		if a.ID == id {
			return a
		}
	}
	return nil
}
