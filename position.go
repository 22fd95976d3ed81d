package journal

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownSymbol is returned when no position exists for a symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrInsufficientShares is returned when selling more shares than held.
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrInvalidQuantity is returned for non positive share counts or negative prices.
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// TxType is the kind of a transaction.
type TxType string

const (
	BuyTx  TxType = "buy"
	SellTx TxType = "sell"
)

// ParseTxType parses "buy" or "sell".
func ParseTxType(s string) (TxType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return BuyTx, nil
	case "sell":
		return SellTx, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q (use buy|sell)", s)
	}
}

// Transaction is a single buy or sell of a position.
type Transaction struct {
	ID     string    `json:"id"`
	Type   TxType    `json:"type"`
	Shares Quantity  `json:"shares"`
	Price  Money     `json:"price"`
	Date   time.Time `json:"date"`
}

// Amount returns shares × price.
func (t Transaction) Amount() Money { return t.Price.Mul(t.Shares) }

// Position is a held quantity of one symbol with a weighted average cost basis.
//
// Transactions are append-only and kept newest first.
type Position struct {
	Symbol       string        `json:"symbol"`
	Shares       Quantity      `json:"shares"`
	AvgCost      Money         `json:"avgCost"`
	CostBasis    Money         `json:"costBasis"` // total cost of the shares held
	CurrentPrice *Money        `json:"currentPrice,omitempty"`
	Company      string        `json:"company,omitempty"`
	Sector       string        `json:"sector,omitempty"`
	Transactions []Transaction `json:"transactions"`
}

// NormalizeSymbol returns the canonical form of a ticker symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NewPosition creates an empty position for symbol in currency cur.
func NewPosition(symbol, cur string) *Position {
	return &Position{
		Symbol:       NormalizeSymbol(symbol),
		AvgCost:      M(0, cur),
		CostBasis:    M(0, cur),
		Transactions: []Transaction{},
	}
}

// Buy adds shares bought at price and recomputes the weighted average cost.
func (p *Position) Buy(shares Quantity, price Money, on time.Time) (Transaction, error) {
	if err := validateTrade(shares, price); err != nil {
		return Transaction{}, err
	}
	p.CostBasis = p.Cost().Add(price.Mul(shares))
	p.Shares = p.Shares.Add(shares)
	p.AvgCost = p.CostBasis.Div(p.Shares)
	return p.append(BuyTx, shares, price, on), nil
}

// Sell removes shares sold at price. Selling more than held is an error, so
// the share count never goes below zero. The average cost is unchanged by a
// sell, unless the position is closed, in which case it is reset to zero.
func (p *Position) Sell(shares Quantity, price Money, on time.Time) (Transaction, error) {
	if err := validateTrade(shares, price); err != nil {
		return Transaction{}, err
	}
	if shares.GreaterThan(p.Shares) {
		return Transaction{}, fmt.Errorf("cannot sell %v %s, only %v held: %w", shares, p.Symbol, p.Shares, ErrInsufficientShares)
	}
	held := p.Shares
	p.Shares = p.Shares.Sub(shares)
	if p.Shares.IsZero() {
		p.AvgCost = M(0, p.AvgCost.Currency())
		p.CostBasis = p.AvgCost
	} else {
		basis := p.Cost()
		p.CostBasis = basis.Sub(basis.Mul(shares).Div(held))
	}
	return p.append(SellTx, shares, price, on), nil
}

func (p *Position) append(typ TxType, shares Quantity, price Money, on time.Time) Transaction {
	tx := Transaction{
		ID:     uuid.NewString(),
		Type:   typ,
		Shares: shares,
		Price:  price,
		Date:   on,
	}
	p.Transactions = slices.Insert(p.Transactions, 0, tx)
	// newest first, on ties the latest recorded comes first.
	slices.SortStableFunc(p.Transactions, func(a, b Transaction) int {
		return b.Date.Compare(a.Date)
	})
	return tx
}

// Price returns the current price if known, the average cost otherwise.
func (p *Position) Price() Money {
	if p.CurrentPrice != nil && !p.CurrentPrice.IsZero() {
		return *p.CurrentPrice
	}
	return p.AvgCost
}

// Cost returns the cost basis of the shares held. Positions saved without
// a cost basis fall back to average cost × shares.
func (p *Position) Cost() Money {
	if p.CostBasis.IsZero() && p.CostBasis.Currency() == "" {
		return p.AvgCost.Mul(p.Shares)
	}
	return p.CostBasis
}

// In labels every amount of the position with currency cur.
func (p *Position) In(cur string) {
	p.AvgCost = p.AvgCost.In(cur)
	p.CostBasis = p.Cost().In(cur)
	if p.CurrentPrice != nil {
		cp := p.CurrentPrice.In(cur)
		p.CurrentPrice = &cp
	}
	for i := range p.Transactions {
		p.Transactions[i].Price = p.Transactions[i].Price.In(cur)
	}
}

// Value returns the market value of the shares held.
func (p *Position) Value() Money { return p.Price().Mul(p.Shares) }
