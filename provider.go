package journal

import "context"

// Quote is the latest market information for a symbol.
type Quote struct {
	Price   Money
	Company string
	Sector  string
}

// PriceProvider returns the latest quotes for a set of symbols. Symbols the
// provider knows nothing about are simply absent from the result.
type PriceProvider interface {
	Quotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}
