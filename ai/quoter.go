package ai

import (
	"context"

	journal "github.com/etnz/stockjournal"
)

// Quoter is a journal.PriceProvider asking the model to search for prices.
type Quoter struct {
	Requester *Requester
	Exchange  string
	Currency  string
}

type quoteAnswer struct {
	Quotes []struct {
		Symbol  string  `json:"symbol"`
		Price   float64 `json:"price"`
		Company string  `json:"company"`
		Sector  string  `json:"sector"`
	} `json:"quotes"`
}

func (q *Quoter) Quotes(ctx context.Context, symbols []string) (map[string]journal.Quote, error) {
	task, err := render("quotes", struct {
		Exchange, Currency string
		Symbols            []string
	}{q.Exchange, q.Currency, symbols})
	if err != nil {
		return nil, err
	}
	var ans quoteAnswer
	if _, err := q.Requester.Request(ctx, task, shape("quotes"), &ans); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[journal.NormalizeSymbol(s)] = true
	}
	res := make(map[string]journal.Quote)
	for _, a := range ans.Quotes {
		sym := journal.NormalizeSymbol(a.Symbol)
		if !wanted[sym] || a.Price <= 0 {
			continue
		}
		res[sym] = journal.Quote{
			Price:   journal.M(a.Price, q.Currency),
			Company: a.Company,
			Sector:  a.Sector,
		}
	}
	return res, nil
}
