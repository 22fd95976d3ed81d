package journal

// Holding is a computed view of a position within the whole portfolio.
type Holding struct {
	Symbol  string   `json:"symbol"`
	Company string   `json:"company,omitempty"`
	Sector  string   `json:"sector,omitempty"`
	Shares  Quantity `json:"shares"`
	AvgCost Money    `json:"avgCost"`
	Price   Money    `json:"price"` // current price, or average cost when unknown
	Cost    Money    `json:"cost"`
	Value   Money    `json:"value"`
	Gain    Money    `json:"gain"`
	Return  Percent  `json:"return"`
	Weight  Percent  `json:"weight"` // of the invested value
}

// Summary is the dashboard view of the book.
type Summary struct {
	Holdings []Holding `json:"holdings"`
	Cost     Money     `json:"cost"`
	Value    Money     `json:"value"`
	Gain     Money     `json:"gain"`
	Return   Percent   `json:"return"`
	Cash     Money     `json:"cash"`
	Total    Money     `json:"total"` // Value + Cash
}

// Summary computes holdings, weights and totals. Closed positions are skipped.
func (b *Book) Summary() Summary {
	s := Summary{
		Cost:  M(0, b.Currency),
		Value: M(0, b.Currency),
		Cash:  b.Cash,
	}
	for _, p := range b.Positions {
		if !p.Shares.IsPositive() {
			continue
		}
		h := Holding{
			Symbol:  p.Symbol,
			Company: p.Company,
			Sector:  p.Sector,
			Shares:  p.Shares,
			AvgCost: p.AvgCost,
			Price:   p.Price(),
			Cost:    p.Cost(),
			Value:   p.Value(),
		}
		h.Gain = h.Value.Sub(h.Cost)
		h.Return = ratio(h.Gain, h.Cost)
		s.Cost = s.Cost.Add(h.Cost)
		s.Value = s.Value.Add(h.Value)
		s.Holdings = append(s.Holdings, h)
	}
	for i := range s.Holdings {
		s.Holdings[i].Weight = ratio(s.Holdings[i].Value, s.Value)
	}
	s.Gain = s.Value.Sub(s.Cost)
	s.Return = ratio(s.Gain, s.Cost)
	s.Total = s.Value.Add(s.Cash)
	return s
}
