package journal

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Target is the ideal weight of a symbol, in percent.
type Target struct {
	Symbol string  `json:"symbol"`
	Weight Percent `json:"weight"`
}

// Allocation is the share of new cash directed to one symbol.
type Allocation struct {
	Symbol  string   `json:"symbol"`
	Weight  Percent  `json:"weight"`  // normalised target weight
	Current Money    `json:"current"` // current value
	Desired Money    `json:"desired"` // value at target weight after investing the cash
	Amount  Money    `json:"amount"`  // cash allocated
	Price   Money    `json:"price"`   // zero if unknown
	Shares  Quantity `json:"shares"`
	Spent   Money    `json:"spent"` // Shares × Price
}

// RebalancePlan is the proportional allocation of new cash.
type RebalancePlan struct {
	Cash        Money        `json:"cash"`
	Allocations []Allocation `json:"allocations"`
	Leftover    Money        `json:"leftover"` // cash not spent on whole shares
}

// Rebalance allocates cash toward the target weighting.
//
// Targets are normalised to sum to 100. The desired value of each target is
// its weight applied to the value of the holdings plus cash. Symbols below
// their desired value share the cash in proportion to their deficit. The sum
// of deficits is never less than the cash, it is zero only when there is no
// cash and the portfolio is on target, in which case amounts are zero too.
// Amounts sum to the cash. Whole shares are bought at the holding price, the
// rest is leftover.
func Rebalance(holdings []Holding, targets []Target, cash Money) (*RebalancePlan, error) {
	if cash.IsNegative() {
		return nil, fmt.Errorf("cash to invest must not be negative: %v", cash)
	}
	var sum float64
	for _, t := range targets {
		if t.Weight < 0 {
			return nil, fmt.Errorf("negative target weight for %s", t.Symbol)
		}
		sum += float64(t.Weight)
	}
	if sum <= 0 {
		return nil, fmt.Errorf("no target weights to rebalance toward")
	}

	zero := M(0, cash.Currency())
	bySymbol := make(map[string]Holding, len(holdings))
	total := cash
	for _, h := range holdings {
		bySymbol[h.Symbol] = h
		total = total.Add(h.Value)
	}

	plan := &RebalancePlan{Cash: cash, Leftover: cash}
	deficits := zero
	for _, t := range targets {
		symbol := NormalizeSymbol(t.Symbol)
		h, held := bySymbol[symbol]
		a := Allocation{
			Symbol:  symbol,
			Weight:  Percent(100 * float64(t.Weight) / sum),
			Current: zero,
			Price:   zero,
			Amount:  zero,
			Spent:   zero,
		}
		if held {
			a.Current = h.Value
			a.Price = h.Price
		}
		a.Desired = total.Mul(Q(decimal.NewFromFloat(float64(a.Weight) / 100))).Round(2)
		if a.Desired.GreaterThan(a.Current) {
			deficits = deficits.Add(a.Desired.Sub(a.Current))
		}
		plan.Allocations = append(plan.Allocations, a)
	}

	// amounts are rounded down to cents, the last symbol short of its
	// target takes the remainder so that they sum to the cash exactly.
	last := -1
	for i, a := range plan.Allocations {
		if a.Desired.GreaterThan(a.Current) {
			last = i
		}
	}
	allocated := zero
	for i := range plan.Allocations {
		a := &plan.Allocations[i]
		switch {
		case !deficits.IsPositive() || !a.Desired.GreaterThan(a.Current):
		case i == last:
			a.Amount = cash.Sub(allocated)
		default:
			deficit := a.Desired.Sub(a.Current)
			a.Amount = Money{value: cash.value.Mul(deficit.value.Div(deficits.value)).RoundFloor(2), cur: cash.cur}
			allocated = allocated.Add(a.Amount)
		}
		if a.Price.IsPositive() {
			a.Shares = a.Amount.DivPrice(a.Price).Floor()
			a.Spent = a.Price.Mul(a.Shares)
		}
		plan.Leftover = plan.Leftover.Sub(a.Spent)
	}
	return plan, nil
}

// ProjectionPoint is one month of a dollar-cost-averaging projection.
type ProjectionPoint struct {
	Month       int   `json:"month"`
	Contributed Money `json:"contributed"`
	Value       Money `json:"value"`
}

// ProjectDCA projects the value of start plus a monthly contribution invested
// for years at an annual return, compounded monthly. Point 0 is the start.
func ProjectDCA(start, monthly Money, annualReturn Percent, years int) []ProjectionPoint {
	if years < 0 {
		years = 0
	}
	rate := math.Pow(1+float64(annualReturn)/100, 1.0/12) - 1
	growth := Q(decimal.NewFromFloat(1 + rate))
	points := make([]ProjectionPoint, 0, years*12+1)
	contributed, value := start, start
	points = append(points, ProjectionPoint{Month: 0, Contributed: contributed, Value: value})
	for m := 1; m <= years*12; m++ {
		contributed = contributed.Add(monthly)
		value = value.Mul(growth).Add(monthly).Round(8)
		points = append(points, ProjectionPoint{Month: m, Contributed: contributed, Value: value.Round(2)})
	}
	return points
}
