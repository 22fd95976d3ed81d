package journal

import (
	"slices"
	"strconv"
	"time"
)

// Analysis is the result of an AI portfolio review. Every field is optional:
// the review is produced by two independent phases and whichever succeeded is
// kept.
type Analysis struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generatedAt"`

	// Narrative phase.
	HealthScore    *float64   `json:"healthScore,omitempty"`
	AlignmentScore *float64   `json:"alignmentScore,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	Sentiment      string     `json:"marketSentiment,omitempty"`
	SentimentScore *float64   `json:"sentimentScore,omitempty"`
	Strengths      []string   `json:"strengths,omitempty"`
	Weaknesses     []string   `json:"weaknesses,omitempty"`
	Actions        []Action   `json:"actions,omitempty"`
	News           []NewsItem `json:"news,omitempty"`

	// Quantitative phase.
	RiskRadar        []RadarPoint    `json:"riskRadar,omitempty"`
	Correlation      *Network        `json:"correlationNetwork,omitempty"`
	Drawdown         []DrawdownPoint `json:"drawdownSimulation,omitempty"`
	FactorExposure   []Factor        `json:"factorExposure,omitempty"`
	TailRisks        []TailRisk      `json:"tailRiskScenarios,omitempty"`
	DividendForecast []DividendPoint `json:"dividendForecast,omitempty"`
	Rebalancing      []Suggestion    `json:"rebalancing,omitempty"`
	ExpectedReturn   *float64        `json:"expectedAnnualReturn,omitempty"`

	Sources []Source `json:"sources,omitempty"`
	// Errors holds one message per failed phase.
	Errors []string `json:"errors,omitempty"`
}

// Action is a suggested move on one symbol.
type Action struct {
	Symbol    string `json:"symbol"`
	Action    string `json:"action"` // buy, add, hold, trim, sell
	Rationale string `json:"rationale"`
}

// NewsItem is a headline relevant to the portfolio.
type NewsItem struct {
	Title  string `json:"title"`
	Symbol string `json:"symbol,omitempty"`
	Impact string `json:"impact,omitempty"` // positive, negative, neutral
}

// RadarPoint is one axis of the risk radar, value in 0-100.
type RadarPoint struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// Network is the correlation graph between holdings.
type Network struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

type Node struct {
	ID     string  `json:"id"`
	Group  string  `json:"group,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

type Link struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Correlation float64 `json:"correlation"`
}

// DrawdownPoint is one month of a simulated decline, in percent from start.
type DrawdownPoint struct {
	Month     string  `json:"month"`
	Portfolio float64 `json:"portfolio"`
	Benchmark float64 `json:"benchmark"`
}

type Factor struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type TailRisk struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"` // percent
	Impact      float64 `json:"impact"`      // percent of portfolio value
	Description string  `json:"description"`
}

type DividendPoint struct {
	Period string  `json:"period"`
	Amount float64 `json:"amount"`
}

// Suggestion is a rebalancing target for one symbol, weights in percent.
type Suggestion struct {
	Symbol        string  `json:"symbol"`
	CurrentWeight float64 `json:"currentWeight"`
	TargetWeight  float64 `json:"targetWeight"`
	Action        string  `json:"action,omitempty"`
}

// Source is a web page the model grounded its answer on.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// NewAnalysis returns an empty analysis identified by its generation time.
func NewAnalysis(at time.Time) *Analysis {
	return &Analysis{ID: strconv.FormatInt(at.UnixMilli(), 10), GeneratedAt: at}
}

// Merge copies into a every field set in b. Sources and errors are appended.
func (a *Analysis) Merge(b *Analysis) {
	if b == nil {
		return
	}
	setPtr(&a.HealthScore, b.HealthScore)
	setPtr(&a.AlignmentScore, b.AlignmentScore)
	setPtr(&a.SentimentScore, b.SentimentScore)
	setPtr(&a.ExpectedReturn, b.ExpectedReturn)
	setPtr(&a.Correlation, b.Correlation)
	setString(&a.Summary, b.Summary)
	setString(&a.Sentiment, b.Sentiment)
	setSlice(&a.Strengths, b.Strengths)
	setSlice(&a.Weaknesses, b.Weaknesses)
	setSlice(&a.Actions, b.Actions)
	setSlice(&a.News, b.News)
	setSlice(&a.RiskRadar, b.RiskRadar)
	setSlice(&a.Drawdown, b.Drawdown)
	setSlice(&a.FactorExposure, b.FactorExposure)
	setSlice(&a.TailRisks, b.TailRisks)
	setSlice(&a.DividendForecast, b.DividendForecast)
	setSlice(&a.Rebalancing, b.Rebalancing)
	for _, s := range b.Sources {
		if !slices.ContainsFunc(a.Sources, func(x Source) bool { return x.URI == s.URI }) {
			a.Sources = append(a.Sources, s)
		}
	}
	a.Errors = append(a.Errors, b.Errors...)
}

// IsEmpty reports whether no phase contributed anything.
func (a *Analysis) IsEmpty() bool {
	return a.HealthScore == nil && a.AlignmentScore == nil && a.Summary == "" &&
		len(a.Actions) == 0 && len(a.RiskRadar) == 0 && a.Correlation == nil &&
		len(a.Drawdown) == 0 && len(a.FactorExposure) == 0 && len(a.TailRisks) == 0 &&
		len(a.DividendForecast) == 0 && len(a.Rebalancing) == 0
}

// Targets returns the rebalancing suggestions as target weights.
func (a *Analysis) Targets() []Target {
	targets := make([]Target, 0, len(a.Rebalancing))
	for _, s := range a.Rebalancing {
		if s.TargetWeight <= 0 {
			continue
		}
		targets = append(targets, Target{Symbol: NormalizeSymbol(s.Symbol), Weight: Percent(s.TargetWeight)})
	}
	return targets
}

func setPtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func setSlice[T any](dst *[]T, src []T) {
	if len(src) > 0 {
		*dst = src
	}
}
