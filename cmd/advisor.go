package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	journal "github.com/etnz/stockjournal"
	"github.com/etnz/stockjournal/ai"
	"github.com/etnz/stockjournal/renderer"
	"github.com/etnz/stockjournal/store"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "update current prices of the positions" }
func (*refreshCmd) Usage() string {
	return `sj [-prices ai|yahoo] refresh

  Fetches the latest price, company and sector of every position. Prices
  already known are kept when the provider fails.
`
}
func (*refreshCmd) SetFlags(f *flag.FlagSet) {}

func (c *refreshCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	provider, err := newPriceProvider(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if provider == nil {
		fmt.Fprintf(os.Stderr, "Error: %v, set GEMINI_API_KEY or use -prices=yahoo\n", ai.ErrMissingAPIKey)
		return subcommands.ExitFailure
	}
	return withStore(func(s *store.Store) subcommands.ExitStatus {
		n, err := s.RefreshPrices(ctx, provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: prices unchanged: %v\n", err)
			return subcommands.ExitFailure
		}
		var total int
		s.View(func(b *journal.Book) { total = len(b.Positions) })
		fmt.Printf("updated %d of %d position(s)\n", n, total)
		return subcommands.ExitSuccess
	})
}

type analyzeCmd struct{}

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "ask the AI advisor for a portfolio analysis" }
func (*analyzeCmd) Usage() string {
	return `sj analyze

  Runs the narrative then the quantitative analysis of the portfolio against
  the strategy, using web search for recent market data. The analysis is
  kept if at least one phase succeeded, and added to the history.
`
}
func (*analyzeCmd) SetFlags(f *flag.FlagSet) {}

func (c *analyzeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	analyst, err := newAnalyst(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if analyst == nil {
		fmt.Fprintf(os.Stderr, "Error: %v, set GEMINI_API_KEY\n", ai.ErrMissingAPIKey)
		return subcommands.ExitFailure
	}
	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var brief ai.Brief
		s.View(func(b *journal.Book) { brief = ai.NewBrief(b, config().Exchange) })

		a, err := analyst.Analyze(ctx, brief, func(phase ai.Phase, _ *journal.Analysis, err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s analysis failed: %v\n", phase, err)
				return
			}
			fmt.Fprintf(os.Stderr, "%s analysis done\n", phase)
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		if err := s.Update(func(b *journal.Book) error { b.AddAnalysis(a); return nil }); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		printMarkdown(renderer.RenderAnalysis(a), theme(s))
		return subcommands.ExitSuccess
	})
}

type historyCmd struct {
	id string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list past analyses or display one" }
func (*historyCmd) Usage() string {
	return `sj history [-id <analysis id>]

  Lists past analyses, newest first. With -id, displays that analysis.
`
}
func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Analysis to display, 'latest' for the most recent")
}

func (c *historyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var md string
		var err error
		s.View(func(b *journal.Book) {
			if c.id == "" {
				md = renderer.RenderHistory(b.History)
				return
			}
			a := b.Analysis(c.id)
			if c.id == "latest" {
				a = b.Latest()
			}
			if a == nil {
				err = fmt.Errorf("no analysis %q", c.id)
				return
			}
			md = renderer.RenderAnalysis(a)
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		printMarkdown(md, theme(s))
		return subcommands.ExitSuccess
	})
}

type rebalanceCmd struct {
	cash string
	id   string
}

func (*rebalanceCmd) Name() string     { return "rebalance" }
func (*rebalanceCmd) Synopsis() string { return "allocate cash toward target weights" }
func (*rebalanceCmd) Usage() string {
	return `sj rebalance [-cash <amount>] [-id <analysis id>] [<symbol>=<weight>...]

  Splits cash between symbols below their target weight, in proportion to
  their deficit, and rounds down to whole shares. Targets come from the
  arguments, or else from the rebalancing suggestions of an analysis, the
  latest by default. Cash defaults to the liquid cash.
`
}
func (c *rebalanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.cash, "cash", "", "Cash to invest, defaults to the liquid cash")
	f.StringVar(&c.id, "id", "", "Analysis to take target weights from")
}

// parseTargets parses symbol=weight arguments.
func parseTargets(args []string) ([]journal.Target, error) {
	var targets []journal.Target
	for _, arg := range args {
		symbol, weight, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid target %q, want SYMBOL=WEIGHT", arg)
		}
		w, err := strconv.ParseFloat(strings.TrimSuffix(weight, "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight in %q: %w", arg, err)
		}
		targets = append(targets, journal.Target{Symbol: journal.NormalizeSymbol(symbol), Weight: journal.Percent(w)})
	}
	return targets, nil
}

func (c *rebalanceCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	targets, err := parseTargets(f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	var cash *decimal.Decimal
	if c.cash != "" {
		d, err := decimal.NewFromString(c.cash)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid cash %q: %v\n", c.cash, err)
			return subcommands.ExitUsageError
		}
		cash = &d
	}

	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var plan *journal.RebalancePlan
		var err error
		s.View(func(b *journal.Book) {
			if len(targets) == 0 {
				a := b.Latest()
				if c.id != "" {
					a = b.Analysis(c.id)
				}
				if a == nil {
					err = errors.New("no analysis to take target weights from, run analyze or pass SYMBOL=WEIGHT targets")
					return
				}
				targets = a.Targets()
			}
			invest := b.Cash
			if cash != nil {
				invest = journal.M(*cash, b.Currency)
			}
			plan, err = journal.Rebalance(b.Summary().Holdings, targets, invest)
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		printMarkdown(renderer.RenderRebalance(plan), theme(s))
		return subcommands.ExitSuccess
	})
}

type projectCmd struct {
	monthly string
	rate    float64
	years   int
}

func (*projectCmd) Name() string     { return "project" }
func (*projectCmd) Synopsis() string { return "project monthly contributions over the years" }
func (*projectCmd) Usage() string {
	return `sj project [-monthly <amount>] [-return <percent>] [-years <n>]

  Projects the portfolio total plus a monthly contribution, compounded
  monthly at an annual return. The return defaults to the expected return of
  the latest analysis.
`
}
func (c *projectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.monthly, "monthly", "0", "Monthly contribution")
	f.Float64Var(&c.rate, "return", 0, "Expected annual return in percent")
	f.IntVar(&c.years, "years", 10, "Number of years")
}

func (c *projectCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	monthly, err := decimal.NewFromString(c.monthly)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid monthly contribution %q: %v\n", c.monthly, err)
		return subcommands.ExitUsageError
	}
	if c.years < 0 || c.years > 100 {
		fmt.Fprintln(os.Stderr, "Error: years must be between 0 and 100")
		return subcommands.ExitUsageError
	}
	rateSet := false
	f.Visit(func(fl *flag.Flag) { rateSet = rateSet || fl.Name == "return" })

	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var points []journal.ProjectionPoint
		s.View(func(b *journal.Book) {
			rate := c.rate
			if a := b.Latest(); !rateSet && a != nil && a.ExpectedReturn != nil {
				rate = *a.ExpectedReturn
			}
			points = journal.ProjectDCA(b.Summary().Total, journal.M(monthly, b.Currency), journal.Percent(rate), c.years)
		})
		printMarkdown(renderer.RenderProjection(points), theme(s))
		return subcommands.ExitSuccess
	})
}
