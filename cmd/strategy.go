package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	journal "github.com/etnz/stockjournal"
	"github.com/etnz/stockjournal/renderer"
	"github.com/etnz/stockjournal/store"
	"github.com/google/subcommands"
)

type strategyCmd struct {
	goal    string
	risk    string
	horizon int
	notes   string
}

func (*strategyCmd) Name() string     { return "strategy" }
func (*strategyCmd) Synopsis() string { return "show or edit the investment strategy" }
func (*strategyCmd) Usage() string {
	return `sj strategy [-goal <goal>] [-risk <risk>] [-horizon <years>] [-notes <text>]

  Without flags, displays the strategy. Flags update the matching fields.

  goal: growth, income, balanced, preservation
  risk: conservative, moderate, aggressive
`
}

func (c *strategyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.goal, "goal", "", "Investment goal")
	f.StringVar(&c.risk, "risk", "", "Risk tolerance")
	f.IntVar(&c.horizon, "horizon", 0, "Time horizon in years")
	f.StringVar(&c.notes, "notes", "", "Free form notes")
}

func (c *strategyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	set := make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var strategy journal.Strategy
		err := s.Update(func(b *journal.Book) error {
			next := b.Strategy
			if set["goal"] {
				g, err := journal.ParseGoal(c.goal)
				if err != nil {
					return err
				}
				next.Goal = g
			}
			if set["risk"] {
				r, err := journal.ParseRisk(c.risk)
				if err != nil {
					return err
				}
				next.Risk = r
			}
			if set["horizon"] {
				next.HorizonYears = c.horizon
			}
			if set["notes"] {
				next.Notes = c.notes
			}
			if err := next.Validate(); err != nil {
				return err
			}
			b.Strategy = next
			strategy = next
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		printMarkdown(renderer.RenderStrategy(strategy), theme(s))
		return subcommands.ExitSuccess
	})
}

type signCmd struct {
	clear bool
}

func (*signCmd) Name() string     { return "sign" }
func (*signCmd) Synopsis() string { return "sign the strategy with an image" }
func (*signCmd) Usage() string {
	return `sj sign <image.png|image.jpg>
sj sign -clear

  Attaches a PNG or JPEG signature to the strategy. It is embedded in the PDF
  export.
`
}
func (c *signCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.clear, "clear", false, "Remove the signature")
}

func (c *signCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var image []byte
	switch {
	case c.clear && f.NArg() == 0:
	case !c.clear && f.NArg() == 1:
		var err error
		if image, err = os.ReadFile(f.Arg(0)); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
	default:
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	return withStore(func(s *store.Store) subcommands.ExitStatus {
		err := s.Update(func(b *journal.Book) error {
			if c.clear {
				b.Strategy.Signature = ""
				return nil
			}
			return b.Strategy.Sign(image)
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		if c.clear {
			fmt.Println("signature removed")
		} else {
			fmt.Println("strategy signed")
		}
		return subcommands.ExitSuccess
	})
}
