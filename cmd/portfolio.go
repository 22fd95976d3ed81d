package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	journal "github.com/etnz/stockjournal"
	"github.com/etnz/stockjournal/renderer"
	"github.com/etnz/stockjournal/store"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// amount prints m without currency symbol, stable across locales.
func amount(m journal.Money) string {
	return m.Decimal().StringFixed(2) + " " + m.Currency()
}

// parseDate parses an ISO date, empty means now.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return now(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// parseTrade parses the SYMBOL SHARES PRICE arguments common to add, buy and sell.
func parseTrade(args []string) (symbol string, shares journal.Quantity, price decimal.Decimal, err error) {
	if len(args) != 3 {
		return "", shares, price, errors.New("expected SYMBOL SHARES PRICE")
	}
	symbol = journal.NormalizeSymbol(args[0])
	if symbol == "" {
		return "", shares, price, errors.New("symbol is required")
	}
	if shares, err = journal.ParseQuantity(args[1]); err != nil {
		return "", shares, price, fmt.Errorf("invalid shares %q: %w", args[1], err)
	}
	if price, err = decimal.NewFromString(args[2]); err != nil {
		return "", shares, price, fmt.Errorf("invalid price %q: %w", args[2], err)
	}
	return symbol, shares, price, nil
}

type addCmd struct {
	company string
	sector  string
	price   string
	date    string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a position or grow an existing one" }
func (*addCmd) Usage() string {
	return `sj add [-company <name>] [-sector <sector>] [-price <current>] [-d <date>] <symbol> <shares> <avg_cost>

  Adds shares bought at an average cost. An existing position is merged with
  a weighted average cost. Liquid cash is not touched, use buy for that.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.company, "company", "", "Company name")
	f.StringVar(&c.sector, "sector", "", "Sector")
	f.StringVar(&c.price, "price", "", "Current market price, if known")
	f.StringVar(&c.date, "d", "", "Date of the purchase (YYYY-MM-DD), defaults to today")
}

func (c *addCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol, shares, price, err := parseTrade(f.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n%s", err, c.Usage())
		return subcommands.ExitUsageError
	}
	on, err := parseDate(c.date)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	var current *decimal.Decimal
	if c.price != "" {
		d, err := decimal.NewFromString(c.price)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid current price %q: %v\n", c.price, err)
			return subcommands.ExitUsageError
		}
		current = &d
	}

	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var p *journal.Position
		err := s.Update(func(b *journal.Book) error {
			info := journal.PositionInfo{Company: c.company, Sector: c.sector}
			if current != nil {
				m := journal.M(*current, b.Currency)
				info.Price = &m
			}
			var err error
			p, err = b.AddPosition(symbol, shares, journal.M(price, b.Currency), on, info)
			return err
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error adding %s: %v\n", symbol, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("%s: %v shares at %s average cost\n", p.Symbol, p.Shares, amount(p.AvgCost))
		return subcommands.ExitSuccess
	})
}

// tradeCmd implements both buy and sell.
type tradeCmd struct {
	typ  journal.TxType
	date string
}

func (c *tradeCmd) Name() string { return string(c.typ) }
func (c *tradeCmd) Synopsis() string {
	if c.typ == journal.SellTx {
		return "sell shares and credit liquid cash"
	}
	return "buy shares and debit liquid cash"
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`sj %s [-d <date>] <symbol> <shares> <price>

  Records a %s transaction. The proceeds are applied to the liquid cash.
  Selling more shares than held is an error.
`, c.typ, c.typ)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Date of the transaction (YYYY-MM-DD), defaults to today")
}

func (c *tradeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol, shares, price, err := parseTrade(f.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n%s", err, c.Usage())
		return subcommands.ExitUsageError
	}
	on, err := parseDate(c.date)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}

	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var tx journal.Transaction
		var cash journal.Money
		err := s.Update(func(b *journal.Book) error {
			var err error
			tx, err = b.Record(symbol, c.typ, shares, journal.M(price, b.Currency), on)
			cash = b.Cash
			return err
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot %s %s: %v\n", c.typ, symbol, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("%s %v %s at %s, cash %s\n", tx.Type, tx.Shares, symbol, amount(tx.Price), amount(cash))
		return subcommands.ExitSuccess
	})
}

type rmCmd struct{}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "remove a position" }
func (*rmCmd) Usage() string {
	return `sj rm <symbol>...

  Removes positions and their transactions. Liquid cash is not touched.
`
}
func (*rmCmd) SetFlags(f *flag.FlagSet) {}

func (c *rmCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	return withStore(func(s *store.Store) subcommands.ExitStatus {
		err := s.Update(func(b *journal.Book) error {
			for _, symbol := range f.Args() {
				if err := b.Remove(symbol); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("removed %d position(s)\n", f.NArg())
		return subcommands.ExitSuccess
	})
}

type clearCmd struct {
	yes bool
}

func (*clearCmd) Name() string     { return "clear" }
func (*clearCmd) Synopsis() string { return "remove every position" }
func (*clearCmd) Usage() string {
	return `sj clear -y

  Removes every position. Liquid cash, strategy and analysis history are kept.
`
}
func (c *clearCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "y", false, "Confirm")
}

func (c *clearCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintln(os.Stderr, "Error: clearing the portfolio needs -y")
		return subcommands.ExitUsageError
	}
	return withStore(func(s *store.Store) subcommands.ExitStatus {
		if err := s.Clear(); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		fmt.Println("portfolio cleared")
		return subcommands.ExitSuccess
	})
}

type cashCmd struct{}

func (*cashCmd) Name() string     { return "cash" }
func (*cashCmd) Synopsis() string { return "show or set the liquid cash" }
func (*cashCmd) Usage() string {
	return `sj cash [<amount>]

  Prints the liquid cash, or overwrites it with amount.
`
}
func (*cashCmd) SetFlags(f *flag.FlagSet) {}

func (c *cashCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	var value *decimal.Decimal
	if f.NArg() == 1 {
		d, err := decimal.NewFromString(f.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid amount %q: %v\n", f.Arg(0), err)
			return subcommands.ExitUsageError
		}
		value = &d
	}
	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var cash journal.Money
		err := s.Update(func(b *journal.Book) error {
			if value != nil {
				b.SetCash(journal.M(*value, b.Currency))
			}
			cash = b.Cash
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("cash %s\n", amount(cash))
		return subcommands.ExitSuccess
	})
}

type positionsCmd struct {
	tx string
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "display holdings, or the transactions of one" }
func (*positionsCmd) Usage() string {
	return `sj positions [-tx <symbol>]

  Displays totals and holdings valued at the latest known prices. With -tx,
  displays the transactions of a single position.
`
}
func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.tx, "tx", "", "Show the transactions of this symbol")
}

func (c *positionsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var md string
		var err error
		s.View(func(b *journal.Book) {
			if c.tx == "" {
				md = renderer.RenderPositions(config().Exchange, b.Summary())
				return
			}
			p := b.Position(c.tx)
			if p == nil {
				err = fmt.Errorf("no position %q: %w", c.tx, journal.ErrUnknownSymbol)
				return
			}
			md = renderer.RenderTransactions(p)
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		printMarkdown(md, theme(s))
		return subcommands.ExitSuccess
	})
}
