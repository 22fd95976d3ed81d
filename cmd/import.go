package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	journal "github.com/etnz/stockjournal"
	"github.com/etnz/stockjournal/store"
	"github.com/google/subcommands"
)

type importCmd struct{}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import positions from a CSV or XLSX spreadsheet" }
func (*importCmd) Usage() string {
	return `sj import <file.csv|file.xlsx>

  Reads symbol, quantity and cost columns, found by header name or else by
  position. Rows with an empty symbol or a non positive quantity are skipped.
  Rows sharing a symbol are aggregated with a weighted average cost, then
  merged into the existing positions.
`
}
func (*importCmd) SetFlags(f *flag.FlagSet) {}

func (c *importCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	name := f.Arg(0)
	file, err := os.Open(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var cur string
		s.View(func(b *journal.Book) { cur = b.Currency })
		report, err := journal.ImportSheet(filepath.Base(name), file, cur, now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", name, err)
			return subcommands.ExitFailure
		}
		if err := s.Update(func(b *journal.Book) error { return b.Merge(report.Positions) }); err != nil {
			fmt.Fprintf(os.Stderr, "Error importing %s: %v\n", name, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("imported %d row(s) into %d position(s), %d skipped\n", report.Rows, len(report.Positions), report.Skipped)
		return subcommands.ExitSuccess
	})
}
