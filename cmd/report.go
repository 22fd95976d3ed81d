package cmd

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	journal "github.com/etnz/stockjournal"
	"github.com/etnz/stockjournal/renderer"
	"github.com/etnz/stockjournal/store"
	"github.com/google/subcommands"
)

// newReport snapshots the journal for today.
func newReport(s *store.Store) (r *renderer.Report, t journal.Theme) {
	s.View(func(b *journal.Book) {
		r = renderer.NewReport(b, config().Exchange, now())
		t = b.Theme
	})
	return
}

type reportCmd struct{}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "display the whole journal" }
func (*reportCmd) Usage() string {
	return `sj report

  Displays totals, holdings, the strategy and the latest analysis.
`
}
func (*reportCmd) SetFlags(f *flag.FlagSet) {}

func (c *reportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withStore(func(s *store.Store) subcommands.ExitStatus {
		r, t := newReport(s)
		printMarkdown(renderer.RenderReport(r), t)
		return subcommands.ExitSuccess
	})
}

type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the journal as pdf, html, markdown or csv" }
func (*exportCmd) Usage() string {
	return `sj export [-o <file>] pdf|html|md|csv

  Writes the report as a PDF document (stockjournal-report-YYYY-MM-DD.pdf by
  default), a standalone HTML page, raw markdown, or the positions as a CSV
  file that import reads back. Use -o - for the standard output.
`
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file")
}

func (c *exportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	format := f.Arg(0)

	return withStore(func(s *store.Store) subcommands.ExitStatus {
		r, t := newReport(s)
		var buf bytes.Buffer
		var err error
		output := c.output
		switch format {
		case "pdf":
			err = renderer.PDF(&buf, r)
			if output == "" {
				output = renderer.PDFFilename(r.Date)
			}
		case "html":
			var page string
			page, err = renderer.HTML(renderer.RenderReport(r), "Investment journal", t)
			buf.WriteString(page)
		case "md":
			buf.WriteString(renderer.RenderReport(r))
		case "csv":
			s.View(func(b *journal.Book) { err = journal.ExportCSV(&buf, b.Positions) })
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown format %q\n%s", format, c.Usage())
			return subcommands.ExitUsageError
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}

		if output == "" || output == "-" {
			os.Stdout.Write(buf.Bytes())
			return subcommands.ExitSuccess
		}
		if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("wrote %s\n", output)
		return subcommands.ExitSuccess
	})
}

type themeCmd struct{}

func (*themeCmd) Name() string     { return "theme" }
func (*themeCmd) Synopsis() string { return "show or set the display theme" }
func (*themeCmd) Usage() string {
	return `sj theme [light|dark]

  The theme selects the terminal rendering style and is shared with the web
  front end.
`
}
func (*themeCmd) SetFlags(f *flag.FlagSet) {}

func (c *themeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	return withStore(func(s *store.Store) subcommands.ExitStatus {
		var t journal.Theme
		err := s.Update(func(b *journal.Book) error {
			if f.NArg() == 1 {
				next, err := journal.ParseTheme(f.Arg(0))
				if err != nil {
					return err
				}
				b.Theme = next
			}
			t = b.Theme
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("theme %s\n", t)
		return subcommands.ExitSuccess
	})
}
