package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	journal "github.com/etnz/stockjournal"
	"github.com/etnz/stockjournal/docs"
	"github.com/google/subcommands"
)

type topicCmd struct {
	list bool
	raw  bool
}

func (*topicCmd) Name() string     { return "topic" }
func (*topicCmd) Synopsis() string { return "read the user guide" }
func (*topicCmd) Usage() string {
	return `sj topic [-l] [-raw] [<topic>...]

  Displays guide topics: the index when none is given, all of them with '*'.
`
}

func (c *topicCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "l", false, "List the topic names")
	f.BoolVar(&c.raw, "raw", false, "Print the markdown source")
}

func (c *topicCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	names, err := docs.GetAllTopics()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if c.list {
		for _, n := range names {
			fmt.Println(n)
		}
		return subcommands.ExitSuccess
	}

	wanted := f.Args()
	if len(wanted) == 0 {
		wanted = []string{"readme"}
	}
	md, err := docs.GetTopics(wanted...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\navailable topics: %s\n", err, strings.Join(names, ", "))
		return subcommands.ExitUsageError
	}
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	// the guide is read before any journal exists, it ignores the journal theme.
	printMarkdown(md, journal.Light)
	return subcommands.ExitSuccess
}
