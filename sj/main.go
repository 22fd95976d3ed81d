// Command sj keeps a personal investment journal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/stockjournal/cmd"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is fine, the environment is used as is
	_ = godotenv.Load()

	// answers shell completion requests and exits, no-op otherwise
	cmd.Completion().Complete("sj")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	flag.Parse()
	cmd.SetupLogger()
	os.Exit(int(commander.Execute(context.Background())))
}
