package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/etnz/stockjournal/server"
	"github.com/etnz/stockjournal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"
)

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the JSON API and websocket for the web front end" }
func (*serveCmd) Usage() string {
	return `sj serve [-addr <host:port>]

  Serves the journal over HTTP until interrupted. Analysis progress and state
  changes are pushed on /ws.
`
}
func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", pick(os.Getenv("SJ_ADDR"), ":8080"), "Listen address (env SJ_ADDR)")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyst, err := newAnalyst(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if analyst == nil {
		log.Warn().Msg("no API key, analyses are disabled")
	}
	prices, err := newPriceProvider(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if !*Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	return withStore(func(s *store.Store) subcommands.ExitStatus {
		srv := server.New(s, analyst, prices, config().Exchange, log.Logger)
		if err := srv.ListenAndServe(ctx, c.addr); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	})
}
