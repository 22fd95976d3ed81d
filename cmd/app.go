// Package cmd implements the sj command line application to keep an
// investment journal.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	journal "github.com/etnz/stockjournal"
	"github.com/etnz/stockjournal/ai"
	"github.com/etnz/stockjournal/quotes"
	"github.com/etnz/stockjournal/renderer"
	"github.com/etnz/stockjournal/store"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for _, cmd := range Commands() {
		c.Register(cmd.Command, cmd.Group)
	}
}

// Entry is a subcommand and the group it is listed under.
type Entry struct {
	Command subcommands.Command
	Group   string
}

// Commands lists every subcommand.
func Commands() []Entry {
	return []Entry{
		{&addCmd{}, "portfolio"},
		{&tradeCmd{typ: journal.BuyTx}, "portfolio"},
		{&tradeCmd{typ: journal.SellTx}, "portfolio"},
		{&rmCmd{}, "portfolio"},
		{&clearCmd{}, "portfolio"},
		{&cashCmd{}, "portfolio"},
		{&positionsCmd{}, "portfolio"},
		{&importCmd{}, "portfolio"},
		{&refreshCmd{}, "portfolio"},

		{&strategyCmd{}, "strategy"},
		{&signCmd{}, "strategy"},

		{&analyzeCmd{}, "advisor"},
		{&historyCmd{}, "advisor"},
		{&rebalanceCmd{}, "advisor"},
		{&projectCmd{}, "advisor"},

		{&reportCmd{}, "reports"},
		{&exportCmd{}, "reports"},
		{&themeCmd{}, "reports"},

		{&serveCmd{}, "server"},
		{&topicCmd{}, "help"},
	}
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.
// Flags left empty fall back to the environment, then to a default, see config().

var (
	dataDir       = flag.String("data-dir", "", "Directory holding the journal (env SJ_DATA_DIR, default ~/.stockjournal)")
	storeKind     = flag.String("store", "", "Storage backend, file or sqlite (env SJ_STORE, default file)")
	apiKey        = flag.String("api-key", "", "Gemini API key (env GEMINI_API_KEY or GOOGLE_API_KEY)")
	modelName     = flag.String("model", "", "Gemini model (env SJ_MODEL, default "+ai.DefaultModel+")")
	exchange      = flag.String("exchange", "", "Stock exchange of the portfolio (env SJ_EXCHANGE, default PSX)")
	currency      = flag.String("currency", "", "Currency of the portfolio (env SJ_CURRENCY, default PKR)")
	quoteSuffix   = flag.String("quote-suffix", "", "Suffix naming symbols on Yahoo (env SJ_QUOTE_SUFFIX, default .KA)")
	priceProvider = flag.String("prices", "", "Price provider, ai or yahoo (env SJ_PRICE_PROVIDER, default ai)")
	aiRPM         = flag.Int("ai-rpm", 0, "Maximum AI requests per minute (env SJ_AI_RPM, default 10)")
	logLevel      = flag.String("log-level", "", "Log level (env SJ_LOG_LEVEL, default warn)")
	Verbose       = flag.Bool("v", false, "Verbose logging, same as -log-level=debug")
)

// Config is the resolved configuration.
type Config struct {
	DataDir       string
	Store         string
	APIKey        string
	Model         string
	Exchange      string
	Currency      string
	QuoteSuffix   string
	PriceProvider string
	RPM           int
	LogLevel      string
}

// pick returns the first non empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func config() Config {
	home, _ := os.UserHomeDir()
	rpm := *aiRPM
	if rpm <= 0 {
		rpm, _ = strconv.Atoi(os.Getenv("SJ_AI_RPM"))
	}
	if rpm <= 0 {
		rpm = 10
	}
	level := pick(*logLevel, os.Getenv("SJ_LOG_LEVEL"), "warn")
	if *Verbose {
		level = "debug"
	}
	return Config{
		DataDir:       pick(*dataDir, os.Getenv("SJ_DATA_DIR"), filepath.Join(home, ".stockjournal")),
		Store:         pick(*storeKind, os.Getenv("SJ_STORE"), "file"),
		APIKey:        pick(*apiKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		Model:         pick(*modelName, os.Getenv("SJ_MODEL"), ai.DefaultModel),
		Exchange:      pick(*exchange, os.Getenv("SJ_EXCHANGE"), "PSX"),
		Currency:      strings.ToUpper(pick(*currency, os.Getenv("SJ_CURRENCY"), "PKR")),
		QuoteSuffix:   pick(*quoteSuffix, os.Getenv("SJ_QUOTE_SUFFIX"), ".KA"),
		PriceProvider: pick(*priceProvider, os.Getenv("SJ_PRICE_PROVIDER"), "ai"),
		RPM:           rpm,
		LogLevel:      level,
	}
}

// SetupLogger configures the global zerolog logger to write on stderr.
func SetupLogger() {
	level, err := zerolog.ParseLevel(config().LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// now returns the current time, or SJ_TESTING_NOW when set, so that
// documentation examples are reproducible.
func now() time.Time {
	if s := os.Getenv("SJ_TESTING_NOW"); s != "" {
		if t, err := time.Parse(time.DateTime, s); err == nil {
			return t
		}
	}
	return time.Now()
}

// openStore opens the journal in the configured data directory. The returned
// function releases the underlying storage.
func openStore() (*store.Store, func() error, error) {
	c := config()
	var kv store.KV
	closer := func() error { return nil }
	switch c.Store {
	case "file":
		fkv, err := store.NewFileKV(c.DataDir)
		if err != nil {
			return nil, nil, err
		}
		kv = fkv
	case "sqlite":
		skv, err := store.OpenSQLite(filepath.Join(c.DataDir, "journal.db"))
		if err != nil {
			return nil, nil, err
		}
		kv, closer = skv, skv.Close
	default:
		return nil, nil, fmt.Errorf("unknown store %q, want file or sqlite", c.Store)
	}
	s, err := store.Open(kv, c.Currency, log.Logger)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return s, closer, nil
}

// withStore opens the journal, runs fn and closes it, reporting errors on stderr.
func withStore(fn func(s *store.Store) subcommands.ExitStatus) subcommands.ExitStatus {
	s, closer, err := openStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
		return subcommands.ExitFailure
	}
	status := fn(s)
	if err := closer(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing journal: %v\n", err)
		return subcommands.ExitFailure
	}
	return status
}

// newRequester creates the AI requester, it fails with ai.ErrMissingAPIKey
// when no key is configured.
func newRequester(ctx context.Context) (*ai.Requester, error) {
	c := config()
	m, err := ai.NewGemini(ctx, c.APIKey, c.Model)
	if err != nil {
		return nil, err
	}
	return ai.NewRequester(m, c.RPM, log.Logger), nil
}

// newAnalyst returns nil, without error, when no API key is configured.
func newAnalyst(ctx context.Context) (*ai.Analyst, error) {
	r, err := newRequester(ctx)
	if errors.Is(err, ai.ErrMissingAPIKey) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ai.Analyst{Requester: r, Logger: log.Logger}, nil
}

// newPriceProvider returns the configured provider, nil if it needs an API
// key that is missing.
func newPriceProvider(ctx context.Context) (journal.PriceProvider, error) {
	c := config()
	switch c.PriceProvider {
	case "yahoo":
		return quotes.NewYahoo("", c.QuoteSuffix, c.Currency, log.Logger), nil
	case "ai":
		r, err := newRequester(ctx)
		if errors.Is(err, ai.ErrMissingAPIKey) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &ai.Quoter{Requester: r, Exchange: c.Exchange, Currency: c.Currency}, nil
	default:
		return nil, fmt.Errorf("unknown price provider %q, want ai or yahoo", c.PriceProvider)
	}
}

// printMarkdown renders md for the terminal in the journal theme, raw
// markdown is printed if rendering fails.
func printMarkdown(md string, theme journal.Theme) {
	out, err := renderer.Terminal(md, theme)
	if err != nil {
		log.Warn().Err(err).Msg("cannot render markdown")
		out = md
	}
	fmt.Print(out)
}

// theme reads the persisted theme of s.
func theme(s *store.Store) (t journal.Theme) {
	s.View(func(b *journal.Book) { t = b.Theme })
	return
}
