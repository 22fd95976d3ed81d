package cmd

import (
	"bytes"
	"context"
	"flag"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	journal "github.com/etnz/stockjournal"
	"github.com/etnz/stockjournal/store"
	"github.com/google/subcommands"
)

// TRY is a helper for test to create lira money from const
func TRY(v float64) journal.Money { return journal.M(v, "TRY") }

// newJournal points the global flags to a fresh data directory.
func newJournal(t *testing.T, kind string) string {
	t.Helper()
	dir := t.TempDir()
	*dataDir, *storeKind, *currency, *apiKey = dir, kind, "TRY", ""
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Cleanup(func() { *dataDir, *storeKind, *currency = "", "", "" })
	return dir
}

func run(t *testing.T, c subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("%s %v: %v", c.Name(), args, err)
	}
	return c.Execute(context.Background(), fs)
}

func mustRun(t *testing.T, c subcommands.Command, args ...string) {
	t.Helper()
	if got := run(t, c, args...); got != subcommands.ExitSuccess {
		t.Fatalf("%s %v = %v, want success", c.Name(), args, got)
	}
}

// book reads back the journal as stored.
func book(t *testing.T) *journal.Book {
	t.Helper()
	s, closer, err := openStore()
	if err != nil {
		t.Fatalf("openStore() unexpected error: %v", err)
	}
	defer closer()
	var b *journal.Book
	s.View(func(x *journal.Book) { b = x })
	return b
}

func TestTrades(t *testing.T) {
	for _, kind := range []string{"file", "sqlite"} {
		t.Run(kind, func(t *testing.T) {
			newJournal(t, kind)
			mustRun(t, &cashCmd{}, "10000")
			mustRun(t, &addCmd{}, "-company", "Turkish Airlines", "thyao", "10", "250")
			mustRun(t, &tradeCmd{typ: journal.BuyTx}, "-d", "2024-03-01", "THYAO", "10", "350")

			if got := run(t, &tradeCmd{typ: journal.SellTx}, "THYAO", "30", "300"); got != subcommands.ExitFailure {
				t.Errorf("overselling = %v, want failure", got)
			}
			if got := run(t, &tradeCmd{typ: journal.BuyTx}, "THYAO", "ten", "300"); got != subcommands.ExitUsageError {
				t.Errorf("invalid shares = %v, want usage error", got)
			}

			b := book(t)
			p := b.Position("THYAO")
			if p == nil {
				t.Fatal("THYAO is missing")
			}
			if !p.Shares.Equal(journal.Q(20)) || !p.AvgCost.Equal(TRY(300)) || p.Company != "Turkish Airlines" {
				t.Errorf("THYAO = %v @ %v (%s), want 20 @ 300", p.Shares, p.AvgCost, p.Company)
			}
			if !b.Cash.Equal(TRY(6500)) {
				t.Errorf("cash = %v, want 6500", b.Cash)
			}

			mustRun(t, &tradeCmd{typ: journal.SellTx}, "THYAO", "5", "400")
			if b := book(t); !b.Cash.Equal(TRY(8500)) {
				t.Errorf("cash after sell = %v, want 8500", b.Cash)
			}
		})
	}
}

func TestRemoveAndClear(t *testing.T) {
	newJournal(t, "file")
	mustRun(t, &cashCmd{}, "100")
	mustRun(t, &addCmd{}, "THYAO", "1", "10")
	mustRun(t, &addCmd{}, "GARAN", "1", "10")

	if got := run(t, &rmCmd{}, "AKBNK"); got != subcommands.ExitFailure {
		t.Errorf("rm AKBNK = %v, want failure", got)
	}
	mustRun(t, &rmCmd{}, "garan")
	if b := book(t); len(b.Positions) != 1 {
		t.Errorf("positions = %d, want 1", len(b.Positions))
	}

	if got := run(t, &clearCmd{}); got != subcommands.ExitUsageError {
		t.Errorf("clear without -y = %v, want usage error", got)
	}
	mustRun(t, &clearCmd{}, "-y")
	b := book(t)
	if len(b.Positions) != 0 || !b.Cash.Equal(TRY(100)) {
		t.Errorf("after clear: %d positions, cash %v, want 0 and 100", len(b.Positions), b.Cash)
	}
}

func TestImport(t *testing.T) {
	dir := newJournal(t, "file")
	sheet := filepath.Join(t.TempDir(), "portfolio.csv")
	content := "Symbol;Quantity;Cost\nTHYAO;10;100\nTHYAO;10;200\n;5;1\nASELS;0;10\n"
	if err := os.WriteFile(sheet, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	mustRun(t, &importCmd{}, sheet)

	b := book(t)
	if len(b.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(b.Positions))
	}
	if p := b.Positions[0]; !p.Shares.Equal(journal.Q(20)) || !p.AvgCost.Equal(TRY(150)) {
		t.Errorf("THYAO = %v @ %v, want 20 @ 150", p.Shares, p.AvgCost)
	}

	if got := run(t, &importCmd{}, filepath.Join(dir, "missing.csv")); got != subcommands.ExitFailure {
		t.Errorf("importing a missing file = %v, want failure", got)
	}
}

func TestStrategy(t *testing.T) {
	newJournal(t, "file")
	mustRun(t, &strategyCmd{}, "-goal", "income", "-horizon", "5", "-notes", "dividends first")
	if got := run(t, &strategyCmd{}, "-risk", "reckless"); got != subcommands.ExitFailure {
		t.Errorf("invalid risk = %v, want failure", got)
	}

	s := book(t).Strategy
	want := journal.Strategy{Goal: journal.Income, Risk: journal.Moderate, HorizonYears: 5, Notes: "dividends first"}
	if s != want {
		t.Errorf("strategy = %+v, want %+v", s, want)
	}
}

func TestSign(t *testing.T) {
	newJournal(t, "file")
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewGray(image.Rect(0, 0, 4, 2))); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(t.TempDir(), "signature.png")
	if err := os.WriteFile(file, img.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(t.TempDir(), "signature.txt")
	if err := os.WriteFile(text, []byte("John"), 0o644); err != nil {
		t.Fatal(err)
	}

	mustRun(t, &signCmd{}, file)
	if sig := book(t).Strategy.Signature; !strings.HasPrefix(sig, "data:image/png;base64,") {
		t.Errorf("signature = %.30q, want a PNG data URL", sig)
	}
	if got := run(t, &signCmd{}, text); got != subcommands.ExitFailure {
		t.Errorf("signing with text = %v, want failure", got)
	}
	mustRun(t, &signCmd{}, "-clear")
	if sig := book(t).Strategy.Signature; sig != "" {
		t.Errorf("signature = %.30q, want none", sig)
	}
}

func TestParseTargets(t *testing.T) {
	tests := []struct {
		args    []string
		want    []journal.Target
		wantErr bool
	}{
		{args: nil, want: nil},
		{args: []string{"thyao=60", "GARAN=40%"}, want: []journal.Target{{Symbol: "THYAO", Weight: 60}, {Symbol: "GARAN", Weight: 40}}},
		{args: []string{"THYAO"}, wantErr: true},
		{args: []string{"THYAO=lots"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseTargets(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTargets(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("parseTargets(%q) = %v, want %v", tt.args, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseTargets(%q)[%d] = %v, want %v", tt.args, i, got[i], tt.want[i])
			}
		}
	}
}

func TestRebalance(t *testing.T) {
	newJournal(t, "file")
	mustRun(t, &addCmd{}, "THYAO", "10", "100")
	if got := run(t, &rebalanceCmd{}); got != subcommands.ExitFailure {
		t.Errorf("rebalance without analysis = %v, want failure", got)
	}
	mustRun(t, &rebalanceCmd{}, "-cash", "1000", "THYAO=50", "GARAN=50")
	mustRun(t, &projectCmd{}, "-monthly", "100", "-return", "8", "-years", "2")
	if got := run(t, &projectCmd{}, "-years", "-1"); got != subcommands.ExitUsageError {
		t.Errorf("negative years = %v, want usage error", got)
	}
}

func TestExport(t *testing.T) {
	newJournal(t, "file")
	mustRun(t, &addCmd{}, "THYAO", "10", "100")
	out := t.TempDir()

	tests := []struct {
		format string
		prefix string
	}{
		{"pdf", "%PDF-"},
		{"html", "<!DOCTYPE html>"},
		{"md", "# Investment journal"},
		{"csv", "symbol,quantity,cost\nTHYAO,10,100\n"},
	}
	for _, tt := range tests {
		file := filepath.Join(out, "report."+tt.format)
		mustRun(t, &exportCmd{}, "-o", file, tt.format)
		data, err := os.ReadFile(file)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), tt.prefix) {
			t.Errorf("export %s starts with %.40q, want %q", tt.format, data, tt.prefix)
		}
	}
	if got := run(t, &exportCmd{}, "docx"); got != subcommands.ExitUsageError {
		t.Errorf("export docx = %v, want usage error", got)
	}
}

func TestTheme(t *testing.T) {
	newJournal(t, "file")
	mustRun(t, &themeCmd{}, "dark")
	if got := run(t, &themeCmd{}, "sepia"); got != subcommands.ExitFailure {
		t.Errorf("theme sepia = %v, want failure", got)
	}
	if th := book(t).Theme; th != journal.Dark {
		t.Errorf("theme = %q, want dark", th)
	}
	mustRun(t, &reportCmd{})
	mustRun(t, &positionsCmd{})
	if got := run(t, &positionsCmd{}, "-tx", "NOPE"); got != subcommands.ExitFailure {
		t.Errorf("positions -tx NOPE = %v, want failure", got)
	}
}

func TestAdvisorWithoutKey(t *testing.T) {
	newJournal(t, "file")
	*priceProvider = "ai"
	defer func() { *priceProvider = "" }()
	if got := run(t, &analyzeCmd{}); got != subcommands.ExitFailure {
		t.Errorf("analyze = %v, want failure", got)
	}
	if got := run(t, &refreshCmd{}); got != subcommands.ExitFailure {
		t.Errorf("refresh = %v, want failure", got)
	}
	mustRun(t, &historyCmd{})
	if got := run(t, &historyCmd{}, "-id", "latest"); got != subcommands.ExitFailure {
		t.Errorf("history -id latest = %v, want failure", got)
	}
}

func TestConfig(t *testing.T) {
	newJournal(t, "file")
	*currency = ""
	t.Setenv("SJ_CURRENCY", "usd")
	t.Setenv("SJ_EXCHANGE", "")
	t.Setenv("GOOGLE_API_KEY", "google")

	c := config()
	if c.Currency != "USD" || c.Exchange != "PSX" || c.APIKey != "google" {
		t.Errorf("config() = %+v", c)
	}
	*currency = "eur"
	if c := config(); c.Currency != "EUR" {
		t.Errorf("flag currency = %q, want EUR", c.Currency)
	}

	*storeKind = "cloud"
	if _, _, err := openStore(); err == nil {
		t.Error("openStore() with an unknown store, want error")
	}
}

func TestCompletion(t *testing.T) {
	c := Completion()
	for _, e := range Commands() {
		if _, ok := c.Sub[e.Command.Name()]; !ok {
			t.Errorf("completion lacks %q", e.Command.Name())
		}
	}
	if _, ok := c.Sub["add"].Flags["company"]; !ok {
		t.Error("completion lacks add -company")
	}
	if _, ok := c.Flags["data-dir"]; !ok {
		t.Error("completion lacks -data-dir")
	}
}

// stdout returns what fn prints on the standard output.
func stdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	saved := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = saved }()
	fn()
	w.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestTopic(t *testing.T) {
	list := stdout(t, func() { mustRun(t, &topicCmd{}, "-l") })
	names := strings.Fields(list)
	if len(names) == 0 || names[0] != "advisor" {
		t.Errorf("topic -l = %q, want sorted topic names", list)
	}
	if strings.Contains(list, "readme") {
		t.Errorf("topic -l lists the index: %q", list)
	}

	raw := stdout(t, func() { mustRun(t, &topicCmd{}, "-raw", "configuration") })
	if !strings.HasPrefix(raw, "# Configuration") {
		t.Errorf("topic -raw configuration = %.40q...", raw)
	}

	if got := run(t, &topicCmd{}, "no-such-topic"); got != subcommands.ExitUsageError {
		t.Errorf("topic no-such-topic = %v, want usage error", got)
	}
}

// the store package reads what the commands write.
func TestStoreLayout(t *testing.T) {
	dir := newJournal(t, "file")
	mustRun(t, &cashCmd{}, "42.5")
	data, err := os.ReadFile(filepath.Join(dir, store.KeyCash))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "42.5" {
		t.Errorf("%s = %q, want 42.5", store.KeyCash, data)
	}
}
