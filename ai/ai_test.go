package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	journal "github.com/etnz/stockjournal"
	"google.golang.org/genai"
)

// fakeModel answers prompts with a function of the call number.
type fakeModel struct {
	calls   int
	prompts []string
	answer  func(n int, prompt string) (*Answer, error)
}

func (m *fakeModel) Generate(ctx context.Context, prompt string) (*Answer, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	return m.answer(m.calls, prompt)
}

func text(s string) *Answer { return &Answer{Text: s} }

func newRequester(m Model) *Requester {
	return &Requester{Model: m, Step: time.Millisecond}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{"bare", `{"a":1}`, `{"a":1}`, nil},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, nil},
		{"prose around", "Here is the analysis:\n```\n{\"a\":{\"b\":2}}\n```\nHope it helps.", `{"a":{"b":2}}`, nil},
		{"no braces", "I cannot help with that.", "", ErrNoJSON},
		{"reversed", "} then {", "", ErrNoJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if !errors.Is(err, tt.err) {
				t.Fatalf("ExtractJSON(%q) error = %v, want %v", tt.in, err, tt.err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRequester_FencedAnswer(t *testing.T) {
	m := &fakeModel{answer: func(int, string) (*Answer, error) {
		return &Answer{
			Text:    "Sure!\n```json\n{\"healthScore\": 80, \"summary\": \"solid\"}\n```\nAnything else?",
			Sources: []journal.Source{{Title: "KAP", URI: "https://kap.org.tr"}},
		}, nil
	}}
	var got journal.Analysis
	sources, err := newRequester(m).Request(context.Background(), "task", "{}", &got)
	if err != nil {
		t.Fatalf("Request() unexpected error: %v", err)
	}
	if got.HealthScore == nil || *got.HealthScore != 80 || got.Summary != "solid" {
		t.Errorf("Request() decoded %+v", got)
	}
	if len(sources) != 1 || sources[0].URI != "https://kap.org.tr" {
		t.Errorf("Request() sources = %v", sources)
	}
	if m.calls != 1 {
		t.Errorf("model called %d times, want 1", m.calls)
	}
	if !strings.Contains(m.prompts[0], "task") || !strings.Contains(m.prompts[0], "{}") {
		t.Errorf("prompt %q does not embed the task and the shape", m.prompts[0])
	}
}

func TestRequester_ExactlyThreeAttempts(t *testing.T) {
	tests := []struct {
		name   string
		answer func(n int, prompt string) (*Answer, error)
	}{
		{"remote error", func(int, string) (*Answer, error) { return nil, errors.New("backend unavailable") }},
		{"rate limit", func(int, string) (*Answer, error) { return nil, genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"} }},
		{"no json", func(int, string) (*Answer, error) { return text("I am not sure."), nil }},
		{"malformed json", func(int, string) (*Answer, error) { return text(`{"healthScore": "high"`), nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeModel{answer: tt.answer}
			var out journal.Analysis
			_, err := newRequester(m).Request(context.Background(), "task", "{}", &out)
			if err == nil {
				t.Fatal("Request() expected an error")
			}
			if m.calls != 3 {
				t.Errorf("model called %d times, want 3", m.calls)
			}
		})
	}
}

func TestRequester_SucceedsOnLastAttempt(t *testing.T) {
	m := &fakeModel{answer: func(n int, _ string) (*Answer, error) {
		switch n {
		case 1:
			return nil, errors.New("You exceeded your current quota")
		case 2:
			return text("not json"), nil
		default:
			return text(`{"summary":"ok"}`), nil
		}
	}}
	var out journal.Analysis
	if _, err := newRequester(m).Request(context.Background(), "task", "{}", &out); err != nil {
		t.Fatalf("Request() unexpected error: %v", err)
	}
	if out.Summary != "ok" || m.calls != 3 {
		t.Errorf("Request() = %q after %d calls, want ok after 3", out.Summary, m.calls)
	}
}

func TestRequester_RejectedAnswerLeavesNoFields(t *testing.T) {
	m := &fakeModel{answer: func(n int, _ string) (*Answer, error) {
		if n == 1 {
			return text(`{"summary":"from a rejected answer","healthScore":"high"}`), nil
		}
		return text(`{"healthScore":80}`), nil
	}}
	var out journal.Analysis
	if _, err := newRequester(m).Request(context.Background(), "task", "{}", &out); err != nil {
		t.Fatalf("Request() unexpected error: %v", err)
	}
	if m.calls != 2 {
		t.Errorf("calls = %d, want 2", m.calls)
	}
	if out.Summary != "" {
		t.Errorf("Summary = %q, want empty", out.Summary)
	}
	if out.HealthScore == nil || *out.HealthScore != 80 {
		t.Errorf("HealthScore = %v, want 80", out.HealthScore)
	}
}

func TestRequester_FatalErrors(t *testing.T) {
	m := &fakeModel{answer: func(int, string) (*Answer, error) { return nil, ErrMissingAPIKey }}
	var out journal.Analysis
	_, err := newRequester(m).Request(context.Background(), "task", "{}", &out)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Request() error = %v, want %v", err, ErrMissingAPIKey)
	}
	if m.calls != 1 {
		t.Errorf("model called %d times, want 1", m.calls)
	}

	var nilReq *Requester
	if _, err := nilReq.Request(context.Background(), "task", "{}", &out); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("nil Requester error = %v, want %v", err, ErrMissingAPIKey)
	}
}

func TestRequester_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &fakeModel{answer: func(int, string) (*Answer, error) {
		cancel()
		return nil, context.Canceled
	}}
	var out journal.Analysis
	if _, err := newRequester(m).Request(ctx, "task", "{}", &out); err == nil {
		t.Fatal("Request() expected an error")
	}
	if m.calls != 1 {
		t.Errorf("model called %d times, want 1", m.calls)
	}
}

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{step: 3 * time.Second}
	b.throttled = true
	if got := b.NextBackOff(); got != 3*time.Second {
		t.Errorf("first wait = %v, want 3s", got)
	}
	if got := b.NextBackOff(); got != 6*time.Second {
		t.Errorf("second wait = %v, want 6s", got)
	}
	b.throttled = false
	if got := b.NextBackOff(); got != 0 {
		t.Errorf("wait without rate limit = %v, want 0", got)
	}
	b.Reset()
	b.throttled = true
	if got := b.NextBackOff(); got != 3*time.Second {
		t.Errorf("wait after reset = %v, want 3s", got)
	}
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{genai.APIError{Code: 429}, true},
		{genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, true},
		{errors.New("Quota exceeded for metric"), true},
		{errors.New("rate limit reached"), true},
		{errors.New("connection reset"), false},
		{genai.APIError{Code: 500, Status: "INTERNAL", Message: "boom"}, false},
	}
	for _, tt := range tests {
		if got := isRateLimit(tt.err); got != tt.want {
			t.Errorf("isRateLimit(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func testBrief() Brief {
	b := journal.NewBook("TRY")
	b.AddPosition("THYAO", journal.Q(10), journal.M(250, "TRY"), time.Now(), journal.PositionInfo{Company: "Turkish Airlines"})
	b.SetCash(journal.M(1000, "TRY"))
	return NewBrief(b, "BIST")
}

func isQuantitative(prompt string) bool { return strings.Contains(prompt, "riskRadar") }

func TestAnalyst_BothPhases(t *testing.T) {
	m := &fakeModel{answer: func(_ int, prompt string) (*Answer, error) {
		if isQuantitative(prompt) {
			return &Answer{
				Text:    `{"riskRadar":[{"metric":"volatility","value":70}],"rebalancing":[{"symbol":"thyao","targetWeight":100}]}`,
				Sources: []journal.Source{{URI: "https://a"}, {URI: "https://b"}},
			}, nil
		}
		return &Answer{Text: `{"healthScore":64,"summary":"concentrated"}`, Sources: []journal.Source{{URI: "https://a"}}}, nil
	}}
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	a := &Analyst{Requester: newRequester(m), Now: func() time.Time { return at }}

	var phases []Phase
	got, err := a.Analyze(context.Background(), testBrief(), func(p Phase, partial *journal.Analysis, err error) {
		phases = append(phases, p)
		if err != nil {
			t.Errorf("phase %s failed: %v", p, err)
		}
	})
	if err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}
	if len(phases) != 2 || phases[0] != Narrative || phases[1] != Quantitative {
		t.Errorf("progress phases = %v", phases)
	}
	if got.ID != "1709287200000" {
		t.Errorf("ID = %q", got.ID)
	}
	if got.HealthScore == nil || *got.HealthScore != 64 || len(got.RiskRadar) != 1 {
		t.Errorf("Analyze() = %+v, want both phases merged", got)
	}
	if len(got.Sources) != 2 {
		t.Errorf("Sources = %v, want 2 deduplicated", got.Sources)
	}
	if len(got.Errors) != 0 {
		t.Errorf("Errors = %v", got.Errors)
	}
	if !strings.Contains(m.prompts[0], "THYAO (Turkish Airlines)") || !strings.Contains(m.prompts[0], "2024-03-01") {
		t.Errorf("narrative prompt misses the holdings or the date:\n%s", m.prompts[0])
	}
}

func TestAnalyst_PartialFailure(t *testing.T) {
	m := &fakeModel{answer: func(_ int, prompt string) (*Answer, error) {
		if isQuantitative(prompt) {
			return nil, errors.New("backend unavailable")
		}
		return text(`{"healthScore":50}`), nil
	}}
	a := &Analyst{Requester: newRequester(m)}
	var failed []Phase
	got, err := a.Analyze(context.Background(), testBrief(), func(p Phase, _ *journal.Analysis, err error) {
		if err != nil {
			failed = append(failed, p)
		}
	})
	if err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}
	if got.HealthScore == nil || *got.HealthScore != 50 {
		t.Errorf("narrative phase lost: %+v", got)
	}
	if len(got.Errors) != 1 || !strings.HasPrefix(got.Errors[0], "quantitative") {
		t.Errorf("Errors = %v, want the quantitative failure", got.Errors)
	}
	if len(failed) != 1 || failed[0] != Quantitative {
		t.Errorf("failed phases = %v", failed)
	}
	// 1 narrative + 3 quantitative attempts
	if m.calls != 4 {
		t.Errorf("model called %d times, want 4", m.calls)
	}
}

func TestAnalyst_AllFail(t *testing.T) {
	m := &fakeModel{answer: func(int, string) (*Answer, error) { return text("nope"), nil }}
	a := &Analyst{Requester: newRequester(m)}
	if _, err := a.Analyze(context.Background(), testBrief(), nil); err == nil {
		t.Fatal("Analyze() expected an error")
	}
}

func TestAnalyst_MissingKey(t *testing.T) {
	a := &Analyst{Requester: &Requester{}}
	if _, err := a.Analyze(context.Background(), testBrief(), nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Analyze() error = %v, want %v", err, ErrMissingAPIKey)
	}
}

func TestQuoter(t *testing.T) {
	m := &fakeModel{answer: func(int, string) (*Answer, error) {
		return text(`{"quotes":[
			{"symbol":"thyao","price":262.5,"company":"Turk Hava Yollari","sector":"Airlines"},
			{"symbol":"GARAN","price":0},
			{"symbol":"XXXX","price":1}
		]}`), nil
	}}
	q := &Quoter{Requester: newRequester(m), Exchange: "BIST", Currency: "TRY"}
	got, err := q.Quotes(context.Background(), []string{"THYAO", "GARAN"})
	if err != nil {
		t.Fatalf("Quotes() unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Quotes() = %v, want only THYAO", got)
	}
	if th := got["THYAO"]; !th.Price.Equal(journal.M(262.5, "TRY")) || th.Sector != "Airlines" {
		t.Errorf("THYAO = %+v", th)
	}
	if !strings.Contains(m.prompts[0], "- GARAN") {
		t.Errorf("prompt misses symbols:\n%s", m.prompts[0])
	}
}
