package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	journal "github.com/etnz/stockjournal"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Defaults of a Requester.
const (
	DefaultAttempts = 3
	DefaultStep     = 3 * time.Second
)

// Requester obtains structured answers from a Model.
//
// The expected shape is written in the prompt, and the answer parsed from the
// free text. Every failure is retried until Attempts is reached. After a rate
// limit the next attempt waits attempt × Step, other failures are retried
// immediately.
type Requester struct {
	Model    Model
	Attempts int           // total attempts, DefaultAttempts if zero
	Step     time.Duration // DefaultStep if zero
	Limiter  *rate.Limiter // optional pacing of outgoing calls
	Logger   zerolog.Logger
}

// NewRequester returns a Requester pacing calls at rpm requests per minute.
// rpm <= 0 disables the pacing.
func NewRequester(m Model, rpm int, logger zerolog.Logger) *Requester {
	r := &Requester{
		Model:  m,
		Logger: logger.With().Str("component", "ai").Logger(),
	}
	if rpm > 0 {
		r.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return r
}

// Request asks task and decodes the answer into out, which must follow shape,
// an example JSON object. It returns the grounding sources of the answer.
func (r *Requester) Request(ctx context.Context, task, shape string, out any) ([]journal.Source, error) {
	if r == nil || r.Model == nil {
		return nil, ErrMissingAPIKey
	}
	prompt := task + "\n\nAnswer with a single JSON object, without any other text, following exactly this shape:\n" + shape

	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	step := r.Step
	if step <= 0 {
		step = DefaultStep
	}
	lb := &linearBackOff{step: step}
	b := backoff.WithContext(backoff.WithMaxRetries(lb, uint64(attempts-1)), ctx)

	var sources []journal.Source
	attempt := 0
	operation := func() error {
		attempt++
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		ans, err := r.Model.Generate(ctx, prompt)
		if err != nil {
			if errors.Is(err, ErrMissingAPIKey) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			lb.throttled = isRateLimit(err)
			return err
		}
		lb.throttled = false
		if err := decode(ans.Text, out); err != nil {
			return err
		}
		sources = ans.Sources
		return nil
	}
	notify := func(err error, wait time.Duration) {
		r.Logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("model request failed, retrying")
	}
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, fmt.Errorf("model request failed after %d attempt(s): %w", attempt, err)
	}
	return sources, nil
}

// linearBackOff waits attempt × step after a rate limit, nothing otherwise.
type linearBackOff struct {
	step      time.Duration
	attempt   int
	throttled bool // last failure was a rate limit
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	if !b.throttled {
		return 0
	}
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
	b.throttled = false
}

// isRateLimit reports whether err signals a rate limit or an exhausted quota.
func isRateLimit(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && (apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED") {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"429", "resource_exhausted", "quota", "rate limit"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
