package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	journal "github.com/etnz/stockjournal"
	"github.com/rs/zerolog"
)

// Phase is one of the requests making an analysis.
type Phase string

const (
	Narrative    Phase = "narrative"
	Quantitative Phase = "quantitative"
)

// Phases in the order they are requested.
var Phases = []Phase{Narrative, Quantitative}

// Progress is called after each phase with the analysis accumulated so far.
// err is the phase failure, if any.
type Progress func(phase Phase, partial *journal.Analysis, err error)

// Analyst produces portfolio analyses in two sequential requests.
type Analyst struct {
	Requester *Requester
	Now       func() time.Time // time.Now if nil
	Logger    zerolog.Logger
}

// Analyze requests the narrative phase then the quantitative phase and merges
// what succeeded. A failed phase is recorded in the analysis Errors and does
// not prevent the other one. It fails only if no phase succeeded.
//
// progress may be nil.
func (a *Analyst) Analyze(ctx context.Context, brief Brief, progress Progress) (*journal.Analysis, error) {
	if a.Requester == nil || a.Requester.Model == nil {
		return nil, ErrMissingAPIKey
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	at := now()
	brief.Date = at.Format(time.DateOnly)

	res := journal.NewAnalysis(at)
	var errs []error
	for _, phase := range Phases {
		part, err := a.phase(ctx, phase, brief)
		if err != nil {
			if errors.Is(err, ErrMissingAPIKey) {
				return nil, err
			}
			a.Logger.Error().Err(err).Str("phase", string(phase)).Msg("analysis phase failed")
			errs = append(errs, fmt.Errorf("%s phase: %w", phase, err))
			res.Errors = append(res.Errors, fmt.Sprintf("%s phase: %v", phase, err))
		} else {
			res.Merge(part)
		}
		if progress != nil {
			progress(phase, res, err)
		}
	}
	if len(errs) == len(Phases) {
		return nil, errors.Join(errs...)
	}
	return res, nil
}

func (a *Analyst) phase(ctx context.Context, phase Phase, brief Brief) (*journal.Analysis, error) {
	task, err := render(string(phase), brief)
	if err != nil {
		return nil, err
	}
	part := new(journal.Analysis)
	sources, err := a.Requester.Request(ctx, task, shape(string(phase)), part)
	if err != nil {
		return nil, err
	}
	// the model does not own these fields
	part.ID, part.GeneratedAt, part.Errors = "", time.Time{}, nil
	part.Sources = sources
	return part, nil
}
