// Package divergence implements Forkline's first-divergence engine: a
// lockstep walk over two recorded runs that classifies the first point
// of disagreement by strict priority and explains it via the
// structural differ.
package divergence

import (
	"fmt"

	"github.com/forkline/forkline/internal/diff"
	"github.com/forkline/forkline/internal/model"
)

// Status is the classification outcome of a comparison.
type Status string

const (
	StatusExactMatch       Status = "exact_match"
	StatusOpDivergence     Status = "op_divergence"
	StatusInputDivergence  Status = "input_divergence"
	StatusOutputDivergence Status = "output_divergence"
	StatusErrorDivergence  Status = "error_divergence"
	StatusMissingSteps     Status = "missing_steps"
	StatusExtraSteps       Status = "extra_steps"
)

// Show selects which diff fields a Result carries.
type Show string

const (
	ShowInput  Show = "input"
	ShowOutput Show = "output"
	ShowBoth   Show = "both"
)

// Config bounds and shapes a Compare call.
type Config struct {
	Window      int  // W >= 0, resync search radius
	ContextSize int  // C >= 0, context window half-width
	Show        Show // which diffs to keep in the result
}

// StepSummary is a step's identity as reported in a Result, never the
// raw payload.
type StepSummary struct {
	Idx        int    `json:"idx"`
	Name       string `json:"name"`
	InputHash  string `json:"input_hash"`
	OutputHash string `json:"output_hash"`
	EventCount int    `json:"event_count"`
	HasError   bool   `json:"has_error"`
}

// Result is the total, deterministic, JSON-serializable outcome of a
// Compare call. Logically immutable once returned: callers must not
// mutate its slices.
type Result struct {
	Status       Status        `json:"status"`
	IdxA         int           `json:"idx_a"`
	IdxB         int           `json:"idx_b"`
	Explanation  string        `json:"explanation"`
	OldStep      *StepSummary  `json:"old_step,omitempty"`
	NewStep      *StepSummary  `json:"new_step,omitempty"`
	InputDiff    []diff.Op     `json:"input_diff,omitempty"`
	OutputDiff   []diff.Op     `json:"output_diff,omitempty"`
	LastEqualIdx int           `json:"last_equal_idx"`
	ContextA     []StepSummary `json:"context_a"`
	ContextB     []StepSummary `json:"context_b"`
}

func summarize(s model.Step, fp model.Fingerprint) StepSummary {
	return StepSummary{
		Idx:        s.Idx,
		Name:       s.Name,
		InputHash:  fp.InputHash,
		OutputHash: fp.OutputHash,
		EventCount: len(s.Events),
		HasError:   fp.HasError,
	}
}

// fingerprintedRun pairs a Run's steps with their pre-computed
// fingerprints so the lockstep walk never recomputes one twice.
type fingerprintedRun struct {
	steps        []model.Step
	fingerprints []model.Fingerprint
}

func fingerprint(r model.Run) (fingerprintedRun, error) {
	fps := make([]model.Fingerprint, len(r.Steps))
	for i, s := range r.Steps {
		fp, err := model.ComputeFingerprint(s)
		if err != nil {
			return fingerprintedRun{}, fmt.Errorf("divergence: run %q: %w", r.RunID, err)
		}
		fps[i] = fp
	}
	return fingerprintedRun{steps: r.Steps, fingerprints: fps}, nil
}

// Compare runs the lockstep classification (with a bounded resync
// search on name mismatch) over a and b under cfg, then attaches
// context windows and, where classification calls for it, a structural
// diff explanation, filtered per cfg.Show.
func Compare(a, b model.Run, cfg Config) (Result, error) {
	fa, err := fingerprint(a)
	if err != nil {
		return Result{}, err
	}
	fb, err := fingerprint(b)
	if err != nil {
		return Result{}, err
	}

	res, err := classify(fa, fb, cfg)
	if err != nil {
		return Result{}, err
	}

	res.ContextA = contextWindow(fa, res.IdxA, cfg.ContextSize)
	res.ContextB = contextWindow(fb, res.IdxB, cfg.ContextSize)
	applyShowFilter(&res, cfg.Show)
	return res, nil
}

func contextWindow(r fingerprintedRun, center, c int) []StepSummary {
	n := len(r.steps)
	if n == 0 {
		return []StepSummary{}
	}
	lo := center - c
	hi := center + c
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if lo > hi {
		return []StepSummary{}
	}
	out := make([]StepSummary, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, summarize(r.steps[i], r.fingerprints[i]))
	}
	return out
}

func applyShowFilter(res *Result, show Show) {
	switch show {
	case ShowInput:
		res.OutputDiff = nil
	case ShowOutput:
		res.InputDiff = nil
	case ShowBoth, "":
		// keep both
	}
}
