package divergence

import (
	"fmt"

	"github.com/forkline/forkline/internal/diff"
	"github.com/forkline/forkline/internal/model"
	"github.com/forkline/forkline/internal/value"
)

// classify performs the lockstep walk, including a bounded resync
// search on a name mismatch.
func classify(a, b fingerprintedRun, cfg Config) (Result, error) {
	n := min(len(a.steps), len(b.steps))

	for i := 0; i < n; i++ {
		fa, fb := a.fingerprints[i], b.fingerprints[i]

		if fa.Name != fb.Name {
			if res, ok, err := resync(a, b, i, cfg.Window); err != nil {
				return Result{}, err
			} else if ok {
				return res, nil
			}
			return opDivergenceResult(a, b, i), nil
		}

		if fa.InputHash != fb.InputHash {
			res, err := inputDivergenceResult(a, b, i)
			if err != nil {
				return Result{}, err
			}
			return res, nil
		}

		errEqual, err := model.ErrorsEqual(a.steps[i], b.steps[i])
		if err != nil {
			return Result{}, err
		}
		if !errEqual {
			return errorDivergenceResult(a, b, i), nil
		}

		if fa.OutputHash != fb.OutputHash {
			res, err := outputDivergenceResult(a, b, i, false)
			if err != nil {
				return Result{}, err
			}
			return res, nil
		}

		if fa.EventsHash != fb.EventsHash {
			res, err := outputDivergenceResult(a, b, i, true)
			if err != nil {
				return Result{}, err
			}
			return res, nil
		}
	}

	if len(a.steps) == len(b.steps) {
		return Result{
			Status:       StatusExactMatch,
			IdxA:         n,
			IdxB:         n,
			Explanation:  fmt.Sprintf("Runs are identical (%d steps compared)", n),
			LastEqualIdx: n - 1,
		}, nil
	}
	if len(a.steps) > len(b.steps) {
		return rangeResult(StatusMissingSteps, "run_a", "run_b", n, len(a.steps)-1, n-1), nil
	}
	return rangeResult(StatusExtraSteps, "run_b", "run_a", n, len(b.steps)-1, n-1), nil
}

// resync searches for the nearest (da, db) pair with (da,db) != (0,0),
// both within [0, W] and within bounds, whose soft signatures agree.
// On success with exactly one side advancing it reports
// missing_steps/extra_steps over the skipped range; with both sides
// advancing the resync is ambiguous and classify falls through to the
// priority rules at i.
func resync(a, b fingerprintedRun, i, w int) (Result, bool, error) {
	type cand struct{ da, db int }
	var candidates []cand
	for sum := 1; sum <= 2*w; sum++ {
		for da := 0; da <= w && da <= sum; da++ {
			db := sum - da
			if db < 0 || db > w {
				continue
			}
			candidates = append(candidates, cand{da, db})
		}
	}

	for _, c := range candidates {
		ia, ib := i+c.da, i+c.db
		if ia >= len(a.steps) || ib >= len(b.steps) {
			continue
		}
		if a.fingerprints[ia].Soft() == b.fingerprints[ib].Soft() {
			switch {
			case c.da > 0 && c.db == 0:
				return rangeResult(StatusMissingSteps, "run_a", "run_b", i, i+c.da-1, i-1), true, nil
			case c.da == 0 && c.db > 0:
				return rangeResult(StatusExtraSteps, "run_b", "run_a", i, i+c.db-1, i-1), true, nil
			default:
				// da > 0 and db > 0: ambiguous, fall through.
				return Result{}, false, nil
			}
		}
	}
	return Result{}, false, nil
}

func rangeResult(status Status, fromRun, toRun string, from, to, lastEqual int) Result {
	explain := rangeExplanation(status, fromRun, toRun, from, to)
	return Result{
		Status:       status,
		IdxA:         from,
		IdxB:         from,
		Explanation:  explain,
		LastEqualIdx: lastEqual,
	}
}

func opDivergenceResult(a, b fingerprintedRun, i int) Result {
	nameA, nameB := a.fingerprints[i].Name, b.fingerprints[i].Name
	oldS := summarize(a.steps[i], a.fingerprints[i])
	newS := summarize(b.steps[i], b.fingerprints[i])
	return Result{
		Status:       StatusOpDivergence,
		IdxA:         i,
		IdxB:         i,
		Explanation:  fmt.Sprintf("Step %d: operation mismatch ('%s' vs '%s')", i, nameA, nameB),
		OldStep:      &oldS,
		NewStep:      &newS,
		LastEqualIdx: i - 1,
	}
}

func inputDivergenceResult(a, b fingerprintedRun, i int) (Result, error) {
	name := a.fingerprints[i].Name
	oldS := summarize(a.steps[i], a.fingerprints[i])
	newS := summarize(b.steps[i], b.fingerprints[i])
	inputDiff := diff.Diff(value.Concat(a.steps[i].InputPayloads()...), value.Concat(b.steps[i].InputPayloads()...))
	return Result{
		Status:       StatusInputDivergence,
		IdxA:         i,
		IdxB:         i,
		Explanation:  fmt.Sprintf("Step %d '%s': input differs", i, name),
		OldStep:      &oldS,
		NewStep:      &newS,
		InputDiff:    inputDiff,
		LastEqualIdx: i - 1,
	}, nil
}

func errorDivergenceResult(a, b fingerprintedRun, i int) Result {
	name := a.fingerprints[i].Name
	oldS := summarize(a.steps[i], a.fingerprints[i])
	newS := summarize(b.steps[i], b.fingerprints[i])
	return Result{
		Status:       StatusErrorDivergence,
		IdxA:         i,
		IdxB:         i,
		Explanation:  fmt.Sprintf("Step %d '%s': error state differs", i, name),
		OldStep:      &oldS,
		NewStep:      &newS,
		LastEqualIdx: i - 1,
	}
}

// outputDivergenceResult handles both the direct output-hash mismatch
// (priority 4) and the fallback events-hash mismatch (priority 5); the
// latter diffs the full event sequences instead of aggregated outputs.
func outputDivergenceResult(a, b fingerprintedRun, i int, fallback bool) (Result, error) {
	name := a.fingerprints[i].Name
	oldS := summarize(a.steps[i], a.fingerprints[i])
	newS := summarize(b.steps[i], b.fingerprints[i])

	var outputDiff []diff.Op
	if fallback {
		outputDiff = diff.Diff(a.steps[i].EventsValue(), b.steps[i].EventsValue())
	} else {
		outputDiff = diff.Diff(value.Concat(a.steps[i].OutputPayloads()...), value.Concat(b.steps[i].OutputPayloads()...))
	}

	return Result{
		Status:       StatusOutputDivergence,
		IdxA:         i,
		IdxB:         i,
		Explanation:  fmt.Sprintf("Step %d '%s': output differs (same input)", i, name),
		OldStep:      &oldS,
		NewStep:      &newS,
		OutputDiff:   outputDiff,
		LastEqualIdx: i - 1,
	}, nil
}

func rangeExplanation(status Status, fromRun, toRun string, from, to int) string {
	verb := "missing in"
	if status == StatusExtraSteps {
		verb = "extra in"
	}
	if from == to {
		return fmt.Sprintf("Step %d from %s %s %s", from, fromRun, verb, toRun)
	}
	return fmt.Sprintf("Step(s) %d..%d from %s %s %s", from, to, fromRun, verb, toRun)
}
