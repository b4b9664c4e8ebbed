package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forkline/forkline/internal/value"
)

func step(idx int, name string, events ...Event) Step {
	return Step{Idx: idx, Name: name, Events: events}
}

func ev(typ string, v value.Value) Event {
	return Event{Type: typ, Payload: v, Timestamp: "2026-01-01T00:00:00Z"}
}

func TestStep_InputOutputAggregation_InsertionOrder(t *testing.T) {
	s := step(0, "generate",
		ev(EventInput, value.String("a")),
		ev("tool_call", value.String("ignored")),
		ev(EventInput, value.String("b")),
		ev(EventOutput, value.String("c")),
	)
	require.Equal(t, []value.Value{value.String("a"), value.String("b")}, s.InputPayloads())
	require.Equal(t, []value.Value{value.String("c")}, s.OutputPayloads())
}

func TestStep_HasError(t *testing.T) {
	withErr := step(0, "x", ev(EventError, value.String("boom")))
	withoutErr := step(0, "x", ev(EventOutput, value.String("ok")))
	require.True(t, withErr.HasError())
	require.False(t, withoutErr.HasError())
}

func TestComputeFingerprint_SameStepSameFingerprint(t *testing.T) {
	s := step(2, "generate_response",
		ev(EventInput, value.Map{"q": value.String("hi")}),
		ev(EventOutput, value.Map{"text": value.String("hello")}),
	)
	fp1, err := ComputeFingerprint(s)
	require.NoError(t, err)
	fp2, err := ComputeFingerprint(s)
	require.NoError(t, err)
	require.Equal(t, fp1, fp2)
	require.Equal(t, "generate_response", fp1.Name)
	require.False(t, fp1.HasError)
}

func TestComputeFingerprint_DifferentOutputDifferentHash(t *testing.T) {
	base := step(2, "generate_response", ev(EventInput, value.Map{"q": value.String("hi")}))
	a := base
	a.Events = append(append([]Event{}, base.Events...), ev(EventOutput, value.Map{"text": value.String("Expected response")}))
	b := base
	b.Events = append(append([]Event{}, base.Events...), ev(EventOutput, value.Map{"text": value.String("Different response")}))

	fpA, err := ComputeFingerprint(a)
	require.NoError(t, err)
	fpB, err := ComputeFingerprint(b)
	require.NoError(t, err)
	require.Equal(t, fpA.InputHash, fpB.InputHash)
	require.NotEqual(t, fpA.OutputHash, fpB.OutputHash)
}

func TestErrorsEqual(t *testing.T) {
	noError1 := step(0, "x", ev(EventOutput, value.String("ok")))
	noError2 := step(0, "x", ev(EventOutput, value.String("different but no error")))
	eq, err := ErrorsEqual(noError1, noError2)
	require.NoError(t, err)
	require.True(t, eq)

	oneError := step(0, "x", ev(EventError, value.String("boom")))
	eq, err = ErrorsEqual(noError1, oneError)
	require.NoError(t, err)
	require.False(t, eq)

	sameError1 := step(0, "x", ev(EventError, value.String("boom")))
	sameError2 := step(0, "x", ev(EventError, value.String("boom")))
	eq, err = ErrorsEqual(sameError1, sameError2)
	require.NoError(t, err)
	require.True(t, eq)

	diffError := step(0, "x", ev(EventError, value.String("kaboom")))
	eq, err = ErrorsEqual(sameError1, diffError)
	require.NoError(t, err)
	require.False(t, eq)
}

func TestValidate_DetectsIndexGap(t *testing.T) {
	r := Run{RunID: "r1", Steps: []Step{step(0, "a"), step(2, "b")}}
	err := Validate(r)
	require.Error(t, err)
	var corrupt *CorruptRunError
	require.ErrorAs(t, err, &corrupt)
}

func TestValidate_DetectsMissingName(t *testing.T) {
	r := Run{RunID: "r1", Steps: []Step{step(0, "")}}
	require.Error(t, Validate(r))
}

func TestValidate_AcceptsWellFormedRun(t *testing.T) {
	r := Run{RunID: "r1", Steps: []Step{step(0, "a"), step(1, "b")}}
	require.NoError(t, Validate(r))
}
