package model

import (
	"fmt"

	"github.com/forkline/forkline/internal/canon"
	"github.com/forkline/forkline/internal/value"
)

// Fingerprint is a step's derived identity: (name, input_hash,
// output_hash, has_error, events_hash), recomputed on demand and never
// persisted.
type Fingerprint struct {
	Name       string
	InputHash  string
	OutputHash string
	HasError   bool
	EventsHash string
}

// SoftSignature is the resync key: (name, input_hash).
type SoftSignature struct {
	Name      string
	InputHash string
}

// Soft projects a Fingerprint down to its SoftSignature.
func (f Fingerprint) Soft() SoftSignature {
	return SoftSignature{Name: f.Name, InputHash: f.InputHash}
}

// ComputeFingerprint derives s's fingerprint via the Canonicalizer.
// The engine never compares payloads directly — only these hashes.
func ComputeFingerprint(s Step) (Fingerprint, error) {
	inputHash, err := canon.Hash(value.Concat(s.InputPayloads()...))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("step %d %q: input_hash: %w", s.Idx, s.Name, err)
	}
	outputHash, err := canon.Hash(value.Concat(s.OutputPayloads()...))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("step %d %q: output_hash: %w", s.Idx, s.Name, err)
	}
	eventsHash, err := canon.Hash(s.EventsValue())
	if err != nil {
		return Fingerprint{}, fmt.Errorf("step %d %q: events_hash: %w", s.Idx, s.Name, err)
	}
	return Fingerprint{
		Name:       s.Name,
		InputHash:  inputHash,
		OutputHash: outputHash,
		HasError:   s.HasError(),
		EventsHash: eventsHash,
	}, nil
}

// ErrorsEqual reports whether two steps' error state agrees: equal if
// neither has an error, or both have errors with canonically-equal
// aggregated error payloads.
func ErrorsEqual(a, b Step) (bool, error) {
	aHas, bHas := a.HasError(), b.HasError()
	if aHas != bHas {
		return false, nil
	}
	if !aHas {
		return true, nil
	}
	aHash, err := canon.Hash(value.Concat(a.ErrorPayloads()...))
	if err != nil {
		return false, fmt.Errorf("step %d %q: error payload hash: %w", a.Idx, a.Name, err)
	}
	bHash, err := canon.Hash(value.Concat(b.ErrorPayloads()...))
	if err != nil {
		return false, fmt.Errorf("step %d %q: error payload hash: %w", b.Idx, b.Name, err)
	}
	return aHash == bHash, nil
}
