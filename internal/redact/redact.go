package redact

import (
	"strconv"

	"github.com/forkline/forkline/internal/canon"
	"github.com/forkline/forkline/internal/value"
)

const maskedLiteral = "[REDACTED]"

// Apply transforms payload into a redacted value.Value per policy.
// Pure: no I/O, no randomness, no clock. Immutable input: v is never
// modified, a new Value tree is returned. Deterministic: the same
// (policy, input) pair always yields byte-identical output.
func Apply(policy *Policy, v value.Value) (value.Value, error) {
	return redactAt(policy, v, "")
}

// redactAt processes v found at path (root = ""), with no key context
// of its own — key context only exists for mapping entries, applied by
// the caller (redactMap) before recursing into the child's value.
func redactAt(policy *Policy, v value.Value, path string) (value.Value, error) {
	switch vv := v.(type) {
	case value.Map:
		return redactMap(policy, vv, path)
	case value.Sequence:
		return redactSequence(policy, vv, path)
	default:
		return v, nil
	}
}

func redactMap(policy *Policy, m value.Map, path string) (value.Value, error) {
	out := make(value.Map, len(m))
	for k, v := range m {
		childPath := joinPath(path, k)
		action, matched := policy.resolve(matchCtx{key: k, hasKey: true, path: childPath})
		if !matched {
			redacted, err := redactAt(policy, v, childPath)
			if err != nil {
				return nil, err
			}
			out[k] = redacted
			continue
		}
		applied, err := applyAction(action, v)
		if err != nil {
			return nil, err
		}
		if applied == nil {
			continue // DROP: omit the entry entirely
		}
		out[k] = applied
	}
	return out, nil
}

func redactSequence(policy *Policy, seq value.Sequence, path string) (value.Value, error) {
	out := make(value.Sequence, 0, len(seq))
	for i, v := range seq {
		childPath := joinIndex(path, i)
		action, matched := policy.resolve(matchCtx{hasKey: false, path: childPath})
		if !matched {
			redacted, err := redactAt(policy, v, childPath)
			if err != nil {
				return nil, err
			}
			out = append(out, redacted)
			continue
		}
		applied, err := applyAction(action, v)
		if err != nil {
			return nil, err
		}
		if applied == nil {
			continue
		}
		out = append(out, applied)
	}
	return out, nil
}

// applyAction returns the replacement value for a matched entry, or
// nil to signal DROP (omit the entry).
func applyAction(action Action, v value.Value) (value.Value, error) {
	switch action {
	case Mask:
		return value.String(maskedLiteral), nil
	case Hash:
		h, err := canon.Hash(v)
		if err != nil {
			return nil, err
		}
		return value.String("hash:" + h), nil
	case Drop:
		return nil, nil
	default:
		return nil, &PolicyError{Reason: "unreachable: invalid action reached applyAction"}
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func joinIndex(parent string, i int) string {
	idx := strconv.Itoa(i)
	if parent == "" {
		return idx
	}
	return parent + "." + idx
}
