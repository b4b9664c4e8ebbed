// Package value defines Forkline's Value grammar: the recursive tagged
// union that every recorded payload, canonical hash, and diff operates
// over.
//
// Value is sealed: only the types in this file implement it, so a type
// switch over Value has a fixed set of kinds to cover. The compiler does
// not check that a switch covers all of them.
package value

import (
	"encoding/json"
	"fmt"
	"math"
)

// Value is a Forkline structured value: null, boolean, integer,
// floating-point, string, byte sequence, ordered sequence, or mapping
// from string to Value. Only the types declared in this file implement
// it.
type Value interface {
	isValue()
}

// Null is the absence of a value.
type Null struct{}

func (Null) isValue() {}

// MarshalJSON renders Null as the JSON literal null rather than the
// empty object json.Marshal would otherwise produce for an empty
// struct.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Bool is a boolean value. Bools are never collapsed into integers by
// the canonicalizer: true and 1 canonicalize differently.
type Bool bool

func (Bool) isValue() {}

// Int is a signed integer value.
type Int int64

func (Int) isValue() {}

// Float is a floating-point value. NaN and the two infinities are
// legal; the canonicalizer renders them as strings to preserve
// round-trip stability.
type Float float64

func (Float) isValue() {}

// MarshalJSON renders finite floats as ordinary JSON numbers and the
// three non-finite floats as {"$float":"NaN"|"Infinity"|"-Infinity"},
// mirroring the canonicalizer's string rendering but in a wrapper
// Decode can tell apart from a genuine String, so a Float round-trips
// through Encode/Decode instead of silently becoming a String.
func (f Float) MarshalJSON() ([]byte, error) {
	switch {
	case math.IsNaN(float64(f)):
		return []byte(`{"$float":"NaN"}`), nil
	case math.IsInf(float64(f), 1):
		return []byte(`{"$float":"Infinity"}`), nil
	case math.IsInf(float64(f), -1):
		return []byte(`{"$float":"-Infinity"}`), nil
	}
	return json.Marshal(float64(f))
}

// String is a Unicode string value.
type String string

func (String) isValue() {}

// Bytes is an opaque byte sequence, never interpreted as text.
type Bytes []byte

func (Bytes) isValue() {}

// MarshalJSON renders Bytes the same way the canonicalizer does
// ({"$bytes":"<hex>"}) so CLI JSON output and canonical bytes agree on
// how a byte sequence looks, instead of falling back to json.Marshal's
// default base64 encoding for []byte.
func (b Bytes) MarshalJSON() ([]byte, error) {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2+12)
	out = append(out, `{"$bytes":"`...)
	for _, c := range b {
		out = append(out, hexDigits[c>>4], hexDigits[c&0x0f])
	}
	out = append(out, `"}`...)
	return out, nil
}

// Sequence is an ordered list of Values.
type Sequence []Value

func (Sequence) isValue() {}

// Map is a mapping from string keys to Values. Iteration order is not
// meaningful; the canonicalizer imposes lexicographic key order on
// output and callers must not depend on any other order.
type Map map[string]Value

func (Map) isValue() {}

// New wraps a Go primitive as a Value. It exists for ergonomic
// construction in tests and demo code; it never sees floats-as-any
// ambiguity because the caller picks the concrete branch explicitly.
func New(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case string:
		return String(val), nil
	case []byte:
		return Bytes(val), nil
	case []any:
		seq := make(Sequence, len(val))
		for i, elem := range val {
			v, err := New(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			seq[i] = v
		}
		return seq, nil
	case map[string]any:
		m := make(Map, len(val))
		for k, elem := range val {
			v, err := New(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			m[k] = v
		}
		return m, nil
	default:
		return nil, fmt.Errorf("value.New: unsupported type %T", v)
	}
}

// Concat builds a Sequence from the given Values in order. It is used
// to aggregate the payloads of same-typed events into a single hashable
// value without callers hand-rolling a slice literal.
func Concat(vs ...Value) Sequence {
	seq := make(Sequence, len(vs))
	copy(seq, vs)
	return seq
}

// Equal reports whether two Values are structurally equal: same shape,
// same content, integers and floats compared numerically rather than
// by tag, mirroring the differ's numeric cross-type rule for callers
// that only need a boolean answer. Strings and map keys are compared
// byte for byte, without the Unicode or newline normalization that
// canonicalization applies.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return float64(av) == float64(bv)
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Float:
			return sameFloat(float64(av), float64(bv))
		case Int:
			return float64(av) == float64(bv)
		}
		return false
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bytes:
		bv, ok := b.(Bytes)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case Sequence:
		bv, ok := b.(Sequence)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func sameFloat(a, b float64) bool {
	if a == 0 && b == 0 {
		return true // collapses -0.0 == 0.0, matches canonicalizer rule
	}
	if a != a && b != b {
		return true // NaN == NaN for this purpose; canonical bytes already agree
	}
	return a == b
}
