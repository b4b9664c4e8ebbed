package value

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
)

// Decode parses JSON bytes into a Value tree, the inverse of Encode.
// It recognizes the {"$bytes":"<hex>"} wrapper Bytes.MarshalJSON emits
// and the {"$float":"NaN"|"Infinity"|"-Infinity"} wrapper
// Float.MarshalJSON emits for non-finite floats, and uses json.Number
// to preserve integer precision beyond float64's 53-bit mantissa.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("value.Decode: %w", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(v), nil
	case json.Number:
		return numberToValue(v)
	case string:
		return String(v), nil
	case []any:
		seq := make(Sequence, len(v))
		for i, elem := range v {
			val, err := fromRaw(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			seq[i] = val
		}
		return seq, nil
	case map[string]any:
		if bytesHex, ok := bytesWrapper(v); ok {
			raw, err := hex.DecodeString(bytesHex)
			if err != nil {
				return nil, fmt.Errorf("$bytes: invalid hex: %w", err)
			}
			return Bytes(raw), nil
		}
		if lit, ok := floatWrapper(v); ok {
			f, err := nonFiniteFloat(lit)
			if err != nil {
				return nil, err
			}
			return Float(f), nil
		}
		m := make(Map, len(v))
		for k, elem := range v {
			val, err := fromRaw(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			m[k] = val
		}
		return m, nil
	default:
		return nil, fmt.Errorf("value.Decode: unsupported JSON type %T", raw)
	}
}

// bytesWrapper reports whether m is exactly the {"$bytes":"<hex>"}
// shape, distinguishing an encoded byte sequence from an ordinary
// single-key mapping that happens to use the same key.
func bytesWrapper(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	v, ok := m["$bytes"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// floatWrapper reports whether m is exactly the {"$float":"<literal>"}
// shape, distinguishing an encoded non-finite float from an ordinary
// single-key mapping that happens to use the same key.
func floatWrapper(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	v, ok := m["$float"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// nonFiniteFloat parses the three literal forms Float.MarshalJSON
// emits for non-finite values. A finite float never reaches this
// path: MarshalJSON encodes those as plain JSON numbers.
func nonFiniteFloat(lit string) (float64, error) {
	switch lit {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	default:
		return 0, fmt.Errorf("$float: unrecognized literal %q", lit)
	}
}

// numberToValue renders an integral json.Number as Int and anything
// else (fractional, exponent, or out-of-int64-range) as Float.
func numberToValue(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("number %q: %w", n, err)
	}
	return Float(f), nil
}
