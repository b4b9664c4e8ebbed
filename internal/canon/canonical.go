// Package canon implements Forkline's canonicalization profile
// ("strict", the only profile in v0): the mapping from any value.Value
// to a stable byte sequence and a fixed-width content hash.
//
// Canonical bytes are the single source of identity for every other
// core component: the differ never compares hashes, the redaction
// engine's HASH action calls straight into this package, and the
// first-divergence engine's fingerprints are canonical hashes of
// aggregated payloads. Any property those components rely on
// (mapping-order independence, Unicode equivalence, numeric stability)
// must hold here and nowhere else.
package canon

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/forkline/forkline/internal/value"
)

// BadValueKindError reports a value.Value that is not well-formed
// under the canonicalization grammar: a Map with a non-string key
// cannot occur in Go's type system, but a value.Value implementation
// added outside this module, or a cycle exceeding MaxDepth, is
// reported this way.
type BadValueKindError struct {
	Reason string
}

func (e *BadValueKindError) Error() string {
	return fmt.Sprintf("BadValueKind: %s", e.Reason)
}

// MaxDepth bounds recursion so that a value containing a cycle (which
// cannot arise from well-formed input, but which a hostile or buggy
// caller might construct with shared substructure) fails cleanly
// instead of exhausting the stack. 256 is far deeper than any
// realistic recorded run approaches.
const MaxDepth = 256

// Marshal renders v as canonical bytes under the strict profile.
// Canonicalization is total over well-formed Values.
func Marshal(v value.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshal(&buf, v, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshal(buf *bytes.Buffer, v value.Value, depth int) error {
	if depth > MaxDepth {
		return &BadValueKindError{Reason: fmt.Sprintf("recursion exceeds max depth %d", MaxDepth)}
	}

	switch val := v.(type) {
	case nil:
		return &BadValueKindError{Reason: "nil is not a value.Value"}
	case value.Null:
		buf.WriteString("null")
		return nil
	case value.Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case value.Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case value.Float:
		return marshalFloat(buf, float64(val))
	case value.String:
		return marshalString(buf, string(val))
	case value.Bytes:
		return marshalBytes(buf, val)
	case value.Sequence:
		return marshalSequence(buf, val, depth)
	case value.Map:
		return marshalMap(buf, val, depth)
	default:
		return &BadValueKindError{Reason: fmt.Sprintf("unsupported value kind %T", v)}
	}
}

// marshalFloat emits 17 significant digits for finite values: a
// shortest-round-trip formatter or an explicit 17-digit formatter is
// required here, since %g/%e defaults are insufficient. Non-finite
// values and negative zero take special-cased literal forms.
func marshalFloat(buf *bytes.Buffer, f float64) error {
	switch {
	case math.IsNaN(f):
		buf.WriteString(`"NaN"`)
		return nil
	case math.IsInf(f, 1):
		buf.WriteString(`"Infinity"`)
		return nil
	case math.IsInf(f, -1):
		buf.WriteString(`"-Infinity"`)
		return nil
	}
	if f == 0 {
		f = 0 // collapses -0.0 to 0.0
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', 17, 64))
	return nil
}

// marshalString normalizes to NFC, collapses newline variants to \n,
// and writes a compact JSON string literal with non-ASCII preserved
// (not \u-escaped).
func marshalString(buf *bytes.Buffer, s string) error {
	s = norm.NFC.String(s)
	s = normalizeNewlines(s)

	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return nil
}

// normalizeNewlines collapses \r\n and lone \r to \n. NFC must run
// first: normalization never introduces or removes \r, so running the
// collapse afterward cannot split a combining sequence.
func normalizeNewlines(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\r' {
			b.WriteRune('\n')
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

func marshalBytes(buf *bytes.Buffer, b []byte) error {
	buf.WriteString(`{"$bytes":"`)
	const hexDigits = "0123456789abcdef"
	for _, c := range b {
		buf.WriteByte(hexDigits[c>>4])
		buf.WriteByte(hexDigits[c&0x0f])
	}
	buf.WriteString(`"}`)
	return nil
}

func marshalSequence(buf *bytes.Buffer, seq value.Sequence, depth int) error {
	buf.WriteByte('[')
	for i, elem := range seq {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshal(buf, elem, depth+1); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func marshalMap(buf *bytes.Buffer, m value.Map, depth int) error {
	// Sort by NFC-normalized code-point sequence, so keys that are
	// byte-distinct but Unicode equivalent land in the same relative
	// order every time.
	keys := make([]string, 0, len(m))
	normalized := make(map[string]string, len(m))
	for k := range m {
		keys = append(keys, k)
		normalized[k] = norm.NFC.String(k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return strings.Compare(normalized[a], normalized[b])
	})

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := marshal(buf, m[k], depth+1); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}
