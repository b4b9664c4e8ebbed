// Package diff implements Forkline's structural differ: a total,
// deterministic function producing an ordered list of edit operations
// transforming an "old" value.Value into a "new" one. Ordering is
// always explicit and never left to map iteration: remove before add
// before recurse, each group sorted by key.
package diff

import (
	"slices"

	"github.com/forkline/forkline/internal/value"
)

// Op is one edit operation. Add and Remove carry only the value that
// was added or removed (New for Add, Old for Remove); Replace carries
// both.
type Op struct {
	Kind OpKind      `json:"op"`
	Path Path        `json:"path"`
	Old  value.Value `json:"old,omitempty"`
	New  value.Value `json:"new,omitempty"`
}

// OpKind is the operation discriminator.
type OpKind string

const (
	OpAdd     OpKind = "add"
	OpRemove  OpKind = "remove"
	OpReplace OpKind = "replace"
)

// Diff produces the ordered edit-op list transforming old into new,
// rooted at diff.Root. Diff is total: no error return, no failure mode.
func Diff(old, new value.Value) []Op {
	return diffAt(Root, old, new)
}

func diffAt(path Path, old, new value.Value) []Op {
	// Int-vs-Int compares exactly: routing two int64s through float64
	// first (as the general numeric path below does for the int/float
	// cross-type case) loses precision past 2^53 and can miss a real
	// difference between two large, distinct integers.
	if oldInt, oldIsInt := old.(value.Int); oldIsInt {
		if newInt, newIsInt := new.(value.Int); newIsInt {
			if oldInt == newInt {
				return nil
			}
			return []Op{{Kind: OpReplace, Path: path, Old: old, New: new}}
		}
	}

	if isNumeric(old) && isNumeric(new) {
		if numericValue(old) == numericValue(new) {
			return nil
		}
		return []Op{{Kind: OpReplace, Path: path, Old: old, New: new}}
	}

	oldSeq, oldIsSeq := old.(value.Sequence)
	newSeq, newIsSeq := new.(value.Sequence)
	if oldIsSeq && newIsSeq {
		return diffSequence(path, oldSeq, newSeq)
	}

	oldMap, oldIsMap := old.(value.Map)
	newMap, newIsMap := new.(value.Map)
	if oldIsMap && newIsMap {
		return diffMap(path, oldMap, newMap)
	}

	if sameKind(old, new) {
		if value.Equal(old, new) {
			return nil
		}
		return []Op{{Kind: OpReplace, Path: path, Old: old, New: new}}
	}

	// Type mismatch, including sequence-vs-mapping.
	return []Op{{Kind: OpReplace, Path: path, Old: old, New: new}}
}

func isNumeric(v value.Value) bool {
	switch v.(type) {
	case value.Int, value.Float:
		return true
	}
	return false
}

func numericValue(v value.Value) float64 {
	switch val := v.(type) {
	case value.Int:
		return float64(val)
	case value.Float:
		return float64(val)
	}
	return 0
}

func sameKind(a, b value.Value) bool {
	switch a.(type) {
	case value.Null:
		_, ok := b.(value.Null)
		return ok
	case value.Bool:
		_, ok := b.(value.Bool)
		return ok
	case value.String:
		_, ok := b.(value.String)
		return ok
	case value.Bytes:
		_, ok := b.(value.Bytes)
		return ok
	default:
		return false
	}
}

// diffMap emits, in this exact order: all removes for old-only keys
// (sorted), then all adds for new-only keys (sorted), then a recursion
// into each common key (sorted).
func diffMap(path Path, old, new value.Map) []Op {
	var removedOnly, addedOnly, common []string
	for k := range old {
		if _, ok := new[k]; ok {
			common = append(common, k)
		} else {
			removedOnly = append(removedOnly, k)
		}
	}
	for k := range new {
		if _, ok := old[k]; !ok {
			addedOnly = append(addedOnly, k)
		}
	}
	slices.Sort(removedOnly)
	slices.Sort(addedOnly)
	slices.Sort(common)

	var ops []Op
	for _, k := range removedOnly {
		ops = append(ops, Op{Kind: OpRemove, Path: path.Key(k), Old: old[k]})
	}
	for _, k := range addedOnly {
		ops = append(ops, Op{Kind: OpAdd, Path: path.Key(k), New: new[k]})
	}
	for _, k := range common {
		ops = append(ops, diffAt(path.Key(k), old[k], new[k])...)
	}
	return ops
}

// diffSequence compares pairwise by index up to the shorter length,
// then emits trailing removes (if old is longer) or trailing adds (if
// new is longer), each in increasing index order.
func diffSequence(path Path, old, new value.Sequence) []Op {
	n := len(old)
	if len(new) < n {
		n = len(new)
	}

	var ops []Op
	for i := 0; i < n; i++ {
		ops = append(ops, diffAt(path.Index(i), old[i], new[i])...)
	}
	if len(old) > len(new) {
		for i := len(new); i < len(old); i++ {
			ops = append(ops, Op{Kind: OpRemove, Path: path.Index(i), Old: old[i]})
		}
	} else if len(new) > len(old) {
		for i := len(old); i < len(new); i++ {
			ops = append(ops, Op{Kind: OpAdd, Path: path.Index(i), New: new[i]})
		}
	}
	return ops
}
