package diff

import (
	"strconv"
	"strings"
)

// Path is a JSONPath-style string rooted at "$". Its Key/Index methods
// build addressable child paths incrementally, the same way an
// error-context helper builds "array[%d]"/"object[%q]" strings, except
// the result is a real value the caller keeps rather than a throwaway
// message.
type Path string

// Root is the path to the value being diffed itself.
const Root Path = "$"

// Key returns the path to a mapping entry named name. Names containing
// dots or brackets are quoted with ['...']; plain identifiers use the
// compact ".name" form.
func (p Path) Key(name string) Path {
	if needsQuoting(name) {
		return Path(string(p) + "['" + strings.ReplaceAll(name, "'", `\'`) + "']")
	}
	return Path(string(p) + "." + name)
}

// Index returns the path to a sequence element at position i.
func (p Path) Index(i int) Path {
	return Path(string(p) + "[" + strconv.Itoa(i) + "]")
}

func needsQuoting(name string) bool {
	if name == "" {
		return true
	}
	return strings.ContainsAny(name, ".[]")
}
