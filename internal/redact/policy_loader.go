package redact

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
)

// policySchema constrains a user-authored policy document before any
// rule is extracted from it: the document is unified against this
// schema instance and rejected outright on unification failure, rather
// than hand-validated field by field.
const policySchema = `
#Action: "MASK" | "HASH" | "DROP"

#Rule: {
	action:       #Action
	key_pattern?:  string
	path_pattern?: string
}

rules: [...#Rule]
exempt_keys: [...string] | *[]
`

// LoadError reports a redaction policy document that fails to compile
// or fails schema validation, carrying enough position information for
// CLI error rendering to print "file:line:col: field: message".
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadPolicyCUE compiles a declarative CUE policy document, validates
// it against policySchema, and constructs the resulting Policy via
// NewPolicy. base's rules and exempt keys, if any, are prepended ahead
// of the document's own rules, so CLI escalation handling can load a
// custom policy that still can't outrank SafePolicy's fixed secret
// rules.
func LoadPolicyCUE(src string, base *Policy) (*Policy, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(policySchema)
	if schema.Err() != nil {
		return nil, &LoadError{Field: "schema", Message: schema.Err().Error()}
	}

	doc := ctx.CompileString(src)
	if doc.Err() != nil {
		return nil, compileErrToLoadError(doc.Err())
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, compileErrToLoadError(err)
	}

	var decoded struct {
		Rules []struct {
			Action      Action  `json:"action"`
			KeyPattern  *string `json:"key_pattern"`
			PathPattern *string `json:"path_pattern"`
		} `json:"rules"`
		ExemptKeys []string `json:"exempt_keys"`
	}
	if err := unified.Decode(&decoded); err != nil {
		return nil, compileErrToLoadError(err)
	}

	rules := make([]Rule, 0, len(decoded.Rules))
	if base != nil {
		rules = append(rules, base.Rules...)
	}
	for _, r := range decoded.Rules {
		rules = append(rules, Rule{Action: r.Action, KeyPattern: r.KeyPattern, PathPattern: r.PathPattern})
	}

	exempt := decoded.ExemptKeys
	if base != nil {
		exempt = append(append([]string{}, exemptKeyNames(base)...), exempt...)
	}

	return NewPolicy(rules, exempt)
}

func exemptKeyNames(p *Policy) []string {
	names := make([]string, 0, len(p.ExemptKeys))
	for k := range p.ExemptKeys {
		names = append(names, k)
	}
	return names
}

func compileErrToLoadError(err error) *LoadError {
	pos := token.NoPos
	field := "policy"
	if positioner, ok := err.(interface{ Position() token.Pos }); ok {
		pos = positioner.Position()
	}
	return &LoadError{Field: field, Message: err.Error(), Pos: pos}
}
