// Package redact implements Forkline's redaction engine: a pure
// transform from a payload value.Value to a redacted value.Value,
// applied at the storage boundary before any persistence. It is the
// only authorized writer to that boundary; any persistence path that
// bypasses it is a defect.
package redact

import (
	"fmt"
	"strings"
)

// Action is what a matching rule does to a value.
type Action string

const (
	Mask Action = "MASK"
	Hash Action = "HASH"
	Drop Action = "DROP"
)

func (a Action) valid() bool {
	switch a {
	case Mask, Hash, Drop:
		return true
	}
	return false
}

// Rule is one policy rule: an action plus the patterns that must all
// match for it to fire. Either pattern may be nil; a rule with neither
// pattern matches unconditionally (a catch-all, typically placed last).
type Rule struct {
	Action      Action
	KeyPattern  *string
	PathPattern *string
}

// PolicyError reports a malformed policy, rejected at construction
// time; it is never raised at redaction time.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("PolicyError: %s", e.Reason)
}

// Policy is an ordered list of rules plus a set of keys exempt from
// matching, evaluated first-match-wins.
type Policy struct {
	Rules      []Rule
	ExemptKeys map[string]struct{} // lower-cased key -> present
}

// NewPolicy validates rules and constructs a Policy. exemptKeys is a
// short allowlist of structural-metadata key names that never match
// any rule regardless of pattern, matched by exact, case-insensitive
// key equality, not substring, unlike key_pattern.
func NewPolicy(rules []Rule, exemptKeys []string) (*Policy, error) {
	for i, r := range rules {
		if !r.Action.valid() {
			return nil, &PolicyError{Reason: fmt.Sprintf("rule %d: unknown action %q", i, r.Action)}
		}
	}
	exempt := make(map[string]struct{}, len(exemptKeys))
	for _, k := range exemptKeys {
		exempt[strings.ToLower(k)] = struct{}{}
	}
	return &Policy{Rules: rules, ExemptKeys: exempt}, nil
}

func (p *Policy) isExempt(key string) bool {
	_, ok := p.ExemptKeys[strings.ToLower(key)]
	return ok
}

// matchCtx describes the entry a rule is evaluated against: the
// mapping key (if any — sequence elements have none) and the
// dot-separated path from the root.
type matchCtx struct {
	key    string
	hasKey bool
	path   string
}

func (r Rule) matches(ctx matchCtx) bool {
	if r.KeyPattern != nil {
		if !ctx.hasKey {
			return false // key_pattern rules do not fire in sequences
		}
		if !containsFold(ctx.key, *r.KeyPattern) {
			return false
		}
	}
	if r.PathPattern != nil {
		if !containsFold(ctx.path, *r.PathPattern) {
			return false
		}
	}
	return true
}

// resolve returns the first matching rule's action, or ("", false) if
// no rule matches (leaf passes through unchanged) or the key is
// exempt.
func (p *Policy) resolve(ctx matchCtx) (Action, bool) {
	if ctx.hasKey && p.isExempt(ctx.key) {
		return "", false
	}
	for _, r := range p.Rules {
		if r.matches(ctx) {
			return r.Action, true
		}
	}
	return "", false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// SecretKeyPatterns is the fixed list of substrings the SAFE policy
// masks on. Exported so ENCRYPTED_DEBUG mode (which otherwise persists
// raw payloads) can reuse it to drop the same entries by construction
// regardless of mode-level raw retention.
var SecretKeyPatterns = []string{
	"api_key", "apikey", "token", "secret", "password",
	"access_token", "refresh_token", "private_key", "credentials",
	"auth", "session", "csrf", "authorization", "cookie", "set-cookie",
}

// StructuralAllowlist is the short allowlist of structural-metadata
// keys exempt from the SAFE policy's secret rules.
var StructuralAllowlist = []string{
	"run_id", "event_id", "step_id", "timestamp", "created_at",
	"started_at", "ended_at", "status", "duration", "type", "name",
	"tool", "model", "entrypoint",
}

// secretMaskRules builds the fixed rules matched against
// SecretKeyPatterns under the given action. Extracted so both
// SafePolicy and any custom SAFE derivative can prepend them by
// construction ahead of caller-supplied rules: secret matching cannot
// be disabled by mode-level retention settings.
func secretMaskRules(action Action) []Rule {
	rules := make([]Rule, len(SecretKeyPatterns))
	for i, pat := range SecretKeyPatterns {
		p := pat
		rules[i] = Rule{Action: action, KeyPattern: &p}
	}
	return rules
}

// SafePolicy returns the default SAFE policy: MASK on any mapping
// entry whose key contains a secret-like substring, with the
// structural-metadata allowlist exempted. Additional rules may be
// supplied; they are evaluated after the fixed secret rules, so they
// can never weaken secret protection by being listed first.
func SafePolicy(extra ...Rule) (*Policy, error) {
	rules := append(secretMaskRules(Mask), extra...)
	return NewPolicy(rules, StructuralAllowlist)
}

// DebugPolicy returns the identity policy: no rules fire, every value
// passes through unchanged. DEBUG mode is forbidden in production
// builds unless explicitly enabled; that gate is a mode-selection
// concern for the caller (CLI/record layer), not something this pure
// engine enforces.
func DebugPolicy() (*Policy, error) {
	return NewPolicy(nil, nil)
}

// EncryptedDebugPolicy returns the identity policy with the fixed
// secret rules prepended as DROP instead of MASK: secrets matched by
// the default rules are dropped by construction in this mode
// regardless of its otherwise-raw retention, distinguishing it from
// the SAFE default policy, which masks rather than drops.
func EncryptedDebugPolicy() (*Policy, error) {
	return NewPolicy(secretMaskRules(Drop), StructuralAllowlist)
}
