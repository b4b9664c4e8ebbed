package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/forkline/forkline/internal/value"
)

// Hash computes the SHA-256 content hash of v's canonical bytes,
// rendered as 64 lowercase hex characters. Comparison between two
// Values always uses this full hex form, never Preview. There is no
// domain separation: this package defines exactly one hash purpose, so
// there is no sibling identity space to keep apart from.
func Hash(v value.Value) (string, error) {
	canonical, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canon.Hash: %w", err)
	}
	return hashBytes(canonical), nil
}

func hashBytes(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// MustHash is like Hash but panics on error. Use only in tests or when
// v is known to be well-formed.
func MustHash(v value.Value) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}

// Preview renders a human-friendly log form of a content hash:
// sha256:<hash>:<first-16-hex-of-body-prefix>. Never used for
// comparison — only the full hex form returned by Hash is.
func Preview(v value.Value) (string, error) {
	canonical, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canon.Preview: %w", err)
	}
	full := hashBytes(canonical)
	prefixLen := 8 // 8 body bytes render as 16 hex characters
	if len(canonical) < prefixLen {
		prefixLen = len(canonical)
	}
	return fmt.Sprintf("sha256:%s:%s", full, hex.EncodeToString(canonical[:prefixLen])), nil
}
