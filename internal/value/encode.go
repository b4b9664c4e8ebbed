package value

import "encoding/json"

// Encode renders v as durable, round-trippable JSON: the format the
// store persists and Decode reads back. Unlike canon.Marshal, Encode
// makes no canonicalization promises (no key sorting, no Unicode
// normalization, no fixed float precision) — it exists only so that
// Decode(Encode(v)) reproduces v exactly, including Float(NaN) and the
// two infinities, which canon.Marshal deliberately renders as bare
// strings for hashing and cannot be told apart from value.String on
// the way back in.
func Encode(v Value) ([]byte, error) {
	return json.Marshal(v)
}
