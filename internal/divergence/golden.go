package divergence

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertGolden compares res's JSON serialization (the same bytes a
// `forkline diff --format json` invocation would emit) against a
// checked-in golden fixture, failing the test on mismatch. To
// regenerate fixtures after an intentional change to Result's shape or
// a scenario's output, run:
//
//	go test ./internal/divergence -update
func AssertGolden(t *testing.T, name string, res Result) {
	t.Helper()

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		t.Fatalf("divergence: marshal golden fixture %q: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden.json"),
	)
	g.Assert(t, name, data)
}
