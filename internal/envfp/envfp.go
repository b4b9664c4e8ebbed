// Package envfp captures the environment-fingerprint snapshot attached
// to a Run at start time. It is an external collaborator: the core
// never inspects a fingerprint's contents, only carries the opaque
// Value it becomes.
package envfp

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forkline/forkline/internal/value"
)

// Snapshot is the captured environment shape. EnvVars lists variable
// names only, never values, so this capture never duplicates the
// Redaction Engine's job of protecting secrets that happen to live in
// the process environment.
type Snapshot struct {
	GoVersion string   `yaml:"go_version"`
	OS        string   `yaml:"os"`
	Arch      string   `yaml:"arch"`
	Hostname  string   `yaml:"hostname"`
	EnvVars   []string `yaml:"env_vars"`
}

// Capture builds a Snapshot from the running process. varAllowlist
// restricts which environment variable names are recorded; an empty
// allowlist records none, since the ambient environment on a CI runner
// or a developer's shell is not something Forkline should enumerate
// wholesale.
func Capture(varAllowlist []string) Snapshot {
	hostname, _ := os.Hostname()

	present := make([]string, 0, len(varAllowlist))
	for _, name := range varAllowlist {
		if _, ok := os.LookupEnv(name); ok {
			present = append(present, name)
		}
	}
	sort.Strings(present)

	return Snapshot{
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Hostname:  hostname,
		EnvVars:   present,
	}
}

// Value renders s as a value.Value for attachment to Run.EnvFingerprint.
// Builds the mapping directly with value.New, using the same key names
// as the Snapshot's YAML tags.
func (s Snapshot) Value() (value.Value, error) {
	envVars := make([]any, len(s.EnvVars))
	for i, v := range s.EnvVars {
		envVars[i] = v
	}
	return value.New(map[string]any{
		"go_version": s.GoVersion,
		"os":         s.OS,
		"arch":       s.Arch,
		"hostname":   s.Hostname,
		"env_vars":   envVars,
	})
}

// ToYAML serializes s for storage alongside a run archive (e.g. next to
// the sqlite file, for human inspection outside the CLI).
func (s Snapshot) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("envfp: marshal: %w", err)
	}
	return data, nil
}

// FromYAML parses a Snapshot previously written by ToYAML.
func FromYAML(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("envfp: unmarshal: %w", err)
	}
	return s, nil
}

// String renders a one-line human summary.
func (s Snapshot) String() string {
	return fmt.Sprintf("%s/%s go%s on %s", s.OS, s.Arch, strings.TrimPrefix(s.GoVersion, "go"), s.Hostname)
}
