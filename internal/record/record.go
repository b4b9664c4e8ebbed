// Package record implements Forkline's caller-facing record interface:
// start_run, log_event, end_run. It sits in front of the store,
// ensuring every payload flows through the redaction engine before
// persistence and that step/event ordering is assigned deterministically
// as calls arrive.
package record

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forkline/forkline/internal/model"
	"github.com/forkline/forkline/internal/redact"
	"github.com/forkline/forkline/internal/store"
	"github.com/forkline/forkline/internal/value"
)

// IDGenerator produces run ids. UUIDv7Generator is used in production;
// FixedGenerator supports deterministic tests.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined run ids for tests.
type FixedGenerator struct {
	mu     sync.Mutex
	ids    []string
	cursor int
}

// NewFixedGenerator returns a generator that yields ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cursor >= len(g.ids) {
		panic("record: FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.cursor]
	g.cursor++
	return id
}

// Clock supplies timestamps. WallClock is used in production; a fixed
// clock supports deterministic tests without depending on time.Now.
type Clock interface {
	Now() time.Time
}

// WallClock reports the real time.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now().UTC() }

// Recorder is the mutable, stateful wrapper around the store and a
// redaction policy that implements start_run/log_event/end_run. Runs
// concurrently used by multiple goroutines must synchronize their own
// calls to a given run id; Recorder itself is safe for concurrent use
// across distinct run ids.
type Recorder struct {
	store  *store.Store
	policy *redact.Policy
	ids    IDGenerator
	clock  Clock

	mu            sync.Mutex
	stepSeq       map[string]map[int]int // run id -> step idx -> next event seq
	sealRecipient string                  // age public key; empty disables ENCRYPTED_DEBUG sealing
}

// New constructs a Recorder. policy governs what log_event persists;
// ids and clock are injected so tests can be deterministic.
func New(s *store.Store, policy *redact.Policy, ids IDGenerator, clock Clock) *Recorder {
	return &Recorder{
		store:   s,
		policy:  policy,
		ids:     ids,
		clock:   clock,
		stepSeq: make(map[string]map[int]int),
	}
}

// Seal enables ENCRYPTED_DEBUG-mode sealing: every subsequent LogEvent
// call encodes its already-redacted payload with value.Encode (not the
// canonical form) and seals the resulting bytes for recipientKey before the store ever sees
// them, instead of persisting the plaintext Value. recipientKey is an age
// X25519 public key (see redact.GenerateRecipientKeypair). Returns r
// for chaining onto New.
func (r *Recorder) Seal(recipientKey string) *Recorder {
	r.sealRecipient = recipientKey
	return r
}

// StartRun creates a new run and returns its id.
func (r *Recorder) StartRun(ctx context.Context, entrypoint string, schemaVersion string, envFingerprint value.Value) (string, error) {
	runID := r.ids.Generate()
	if err := r.store.CreateRun(ctx, runID, schemaVersion, entrypoint, envFingerprint, r.clock.Now().Format(time.RFC3339Nano)); err != nil {
		return "", fmt.Errorf("record: start run: %w", err)
	}
	r.mu.Lock()
	r.stepSeq[runID] = make(map[int]int)
	r.mu.Unlock()
	return runID, nil
}

// LogEvent redacts payload and appends it to stepIdx/stepName within
// runID. The explicit step association (see DESIGN.md) exists because
// Step.Name and Step.Idx must come from somewhere, and the natural
// caller — an SDK wrapping an agent loop — already tracks which step
// it is currently in.
func (r *Recorder) LogEvent(ctx context.Context, runID string, stepIdx int, stepName, eventType string, payload value.Value) error {
	redacted, err := redact.Apply(r.policy, payload)
	if err != nil {
		return fmt.Errorf("record: log event: run %q step %d: %w", runID, stepIdx, err)
	}

	stored := redacted
	if r.sealRecipient != "" {
		encoded, err := value.Encode(redacted)
		if err != nil {
			return fmt.Errorf("record: log event: run %q step %d: encode before sealing: %w", runID, stepIdx, err)
		}
		sealed, err := redact.Seal(encoded, r.sealRecipient)
		if err != nil {
			return fmt.Errorf("record: log event: run %q step %d: %w", runID, stepIdx, err)
		}
		stored = value.Bytes(sealed)
	}

	if err := r.store.EnsureStep(ctx, runID, stepIdx, stepName); err != nil {
		return fmt.Errorf("record: log event: %w", err)
	}

	seq := r.nextSeq(runID, stepIdx)
	if err := r.store.AppendEvent(ctx, runID, stepIdx, seq, eventType, stored, r.clock.Now().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("record: log event: %w", err)
	}
	return nil
}

func (r *Recorder) nextSeq(runID string, stepIdx int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps, ok := r.stepSeq[runID]
	if !ok {
		steps = make(map[int]int)
		r.stepSeq[runID] = steps
	}
	seq := steps[stepIdx]
	steps[stepIdx] = seq + 1
	return seq
}

// Step returns a StepHandle bound to (runID, stepIdx, stepName), an
// ergonomic wrapper over LogEvent for callers instrumenting a single
// step who would otherwise have to repeat the same three arguments at
// every call site within it.
func (r *Recorder) Step(runID string, stepIdx int, stepName string) *StepHandle {
	return &StepHandle{rec: r, runID: runID, stepIdx: stepIdx, stepName: stepName}
}

// StepHandle scopes LogEvent to one (runID, stepIdx, stepName) triple.
type StepHandle struct {
	rec      *Recorder
	runID    string
	stepIdx  int
	stepName string
}

// LogEvent records one event within the bound step.
func (h *StepHandle) LogEvent(ctx context.Context, eventType string, payload value.Value) error {
	return h.rec.LogEvent(ctx, h.runID, h.stepIdx, h.stepName, eventType, payload)
}

// EndRun marks runID terminal with status.
func (r *Recorder) EndRun(ctx context.Context, runID string, status model.Status) error {
	if err := r.store.EndRun(ctx, runID, string(status), r.clock.Now().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("record: end run: %w", err)
	}
	r.mu.Lock()
	delete(r.stepSeq, runID)
	r.mu.Unlock()
	return nil
}
