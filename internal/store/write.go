package store

import (
	"context"
	"fmt"

	"github.com/forkline/forkline/internal/value"
)

// CreateRun inserts a new run row. Idempotent via ON CONFLICT DO
// NOTHING: a retried start_run call with the same run id is silently
// absorbed rather than erroring.
func (s *Store) CreateRun(ctx context.Context, runID, schemaVersion, entrypoint string, envFingerprint value.Value, startedAt string) error {
	// value.Encode, not canon.Marshal: the store needs a durable,
	// round-trippable encoding, not the canonicalizer's hash-oriented
	// one, which renders NaN/+-Inf as bare strings indistinguishable
	// from value.String on the way back in.
	envJSON, err := value.Encode(envFingerprint)
	if err != nil {
		return fmt.Errorf("store: create run %q: marshal env fingerprint: %w", runID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, schema_version, entrypoint, status, env_fingerprint, started_at)
		VALUES (?, ?, ?, 'pending', ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`, runID, schemaVersion, entrypoint, string(envJSON), startedAt)
	if err != nil {
		return fmt.Errorf("store: create run %q: %w", runID, err)
	}
	return nil
}

// EnsureStep inserts a step row if it doesn't already exist. Idempotent
// via ON CONFLICT DO NOTHING.
func (s *Store) EnsureStep(ctx context.Context, runID string, idx int, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, idx, name)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, idx) DO NOTHING
	`, runID, idx, name)
	if err != nil {
		return fmt.Errorf("store: ensure step %d of run %q: %w", idx, runID, err)
	}
	return nil
}

// AppendEvent inserts an already-redacted event's payload, durably
// encoded, into the given step. seq orders events within a step and is
// supplied by the caller (the Record interface tracks it per run);
// idempotent via ON CONFLICT DO NOTHING on (run_id, step_idx, seq), so
// a retried log_event call never double-appends.
func (s *Store) AppendEvent(ctx context.Context, runID string, stepIdx, seq int, typ string, payload value.Value, timestamp string) error {
	payloadJSON, err := value.Encode(payload)
	if err != nil {
		return fmt.Errorf("store: append event: run %q step %d: %w", runID, stepIdx, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, step_idx, seq, type, payload, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, step_idx, seq) DO NOTHING
	`, runID, stepIdx, seq, typ, string(payloadJSON), timestamp)
	if err != nil {
		return fmt.Errorf("store: append event: run %q step %d: %w", runID, stepIdx, err)
	}
	return nil
}

// EndRun marks a run terminal.
func (s *Store) EndRun(ctx context.Context, runID, status, endedAt string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, ended_at = ? WHERE run_id = ?
	`, status, endedAt, runID)
	if err != nil {
		return fmt.Errorf("store: end run %q: %w", runID, err)
	}
	return nil
}
