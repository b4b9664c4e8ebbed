package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/forkline/forkline/internal/model"
	"github.com/forkline/forkline/internal/value"
)

// LoadRun assembles a full model.Run from its rows: the run header, its
// steps in index order, and each step's events in seq order. Returns
// *RunNotFoundError if runID has no run row. Never returns a
// partially-written Run — the whole assembly happens under one
// snapshot-consistent sequence of reads.
func (s *Store) LoadRun(ctx context.Context, runID string) (model.Run, error) {
	var schemaVersion, entrypoint, status, envFingerprintJSON, startedAt, endedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT schema_version, entrypoint, status, env_fingerprint, started_at, ended_at
		FROM runs WHERE run_id = ?
	`, runID).Scan(&schemaVersion, &entrypoint, &status, &envFingerprintJSON, &startedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, &RunNotFoundError{RunID: runID}
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("store: load run %q: %w", runID, err)
	}

	envFingerprint, err := value.Decode([]byte(envFingerprintJSON))
	if err != nil {
		return model.Run{}, fmt.Errorf("store: load run %q: decode env fingerprint: %w", runID, err)
	}

	steps, err := s.loadSteps(ctx, runID)
	if err != nil {
		return model.Run{}, err
	}

	if schemaVersion == "" {
		schemaVersion = model.DefaultSchemaVersion
	}

	return model.Run{
		RunID:          runID,
		SchemaVersion:  schemaVersion,
		Steps:          steps,
		EnvFingerprint: envFingerprint,
		Status:         model.Status(status),
	}, nil
}

func (s *Store) loadSteps(ctx context.Context, runID string) ([]model.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, name FROM steps WHERE run_id = ? ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: load run %q: query steps: %w", runID, err)
	}
	defer rows.Close()

	var steps []model.Step
	for rows.Next() {
		var idx int
		var name string
		if err := rows.Scan(&idx, &name); err != nil {
			return nil, fmt.Errorf("store: load run %q: scan step: %w", runID, err)
		}
		steps = append(steps, model.Step{Idx: idx, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load run %q: iterate steps: %w", runID, err)
	}

	for i := range steps {
		events, err := s.loadEvents(ctx, runID, steps[i].Idx)
		if err != nil {
			return nil, err
		}
		steps[i].Events = events
	}
	return steps, nil
}

func (s *Store) loadEvents(ctx context.Context, runID string, stepIdx int) ([]model.Event, error) {
	// Deterministic ordering: seq ASC, so repeated loads of the same
	// run are always byte-identical.
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, payload, timestamp FROM events
		WHERE run_id = ? AND step_idx = ?
		ORDER BY seq ASC
	`, runID, stepIdx)
	if err != nil {
		return nil, fmt.Errorf("store: load run %q step %d: query events: %w", runID, stepIdx, err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var typ, payloadJSON, timestamp string
		if err := rows.Scan(&typ, &payloadJSON, &timestamp); err != nil {
			return nil, fmt.Errorf("store: load run %q step %d: scan event: %w", runID, stepIdx, err)
		}
		payload, err := value.Decode([]byte(payloadJSON))
		if err != nil {
			return nil, fmt.Errorf("store: load run %q step %d: decode payload: %w", runID, stepIdx, err)
		}
		events = append(events, model.Event{Type: typ, Payload: payload, Timestamp: timestamp})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load run %q step %d: iterate events: %w", runID, stepIdx, err)
	}
	return events, nil
}

// ListRuns returns every run's summary, ordered deterministically by
// started_at then run_id.
func (s *Store) ListRuns(ctx context.Context) ([]model.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.schema_version, r.entrypoint, r.started_at, r.ended_at, r.status,
		       (SELECT COUNT(*) FROM steps st WHERE st.run_id = r.run_id) AS step_count
		FROM runs r
		ORDER BY r.started_at ASC, r.run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var summaries []model.RunSummary
	for rows.Next() {
		var rs model.RunSummary
		var status string
		if err := rows.Scan(&rs.RunID, &rs.SchemaVersion, &rs.Entrypoint, &rs.StartedAt, &rs.EndedAt, &status, &rs.StepCount); err != nil {
			return nil, fmt.Errorf("store: list runs: scan: %w", err)
		}
		if rs.SchemaVersion == "" {
			rs.SchemaVersion = model.DefaultSchemaVersion
		}
		rs.Status = model.Status(status)
		summaries = append(summaries, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: iterate: %w", err)
	}
	if summaries == nil {
		summaries = []model.RunSummary{}
	}
	return summaries, nil
}
