package model

// RunSummary is the shape a run listing returns: derived from a Run at
// read time, never persisted separately.
type RunSummary struct {
	RunID         string `json:"run_id"`
	SchemaVersion string `json:"schema_version"`
	Entrypoint    string `json:"entrypoint"`
	StartedAt     string `json:"started_at"`
	EndedAt       string `json:"ended_at"`
	Status        Status `json:"status"`
	StepCount     int    `json:"step_count"`
}
