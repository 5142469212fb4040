package domain

import "time"

// MaxBatchSize caps how many identifiers a single batch processes.
const MaxBatchSize = 50

// BatchState enumerates the batch lifecycle. There is no failed state:
// item failures are absorbed into placeholder records.
type BatchState string

const (
	BatchIdle     BatchState = "idle"
	BatchRunning  BatchState = "running"
	BatchComplete BatchState = "complete"
)

// BatchJob tracks one batch request from arrival to its completion signal.
type BatchJob struct {
	ID         string
	URLs       []string
	Results    []AnalysisRecord
	Completed  int
	State      BatchState
	StartedAt  time.Time
	FinishedAt time.Time
}

// EventType distinguishes streamed batch events.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
)

// BatchEvent is emitted after every processed item and once on completion.
type BatchEvent struct {
	Type      EventType        `json:"type"`
	BatchID   string           `json:"batch_id"`
	Completed int              `json:"completed"`
	Total     int              `json:"total"`
	Results   []AnalysisRecord `json:"results"`
}
