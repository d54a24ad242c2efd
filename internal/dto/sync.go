package dto

import (
	"time"

	"github.com/google/uuid"
)

type SyncMode string

const (
	SyncFull        SyncMode = "FULL"
	SyncIncremental SyncMode = "INCREMENTAL"
)

type RetryStrategy string

const (
	RetryBalanced     RetryStrategy = "balanced"
	RetryAggressive   RetryStrategy = "aggressive"
	RetryConservative RetryStrategy = "conservative"
)

type RetryOptions struct {
	Enabled  bool          `json:"enabled"`
	Strategy RetryStrategy `json:"strategy" example:"balanced"`
}

// SyncOptions parameterize one reconciliation run against Kelio.
type SyncOptions struct {
	Mode      SyncMode     `json:"mode" example:"FULL"`
	BatchSize int          `json:"batch_size" example:"5"`
	Retry     RetryOptions `json:"retry"`
	Dedupe    bool         `json:"dedupe"`
	FastMode  bool         `json:"fast_mode"` // trades safety margins for throughput
}

type BatchStatus string

const (
	BatchPending   BatchStatus = "PENDING"
	BatchRunning   BatchStatus = "RUNNING"
	BatchSucceeded BatchStatus = "SUCCEEDED"
	BatchFailed    BatchStatus = "FAILED"
	BatchRetrying  BatchStatus = "RETRYING"
)

// SyncBatch — per-batch accounting, kept for run-duration observability
// and archived as aggregate statistics afterwards.
type SyncBatch struct {
	RunID      uuid.UUID   `json:"run_id"`
	Seq        int         `json:"seq" example:"2"`
	Matricules []string    `json:"matricules"`
	Status     BatchStatus `json:"status"`
	Attempts   int         `json:"attempts"`
	Error      string      `json:"error,omitempty"`
	Processed  int         `json:"processed"`
	Created    int         `json:"created"`
	Updated    int         `json:"updated"`
	Errors     int         `json:"errors"`
}

type RunStatus string

const (
	RunRunning        RunStatus = "RUNNING"
	RunSuccess        RunStatus = "SUCCESS"
	RunPartialFailure RunStatus = "PARTIAL_FAILURE"
	RunTotalFailure   RunStatus = "TOTAL_FAILURE"
)

// SyncRunResult is the aggregate outcome of one run. A run with failed
// batches below the tolerance still counts as SUCCESS; a run where no
// batch succeeded is TOTAL_FAILURE.
type SyncRunResult struct {
	RunID              uuid.UUID   `json:"run_id"`
	Status             RunStatus   `json:"status"`
	Processed          int         `json:"processed"`
	Created            int         `json:"created"`
	Updated            int         `json:"updated"`
	DuplicatesResolved int         `json:"duplicates_resolved"`
	BatchesSucceeded   int         `json:"batches_succeeded"`
	BatchesFailed      int         `json:"batches_failed"`
	RetriesTotal       int         `json:"retries_total"`
	FailedMatricules   []string    `json:"failed_matricules,omitempty"`
	Batches            []SyncBatch `json:"batches,omitempty"`
	StartedAt          time.Time   `json:"started_at"`
	Elapsed            time.Duration `json:"elapsed_ns"`
}
