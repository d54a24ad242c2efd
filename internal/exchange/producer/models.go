package producer

import (
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every published event with routing metadata.
type Envelope[T any] struct {
	Kind      string    `json:"kind" example:"request_state_changed"`
	MessageID uuid.UUID `json:"message_id" example:"c7e06db5-4b71-4c54-9334-3f9a6e6c5d0e"`
	Payload   T         `json:"payload"`
	Timestamp time.Time `json:"timestamp" example:"2026-03-12T12:34:56Z"`
	Source    string    `json:"source" example:"interim-core"`
}

// RequestStatePayload — notification that a staffing request changed state.
type RequestStatePayload struct {
	RequestID    int64  `json:"request_id" example:"1042"`
	Status       string `json:"status" example:"IN_VALIDATION"`
	CurrentLevel int    `json:"current_level,omitempty" example:"2"`
	Urgency      string `json:"urgency" example:"HIGH"`
}

// ProposalDecisionPayload — notification that a proposal was decided.
type ProposalDecisionPayload struct {
	ProposalID int64  `json:"proposal_id" example:"7001"`
	RequestID  int64  `json:"request_id" example:"1042"`
	Matricule  string `json:"matricule" example:"M-007731"`
	Decision   string `json:"decision" example:"RETAINED"`
	ScoreFinal int    `json:"score_final" example:"87"`
	ReasonCode string `json:"reason_code,omitempty"`
}

// SyncReportPayload — run summary for the export/notification layer.
type SyncReportPayload struct {
	RunID              uuid.UUID `json:"run_id"`
	Status             string    `json:"status" example:"SUCCESS"`
	Processed          int       `json:"processed"`
	Created            int       `json:"created"`
	Updated            int       `json:"updated"`
	DuplicatesResolved int       `json:"duplicates_resolved"`
	BatchesFailed      int       `json:"batches_failed"`
	FailedMatricules   []string  `json:"failed_matricules,omitempty"`
	ElapsedMS          int64     `json:"elapsed_ms"`
}
