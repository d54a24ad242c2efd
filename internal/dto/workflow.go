package dto

import (
	"time"
)

type StepDecision string

const (
	StepPending   StepDecision = "PENDING"
	StepApproved  StepDecision = "APPROVED"
	StepRefused   StepDecision = "REFUSED"
	StepEscalated StepDecision = "ESCALATED"
)

func (d StepDecision) Terminal() bool {
	return d == StepApproved || d == StepRefused || d == StepEscalated
}

// ValidationStep — one level of the ordered approval chain of a
// staffing request. Identity is (request id, level). A step that holds
// a terminal decision is never re-decided.
type ValidationStep struct {
	RequestID    int64        `json:"request_id" example:"1042"`
	Level        int          `json:"level" example:"1"`
	RequiredRole string       `json:"required_role" example:"MANAGER"`
	Decision     StepDecision `json:"decision"`
	Comment      string       `json:"comment,omitempty"`
	EscalatedTo  int          `json:"escalated_to,omitempty"` // set when Decision == ESCALATED
	DecidedAt    *time.Time   `json:"decided_at,omitempty"`
}
