package dto

import (
	"time"
)

type Urgency string

const (
	UrgencyNormal   Urgency = "NORMAL"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyNormal, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

type RequestStatus string

const (
	StatusDraft           RequestStatus = "DRAFT"
	StatusPropositionOpen RequestStatus = "PROPOSITION_OPEN"
	StatusInValidation    RequestStatus = "IN_VALIDATION"
	StatusApproved        RequestStatus = "APPROVED"
	StatusCompleted       RequestStatus = "COMPLETED"
	StatusRefused         RequestStatus = "REFUSED"
	StatusCancelled       RequestStatus = "CANCELLED"
)

// Terminal reports whether no further transition may leave the state.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRefused, StatusCancelled:
		return true
	}
	return false
}

// StaffingRequest — an interim staffing demand. Mutated only through
// workflow transitions and proposal attachment; archived, not deleted.
// Version backs the optimistic-concurrency check on every state write.
type StaffingRequest struct {
	ID                int64         `json:"id" example:"1042"`
	Position          string        `json:"position" example:"Cariste"`
	ReplacedMatricule string        `json:"replaced_matricule" example:"M-004512"`
	Window            Period        `json:"absence_window"`
	Urgency           Urgency       `json:"urgency" example:"HIGH"`
	RequiredSkills    string        `json:"required_skills" example:"cariste caces-3 securite"`
	Status            RequestStatus `json:"status"`
	CurrentLevel      int           `json:"current_level,omitempty"` // meaningful while IN_VALIDATION
	Version           int           `json:"version"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
