package dto

import (
	"time"
)

type ProposalOrigin string

const (
	OriginAutomatic ProposalOrigin = "AUTOMATIC"
	OriginSpecific  ProposalOrigin = "SPECIFIC"
	OriginManual    ProposalOrigin = "MANUAL"
)

func (o ProposalOrigin) Valid() bool {
	switch o {
	case OriginAutomatic, OriginSpecific, OriginManual:
		return true
	}
	return false
}

type ProposalDecision string

const (
	ProposalPending  ProposalDecision = "PENDING"
	ProposalRetained ProposalDecision = "RETAINED"
	ProposalRejected ProposalDecision = "REJECTED"
)

type Confidence string

const (
	ConfidenceHigh Confidence = "HIGH"
	ConfidenceLow  Confidence = "LOW"
)

// Modifier is a named signed adjustment applied after the weighted
// average (e.g. indisponibilite, distance, anciennete).
type Modifier struct {
	Name  string `json:"name" example:"indisponibilite"`
	Value int    `json:"value" example:"-30"`
}

// CriteriaScores holds the six normalized sub-scores, each 0–100.
type CriteriaScores struct {
	Skills         int `json:"skills"`
	Experience     int `json:"experience"`
	Availability   int `json:"availability"`
	Proximity      int `json:"proximity"`
	RoleSimilarity int `json:"role_similarity"`
	Seniority      int `json:"seniority"`
}

// ScoreResult is immutable once computed. Recomputation always yields
// a fresh value with its own timestamp, never an in-place mutation.
type ScoreResult struct {
	Final            int            `json:"final" example:"87"`
	Criteria         CriteriaScores `json:"criteria"`
	Modifiers        []Modifier     `json:"modifiers,omitempty"`
	Confidence       Confidence     `json:"confidence"`
	ComputedAt       time.Time      `json:"computed_at"`
	AlgorithmVersion string         `json:"algorithm_version" example:"v2"`
}

// Proposal — a candidate nomination attached to exactly one staffing
// request. At most one proposal per request may be RETAINED.
type Proposal struct {
	ID                    int64            `json:"id" example:"7001"`
	RequestID             int64            `json:"request_id" example:"1042"`
	Matricule             string           `json:"matricule" example:"M-007731"`
	Origin                ProposalOrigin   `json:"origin"`
	Justification         string           `json:"justification"`
	Score                 ScoreResult      `json:"score"`
	Decision              ProposalDecision `json:"decision"`
	ReasonCode            string           `json:"reason_code,omitempty"`
	DecisionJustification string           `json:"decision_justification,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
}
