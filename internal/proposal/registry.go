package proposal

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
	"github.com/Aivilo1308/interim365-sub000/internal/metrics"
	"github.com/Aivilo1308/interim365-sub000/internal/scoring"
)

type Repository interface {
	// Insert maps the (request_id, matricule) unique violation to
	// dto.ErrDuplicateCandidate.
	Insert(ctx context.Context, p dto.Proposal) (int64, error)
	GetByID(ctx context.Context, id int64) (*dto.Proposal, error)
	ListByRequest(ctx context.Context, requestID int64) ([]dto.Proposal, error)

	// UpdateDecision maps the single-RETAINED-per-request violation to
	// dto.ErrConflict.
	UpdateDecision(ctx context.Context, id int64, decision dto.ProposalDecision, reasonCode, justification string) error
}

type Scorer interface {
	ScoreCandidate(ctx context.Context, matricule string, requestID int64) (dto.ScoreResult, error)
}

type RequestProvider interface {
	Get(ctx context.Context, id int64) (*dto.StaffingRequest, error)
}

// WorkflowTrigger consumes the domain event emitted when a proposal
// becomes RETAINED: the only way a request leaves proposal gathering.
type WorkflowTrigger interface {
	OnProposalRetained(ctx context.Context, requestID int64) error
}

type Notifier interface {
	ProposalDecided(ctx context.Context, p dto.Proposal) error
}

// Registry tracks candidate nominations per staffing request. Every
// stored proposal embeds the score that justified it.
type Registry struct {
	repo      Repository
	scorer    Scorer
	requests  RequestProvider
	workflow  WorkflowTrigger
	notifier  Notifier
	minJustif int
	log       zerolog.Logger
}

func NewRegistry(repo Repository, scorer Scorer, requests RequestProvider, workflow WorkflowTrigger, notifier Notifier, minJustificationLen int, log zerolog.Logger) *Registry {
	if minJustificationLen <= 0 {
		minJustificationLen = 10
	}
	return &Registry{
		repo:      repo,
		scorer:    scorer,
		requests:  requests,
		workflow:  workflow,
		notifier:  notifier,
		minJustif: minJustificationLen,
		log:       log.With().Str("component", "proposals").Logger(),
	}
}

// Add nominates a candidate for a request. The same matricule may be
// proposed at most once per request.
func (r *Registry) Add(ctx context.Context, requestID int64, matricule string, origin dto.ProposalOrigin, justification string) (*dto.Proposal, error) {
	if !origin.Valid() {
		return nil, dto.NewValidationError("origin", "must be AUTOMATIC, SPECIFIC or MANUAL")
	}
	if err := r.checkJustification(justification); err != nil {
		return nil, err
	}

	req, err := r.requests.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("requests.Get: %w", err)
	}
	if req.Status != dto.StatusPropositionOpen {
		return nil, fmt.Errorf("%w: request %d is %s, proposals are closed", dto.ErrInvalidTransition, requestID, req.Status)
	}

	score, err := r.scorer.ScoreCandidate(ctx, matricule, requestID)
	if err != nil {
		return nil, err
	}

	p := dto.Proposal{
		RequestID:     requestID,
		Matricule:     dto.NormalizeMatricule(matricule),
		Origin:        origin,
		Justification: strings.TrimSpace(justification),
		Score:         score,
		Decision:      dto.ProposalPending,
	}

	id, err := r.repo.Insert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("proposals.Insert: %w", err)
	}
	p.ID = id

	metrics.ProposalsTotal.WithLabelValues(string(dto.ProposalPending)).Inc()
	r.log.Info().
		Int64("request_id", requestID).
		Str("matricule", p.Matricule).
		Str("origin", string(origin)).
		Int("score", score.Final).
		Msg("proposal added")

	return &p, nil
}

// Retain marks a proposal as the staffing decision. At most one
// proposal per request may hold RETAINED; a second retain fails with
// dto.ErrConflict until the first is rejected.
func (r *Registry) Retain(ctx context.Context, proposalID int64, justification string) (*dto.Proposal, error) {
	if err := r.checkJustification(justification); err != nil {
		return nil, err
	}

	p, err := r.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("proposals.GetByID: %w", err)
	}
	if p.Decision != dto.ProposalPending {
		return nil, fmt.Errorf("%w: proposal %d is already %s", dto.ErrConflict, proposalID, p.Decision)
	}

	if err := r.repo.UpdateDecision(ctx, proposalID, dto.ProposalRetained, "", strings.TrimSpace(justification)); err != nil {
		return nil, fmt.Errorf("proposals.UpdateDecision: %w", err)
	}

	// The retained proposal is the event that opens the validation
	// chain on the owning request. If the chain cannot open, the
	// decision is rolled back so the retain stays re-issuable.
	if err := r.workflow.OnProposalRetained(ctx, p.RequestID); err != nil {
		if rbErr := r.repo.UpdateDecision(ctx, proposalID, dto.ProposalPending, "", ""); rbErr != nil {
			r.log.Error().Err(rbErr).Int64("proposal_id", proposalID).Msg("decision rollback failed, proposal stuck RETAINED")
		}
		return nil, err
	}

	p.Decision = dto.ProposalRetained
	p.DecisionJustification = strings.TrimSpace(justification)

	metrics.ProposalsTotal.WithLabelValues(string(dto.ProposalRetained)).Inc()
	r.log.Info().Int64("proposal_id", proposalID).Int64("request_id", p.RequestID).Msg("proposal retained")

	r.notify(ctx, *p)

	return p, nil
}

// Reject closes a proposal. A RETAINED proposal can only be withdrawn
// while the request has not entered validation.
func (r *Registry) Reject(ctx context.Context, proposalID int64, reasonCode, justification string) (*dto.Proposal, error) {
	if err := r.checkJustification(justification); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reasonCode) == "" {
		return nil, dto.NewValidationError("reason_code", "is required")
	}

	p, err := r.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("proposals.GetByID: %w", err)
	}

	switch p.Decision {
	case dto.ProposalPending:
		// ok
	case dto.ProposalRetained:
		req, err := r.requests.Get(ctx, p.RequestID)
		if err != nil {
			return nil, fmt.Errorf("requests.Get: %w", err)
		}
		if req.Status != dto.StatusPropositionOpen {
			return nil, fmt.Errorf("%w: request %d already entered validation, cancel it instead", dto.ErrInvalidTransition, p.RequestID)
		}
	default:
		return nil, fmt.Errorf("%w: proposal %d is already %s", dto.ErrInvalidTransition, proposalID, p.Decision)
	}

	if err := r.repo.UpdateDecision(ctx, proposalID, dto.ProposalRejected, strings.TrimSpace(reasonCode), strings.TrimSpace(justification)); err != nil {
		return nil, fmt.Errorf("proposals.UpdateDecision: %w", err)
	}

	p.Decision = dto.ProposalRejected
	p.ReasonCode = strings.TrimSpace(reasonCode)
	p.DecisionJustification = strings.TrimSpace(justification)

	metrics.ProposalsTotal.WithLabelValues(string(dto.ProposalRejected)).Inc()
	r.log.Info().Int64("proposal_id", proposalID).Str("reason", p.ReasonCode).Msg("proposal rejected")
	r.notify(ctx, *p)

	return p, nil
}

// ListByRequest returns the request's proposals best-first. The store
// pre-orders by final score; the full deterministic tie-break
// (availability, skills, matricule) lives in the scoring package and
// is applied here.
func (r *Registry) ListByRequest(ctx context.Context, requestID int64) ([]dto.Proposal, error) {
	out, err := r.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return scoring.Less(out[i].Score, out[j].Score, out[i].Matricule, out[j].Matricule)
	})

	return out, nil
}

func (r *Registry) checkJustification(justification string) error {
	if len(strings.TrimSpace(justification)) < r.minJustif {
		return dto.NewValidationError("justification", fmt.Sprintf("must be at least %d characters", r.minJustif))
	}
	return nil
}

func (r *Registry) notify(ctx context.Context, p dto.Proposal) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.ProposalDecided(ctx, p); err != nil {
		r.log.Warn().Err(err).Int64("proposal_id", p.ID).Msg("notification publish failed")
	}
}
