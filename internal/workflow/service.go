package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
	"github.com/Aivilo1308/interim365-sub000/internal/metrics"
)

type RequestRepository interface {
	Get(ctx context.Context, id int64) (*dto.StaffingRequest, error)
	Create(ctx context.Context, r dto.StaffingRequest) (int64, error)
	ListSteps(ctx context.Context, requestID int64) ([]dto.ValidationStep, error)

	// OpenValidation and RecordDecision write the step set change and
	// the recomputed request state in one transaction, guarded by the
	// version check. A stale expectedVersion yields dto.ErrConflict.
	OpenValidation(ctx context.Context, requestID int64, steps []dto.ValidationStep, level int, expectedVersion int) error
	RecordDecision(ctx context.Context, step dto.ValidationStep, status dto.RequestStatus, level int, expectedVersion int) error
	UpdateStatus(ctx context.Context, requestID int64, status dto.RequestStatus, level int, expectedVersion int) error

	ListApprovedEnding(ctx context.Context, before time.Time) ([]dto.StaffingRequest, error)
}

type Notifier interface {
	RequestStateChanged(ctx context.Context, req dto.StaffingRequest) error
}

// Service drives the staffing request lifecycle. Every decision is
// checked against the pure machine, then persisted atomically with
// the recomputed state.
type Service struct {
	cfg      Config
	requests RequestRepository
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger
}

func NewService(cfg Config, requests RequestRepository, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		requests: requests,
		notifier: notifier,
		now:      time.Now,
		log:      log.With().Str("component", "workflow").Logger(),
	}
}

// WithClock pins the timestamp source. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateRequest validates mandatory fields and opens the request for
// proposals. DRAFT is transient: a request with complete mandatory
// fields moves to PROPOSITION_OPEN immediately.
func (s *Service) CreateRequest(ctx context.Context, req dto.StaffingRequest) (*dto.StaffingRequest, error) {
	if strings.TrimSpace(req.Position) == "" {
		return nil, dto.NewValidationError("position", "is required")
	}
	if strings.TrimSpace(req.ReplacedMatricule) == "" {
		return nil, dto.NewValidationError("replaced_matricule", "is required")
	}
	if !req.Window.Valid() {
		return nil, dto.NewValidationError("absence_window", "start must be before end")
	}
	if !req.Urgency.Valid() {
		return nil, dto.NewValidationError("urgency", "must be NORMAL, HIGH or CRITICAL")
	}

	req.ReplacedMatricule = dto.NormalizeMatricule(req.ReplacedMatricule)
	req.Status = dto.StatusPropositionOpen
	req.CurrentLevel = 0
	req.Version = 1

	id, err := s.requests.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("requests.Create: %w", err)
	}
	req.ID = id

	metrics.WorkflowTransitionsTotal.WithLabelValues(string(dto.StatusPropositionOpen)).Inc()
	s.log.Info().Int64("request_id", id).Str("urgency", string(req.Urgency)).Msg("staffing request opened")

	return &req, nil
}

// OnProposalRetained moves PROPOSITION_OPEN into IN_VALIDATION(1),
// creating the pending chain sized by the urgency tier. Called by the
// proposal registry when exactly one proposal becomes RETAINED.
func (s *Service) OnProposalRetained(ctx context.Context, requestID int64) error {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return fmt.Errorf("requests.Get: %w", err)
	}
	if req.Status != dto.StatusPropositionOpen {
		return fmt.Errorf("%w: request %d is %s, proposals are closed", dto.ErrInvalidTransition, requestID, req.Status)
	}

	levels := s.cfg.Levels(req.Urgency)
	steps := make([]dto.ValidationStep, 0, levels)
	for lvl := 1; lvl <= levels; lvl++ {
		steps = append(steps, dto.ValidationStep{
			RequestID:    requestID,
			Level:        lvl,
			RequiredRole: s.cfg.RoleAt(lvl),
			Decision:     dto.StepPending,
		})
	}

	if err := s.requests.OpenValidation(ctx, requestID, steps, 1, req.Version); err != nil {
		return fmt.Errorf("requests.OpenValidation: %w", err)
	}

	req.Status = dto.StatusInValidation
	req.CurrentLevel = 1
	metrics.WorkflowTransitionsTotal.WithLabelValues(string(dto.StatusInValidation)).Inc()
	s.notify(ctx, *req)
	s.log.Info().Int64("request_id", requestID).Int("levels", levels).Msg("validation chain opened")

	return nil
}

// Decide records an APPROVED or REFUSED decision at a level and the
// state it implies, atomically. A losing concurrent decision surfaces
// as dto.ErrConflict and must be retried by the caller with fresh
// state.
func (s *Service) Decide(ctx context.Context, requestID int64, level int, decision dto.StepDecision, comment string) (*dto.StaffingRequest, error) {
	if decision != dto.StepApproved && decision != dto.StepRefused {
		return nil, dto.NewValidationError("decision", "must be APPROVED or REFUSED")
	}
	if len(strings.TrimSpace(comment)) < s.cfg.MinCommentLen {
		return nil, dto.NewValidationError("comment", fmt.Sprintf("must be at least %d characters", s.cfg.MinCommentLen))
	}

	req, steps, levels, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := checkDecidable(req, levels, steps, level); err != nil {
		return nil, err
	}

	decidedAt := s.now().UTC()
	decided := dto.ValidationStep{
		RequestID: requestID,
		Level:     level,
		Decision:  decision,
		Comment:   strings.TrimSpace(comment),
		DecidedAt: &decidedAt,
	}
	for _, st := range steps {
		if st.Level == level {
			decided.RequiredRole = st.RequiredRole
		}
	}

	status, current := Recompute(levels, applyDecision(steps, decided))

	if err := s.requests.RecordDecision(ctx, decided, status, current, req.Version); err != nil {
		return nil, fmt.Errorf("requests.RecordDecision: %w", err)
	}

	req.Status = status
	req.CurrentLevel = current
	req.Version++

	metrics.WorkflowTransitionsTotal.WithLabelValues(string(status)).Inc()
	s.notify(ctx, *req)
	s.log.Info().
		Int64("request_id", requestID).
		Int("level", level).
		Str("decision", string(decision)).
		Str("status", string(status)).
		Msg("validation decision recorded")

	return req, nil
}

// Escalate bypasses normal ordering: the step at the current level is
// closed as ESCALATED and the chain re-enters at targetLevel.
func (s *Service) Escalate(ctx context.Context, requestID int64, level, targetLevel int, motif string) (*dto.StaffingRequest, error) {
	if len(strings.TrimSpace(motif)) < s.cfg.MinCommentLen {
		return nil, dto.NewValidationError("motif", fmt.Sprintf("must be at least %d characters", s.cfg.MinCommentLen))
	}

	req, steps, levels, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if targetLevel == 0 {
		targetLevel = level + 1
	}
	if targetLevel <= level || targetLevel > levels {
		return nil, fmt.Errorf("%w: escalation target %d must be within %d..%d", dto.ErrInvalidTransition, targetLevel, level+1, levels)
	}
	if err := checkDecidable(req, levels, steps, level); err != nil {
		return nil, err
	}

	decidedAt := s.now().UTC()
	decided := dto.ValidationStep{
		RequestID:   requestID,
		Level:       level,
		Decision:    dto.StepEscalated,
		Comment:     strings.TrimSpace(motif),
		EscalatedTo: targetLevel,
		DecidedAt:   &decidedAt,
	}
	for _, st := range steps {
		if st.Level == level {
			decided.RequiredRole = st.RequiredRole
		}
	}

	status, current := Recompute(levels, applyDecision(steps, decided))

	if err := s.requests.RecordDecision(ctx, decided, status, current, req.Version); err != nil {
		return nil, fmt.Errorf("requests.RecordDecision: %w", err)
	}

	req.Status = status
	req.CurrentLevel = current
	req.Version++

	metrics.WorkflowTransitionsTotal.WithLabelValues("ESCALATED").Inc()
	s.notify(ctx, *req)
	s.log.Info().
		Int64("request_id", requestID).
		Int("from_level", level).
		Int("to_level", targetLevel).
		Msg("validation escalated")

	return req, nil
}

// Cancel is reachable from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, requestID int64, motif string) (*dto.StaffingRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("requests.Get: %w", err)
	}
	if req.Status.Terminal() {
		return nil, fmt.Errorf("%w: request %d is already %s", dto.ErrInvalidTransition, requestID, req.Status)
	}

	if err := s.requests.UpdateStatus(ctx, requestID, dto.StatusCancelled, 0, req.Version); err != nil {
		return nil, fmt.Errorf("requests.UpdateStatus: %w", err)
	}

	req.Status = dto.StatusCancelled
	req.Version++

	metrics.WorkflowTransitionsTotal.WithLabelValues(string(dto.StatusCancelled)).Inc()
	s.notify(ctx, *req)
	s.log.Info().Int64("request_id", requestID).Str("motif", motif).Msg("request cancelled")

	return req, nil
}

// CompleteElapsed closes APPROVED requests whose absence window has
// elapsed. Time-driven, not user-driven; run by the completer loop.
func (s *Service) CompleteElapsed(ctx context.Context, now time.Time) (int, error) {
	elapsed, err := s.requests.ListApprovedEnding(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("requests.ListApprovedEnding: %w", err)
	}

	completed := 0
	for _, req := range elapsed {
		if err := s.requests.UpdateStatus(ctx, req.ID, dto.StatusCompleted, 0, req.Version); err != nil {
			// A concurrent cancel may win; skip and move on.
			s.log.Warn().Err(err).Int64("request_id", req.ID).Msg("completion skipped")
			continue
		}
		req.Status = dto.StatusCompleted
		metrics.WorkflowTransitionsTotal.WithLabelValues(string(dto.StatusCompleted)).Inc()
		s.notify(ctx, req)
		completed++
	}

	if completed > 0 {
		s.log.Info().Int("count", completed).Msg("requests completed")
	}

	return completed, nil
}

func (s *Service) load(ctx context.Context, requestID int64) (*dto.StaffingRequest, []dto.ValidationStep, int, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("requests.Get: %w", err)
	}
	steps, err := s.requests.ListSteps(ctx, requestID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("requests.ListSteps: %w", err)
	}
	return req, steps, s.cfg.Levels(req.Urgency), nil
}

func (s *Service) notify(ctx context.Context, req dto.StaffingRequest) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.RequestStateChanged(ctx, req); err != nil {
		s.log.Warn().Err(err).Int64("request_id", req.ID).Msg("notification publish failed")
	}
}
