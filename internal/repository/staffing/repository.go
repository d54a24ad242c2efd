package staffing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

type PgxPoolIface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository persists staffing requests, their proposals and the
// validation chain. Decision writes are transactional: the step and
// the recomputed request state land together or not at all.
type Repository struct {
	pool PgxPoolIface
}

func NewRepository(pool PgxPoolIface) *Repository {
	return &Repository{pool: pool}
}

// --- staffing requests -------------------------------------------------

func (r *Repository) Create(ctx context.Context, req dto.StaffingRequest) (int64, error) {
	query := `
insert into staffing_request
  (position, replaced_matricule, window_start, window_end, urgency, required_skills, status, current_level, version, created_at, updated_at)
values
  (@position, @replaced_matricule, @window_start, @window_end, @urgency, @required_skills, @status, @current_level, @version, now(), now())
returning id;
`
	args := pgx.NamedArgs{
		"position":           req.Position,
		"replaced_matricule": req.ReplacedMatricule,
		"window_start":       req.Window.Start,
		"window_end":         req.Window.End,
		"urgency":            string(req.Urgency),
		"required_skills":    req.RequiredSkills,
		"status":             string(req.Status),
		"current_level":      req.CurrentLevel,
		"version":            req.Version,
	}

	var id int64
	if err := r.pool.QueryRow(ctx, query, args).Scan(&id); err != nil {
		return 0, fmt.Errorf("row.Scan: %w", err)
	}

	return id, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*dto.StaffingRequest, error) {
	query := `
select id, position, replaced_matricule, window_start, window_end, urgency, required_skills, status, current_level, version, created_at, updated_at
from staffing_request
where id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)

	var (
		req     dto.StaffingRequest
		urgency string
		status  string
	)
	err := row.Scan(
		&req.ID,
		&req.Position,
		&req.ReplacedMatricule,
		&req.Window.Start,
		&req.Window.End,
		&urgency,
		&req.RequiredSkills,
		&status,
		&req.CurrentLevel,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dto.ErrNotFound
		}
		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	req.Urgency = dto.Urgency(urgency)
	req.Status = dto.RequestStatus(status)

	return &req, nil
}

// UpdateStatus advances the request state under the optimistic version
// check. A stale version (concurrent writer won) yields ErrConflict.
func (r *Repository) UpdateStatus(ctx context.Context, requestID int64, status dto.RequestStatus, level int, expectedVersion int) error {
	query := `
update staffing_request set
  status        = $1,
  current_level = $2,
  version       = version + 1,
  updated_at    = now()
where id = $3 and version = $4;
`
	tag, err := r.pool.Exec(ctx, query, string(status), level, requestID, expectedVersion)
	if err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dto.ErrConflict
	}

	return nil
}

func (r *Repository) ListApprovedEnding(ctx context.Context, before time.Time) ([]dto.StaffingRequest, error) {
	query := `
select id, position, replaced_matricule, window_start, window_end, urgency, required_skills, status, current_level, version, created_at, updated_at
from staffing_request
where status = 'APPROVED' and window_end <= $1
order by id;
`
	rows, err := r.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
	}
	defer rows.Close()

	var out []dto.StaffingRequest
	for rows.Next() {
		var (
			req     dto.StaffingRequest
			urgency string
			status  string
		)
		if err := rows.Scan(
			&req.ID,
			&req.Position,
			&req.ReplacedMatricule,
			&req.Window.Start,
			&req.Window.End,
			&urgency,
			&req.RequiredSkills,
			&status,
			&req.CurrentLevel,
			&req.Version,
			&req.CreatedAt,
			&req.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		req.Urgency = dto.Urgency(urgency)
		req.Status = dto.RequestStatus(status)
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return out, nil
}

// --- validation steps --------------------------------------------------

func (r *Repository) ListSteps(ctx context.Context, requestID int64) ([]dto.ValidationStep, error) {
	query := `
select request_id, level, required_role, decision, comment, escalated_to, decided_at
from validation_step
where request_id = $1
order by level;
`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
	}
	defer rows.Close()

	var out []dto.ValidationStep
	for rows.Next() {
		var (
			step     dto.ValidationStep
			decision string
		)
		if err := rows.Scan(&step.RequestID, &step.Level, &step.RequiredRole, &decision, &step.Comment, &step.EscalatedTo, &step.DecidedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		step.Decision = dto.StepDecision(decision)
		out = append(out, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return out, nil
}

// OpenValidation creates the pending chain and moves the request into
// IN_VALIDATION(1) in one transaction.
func (r *Repository) OpenValidation(ctx context.Context, requestID int64, steps []dto.ValidationStep, level int, expectedVersion int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pool.Begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, step := range steps {
		_, err := tx.Exec(ctx, `
insert into validation_step (request_id, level, required_role, decision)
values ($1, $2, $3, $4);
`, step.RequestID, step.Level, step.RequiredRole, string(step.Decision))
		if err != nil {
			var pgerr *pgconn.PgError
			if errors.As(err, &pgerr) && pgerr.Code == "23505" {
				return dto.ErrConflict
			}
			return fmt.Errorf("tx.Exec insert step: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `
update staffing_request set
  status        = $1,
  current_level = $2,
  version       = version + 1,
  updated_at    = now()
where id = $3 and version = $4;
`, string(dto.StatusInValidation), level, requestID, expectedVersion)
	if err != nil {
		return fmt.Errorf("tx.Exec update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dto.ErrConflict
	}

	return tx.Commit(ctx)
}

// RecordDecision writes a step decision and the recomputed request
// state in one transaction. The step must still be PENDING and the
// request version must match; otherwise nothing is applied.
func (r *Repository) RecordDecision(ctx context.Context, step dto.ValidationStep, status dto.RequestStatus, level int, expectedVersion int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pool.Begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
update validation_step set
  decision     = $1,
  comment      = $2,
  escalated_to = $3,
  decided_at   = $4
where request_id = $5 and level = $6 and decision = 'PENDING';
`, string(step.Decision), step.Comment, step.EscalatedTo, step.DecidedAt, step.RequestID, step.Level)
	if err != nil {
		return fmt.Errorf("tx.Exec update step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dto.ErrInvalidTransition
	}

	tag, err = tx.Exec(ctx, `
update staffing_request set
  status        = $1,
  current_level = $2,
  version       = version + 1,
  updated_at    = now()
where id = $3 and version = $4;
`, string(status), level, step.RequestID, expectedVersion)
	if err != nil {
		return fmt.Errorf("tx.Exec update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dto.ErrConflict
	}

	return tx.Commit(ctx)
}

// --- proposals ---------------------------------------------------------

func (r *Repository) Insert(ctx context.Context, p dto.Proposal) (int64, error) {
	query := `
insert into proposal
  (request_id, matricule, origin, justification, score, score_final, decision, created_at)
values
  (@request_id, @matricule, @origin, @justification, @score::jsonb, @score_final, @decision, now())
returning id;
`
	score, err := json.Marshal(p.Score)
	if err != nil {
		return 0, fmt.Errorf("json.Marshal score: %w", err)
	}

	args := pgx.NamedArgs{
		"request_id":    p.RequestID,
		"matricule":     p.Matricule,
		"origin":        string(p.Origin),
		"justification": p.Justification,
		"score":         string(score),
		"score_final":   p.Score.Final,
		"decision":      string(p.Decision),
	}

	var id int64
	if err := r.pool.QueryRow(ctx, query, args).Scan(&id); err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" {
			return 0, dto.ErrDuplicateCandidate
		}
		return 0, fmt.Errorf("row.Scan: %w", err)
	}

	return id, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*dto.Proposal, error) {
	query := `
select id, request_id, matricule, origin, justification, score, decision, reason_code, decision_justification, created_at
from proposal
where id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)

	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dto.ErrNotFound
		}
		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return p, nil
}

func (r *Repository) ListByRequest(ctx context.Context, requestID int64) ([]dto.Proposal, error) {
	query := `
select id, request_id, matricule, origin, justification, score, decision, reason_code, decision_justification, created_at
from proposal
where request_id = $1
order by score_final desc, matricule;
`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
	}
	defer rows.Close()

	var out []dto.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return out, nil
}

// UpdateDecision relies on the partial unique index over RETAINED
// proposals: a second retain on the same request violates it and maps
// to ErrConflict.
func (r *Repository) UpdateDecision(ctx context.Context, id int64, decision dto.ProposalDecision, reasonCode, justification string) error {
	query := `
update proposal set
  decision               = $1,
  reason_code            = $2,
  decision_justification = $3
where id = $4;
`
	tag, err := r.pool.Exec(ctx, query, string(decision), reasonCode, justification, id)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" {
			return dto.ErrConflict
		}
		return fmt.Errorf("pool.Exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dto.ErrNotFound
	}

	return nil
}

func scanProposal(row pgx.Row) (*dto.Proposal, error) {
	var (
		p        dto.Proposal
		origin   string
		decision string
		score    []byte
	)

	err := row.Scan(
		&p.ID,
		&p.RequestID,
		&p.Matricule,
		&origin,
		&p.Justification,
		&score,
		&decision,
		&p.ReasonCode,
		&p.DecisionJustification,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Origin = dto.ProposalOrigin(origin)
	p.Decision = dto.ProposalDecision(decision)
	if len(score) > 0 {
		if err := json.Unmarshal(score, &p.Score); err != nil {
			return nil, fmt.Errorf("json.Unmarshal score: %w", err)
		}
	}

	return &p, nil
}
