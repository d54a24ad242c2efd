package employee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

// Repository is the employee directory store, keyed by matricule.
// Records are never hard-deleted, only flagged inactive.
type Repository struct {
	pool PgxPoolIface
}

func NewRepository(pool PgxPoolIface) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `
select matricule,
       full_name,
       department,
       site,
       position,
       seniority_months,
       sex,
       skills,
       manager_matricule,
       engagements,
       active,
       source,
       last_synced_at
`

func (r *Repository) Get(ctx context.Context, matricule string) (*dto.EmployeeRecord, error) {
	query := selectColumns + `
from employee_record
where matricule = $1;
`
	row := r.pool.QueryRow(ctx, query, matricule)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dto.ErrNotFound
		}
		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return rec, nil
}

func (r *Repository) List(ctx context.Context, department string, activeOnly bool) ([]dto.EmployeeRecord, error) {
	query := selectColumns + `
from employee_record
where ($1 = '' or department = $1)
  and (not $2 or active)
order by matricule;
`
	rows, err := r.pool.Query(ctx, query, department, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
	}
	defer rows.Close()

	var out []dto.EmployeeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return out, nil
}

// Create inserts a manual (LOCAL) record.
func (r *Repository) Create(ctx context.Context, rec dto.EmployeeRecord) error {
	query := `
insert into employee_record
  (matricule, full_name, department, site, position, seniority_months, sex, skills, manager_matricule, engagements, active, source, last_synced_at)
values
  (@matricule, @full_name, @department, @site, @position, @seniority_months, @sex, @skills, @manager_matricule, @engagements::jsonb, @active, @source, now());
`
	rec.Source = dto.SourceLocal
	args, err := namedArgs(rec)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, query, args); err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" {
			return dto.ErrAlreadyExists
		}
		return fmt.Errorf("pool.Exec: %w", err)
	}

	return nil
}

// Update writes the non-identity fields of an existing record; the
// matricule itself is immutable.
func (r *Repository) Update(ctx context.Context, rec dto.EmployeeRecord) error {
	query := `
update employee_record set
  full_name         = @full_name,
  department        = @department,
  site              = @site,
  position          = @position,
  seniority_months  = @seniority_months,
  sex               = @sex,
  skills            = @skills,
  manager_matricule = @manager_matricule,
  engagements       = @engagements::jsonb,
  active            = @active
where matricule = @matricule;
`
	args, err := namedArgs(rec)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dto.ErrNotFound
	}

	return nil
}

// Upsert is the sync path: keyed by matricule, EXTERNAL_SYNCED rows
// are fully overwritten by fresher external data. Returns whether the
// row was created (xmax = 0 on a fresh insert).
func (r *Repository) Upsert(ctx context.Context, rec dto.EmployeeRecord) (bool, error) {
	query := `
insert into employee_record
  (matricule, full_name, department, site, position, seniority_months, sex, skills, manager_matricule, engagements, active, source, last_synced_at)
values
  (@matricule, @full_name, @department, @site, @position, @seniority_months, @sex, @skills, @manager_matricule, @engagements::jsonb, @active, @source, now())
on conflict (matricule) do update set
  full_name         = excluded.full_name,
  department        = excluded.department,
  site              = excluded.site,
  position          = excluded.position,
  seniority_months  = excluded.seniority_months,
  sex               = excluded.sex,
  skills            = excluded.skills,
  manager_matricule = excluded.manager_matricule,
  engagements       = excluded.engagements,
  active            = excluded.active,
  source            = excluded.source,
  last_synced_at    = now()
returning (xmax = 0);
`
	args, err := namedArgs(rec)
	if err != nil {
		return false, err
	}

	var created bool
	if err := r.pool.QueryRow(ctx, query, args).Scan(&created); err != nil {
		return false, fmt.Errorf("row.Scan: %w", err)
	}

	return created, nil
}

func (r *Repository) Deactivate(ctx context.Context, matricule string) error {
	query := `update employee_record set active = false where matricule = $1;`

	tag, err := r.pool.Exec(ctx, query, matricule)
	if err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dto.ErrNotFound
	}

	return nil
}

func namedArgs(rec dto.EmployeeRecord) (pgx.NamedArgs, error) {
	engagements, err := json.Marshal(rec.Engagements)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal engagements: %w", err)
	}

	return pgx.NamedArgs{
		"matricule":         rec.Matricule,
		"full_name":         rec.FullName,
		"department":        rec.Department,
		"site":              rec.Site,
		"position":          rec.Position,
		"seniority_months":  rec.SeniorityMonths,
		"sex":               rec.Sex,
		"skills":            rec.Skills,
		"manager_matricule": rec.ManagerMatricule,
		"engagements":       string(engagements),
		"active":            rec.Active,
		"source":            string(rec.Source),
	}, nil
}

func scanRecord(row pgx.Row) (*dto.EmployeeRecord, error) {
	var (
		rec         dto.EmployeeRecord
		source      string
		engagements []byte
	)

	err := row.Scan(
		&rec.Matricule,
		&rec.FullName,
		&rec.Department,
		&rec.Site,
		&rec.Position,
		&rec.SeniorityMonths,
		&rec.Sex,
		&rec.Skills,
		&rec.ManagerMatricule,
		&engagements,
		&rec.Active,
		&source,
		&rec.LastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Source = dto.Source(source)
	if len(engagements) > 0 {
		if err := json.Unmarshal(engagements, &rec.Engagements); err != nil {
			return nil, fmt.Errorf("json.Unmarshal engagements: %w", err)
		}
	}

	return &rec, nil
}
