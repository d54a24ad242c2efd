package syncaudit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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

// Repository keeps the sync run/batch audit trail for a bounded
// observability window.
type Repository struct {
	pool PgxPoolIface
}

func NewRepository(pool PgxPoolIface) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InsertRun(ctx context.Context, runID uuid.UUID, mode dto.SyncMode, startedAt time.Time) error {
	query := `
insert into sync_run (run_id, mode, status, started_at)
values ($1, $2, $3, $4);
`
	if _, err := r.pool.Exec(ctx, query, runID, string(mode), string(dto.RunRunning), startedAt); err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}

	return nil
}

// FinishRun records the aggregate outcome plus the per-batch rows in
// one transaction.
func (r *Repository) FinishRun(ctx context.Context, result dto.SyncRunResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pool.Begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
update sync_run set
  status              = $1,
  processed           = $2,
  created             = $3,
  updated             = $4,
  duplicates_resolved = $5,
  batches_succeeded   = $6,
  batches_failed      = $7,
  retries_total       = $8,
  elapsed_ms          = $9
where run_id = $10;
`,
		string(result.Status),
		result.Processed,
		result.Created,
		result.Updated,
		result.DuplicatesResolved,
		result.BatchesSucceeded,
		result.BatchesFailed,
		result.RetriesTotal,
		result.Elapsed.Milliseconds(),
		result.RunID,
	)
	if err != nil {
		return fmt.Errorf("tx.Exec update run: %w", err)
	}

	for _, b := range result.Batches {
		_, err := tx.Exec(ctx, `
insert into sync_batch (run_id, seq, matricules, status, attempts, error, processed, created, updated)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
on conflict (run_id, seq) do update set
  status    = excluded.status,
  attempts  = excluded.attempts,
  error     = excluded.error,
  processed = excluded.processed,
  created   = excluded.created,
  updated   = excluded.updated;
`, b.RunID, b.Seq, b.Matricules, string(b.Status), b.Attempts, b.Error, b.Processed, b.Created, b.Updated)
		if err != nil {
			return fmt.Errorf("tx.Exec insert batch: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetRun(ctx context.Context, runID uuid.UUID) (*dto.SyncRunResult, error) {
	query := `
select run_id, status, processed, created, updated, duplicates_resolved, batches_succeeded, batches_failed, retries_total, started_at, elapsed_ms
from sync_run
where run_id = $1;
`
	row := r.pool.QueryRow(ctx, query, runID)

	var (
		result    dto.SyncRunResult
		status    string
		elapsedMS int64
	)
	err := row.Scan(
		&result.RunID,
		&status,
		&result.Processed,
		&result.Created,
		&result.Updated,
		&result.DuplicatesResolved,
		&result.BatchesSucceeded,
		&result.BatchesFailed,
		&result.RetriesTotal,
		&result.StartedAt,
		&elapsedMS,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dto.ErrNotFound
		}
		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	result.Status = dto.RunStatus(status)
	result.Elapsed = time.Duration(elapsedMS) * time.Millisecond

	return &result, nil
}

// PurgeOlderThan trims the audit window.
func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) error {
	if _, err := r.pool.Exec(ctx, `
delete from sync_batch where run_id in (select run_id from sync_run where started_at < $1);
`, cutoff); err != nil {
		return fmt.Errorf("pool.Exec batches: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `
delete from sync_run where started_at < $1;
`, cutoff); err != nil {
		return fmt.Errorf("pool.Exec runs: %w", err)
	}

	return nil
}
