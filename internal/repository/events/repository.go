package events

import (
	"context"
	"errors"
	"fmt"

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

// Repository stores raw change-feed events (idempotency by message id)
// and dead-lettered messages.
type Repository struct {
	pool PgxPoolIface
}

func NewRepository(pool PgxPoolIface) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ExistsMessage(ctx context.Context, messageID uuid.UUID) (bool, error) {
	query := `
SELECT 1
FROM kelio_events
WHERE message_id = $1::uuid
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, query, messageID)

	var x int
	if err := row.Scan(&x); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (r *Repository) InsertEvent(ctx context.Context, event dto.FeedEvent) error {
	query := `
INSERT INTO kelio_events
	(topic, message_id, partition, "offset", payload, received_at)
VALUES
	($1, $2::uuid, $3, $4, $5::jsonb, NOW());
`
	_, err := r.pool.Exec(ctx, query, event.Topic, event.MessageID, event.Partition, event.Offset, string(event.Payload))
	if err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}

	return nil
}

func (r *Repository) InsertDLQ(ctx context.Context, dlq dto.FeedDLQ) error {
	query := `
INSERT INTO kelio_dlq
	(topic, msg_key, payload, error, received_at)
VALUES
	($1, $2, $3, $4, NOW());
`
	_, err := r.pool.Exec(ctx, query, dlq.Topic, dlq.Key, string(dlq.Payload), dlq.Error)
	if err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}

	return nil
}

func (r *Repository) ListDLQ(ctx context.Context) ([]dto.FeedDLQ, error) {
	query := `
select id, topic, msg_key, payload, error, to_char(received_at, 'YYYY-MM-DD"T"HH24:MI:SSOF')
from kelio_dlq
order by id desc
`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
	}
	defer rows.Close()

	var out []dto.FeedDLQ
	for rows.Next() {
		var (
			dlq     dto.FeedDLQ
			payload []byte
		)
		if err := rows.Scan(&dlq.ID, &dlq.Topic, &dlq.Key, &payload, &dlq.Error, &dlq.ReceivedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		dlq.Payload = payload
		out = append(out, dlq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return out, nil
}
