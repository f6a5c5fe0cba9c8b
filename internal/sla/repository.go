package sla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"helpdesk_backend/internal/notification/outbox"
)

const listCandidatesSQL = `SELECT id, organization_id, number, title, status, priority,
	assignee_id, due_at, sla_warning_sent_at, sla_breach_sent_at
FROM tickets
WHERE status NOT IN ('RESOLVED', 'CLOSED')
	AND due_at IS NOT NULL
	AND due_at <= $2
	AND sla_breach_sent_at IS NULL
	AND (sla_warning_sent_at IS NULL OR due_at < $1)
ORDER BY due_at ASC
LIMIT $3`

// The IS NULL guard makes each flag a compare-and-swap: only one scan wins it.
const (
	setWarningSQL = `UPDATE tickets SET sla_warning_sent_at = $3
WHERE id = $1 AND organization_id = $2 AND sla_warning_sent_at IS NULL
RETURNING id`
	setBreachSQL = `UPDATE tickets SET sla_breach_sent_at = $3
WHERE id = $1 AND organization_id = $2 AND sla_breach_sent_at IS NULL
RETURNING id`
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListCandidates returns open tickets due before horizon that can still get an alert.
func (r *Repository) ListCandidates(ctx context.Context, now, horizon time.Time, limit int) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, listCandidatesSQL, now, horizon, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.TicketID, &c.OrganizationID, &c.Number, &c.Title, &c.Status, &c.Priority,
			&c.AssigneeID, &c.DueAt, &c.WarningSentAt, &c.BreachSentAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Apply sets the flags in one batch and queues notifications for the flags it
// won, all in a single transaction.
func (r *Repository) Apply(ctx context.Context, now time.Time, planned []Planned) (applied Applied, err error) {
	if len(planned) == 0 {
		return Applied{}, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Applied{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	batch := &pgx.Batch{}
	for _, p := range planned {
		sql := setWarningSQL
		if p.Alert.Kind == KindBreach {
			sql = setBreachSQL
		}
		batch.Queue(sql, p.Alert.TicketID, p.Alert.OrganizationID, now)
	}

	var notifications []outbox.InsertParams
	results := tx.SendBatch(ctx, batch)
	for _, p := range planned {
		var id uuid.UUID
		scanErr := results.QueryRow().Scan(&id)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			continue
		}
		if scanErr != nil {
			_ = results.Close()
			return Applied{}, fmt.Errorf("set sla flag: %w", scanErr)
		}
		applied.Won = append(applied.Won, p.Alert)
		if p.Notification != nil {
			notifications = append(notifications, *p.Notification)
		}
	}
	if err = results.Close(); err != nil {
		return Applied{}, err
	}

	if _, err = outbox.InsertBatch(ctx, tx, notifications); err != nil {
		return Applied{}, err
	}
	applied.Notified = len(notifications)

	if err = tx.Commit(ctx); err != nil {
		return Applied{}, err
	}
	return applied, nil
}
