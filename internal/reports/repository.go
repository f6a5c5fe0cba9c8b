package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketStatsSQL = `SELECT
	COUNT(*) FILTER (WHERE created_at >= $2 AND created_at < $3),
	COUNT(*) FILTER (WHERE resolved_at >= $2 AND resolved_at < $3),
	COUNT(*) FILTER (WHERE status NOT IN ('RESOLVED', 'CLOSED')),
	COUNT(*) FILTER (WHERE sla_breach_sent_at >= $2 AND sla_breach_sent_at < $3),
	(AVG(EXTRACT(EPOCH FROM first_response_at - created_at))
		FILTER (WHERE first_response_at >= $2 AND first_response_at < $3))::float8
FROM tickets
WHERE organization_id = $1`

const notificationStatsSQL = `SELECT
	COUNT(*) FILTER (WHERE status = 'SENT' AND sent_at >= $2 AND sent_at < $3),
	COUNT(*) FILTER (WHERE status = 'FAILED' AND failed_at >= $2 AND failed_at < $3)
FROM notifications
WHERE organization_id = $1`

const openByPrioritySQL = `SELECT priority, COUNT(*)
FROM tickets
WHERE organization_id = $1 AND status NOT IN ('RESOLVED', 'CLOSED')
GROUP BY priority
ORDER BY COUNT(*) DESC, priority ASC`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Stats runs the three aggregate queries in one batch.
func (r *Repository) Stats(ctx context.Context, organizationID uuid.UUID, p Period) (Stats, error) {
	batch := &pgx.Batch{}
	batch.Queue(ticketStatsSQL, organizationID, p.Start, p.End)
	batch.Queue(notificationStatsSQL, organizationID, p.Start, p.End)
	batch.Queue(openByPrioritySQL, organizationID)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var s Stats
	var avgSeconds *float64
	if err := results.QueryRow().Scan(&s.Created, &s.Resolved, &s.Open, &s.Breached, &avgSeconds); err != nil {
		return Stats{}, fmt.Errorf("ticket stats: %w", err)
	}
	if avgSeconds != nil {
		s.AvgFirstResponse = time.Duration(*avgSeconds * float64(time.Second))
		s.HasFirstResponse = true
	}

	if err := results.QueryRow().Scan(&s.NotificationsSent, &s.NotificationsFailed); err != nil {
		return Stats{}, fmt.Errorf("notification stats: %w", err)
	}

	rows, err := results.Query()
	if err != nil {
		return Stats{}, fmt.Errorf("open by priority: %w", err)
	}
	s.ByPriority, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (PriorityCount, error) {
		var pc PriorityCount
		err := row.Scan(&pc.Label, &pc.Count)
		return pc, err
	})
	if err != nil {
		return Stats{}, fmt.Errorf("open by priority: %w", err)
	}
	return s, nil
}
