package tickets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errRepoNotConfigured = "ticket repository not configured"

var ErrNotFound = errors.New("ticket not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetSnapshot loads the current state of a ticket in the organization.
func (r *Repository) GetSnapshot(ctx context.Context, organizationID, id uuid.UUID) (Snapshot, error) {
	if r == nil || r.pool == nil {
		return Snapshot{}, errors.New(errRepoNotConfigured)
	}
	var s Snapshot
	err := r.pool.QueryRow(ctx,
		`SELECT id, organization_id, number, title, description, status, priority, category, channel,
		        requester_id, assignee_id, tags, due_at, created_at, updated_at
		 FROM tickets
		 WHERE id = $1 AND organization_id = $2`,
		id, organizationID,
	).Scan(
		&s.ID, &s.OrganizationID, &s.Number, &s.Title, &s.Description, &s.Status, &s.Priority, &s.Category, &s.Channel,
		&s.RequesterID, &s.AssigneeID, &s.Tags, &s.DueAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return s, err
}

// AddTag appends tag unless the ticket already carries it. It reports whether
// the tag list changed.
func (r *Repository) AddTag(ctx context.Context, organizationID, id uuid.UUID, tag string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New(errRepoNotConfigured)
	}
	result, err := r.pool.Exec(ctx,
		`UPDATE tickets
		 SET tags = array_append(tags, $3::text), updated_at = now()
		 WHERE id = $1 AND organization_id = $2 AND NOT ($3::text = ANY(tags))`,
		id, organizationID, tag,
	)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}
