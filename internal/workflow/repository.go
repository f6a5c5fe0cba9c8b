package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errRepoNotConfigured = "workflow repository not configured"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActive returns the organization's active workflows for a trigger in
// creation order.
func (r *Repository) ListActive(ctx context.Context, organizationID uuid.UUID, triggerType string) ([]Workflow, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, organization_id, name, trigger_type, conditions, actions, is_active
		 FROM workflows
		 WHERE organization_id = $1 AND trigger_type = $2 AND is_active
		 ORDER BY created_at ASC, id ASC`,
		organizationID, triggerType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []Workflow
	for rows.Next() {
		var (
			wf         Workflow
			conditions []byte
			actions    []byte
		)
		if err := rows.Scan(&wf.ID, &wf.OrganizationID, &wf.Name, &wf.TriggerType, &conditions, &actions, &wf.IsActive); err != nil {
			return nil, err
		}
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &wf.Conditions); err != nil {
				wf.LoadErr = fmt.Errorf("decode conditions: %w", err)
			}
		}
		if wf.LoadErr == nil {
			wf.Actions, wf.LoadErr = DecodeActions(actions)
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}
