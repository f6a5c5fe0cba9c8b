// Package templates loads organization notification templates and renders
// them into a subject and body.
package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"helpdesk_backend/platform/render"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChannelDefault is the fallback row used when no channel-specific template exists.
const ChannelDefault = "DEFAULT"

// ErrNotFound is returned when no template matches.
var ErrNotFound = errors.New("notification template not found")

// Template is a stored notification template.
type Template struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	EventType       string
	Channel         string
	SubjectTemplate *string
	HeaderTemplate  string
	BodyTemplate    string
	FooterTemplate  string
	IsActive        bool
}

// Rendered is the output of Template.Render.
type Rendered struct {
	Subject    string
	HasSubject bool
	Body       string
}

// Render substitutes data into header, body and footer and joins the non-empty
// parts with a blank line. When html is true substituted values are escaped.
func (t Template) Render(data map[string]any, html bool) Rendered {
	apply := render.Text
	if html {
		apply = render.HTML
	}
	out := Rendered{
		Body: render.Join(apply(t.HeaderTemplate, data), apply(t.BodyTemplate, data), apply(t.FooterTemplate, data)),
	}
	if t.SubjectTemplate != nil && strings.TrimSpace(*t.SubjectTemplate) != "" {
		// Subjects are plain text in every channel.
		out.Subject = strings.TrimSpace(render.Text(*t.SubjectTemplate, data))
		out.HasSubject = true
	}
	return out
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const templateColumns = `id, organization_id, event_type, channel, subject_template,
	header_template, body_template, footer_template, is_active`

// GetByID loads a template inside the organization.
func (r *Repository) GetByID(ctx context.Context, organizationID, id uuid.UUID) (Template, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM notification_templates
		 WHERE id = $1 AND organization_id = $2`,
		id, organizationID,
	)
	return scan(row)
}

// Resolve finds the active template for (eventType, channel), falling back to
// the organization's DEFAULT channel row.
func (r *Repository) Resolve(ctx context.Context, organizationID uuid.UUID, eventType, channel string) (Template, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM notification_templates
		 WHERE organization_id = $1 AND event_type = $2 AND channel IN ($3, 'DEFAULT') AND is_active
		 ORDER BY CASE WHEN channel = $3 THEN 0 ELSE 1 END
		 LIMIT 1`,
		organizationID, eventType, channel,
	)
	return scan(row)
}

func scan(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.OrganizationID, &t.EventType, &t.Channel, &t.SubjectTemplate,
		&t.HeaderTemplate, &t.BodyTemplate, &t.FooterTemplate, &t.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	if err != nil {
		return Template{}, fmt.Errorf("load notification template: %w", err)
	}
	return t, nil
}
