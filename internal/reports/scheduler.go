package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"helpdesk_backend/internal/directory"
	"helpdesk_backend/internal/email"
	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/notification/templates"
	"helpdesk_backend/platform/logger"
	"helpdesk_backend/platform/metrics"
)

type StatsSource interface {
	Stats(ctx context.Context, organizationID uuid.UUID, p Period) (Stats, error)
}

type Directory interface {
	Organizations(ctx context.Context) ([]uuid.UUID, error)
	Admins(ctx context.Context, organizationID uuid.UUID) ([]directory.Member, error)
}

type NotificationSink interface {
	InsertMany(ctx context.Context, params []outbox.InsertParams) ([]uuid.UUID, error)
}

type TemplateResolver interface {
	Resolve(ctx context.Context, organizationID uuid.UUID, eventType, channel string) (templates.Template, error)
}

// Archive keeps a copy of each rendered report and returns a link to it.
type Archive interface {
	Put(ctx context.Context, organizationID uuid.UUID, p Period, html string) (string, error)
}

// RunResult summarizes one scheduler run.
type RunResult struct {
	Period        string `json:"period"`
	Organizations int    `json:"organizations"`
	Reports       int    `json:"reports"`
	Notified      int    `json:"notified"`
	Failed        int    `json:"failed"`
}

type Scheduler struct {
	stats         StatsSource
	directory     Directory
	notifications NotificationSink
	templates     TemplateResolver
	archive       Archive
	log           *logger.Logger
	now           func() time.Time
}

type Deps struct {
	Stats         StatsSource
	Directory     Directory
	Notifications NotificationSink
	Templates     TemplateResolver
	Archive       Archive // optional
	Log           *logger.Logger
}

func NewScheduler(deps Deps) *Scheduler {
	return &Scheduler{
		stats:         deps.Stats,
		directory:     deps.Directory,
		notifications: deps.Notifications,
		templates:     deps.Templates,
		archive:       deps.Archive,
		log:           deps.Log,
		now:           time.Now,
	}
}

// Run reports the previous UTC day for every organization. One organization
// failing does not stop the others.
func (s *Scheduler) Run(ctx context.Context) (RunResult, error) {
	period := PreviousDay(s.now())
	orgs, err := s.directory.Organizations(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list organizations: %w", err)
	}

	result := RunResult{Period: period.Label(), Organizations: len(orgs)}
	for _, org := range orgs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		queued, err := s.runOrganization(ctx, org, period)
		switch {
		case err != nil:
			result.Failed++
			metrics.ReportRuns.WithLabelValues("failed").Inc()
			s.log.Error("report generation failed", "orgId", org, "period", period.Label(), "error", err)
		case queued == 0:
			metrics.ReportRuns.WithLabelValues("skipped").Inc()
		default:
			result.Reports++
			result.Notified += queued
			metrics.ReportRuns.WithLabelValues("sent").Inc()
		}
	}

	s.log.Info("report run completed",
		"period", result.Period,
		"organizations", result.Organizations,
		"reports", result.Reports,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *Scheduler) runOrganization(ctx context.Context, org uuid.UUID, period Period) (int, error) {
	admins, err := s.directory.Admins(ctx, org)
	if err != nil {
		return 0, fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		return 0, nil
	}

	stats, err := s.stats.Stats(ctx, org, period)
	if err != nil {
		return 0, err
	}
	v := newView(period, stats)
	html, err := email.RenderTemplate("report.html", v)
	if err != nil {
		return 0, err
	}

	variables := v.variables()
	if s.archive != nil {
		link, err := s.archive.Put(ctx, org, period, html)
		if err != nil {
			// The email still carries the full report.
			s.log.Warn("report archive failed", "orgId", org, "error", err)
		} else {
			variables["report"].(map[string]any)["archiveUrl"] = link
		}
	}

	var data *outbox.TemplateData
	tpl, err := s.templates.Resolve(ctx, org, EventReport, string(outbox.ChannelEmail))
	switch {
	case err == nil:
		templateID := tpl.ID
		data = &outbox.TemplateData{TemplateID: &templateID, Variables: variables}
	case !errors.Is(err, templates.ErrNotFound):
		return 0, fmt.Errorf("resolve report template: %w", err)
	}

	params := make([]outbox.InsertParams, 0, len(admins))
	for _, admin := range admins {
		userID := admin.UserID
		params = append(params, outbox.InsertParams{
			OrganizationID: org,
			RecipientID:    &userID,
			RecipientEmail: admin.Email,
			Channel:        outbox.ChannelEmail,
			EventType:      EventReport,
			Subject:        v.Title,
			Body:           html,
			TemplateData:   data,
		})
	}
	if _, err := s.notifications.InsertMany(ctx, params); err != nil {
		return 0, fmt.Errorf("queue report notifications: %w", err)
	}
	return len(params), nil
}
