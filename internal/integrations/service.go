package integrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"helpdesk_backend/platform/logger"
	"helpdesk_backend/platform/metrics"
	"helpdesk_backend/platform/redact"
)

const maxLogError = 1000

type ConfigStore interface {
	GetEnabled(ctx context.Context, organizationID uuid.UUID, provider Provider) (Config, error)
}

type LogStore interface {
	Start(ctx context.Context, e LogEntry) (uuid.UUID, error)
	Finish(ctx context.Context, id uuid.UUID, c LogCompletion) error
}

// Service resolves a provider's config and runs its adapter inside a
// PENDING -> SUCCESS|FAILED integration log entry.
type Service struct {
	configs  ConfigStore
	logs     LogStore
	client   *Client
	adapters map[Provider]Adapter
	log      *logger.Logger
	now      func() time.Time
}

func NewService(configs ConfigStore, logs LogStore, client *Client, log *logger.Logger) *Service {
	return &Service{
		configs:  configs,
		logs:     logs,
		client:   client,
		adapters: DefaultAdapters(),
		log:      log,
		now:      time.Now,
	}
}

// Trigger runs provider for req. It returns ErrNotEnabled without logging a
// call when the organization has not enabled the provider.
func (s *Service) Trigger(ctx context.Context, organizationID uuid.UUID, provider Provider, req Request) (Outcome, error) {
	adapter, ok := s.adapters[provider]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown integration provider %q", provider)
	}
	cfg, err := s.configs.GetEnabled(ctx, organizationID, provider)
	if err != nil {
		if errors.Is(err, ErrNotEnabled) {
			return Outcome{}, ErrNotEnabled
		}
		return Outcome{}, fmt.Errorf("load %s config: %w", provider, err)
	}

	action := req.Action
	if action == "" {
		action = ActionTrigger
	}
	ticketID := req.Ticket.ID
	logID, logErr := s.logs.Start(ctx, LogEntry{
		OrganizationID: organizationID,
		Provider:       provider,
		Action:         action,
		TicketID:       &ticketID,
		Request: map[string]any{
			"workflow":  req.WorkflowName,
			"ticketId":  ticketID.String(),
			"overrides": req.Overrides,
		},
	})
	if logErr != nil {
		s.log.Error("integration log start failed", "provider", string(provider), "error", logErr)
	}

	start := s.now()
	outcome, err := adapter.Execute(ctx, s.client, cfg, req)
	duration := s.now().Sub(start)

	completion := LogCompletion{
		Status:   LogSuccess,
		Request:  outcome.Request,
		Response: outcome.Response,
		Duration: duration,
	}
	if err != nil {
		completion.Status = LogFailed
		completion.Error = redact.Truncate(err.Error(), maxLogError)
	}
	metrics.IntegrationCallDuration.WithLabelValues(string(provider), completion.Status).Observe(duration.Seconds())

	if logErr == nil {
		// The call already happened; its log row must still be closed.
		if ferr := s.logs.Finish(context.WithoutCancel(ctx), logID, completion); ferr != nil {
			s.log.Error("integration log finish failed", "provider", string(provider), "logId", logID, "error", ferr)
		}
	}

	if err != nil {
		s.log.Warn("integration call failed",
			"provider", string(provider),
			"action", action,
			"orgId", organizationID,
			"durationMs", duration.Milliseconds(),
			"error", completion.Error,
		)
		return outcome, err
	}
	s.log.Info("integration call succeeded",
		"provider", string(provider),
		"action", action,
		"orgId", organizationID,
		"externalId", outcome.ExternalID,
		"durationMs", duration.Milliseconds(),
	)
	return outcome, nil
}
