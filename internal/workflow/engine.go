package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"helpdesk_backend/internal/directory"
	"helpdesk_backend/internal/integrations"
	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/tickets"
	"helpdesk_backend/platform/logger"
	"helpdesk_backend/platform/metrics"
	"helpdesk_backend/platform/redact"
)

// ResultStatus is the outcome of one action or of a skipped workflow.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailed  ResultStatus = "failed"
	StatusSkipped ResultStatus = "skipped"
)

// Result is one entry of the advisory execution report.
type Result struct {
	WorkflowID   uuid.UUID    `json:"workflowId"`
	WorkflowName string       `json:"workflowName"`
	Action       ActionKind   `json:"action,omitempty"`
	Status       ResultStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	Detail       string       `json:"detail,omitempty"`
}

type Source interface {
	ListActive(ctx context.Context, organizationID uuid.UUID, triggerType string) ([]Workflow, error)
}

type IntegrationRunner interface {
	Trigger(ctx context.Context, organizationID uuid.UUID, provider integrations.Provider, req integrations.Request) (integrations.Outcome, error)
}

type TagStore interface {
	AddTag(ctx context.Context, organizationID, ticketID uuid.UUID, tag string) (bool, error)
}

type NotificationSink interface {
	InsertMany(ctx context.Context, params []outbox.InsertParams) ([]uuid.UUID, error)
}

type People interface {
	Profile(ctx context.Context, organizationID, userID uuid.UUID) (directory.Member, error)
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Workflows     Source
	Integrations  IntegrationRunner
	Tags          TagStore
	Notifications NotificationSink
	People        People
	Log           *logger.Logger
}

type Engine struct {
	workflows     Source
	integrations  IntegrationRunner
	tags          TagStore
	notifications NotificationSink
	people        People
	log           *logger.Logger
}

func NewEngine(deps Deps) *Engine {
	return &Engine{
		workflows:     deps.Workflows,
		integrations:  deps.Integrations,
		tags:          deps.Tags,
		notifications: deps.Notifications,
		people:        deps.People,
		log:           deps.Log,
	}
}

// Execute runs every active workflow of the organization whose trigger is
// eventType. Only a failure to load workflows is returned as an error; action
// failures are reported in the results.
func (e *Engine) Execute(ctx context.Context, eventType string, ticket tickets.Snapshot, organizationID uuid.UUID) ([]Result, error) {
	if ticket.OrganizationID != uuid.Nil && ticket.OrganizationID != organizationID {
		return nil, errors.New("ticket does not belong to organization")
	}
	ticket.OrganizationID = organizationID

	workflows, err := e.workflows.ListActive(ctx, organizationID, eventType)
	if err != nil {
		return nil, fmt.Errorf("load workflows: %w", err)
	}

	var results []Result
	for _, wf := range workflows {
		if wf.LoadErr != nil {
			results = append(results, Result{WorkflowID: wf.ID, WorkflowName: wf.Name, Status: StatusFailed, Error: wf.LoadErr.Error()})
			continue
		}
		if !conditionsMatch(wf.Conditions, ticket) {
			results = append(results, Result{WorkflowID: wf.ID, WorkflowName: wf.Name, Status: StatusSkipped, Detail: "conditions not met"})
			continue
		}
		run := &execution{engine: e, workflow: wf, eventType: eventType, ticket: ticket}
		for _, action := range wf.Actions {
			res := run.perform(ctx, action)
			metrics.WorkflowActions.WithLabelValues(string(res.Action), string(res.Status)).Inc()
			results = append(results, res)
		}
		// Tags added by this workflow are visible to the next one.
		ticket = run.ticket
	}

	if len(results) > 0 {
		e.log.Info("workflows executed",
			"orgId", organizationID,
			"ticketId", ticket.ID,
			"trigger", eventType,
			"workflows", len(workflows),
			"results", len(results),
		)
	}
	return results, nil
}

// conditionsMatch is a short-circuit AND; an empty list matches.
func conditionsMatch(conditions []Condition, ticket tickets.Snapshot) bool {
	for _, c := range conditions {
		if !c.Matches(ticket) {
			return false
		}
	}
	return true
}

type execution struct {
	engine    *Engine
	workflow  Workflow
	eventType string
	ticket    tickets.Snapshot
	requester *integrations.Contact
	resolved  bool
}

func (x *execution) perform(ctx context.Context, action Action) (res Result) {
	res = Result{WorkflowID: x.workflow.ID, WorkflowName: x.workflow.Name, Action: action.Kind(), Status: StatusSuccess}
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("action panicked: %v", r)
			x.engine.log.Error("workflow action panicked", "workflowId", x.workflow.ID, "action", string(res.Action), "panic", r)
		}
	}()

	detail, err := x.run(ctx, action)
	res.Detail = detail
	if err != nil {
		res.Status = StatusFailed
		res.Error = redact.Error(err)
		x.engine.log.Warn("workflow action failed",
			"workflowId", x.workflow.ID,
			"workflow", x.workflow.Name,
			"action", string(res.Action),
			"ticketId", x.ticket.ID,
			"error", res.Error,
		)
	}
	return res
}

func (x *execution) run(ctx context.Context, action Action) (string, error) {
	switch a := action.(type) {
	case TriggerIntegration:
		out, err := x.engine.integrations.Trigger(ctx, x.ticket.OrganizationID, a.Provider, integrations.Request{
			Action:       integrations.ActionTrigger,
			WorkflowName: x.workflow.Name,
			Ticket:       x.ticket,
			Requester:    x.contact(ctx),
			Overrides:    a.Overrides,
		})
		if err != nil {
			return "", err
		}
		return out.ExternalID, nil
	case PlankaCreateSubtask:
		out, err := x.engine.integrations.Trigger(ctx, x.ticket.OrganizationID, integrations.ProviderPlanka, integrations.Request{
			Action:       integrations.ActionSubtask,
			WorkflowName: x.workflow.Name,
			Ticket:       x.ticket,
			TaskName:     a.TaskName,
		})
		if err != nil {
			return "", err
		}
		return out.ExternalID, nil
	case AddTag:
		return x.addTag(ctx, a.Tag)
	case SendNotification:
		return x.sendNotification(ctx, a)
	case InvalidAction:
		return "", a.Err
	default:
		return "", fmt.Errorf("unsupported action %T", action)
	}
}

func (x *execution) addTag(ctx context.Context, tag string) (string, error) {
	if x.ticket.HasTag(tag) {
		return "already tagged", nil
	}
	if _, err := x.engine.tags.AddTag(ctx, x.ticket.OrganizationID, x.ticket.ID, tag); err != nil {
		return "", fmt.Errorf("add tag: %w", err)
	}
	tags := make([]string, 0, len(x.ticket.Tags)+1)
	x.ticket.Tags = append(append(tags, x.ticket.Tags...), tag)
	return "tag added", nil
}

func (x *execution) sendNotification(ctx context.Context, a SendNotification) (string, error) {
	recipients := recipientsFor(a.RecipientTarget, x.ticket)
	if len(recipients) == 0 {
		return "no recipients", nil
	}

	variables := x.ticket.TemplateData()
	variables["workflow"] = map[string]any{"name": x.workflow.Name}
	variables["event"] = x.eventType

	templateID := a.TemplateID
	ticketID := x.ticket.ID
	params := make([]outbox.InsertParams, 0, len(recipients))
	for _, recipient := range recipients {
		recipientID := recipient
		params = append(params, outbox.InsertParams{
			OrganizationID: x.ticket.OrganizationID,
			TicketID:       &ticketID,
			RecipientID:    &recipientID,
			Channel:        a.Channel,
			EventType:      x.eventType,
			TemplateData:   &outbox.TemplateData{TemplateID: &templateID, Variables: variables},
		})
	}
	if _, err := x.engine.notifications.InsertMany(ctx, params); err != nil {
		return "", fmt.Errorf("enqueue notification: %w", err)
	}
	return fmt.Sprintf("%d notification(s) queued", len(params)), nil
}

// recipientsFor returns the distinct user ids the target resolves to.
func recipientsFor(target RecipientTarget, t tickets.Snapshot) []uuid.UUID {
	var ids []uuid.UUID
	add := func(id *uuid.UUID) {
		if id == nil || *id == uuid.Nil {
			return
		}
		for _, existing := range ids {
			if existing == *id {
				return
			}
		}
		ids = append(ids, *id)
	}
	switch target {
	case TargetRequester:
		add(t.RequesterID)
	case TargetAssignee:
		add(t.AssigneeID)
	case TargetBoth:
		add(t.RequesterID)
		add(t.AssigneeID)
	}
	return ids
}

// contact looks up the requester once per workflow run.
func (x *execution) contact(ctx context.Context) *integrations.Contact {
	if x.resolved {
		return x.requester
	}
	x.resolved = true
	if x.ticket.RequesterID == nil || x.engine.people == nil {
		return nil
	}
	m, err := x.engine.people.Profile(ctx, x.ticket.OrganizationID, *x.ticket.RequesterID)
	if err != nil {
		x.engine.log.Debug("requester profile unavailable", "ticketId", x.ticket.ID, "error", err)
		return nil
	}
	x.requester = &integrations.Contact{Name: m.FullName, Email: m.Email}
	return x.requester
}
