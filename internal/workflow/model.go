// Package workflow evaluates organization automation rules against ticket
// events and runs their actions.
package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"helpdesk_backend/internal/integrations"
	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/tickets"
	"helpdesk_backend/platform/validator"
)

var validate = validator.New()

// Workflow is a trigger, its conditions and its ordered actions.
type Workflow struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	TriggerType    string
	Conditions     []Condition
	Actions        []Action
	IsActive       bool

	// LoadErr is set when the stored rule could not be decoded.
	LoadErr error
}

// Operator compares a ticket field with a condition value.
type Operator string

const (
	OperatorEquals    Operator = "EQUALS"
	OperatorNotEquals Operator = "NOT_EQUALS"
)

// Condition is evaluated against the ticket snapshot.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// UnmarshalJSON accepts numbers and booleans as values so `{"value": 3}`
// compares equal to the field "3".
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field    string          `json:"field"`
		Operator Operator        `json:"operator"`
		Value    json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Field = raw.Field
	c.Operator = raw.Operator
	c.Value = rawString(raw.Value)
	return nil
}

// Matches reports whether the ticket satisfies the condition. Unknown
// operators never match.
func (c Condition) Matches(t tickets.Snapshot) bool {
	actual := t.FieldValue(c.Field)
	switch c.Operator {
	case OperatorEquals:
		return actual == c.Value
	case OperatorNotEquals:
		return actual != c.Value
	}
	return false
}

// ActionKind is the closed set of things a workflow can do.
type ActionKind string

const (
	ActionTriggerIntegration  ActionKind = "TRIGGER_INTEGRATION"
	ActionPlankaCreateSubtask ActionKind = "PLANKA_CREATE_SUBTASK"
	ActionAddTag              ActionKind = "ADD_TAG"
	ActionSendNotification    ActionKind = "SEND_NOTIFICATION"
)

// Action is one of TriggerIntegration, PlankaCreateSubtask, AddTag,
// SendNotification or InvalidAction.
type Action interface {
	Kind() ActionKind
	action()
}

type TriggerIntegration struct {
	Provider  integrations.Provider `json:"provider" validate:"required,oneof=PLANKA BOOKSTACK ZOHO_CRM CHATWOOT TYPEBOT"`
	Overrides map[string]any        `json:"overrides,omitempty"`
}

type PlankaCreateSubtask struct {
	TaskName string `json:"taskName" validate:"required,max=200"`
}

type AddTag struct {
	Tag string `json:"tag" validate:"required,max=64"`
}

// RecipientTarget selects which ticket participants get a notification.
type RecipientTarget string

const (
	TargetRequester RecipientTarget = "REQUESTER"
	TargetAssignee  RecipientTarget = "ASSIGNEE"
	TargetBoth      RecipientTarget = "BOTH"
)

type SendNotification struct {
	TemplateID      uuid.UUID       `json:"templateId" validate:"required"`
	Channel         outbox.Channel  `json:"channel" validate:"omitempty,oneof=EMAIL WHATSAPP SMS"`
	RecipientTarget RecipientTarget `json:"recipientTarget" validate:"required,oneof=REQUESTER ASSIGNEE BOTH"`
}

// InvalidAction stands in for an action that could not be decoded so the
// remaining actions of the workflow still run.
type InvalidAction struct {
	Type string
	Err  error
}

func (TriggerIntegration) Kind() ActionKind  { return ActionTriggerIntegration }
func (PlankaCreateSubtask) Kind() ActionKind { return ActionPlankaCreateSubtask }
func (AddTag) Kind() ActionKind              { return ActionAddTag }
func (SendNotification) Kind() ActionKind    { return ActionSendNotification }
func (a InvalidAction) Kind() ActionKind     { return ActionKind(a.Type) }

func (TriggerIntegration) action()  {}
func (PlankaCreateSubtask) action() {}
func (AddTag) action()              {}
func (SendNotification) action()    {}
func (InvalidAction) action()       {}

type actionEnvelope struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

// DecodeAction turns a stored {"type": ..., "config": {...}} object into an Action.
func DecodeAction(data []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	if len(bytes.TrimSpace(env.Config)) == 0 || bytes.Equal(bytes.TrimSpace(env.Config), []byte("null")) {
		env.Config = []byte("{}")
	}

	var action Action
	switch ActionKind(env.Type) {
	case ActionTriggerIntegration:
		var a TriggerIntegration
		if err := json.Unmarshal(env.Config, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		action = a
	case ActionPlankaCreateSubtask:
		var a PlankaCreateSubtask
		if err := json.Unmarshal(env.Config, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		a.TaskName = strings.TrimSpace(a.TaskName)
		action = a
	case ActionAddTag:
		var a AddTag
		if err := json.Unmarshal(env.Config, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		a.Tag = strings.TrimSpace(a.Tag)
		action = a
	case ActionSendNotification:
		var a SendNotification
		if err := json.Unmarshal(env.Config, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if a.Channel == "" {
			a.Channel = outbox.ChannelEmail
		}
		action = a
	default:
		return nil, fmt.Errorf("unknown action type %q", env.Type)
	}

	if err := validate.Struct(action); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", env.Type, err)
	}
	return action, nil
}

// DecodeActions decodes a JSON array of actions. Entries that fail to decode
// become InvalidAction values in place.
func DecodeActions(data []byte) ([]Action, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	actions := make([]Action, 0, len(raws))
	for _, raw := range raws {
		action, err := DecodeAction(raw)
		if err != nil {
			var env actionEnvelope
			_ = json.Unmarshal(raw, &env)
			action = InvalidAction{Type: env.Type, Err: err}
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func rawString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(trimmed)
}
