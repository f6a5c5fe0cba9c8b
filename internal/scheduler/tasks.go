package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"helpdesk_backend/internal/tickets"
)

const (
	TaskOutboxProcess   = "outbox.process"
	TaskOutboxSweep     = "outbox.sweep"
	TaskSLAScan         = "sla.scan"
	TaskReportsRun      = "reports.run"
	TaskWorkflowExecute = "workflow.execute"
)

// PeriodicTasks are the task types driven by cron specs rather than events.
var PeriodicTasks = []string{TaskOutboxProcess, TaskOutboxSweep, TaskSLAScan, TaskReportsRun}

type WorkflowExecutePayload struct {
	OrganizationID string           `json:"organizationId"`
	EventType      string           `json:"eventType"`
	Ticket         tickets.Snapshot `json:"ticket"`
}

func NewWorkflowExecuteTask(payload WorkflowExecutePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWorkflowExecute, data), nil
}

func ParseWorkflowExecutePayload(task *asynq.Task) (WorkflowExecutePayload, error) {
	var payload WorkflowExecutePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WorkflowExecutePayload{}, err
	}
	return payload, nil
}

// NewPeriodicTask builds a payload-less task for one of PeriodicTasks.
func NewPeriodicTask(taskType string) *asynq.Task {
	return asynq.NewTask(taskType, nil)
}
