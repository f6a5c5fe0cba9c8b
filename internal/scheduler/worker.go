package scheduler

import (
	"context"
	"fmt"

	"helpdesk_backend/platform/config"
	"helpdesk_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Handlers are the jobs the worker runs. A nil handler leaves its task type
// unregistered.
type Handlers struct {
	ProcessOutbox   func(ctx context.Context) error
	SweepOutbox     func(ctx context.Context) error
	ScanSLA         func(ctx context.Context) error
	RunReports      func(ctx context.Context) error
	ExecuteWorkflow func(ctx context.Context, payload WorkflowExecutePayload) error
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, handlers Handlers, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server: server,
		mux:    newMux(handlers, log),
		log:    log,
	}
	return w, nil
}

func newMux(handlers Handlers, log *logger.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	periodic := map[string]func(context.Context) error{
		TaskOutboxProcess: handlers.ProcessOutbox,
		TaskOutboxSweep:   handlers.SweepOutbox,
		TaskSLAScan:       handlers.ScanSLA,
		TaskReportsRun:    handlers.RunReports,
	}
	for taskType, run := range periodic {
		if run == nil {
			continue
		}
		mux.HandleFunc(taskType, periodicHandler(taskType, run, log))
	}
	if handlers.ExecuteWorkflow != nil {
		mux.HandleFunc(TaskWorkflowExecute, func(ctx context.Context, task *asynq.Task) error {
			payload, err := ParseWorkflowExecutePayload(task)
			if err != nil {
				// A malformed payload will not get better on retry.
				return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
			}
			return handlers.ExecuteWorkflow(withTaskID(ctx), payload)
		})
	}
	return mux
}

func periodicHandler(taskType string, run func(context.Context) error, log *logger.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		ctx = withTaskID(ctx)
		if err := run(ctx); err != nil {
			log.WithContext(ctx).Error("periodic task failed", "task", taskType, "error", err)
			return err
		}
		return nil
	}
}

func withTaskID(ctx context.Context) context.Context {
	if id, ok := asynq.GetTaskID(ctx); ok {
		return context.WithValue(ctx, logger.TaskIDKey, id)
	}
	return ctx
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
