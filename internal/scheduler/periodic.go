package scheduler

import (
	"context"
	"fmt"
	"time"

	"helpdesk_backend/platform/config"
	"helpdesk_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues the cron-driven tasks. Each enqueue is unique for a short
// window so several scheduler replicas do not double a run.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// Entries maps each periodic task type to its cron spec.
func Entries(cfg config.SchedulerConfig) map[string]string {
	return map[string]string{
		TaskOutboxProcess: cfg.GetOutboxCron(),
		TaskOutboxSweep:   cfg.GetOutboxSweepCron(),
		TaskSLAScan:       cfg.GetSLAScanCron(),
		TaskReportsRun:    cfg.GetReportCron(),
	}
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil && info != nil {
				log.Warn("periodic enqueue failed", "task", info.Type, "error", err)
			}
		},
	})

	queue := queueName(cfg)
	for taskType, spec := range Entries(cfg) {
		if spec == "" || spec == "off" {
			log.Info("periodic task disabled", "task", taskType)
			continue
		}
		if _, err := s.Register(spec, NewPeriodicTask(taskType),
			asynq.Queue(queue),
			asynq.Unique(30*time.Second),
			asynq.MaxRetry(0),
		); err != nil {
			return nil, fmt.Errorf("register %s (%q): %w", taskType, spec, err)
		}
	}
	return &Periodic{scheduler: s, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) error {
	if err := p.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}
