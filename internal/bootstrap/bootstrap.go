// Package bootstrap builds the services shared by the API server, the
// scheduler and the ops CLI from one configuration and one database pool.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"helpdesk_backend/internal/directory"
	"helpdesk_backend/internal/dispatch"
	"helpdesk_backend/internal/integrations"
	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/notification/templates"
	"helpdesk_backend/internal/notification/worker"
	"helpdesk_backend/internal/ops"
	"helpdesk_backend/internal/reports"
	"helpdesk_backend/internal/scheduler"
	"helpdesk_backend/internal/settings"
	"helpdesk_backend/internal/settings/secretbox"
	"helpdesk_backend/internal/sla"
	"helpdesk_backend/internal/tickets"
	"helpdesk_backend/internal/workflow"
	"helpdesk_backend/platform/config"
	"helpdesk_backend/platform/db"
	"helpdesk_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Services holds every wired component. Redis and the report archive are nil
// when not configured.
type Services struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Outbox    *outbox.Repository
	Templates *templates.Repository
	Directory *directory.Repository
	Tickets   *tickets.Repository
	Settings  *settings.Service
	Engine    *workflow.Engine
	Worker    *worker.Worker
	Sweeper   *worker.Sweeper
	SLA       *sla.Monitor
	Reports   *reports.Scheduler
	Archive   *reports.MinIOArchive
}

// Build wires the services on top of an open pool.
func Build(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log *logger.Logger) (*Services, error) {
	box, err := secretbox.New(cfg.GetSecretEncryptionKey())
	if err != nil {
		return nil, fmt.Errorf("secret encryption key: %w", err)
	}

	var rdb *redis.Client
	if cfg.GetRedisURL() != "" {
		opts, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
	}

	s := &Services{
		Pool:      pool,
		Redis:     rdb,
		Outbox:    outbox.New(pool),
		Templates: templates.New(pool),
		Directory: directory.New(pool),
		Tickets:   tickets.NewRepository(pool),
	}
	s.Settings = settings.NewService(settings.NewRepository(pool, box), rdb, log)

	integrationSvc := integrations.NewService(
		integrations.NewConfigRepository(pool, box),
		integrations.NewLogRepository(pool),
		integrations.NewClient(nil),
		log,
	)
	s.Engine = workflow.NewEngine(workflow.Deps{
		Workflows:     workflow.NewRepository(pool),
		Integrations:  integrationSvc,
		Tags:          s.Tickets,
		Notifications: s.Outbox,
		People:        s.Directory,
		Log:           log,
	})

	s.Worker = worker.New(worker.Deps{
		Store:      s.Outbox,
		Templates:  s.Templates,
		Directory:  s.Directory,
		Settings:   s.Settings,
		Dispatcher: dispatch.New(dispatch.NewProviderFactory(cfg), log),
		Log:        log,
	}, worker.WithBatchSize(cfg.GetOutboxBatchSize()))
	s.Sweeper = worker.NewSweeper(s.Outbox, log, cfg.GetOutboxProcessingLease(), cfg.GetOutboxPendingTTL())
	s.SLA = sla.NewMonitor(sla.NewRepository(pool), s.Templates, log, sla.WithWindow(cfg.GetSLAWarningWindow()))

	var archive reports.Archive
	if cfg.IsMinIOEnabled() {
		a, err := reports.NewMinIOArchive(cfg)
		if err != nil {
			return nil, fmt.Errorf("report archive: %w", err)
		}
		if err := WithRetry(ctx, log, "ensure reports bucket", 5, 2*time.Second, func() error {
			return a.EnsureBucketExists(ctx)
		}); err != nil {
			return nil, err
		}
		s.Archive = a
		archive = a
	}
	s.Reports = reports.NewScheduler(reports.Deps{
		Stats:         reports.NewRepository(pool),
		Directory:     s.Directory,
		Notifications: s.Outbox,
		Templates:     s.Templates,
		Archive:       archive,
		Log:           log,
	})
	return s, nil
}

// Close releases the Redis client. The pool belongs to the caller.
func (s *Services) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
}

// Jobs exposes the periodic jobs to the ops routes.
func (s *Services) Jobs() ops.Jobs {
	return ops.Jobs{Outbox: s.Worker, Sweeper: s.Sweeper, SLA: s.SLA, Reports: s.Reports}
}

// Handlers exposes the jobs to the asynq worker.
func (s *Services) Handlers() scheduler.Handlers {
	return scheduler.Handlers{
		ProcessOutbox: func(ctx context.Context) error {
			_, err := s.Worker.ProcessBatch(ctx)
			return err
		},
		SweepOutbox: func(ctx context.Context) error {
			_, err := s.Sweeper.Sweep(ctx)
			return err
		},
		ScanSLA: func(ctx context.Context) error {
			_, err := s.SLA.Scan(ctx)
			return err
		},
		RunReports: func(ctx context.Context) error {
			_, err := s.Reports.Run(ctx)
			return err
		},
		ExecuteWorkflow: s.Engine.HandleTask,
	}
}

// ConnectPool opens the database pool, retrying while Postgres comes up.
func ConnectPool(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	return pool, err
}

// WithRetry runs fn up to attempts times with a quadratic delay between tries.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
