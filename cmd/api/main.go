package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helpdesk_backend/internal/bootstrap"
	"helpdesk_backend/internal/events"
	apphttp "helpdesk_backend/internal/http"
	"helpdesk_backend/internal/http/router"
	"helpdesk_backend/internal/notification"
	"helpdesk_backend/internal/ops"
	"helpdesk_backend/internal/scheduler"
	"helpdesk_backend/internal/workflow"
	"helpdesk_backend/platform/config"
	"helpdesk_backend/platform/db"
	"helpdesk_backend/platform/logger"
	"helpdesk_backend/platform/validator"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	pool, err := bootstrap.ConnectPool(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := bootstrap.WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	svc, err := bootstrap.Build(ctx, cfg, pool, log)
	if err != nil {
		log.Error("failed to wire services", "error", err)
		panic("failed to wire services: " + err.Error())
	}
	defer svc.Close()

	// Ticket lifecycle events feed the workflow subscriber.
	eventBus := events.NewInMemoryBus(log)

	enqueuer, closeEnqueuer := initWorkflowEnqueuer(cfg, svc.Engine, log)
	if closeEnqueuer != nil {
		defer closeEnqueuer()
	}
	workflow.NewSubscriber(enqueuer, log).RegisterHandlers(eventBus)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			workflow.NewModule(svc.Engine, svc.Tickets, eventBus, svc.Directory, val),
			notification.New(svc.Outbox, svc.Settings, svc.Directory),
			ops.NewModule(svc.Jobs(), log),
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if svc.Redis != nil {
		g.Go(func() error {
			svc.Settings.ListenInvalidations(gctx)
			return nil
		})
	}
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

// initWorkflowEnqueuer queues workflow runs on asynq, or runs them inline when
// Redis is not configured.
func initWorkflowEnqueuer(cfg config.SchedulerConfig, engine *workflow.Engine, log *logger.Logger) (workflow.Enqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; workflows run inline")
		return workflow.NewInlineEnqueuer(engine), nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize workflow queue client; workflows run inline", "error", err)
		return workflow.NewInlineEnqueuer(engine), nil
	}

	return client, func() {
		_ = client.Close()
	}
}
