package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"helpdesk_backend/internal/bootstrap"
	"helpdesk_backend/internal/scheduler"
	"helpdesk_backend/platform/config"
	"helpdesk_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.ConnectPool(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	svc, err := bootstrap.Build(ctx, cfg, pool, log)
	if err != nil {
		log.Error("failed to wire services", "error", err)
		panic("failed to wire services: " + err.Error())
	}
	defer svc.Close()

	worker, err := scheduler.NewWorker(cfg, svc.Handlers(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	for task, spec := range scheduler.Entries(cfg) {
		log.Info("periodic task", "task", task, "cron", spec)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		svc.Settings.ListenInvalidations(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return periodic.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped", "error", err)
		panic("scheduler stopped: " + err.Error())
	}
	log.Info("scheduler stopped")
}
