package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"helpdesk_backend/internal/bootstrap"
	"helpdesk_backend/platform/config"
	"helpdesk_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

type env struct {
	cfg  *config.Config
	log  *logger.Logger
	pool *pgxpool.Pool
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.Env)
	pool, err := bootstrap.ConnectPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}

func (e *env) Close() {
	e.pool.Close()
}

// withServices runs fn against fully wired services and closes them afterwards.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *bootstrap.Services) (any, error)) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	svc, err := bootstrap.Build(ctx, e.cfg, e.pool, e.log)
	if err != nil {
		return fmt.Errorf("failed to wire services: %w", err)
	}
	defer svc.Close()

	result, err := fn(ctx, svc)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
