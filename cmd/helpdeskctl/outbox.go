package main

import (
	"context"
	"fmt"

	"helpdesk_backend/internal/bootstrap"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newOutboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Notification outbox tools",
	}

	var orgID string
	cmd.PersistentFlags().StringVar(&orgID, "org", "", "Organization ID (required for requeue and cancel)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "process",
			Short: "Deliver one batch of due notifications",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withServices(cmd, func(ctx context.Context, svc *bootstrap.Services) (any, error) {
					return svc.Worker.ProcessBatch(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Recover stuck notifications and expire stale ones",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withServices(cmd, func(ctx context.Context, svc *bootstrap.Services) (any, error) {
					return svc.Sweeper.Sweep(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "requeue <notification-id>",
			Short: "Move a failed notification back to pending",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return operatorAction(cmd, orgID, args[0], "requeued", func(ctx context.Context, svc *bootstrap.Services, org, id uuid.UUID) (bool, error) {
					return svc.Outbox.Requeue(ctx, org, id)
				})
			},
		},
		&cobra.Command{
			Use:   "cancel <notification-id>",
			Short: "Cancel a pending notification",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return operatorAction(cmd, orgID, args[0], "cancelled", func(ctx context.Context, svc *bootstrap.Services, org, id uuid.UUID) (bool, error) {
					return svc.Outbox.Cancel(ctx, org, id)
				})
			},
		},
	)
	return cmd
}

func operatorAction(cmd *cobra.Command, rawOrg, rawID, verb string, apply func(context.Context, *bootstrap.Services, uuid.UUID, uuid.UUID) (bool, error)) error {
	org, err := uuid.Parse(rawOrg)
	if err != nil {
		return fmt.Errorf("--org must be a valid organization id")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid notification id %q", rawID)
	}
	return withServices(cmd, func(ctx context.Context, svc *bootstrap.Services) (any, error) {
		changed, err := apply(ctx, svc, org, id)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, fmt.Errorf("notification %s was not %s: not found or in the wrong state", id, verb)
		}
		return map[string]string{"id": id.String(), "status": verb}, nil
	})
}
