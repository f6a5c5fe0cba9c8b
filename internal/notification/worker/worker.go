// Package worker delivers outbox notifications. A run claims due rows one at a
// time, renders and addresses them, dispatches them and records the outcome.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"helpdesk_backend/internal/channel"
	"helpdesk_backend/internal/directory"
	"helpdesk_backend/internal/dispatch"
	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/notification/templates"
	"helpdesk_backend/internal/settings"
	"helpdesk_backend/platform/logger"
	"helpdesk_backend/platform/metrics"
	"helpdesk_backend/platform/redact"
)

// DefaultBatchSize bounds the number of rows one run looks at.
const DefaultBatchSize = 50

const maxErrorLength = 1000

// Store is the subset of the outbox repository the worker needs.
type Store interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.Notification, error)
	Claim(ctx context.Context, id uuid.UUID) (outbox.Notification, bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, externalID string, sentAt time.Time) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time, errorMessage string) error
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, failedAt time.Time, errorMessage string) error
}

type TemplateSource interface {
	GetByID(ctx context.Context, organizationID, id uuid.UUID) (templates.Template, error)
}

type Directory interface {
	EmailForUser(ctx context.Context, organizationID, userID uuid.UUID) (string, error)
	PhoneForUser(ctx context.Context, organizationID, userID uuid.UUID) (string, error)
}

type SettingsSource interface {
	Get(ctx context.Context, organizationID uuid.UUID) (settings.ChannelSettings, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, s settings.ChannelSettings, ch outbox.Channel, msg channel.Message) dispatch.Result
}

// Deps bundles the worker's collaborators.
type Deps struct {
	Store      Store
	Templates  TemplateSource
	Directory  Directory
	Settings   SettingsSource
	Dispatcher Dispatcher
	Log        *logger.Logger
}

type Worker struct {
	store      Store
	templates  TemplateSource
	directory  Directory
	settings   SettingsSource
	dispatcher Dispatcher
	log        *logger.Logger
	batchSize  int
	backoff    Backoff
	now        func() time.Time
}

// Option customizes a Worker.
type Option func(*Worker)

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithBackoff(b Backoff) Option {
	return func(w *Worker) { w.backoff = b }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func New(deps Deps, opts ...Option) *Worker {
	w := &Worker{
		store:      deps.Store,
		templates:  deps.Templates,
		directory:  deps.Directory,
		settings:   deps.Settings,
		dispatcher: deps.Dispatcher,
		log:        deps.Log,
		batchSize:  DefaultBatchSize,
		backoff:    DefaultBackoff(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// BatchResult counts what happened to the rows a run looked at.
type BatchResult struct {
	Selected int `json:"selected"`
	Claimed  int `json:"claimed"`
	Sent     int `json:"sent"`
	Retried  int `json:"retried"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// ProcessBatch handles up to the batch size of due rows, oldest first. Only a
// failure to list rows is returned; per-row failures are recorded on the row.
func (w *Worker) ProcessBatch(ctx context.Context) (BatchResult, error) {
	start := time.Now()
	defer func() { metrics.OutboxBatchDuration.Observe(time.Since(start).Seconds()) }()

	var result BatchResult
	due, err := w.store.ListDue(ctx, w.now(), w.batchSize)
	if err != nil {
		return result, fmt.Errorf("list due notifications: %w", err)
	}
	result.Selected = len(due)

	for _, n := range due {
		if ctx.Err() != nil {
			break
		}
		row, claimed, err := w.store.Claim(ctx, n.ID)
		if err != nil {
			w.log.Error("outbox claim failed", "outboxId", n.ID, "error", err)
			result.Skipped++
			continue
		}
		if !claimed {
			metrics.OutboxClaimConflicts.Inc()
			result.Skipped++
			continue
		}
		result.Claimed++

		switch w.process(ctx, row) {
		case outbox.StatusSent:
			result.Sent++
		case outbox.StatusFailed:
			result.Failed++
		default:
			result.Retried++
		}
	}

	if result.Selected > 0 {
		w.log.Info("outbox batch processed",
			"selected", result.Selected,
			"claimed", result.Claimed,
			"sent", result.Sent,
			"retried", result.Retried,
			"failed", result.Failed,
			"skipped", result.Skipped,
		)
	}
	return result, nil
}

// process handles one claimed row, as returned by Claim, and returns the status
// it was left in.
func (w *Worker) process(ctx context.Context, n outbox.Notification) outbox.Status {
	log := w.log.With("outboxId", n.ID, "orgId", n.OrganizationID, "channel", string(n.Channel))

	msg, err := w.prepare(ctx, n)
	if err != nil {
		return w.fail(ctx, log, n, err)
	}

	cfg, err := w.settings.Get(ctx, n.OrganizationID)
	if err != nil {
		return w.fail(ctx, log, n, fmt.Errorf("load channel settings: %w", err))
	}

	res := w.dispatcher.Dispatch(ctx, cfg, n.Channel, msg)
	log.DeliveryAttempt(string(n.Channel), string(res.Provider), n.ID.String(), res.Success, res.ErrorMessage())
	if !res.Success {
		return w.fail(ctx, log, n, res.Err)
	}

	if err := w.store.MarkSent(ctx, n.ID, res.ExternalID, w.now()); err != nil {
		// The provider accepted the message; the row stays PROCESSING until the
		// sweeper releases it.
		log.Error("mark notification sent failed", "error", err)
		return outbox.StatusProcessing
	}
	metrics.NotificationsTerminal.WithLabelValues(string(outbox.StatusSent)).Inc()
	return outbox.StatusSent
}

// prepare renders the message and resolves the recipient address.
func (w *Worker) prepare(ctx context.Context, n outbox.Notification) (channel.Message, error) {
	msg := channel.Message{Subject: n.Subject, Body: n.Body}

	if n.TemplateDataErr != nil {
		return msg, configError(n.TemplateDataErr)
	}
	if n.TemplateData != nil && n.TemplateData.TemplateID != nil {
		tpl, err := w.templates.GetByID(ctx, n.OrganizationID, *n.TemplateData.TemplateID)
		if err != nil {
			if errors.Is(err, templates.ErrNotFound) {
				return msg, configError(err)
			}
			return msg, fmt.Errorf("load template: %w", err)
		}
		rendered := tpl.Render(n.TemplateData.Variables, n.Channel == outbox.ChannelEmail)
		msg.Body = rendered.Body
		if rendered.HasSubject {
			msg.Subject = rendered.Subject
		}
	}

	to, err := w.recipient(ctx, n)
	if err != nil {
		return msg, err
	}
	msg.To = to
	return msg, nil
}

func (w *Worker) recipient(ctx context.Context, n outbox.Notification) (string, error) {
	var (
		direct string
		lookup func(context.Context, uuid.UUID, uuid.UUID) (string, error)
	)
	switch n.Channel {
	case outbox.ChannelEmail:
		direct, lookup = n.RecipientEmail, w.directory.EmailForUser
	case outbox.ChannelWhatsApp, outbox.ChannelSMS:
		direct, lookup = n.RecipientPhone, w.directory.PhoneForUser
	default:
		return "", configError(fmt.Errorf("unsupported channel %q", n.Channel))
	}

	if strings.TrimSpace(direct) != "" {
		return strings.TrimSpace(direct), nil
	}
	if n.RecipientID == nil {
		return "", configError(fmt.Errorf("no %s recipient address", strings.ToLower(string(n.Channel))))
	}
	addr, err := lookup(ctx, n.OrganizationID, *n.RecipientID)
	if errors.Is(err, directory.ErrNoAddress) {
		return "", configError(fmt.Errorf("recipient %s has no %s address", n.RecipientID, strings.ToLower(string(n.Channel))))
	}
	if err != nil {
		return "", fmt.Errorf("resolve recipient: %w", err)
	}
	return addr, nil
}

// fail consumes one retry. The row goes back to PENDING with a backoff or, when
// retries are exhausted, to FAILED.
func (w *Worker) fail(ctx context.Context, log *logger.Logger, n outbox.Notification, cause error) outbox.Status {
	message := failureMessage(cause)
	retryCount := n.RetryCount + 1
	maxRetries := n.MaxRetries
	if maxRetries <= 0 {
		maxRetries = outbox.DefaultMaxRetries
	}
	now := w.now()

	if retryCount >= maxRetries {
		if err := w.store.MarkFailed(ctx, n.ID, retryCount, now, message); err != nil {
			log.Error("mark notification failed failed", "error", err)
		}
		metrics.NotificationsTerminal.WithLabelValues(string(outbox.StatusFailed)).Inc()
		log.Warn("notification failed permanently", "retryCount", retryCount, "error", message)
		return outbox.StatusFailed
	}

	next := now.Add(w.backoff.Next(retryCount))
	if err := w.store.ScheduleRetry(ctx, n.ID, retryCount, next, message); err != nil {
		log.Error("schedule notification retry failed", "error", err)
	}
	log.Info("notification retry scheduled", "retryCount", retryCount, "nextRetryAt", next)
	return outbox.StatusPending
}

type configErr struct{ err error }

func (e configErr) Error() string { return e.err.Error() }
func (e configErr) Unwrap() error { return e.err }

func configError(err error) error { return configErr{err: err} }

// failureMessage redacts the error and prefixes problems that only an operator
// can fix with "config:".
func failureMessage(err error) string {
	if err == nil {
		err = errors.New("unknown delivery failure")
	}
	var ce configErr
	msg := redact.Error(err)
	if errors.As(err, &ce) || dispatch.IsConfigError(err) {
		msg = "config: " + msg
	}
	return redact.Truncate(msg, maxErrorLength)
}
