package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errRepoNotConfigured = "outbox repository not configured"

// ErrNotFound is returned when a notification does not exist in the organization.
var ErrNotFound = errors.New("notification not found")

// Querier is satisfied by *pgxpool.Pool and pgx.Tx so inserts can join a caller's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `id, organization_id, ticket_id, recipient_id, recipient_email, recipient_phone,
	channel, event_type, subject, body, template_data, status, retry_count, max_retries,
	next_retry_at, external_id, error_message, created_at, sent_at, failed_at, updated_at`

const insertNotificationSQL = `INSERT INTO notifications (
	id, organization_id, ticket_id, recipient_id, recipient_email, recipient_phone,
	channel, event_type, subject, body, template_data, status, max_retries)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'PENDING', $12)`

// claimSQL is the compare-and-swap that makes at most one worker own a row. It
// returns the row as claimed so the worker never acts on a stale listing.
const claimSQL = `UPDATE notifications
SET status = 'PROCESSING', updated_at = now()
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + notificationColumns

// requeueSQL gives a non-sent row a fresh retry budget and a fresh expiry TTL.
const requeueSQL = `UPDATE notifications
SET status = 'PENDING', retry_count = 0, next_retry_at = NULL, error_message = NULL,
    failed_at = NULL, updated_at = now()
WHERE id = $1 AND organization_id = $2
  AND status IN ('PENDING', 'FAILED', 'CANCELLED', 'EXPIRED')`

// expireStaleSQL expires PENDING rows nobody has touched since cutoff. Insert,
// retry scheduling and requeue all stamp updated_at, so a requeued row gets a
// fresh TTL.
const expireStaleSQL = `UPDATE notifications
SET status = 'EXPIRED', next_retry_at = NULL, error_message = 'expired before delivery', updated_at = now()
WHERE status = 'PENDING' AND updated_at < $1`

const listDueSQL = `SELECT ` + notificationColumns + `
FROM notifications
WHERE status = 'PENDING' AND (next_retry_at IS NULL OR next_retry_at <= $1)
ORDER BY created_at ASC
LIMIT $2`

func validateInsert(p InsertParams) error {
	if p.OrganizationID == uuid.Nil {
		return fmt.Errorf("organizationId is required")
	}
	if !p.Channel.Valid() {
		return fmt.Errorf("unsupported channel %q", p.Channel)
	}
	if p.EventType == "" {
		return fmt.Errorf("eventType is required")
	}
	if !p.HasRecipient() {
		return fmt.Errorf("a recipient is required")
	}
	return nil
}

func insertArgs(id uuid.UUID, p InsertParams) ([]any, error) {
	var templateData []byte
	if p.TemplateData != nil {
		encoded, err := json.Marshal(p.TemplateData)
		if err != nil {
			return nil, fmt.Errorf("marshal template data: %w", err)
		}
		templateData = encoded
	}
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return []any{
		id, p.OrganizationID, p.TicketID, p.RecipientID, nullString(p.RecipientEmail), nullString(p.RecipientPhone),
		string(p.Channel), p.EventType, p.Subject, p.Body, templateData, maxRetries,
	}, nil
}

// Insert stores one PENDING notification.
func (r *Repository) Insert(ctx context.Context, p InsertParams) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errors.New(errRepoNotConfigured)
	}
	ids, err := InsertBatch(ctx, r.pool, []InsertParams{p})
	if err != nil {
		return uuid.Nil, err
	}
	return ids[0], nil
}

// InsertMany stores several PENDING notifications in one round trip.
func (r *Repository) InsertMany(ctx context.Context, params []InsertParams) ([]uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	return InsertBatch(ctx, r.pool, params)
}

// InsertBatch queues all inserts on q with a pgx.Batch. Passing a pgx.Tx makes the
// inserts part of the caller's transaction.
func InsertBatch(ctx context.Context, q Querier, params []InsertParams) ([]uuid.UUID, error) {
	if len(params) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	ids := make([]uuid.UUID, 0, len(params))
	for _, p := range params {
		if err := validateInsert(p); err != nil {
			return nil, err
		}
		id := uuid.New()
		args, err := insertArgs(id, p)
		if err != nil {
			return nil, err
		}
		batch.Queue(insertNotificationSQL, args...)
		ids = append(ids, id)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()
	for range params {
		if _, err := results.Exec(); err != nil {
			return nil, fmt.Errorf("insert notification: %w", err)
		}
	}
	return ids, nil
}

// GetByID loads a notification by id regardless of organization.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Notification, error) {
	if r == nil || r.pool == nil {
		return Notification{}, errors.New(errRepoNotConfigured)
	}
	row := r.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	return n, err
}

// ListDue returns PENDING rows whose retry time has come, oldest first.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, listDueSQL, now, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListByStatus returns an organization's rows in one status, newest first.
func (r *Repository) ListByStatus(ctx context.Context, organizationID uuid.UUID, status Status, limit int) ([]Notification, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE organization_id = $1 AND status = $2
		 ORDER BY updated_at DESC
		 LIMIT $3`,
		organizationID, string(status), limit,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Claim moves the row from PENDING to PROCESSING and returns it as stored after
// the update. It returns false when another worker (or an operator) changed the
// row first.
func (r *Repository) Claim(ctx context.Context, id uuid.UUID) (Notification, bool, error) {
	if r == nil || r.pool == nil {
		return Notification{}, false, errors.New(errRepoNotConfigured)
	}
	n, err := scanNotification(r.pool.QueryRow(ctx, claimSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, false, nil
	}
	if err != nil {
		return Notification{}, false, err
	}
	return n, true, nil
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, externalID string, sentAt time.Time) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'SENT', sent_at = $2, external_id = $3, error_message = NULL,
		     next_retry_at = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'PROCESSING'`,
		id, sentAt, nullString(externalID),
	)
	return err
}

// ScheduleRetry returns a failed row to PENDING with the next attempt time.
func (r *Repository) ScheduleRetry(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time, errorMessage string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'PENDING', retry_count = $2, next_retry_at = $3, error_message = $4, updated_at = now()
		 WHERE id = $1 AND status = 'PROCESSING'`,
		id, retryCount, nextRetryAt, errorMessage,
	)
	return err
}

// MarkFailed records that the row has exhausted its retries.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, failedAt time.Time, errorMessage string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'FAILED', retry_count = $2, failed_at = $3, error_message = $4,
		     next_retry_at = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'PROCESSING'`,
		id, retryCount, failedAt, errorMessage,
	)
	return err
}

// Requeue resets a non-sent row to a fresh PENDING state. Rows that are SENT or
// currently PROCESSING are left alone and false is returned.
func (r *Repository) Requeue(ctx context.Context, organizationID, id uuid.UUID) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx, requeueSQL, id, organizationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel moves a PENDING row to CANCELLED.
func (r *Repository) Cancel(ctx context.Context, organizationID, id uuid.UUID) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'CANCELLED', next_retry_at = NULL, updated_at = now()
		 WHERE id = $1 AND organization_id = $2 AND status = 'PENDING'`,
		id, organizationID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecoverStale releases rows stuck in PROCESSING since before leaseCutoff. Each
// recovery consumes a retry; rows that run out become FAILED.
func (r *Repository) RecoverStale(ctx context.Context, leaseCutoff, now time.Time, retryAt time.Time) (recovered, failed int, err error) {
	if r == nil || r.pool == nil {
		return 0, 0, errors.New(errRepoNotConfigured)
	}
	rows, err := r.pool.Query(ctx,
		`UPDATE notifications
		 SET retry_count = LEAST(retry_count + 1, max_retries),
		     status = CASE WHEN retry_count + 1 >= max_retries THEN 'FAILED' ELSE 'PENDING' END,
		     next_retry_at = CASE WHEN retry_count + 1 >= max_retries THEN NULL ELSE $3 END,
		     failed_at = CASE WHEN retry_count + 1 >= max_retries THEN $2 ELSE failed_at END,
		     error_message = 'processing lease expired',
		     updated_at = now()
		 WHERE status = 'PROCESSING' AND updated_at < $1
		 RETURNING status`,
		leaseCutoff, now, retryAt,
	)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return 0, 0, err
		}
		if Status(status) == StatusFailed {
			failed++
		} else {
			recovered++
		}
	}
	return recovered, failed, rows.Err()
}

// ExpireStale moves PENDING rows last queued before cutoff to EXPIRED.
func (r *Repository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx, expireStaleSQL, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collect(rows pgx.Rows) ([]Notification, error) {
	defer rows.Close()
	var results []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanNotification(row pgx.Row) (Notification, error) {
	var (
		n              Notification
		recipientEmail *string
		recipientPhone *string
		templateData   []byte
		status         string
		channel        string
		externalID     *string
		errorMessage   *string
	)
	err := row.Scan(
		&n.ID, &n.OrganizationID, &n.TicketID, &n.RecipientID, &recipientEmail, &recipientPhone,
		&channel, &n.EventType, &n.Subject, &n.Body, &templateData, &status, &n.RetryCount, &n.MaxRetries,
		&n.NextRetryAt, &externalID, &errorMessage, &n.CreatedAt, &n.SentAt, &n.FailedAt, &n.UpdatedAt,
	)
	if err != nil {
		return Notification{}, err
	}
	n.Channel = Channel(channel)
	n.Status = Status(status)
	n.RecipientEmail = deref(recipientEmail)
	n.RecipientPhone = deref(recipientPhone)
	n.ExternalID = deref(externalID)
	n.ErrorMessage = deref(errorMessage)
	n.TemplateData, n.TemplateDataErr = DecodeTemplateData(templateData)
	return n, nil
}

// DecodeTemplateData parses a stored template_data document. Rows may be
// written by other producers, so a malformed document is reported to the caller
// instead of failing the whole listing.
func DecodeTemplateData(raw []byte) (*TemplateData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var td TemplateData
	if err := json.Unmarshal(raw, &td); err != nil {
		return nil, fmt.Errorf("decode template data: %w", err)
	}
	return &td, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
