package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"helpdesk_backend/internal/settings/secretbox"
	"helpdesk_backend/platform/redact"
)

const errRepoNotConfigured = "integration repository not configured"

// ConfigRepository reads integration configs. Sensitive settings may be stored
// sealed and are opened on read.
type ConfigRepository struct {
	pool *pgxpool.Pool
	box  *secretbox.Box
}

func NewConfigRepository(pool *pgxpool.Pool, box *secretbox.Box) *ConfigRepository {
	return &ConfigRepository{pool: pool, box: box}
}

// GetEnabled returns the enabled config for provider or ErrNotEnabled.
func (r *ConfigRepository) GetEnabled(ctx context.Context, organizationID uuid.UUID, provider Provider) (Config, error) {
	if r == nil || r.pool == nil {
		return Config{}, errors.New(errRepoNotConfigured)
	}
	var (
		cfg      Config
		name     string
		settings []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, organization_id, provider, is_enabled, settings
		 FROM integration_configs
		 WHERE organization_id = $1 AND provider = $2 AND is_enabled`,
		organizationID, string(provider),
	).Scan(&cfg.ID, &cfg.OrganizationID, &name, &cfg.Enabled, &settings)
	if errors.Is(err, pgx.ErrNoRows) {
		return Config{}, ErrNotEnabled
	}
	if err != nil {
		return Config{}, err
	}
	cfg.Provider = Provider(name)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &cfg.Settings); err != nil {
			return Config{}, fmt.Errorf("decode %s settings: %w", provider, err)
		}
	}
	if err := r.openSecrets(cfg.Settings); err != nil {
		return Config{}, fmt.Errorf("open %s settings: %w", provider, err)
	}
	return cfg, nil
}

func (r *ConfigRepository) openSecrets(settings map[string]any) error {
	for key, value := range settings {
		s, ok := value.(string)
		if !ok || !redact.IsSensitiveKey(key) {
			continue
		}
		opened, err := r.box.Open(s)
		if err != nil {
			return err
		}
		settings[key] = opened
	}
	return nil
}

// LogEntry is the PENDING row written before a call.
type LogEntry struct {
	OrganizationID uuid.UUID
	Provider       Provider
	Action         string
	TicketID       *uuid.UUID
	Request        map[string]any
}

// LogCompletion moves a PENDING row to SUCCESS or FAILED.
type LogCompletion struct {
	Status   string
	Request  map[string]any
	Response map[string]any
	Error    string
	Duration time.Duration
}

// LogRepository appends to integration_logs.
type LogRepository struct {
	pool *pgxpool.Pool
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

func (r *LogRepository) Start(ctx context.Context, e LogEntry) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errors.New(errRepoNotConfigured)
	}
	request, err := marshalSnapshot(e.Request)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	_, err = r.pool.Exec(ctx,
		`INSERT INTO integration_logs (id, organization_id, provider, action, ticket_id, status, request_payload)
		 VALUES ($1, $2, $3, $4, $5, 'PENDING', $6)`,
		id, e.OrganizationID, string(e.Provider), e.Action, e.TicketID, request,
	)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Finish only updates rows that are still PENDING.
func (r *LogRepository) Finish(ctx context.Context, id uuid.UUID, c LogCompletion) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	request, err := marshalSnapshot(c.Request)
	if err != nil {
		return err
	}
	response, err := marshalSnapshot(c.Response)
	if err != nil {
		return err
	}
	var errorMessage *string
	if c.Error != "" {
		errorMessage = &c.Error
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE integration_logs
		 SET status = $2, request_payload = COALESCE($3, request_payload), response_payload = $4,
		     error_message = $5, duration_ms = $6, completed_at = now()
		 WHERE id = $1 AND status = 'PENDING'`,
		id, c.Status, request, response, errorMessage, c.Duration.Milliseconds(),
	)
	return err
}

func marshalSnapshot(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	out, err := json.Marshal(redact.Map(m))
	if err != nil {
		return nil, fmt.Errorf("marshal log snapshot: %w", err)
	}
	return out, nil
}
