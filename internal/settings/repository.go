package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"helpdesk_backend/internal/settings/secretbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
	box  *secretbox.Box
}

func NewRepository(pool *pgxpool.Pool, box *secretbox.Box) *Repository {
	return &Repository{pool: pool, box: box}
}

// Load returns decrypted settings. A missing row yields zero settings (nothing enabled).
func (r *Repository) Load(ctx context.Context, organizationID uuid.UUID) (ChannelSettings, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT settings FROM organization_channel_settings WHERE organization_id = $1`,
		organizationID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ChannelSettings{}, nil
	}
	if err != nil {
		return ChannelSettings{}, fmt.Errorf("load channel settings: %w", err)
	}
	return decode(raw, r.box)
}

// Save encrypts credentials and upserts the settings row.
func (r *Repository) Save(ctx context.Context, organizationID uuid.UUID, s ChannelSettings) error {
	raw, err := encode(s, r.box)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO organization_channel_settings (organization_id, settings, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (organization_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`,
		organizationID, raw,
	)
	return err
}

func encode(s ChannelSettings, box *secretbox.Box) ([]byte, error) {
	for _, field := range s.secretFields() {
		sealed, err := box.Seal(*field)
		if err != nil {
			return nil, fmt.Errorf("seal channel secret: %w", err)
		}
		*field = sealed
	}
	return json.Marshal(s)
}

func decode(raw []byte, box *secretbox.Box) (ChannelSettings, error) {
	var s ChannelSettings
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s); err != nil {
			return ChannelSettings{}, fmt.Errorf("decode channel settings: %w", err)
		}
	}
	for _, field := range s.secretFields() {
		opened, err := box.Open(*field)
		if err != nil {
			return ChannelSettings{}, fmt.Errorf("open channel secret: %w", err)
		}
		*field = opened
	}
	return s, nil
}
