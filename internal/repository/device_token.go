package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fedimux/internal/model"
)

type deviceTokenRepository struct {
	db *sqlx.DB
}

func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Upsert registers a device token for badge pushes. The token is unique, so
// a refreshed token simply bumps its platform and timestamp.
func (r *deviceTokenRepository) Upsert(ctx context.Context, token, platform string) error {
	query := `
		INSERT INTO device_tokens (token, platform, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (token) DO UPDATE SET
			platform = EXCLUDED.platform,
			updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, token, platform); err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

// List returns all registered device tokens, newest first.
func (r *deviceTokenRepository) List(ctx context.Context) ([]model.DeviceToken, error) {
	query := `
		SELECT id, token, platform, created_at, updated_at
		FROM device_tokens
		ORDER BY updated_at DESC
	`
	var tokens []model.DeviceToken
	if err := r.db.SelectContext(ctx, &tokens, query); err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	return tokens, nil
}

// Delete removes a device token (e.g. after the push service reports it dead).
func (r *deviceTokenRepository) Delete(ctx context.Context, token string) error {
	query := `DELETE FROM device_tokens WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}
