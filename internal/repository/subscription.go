package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fedimux/internal/model"
)

type subscriptionRepository struct {
	db *sqlx.DB
}

func NewSubscriptionRepository(db *sqlx.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Upsert creates or refreshes the subscription record for an access token.
// One record per token: re-subscribing replaces the domain and endpoint.
func (r *subscriptionRepository) Upsert(ctx context.Context, record *model.SubscriptionRecord) error {
	query := `
		INSERT INTO subscription_records (access_token, domain, endpoint)
		VALUES ($1, $2, $3)
		ON CONFLICT (access_token) DO UPDATE SET
			domain = EXCLUDED.domain,
			endpoint = EXCLUDED.endpoint
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		record.AccessToken, record.Domain, record.Endpoint,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert subscription record: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) GetByAccessToken(ctx context.Context, accessToken string) (*model.SubscriptionRecord, error) {
	query := `
		SELECT id, access_token, domain, endpoint, created_at
		FROM subscription_records
		WHERE access_token = $1
	`
	var record model.SubscriptionRecord
	err := r.db.GetContext(ctx, &record, query, accessToken)
	if err == sql.ErrNoRows {
		return nil, model.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription record: %w", err)
	}
	return &record, nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, accessToken string) error {
	query := `DELETE FROM subscription_records WHERE access_token = $1`
	if _, err := r.db.ExecContext(ctx, query, accessToken); err != nil {
		return fmt.Errorf("delete subscription record: %w", err)
	}
	return nil
}
