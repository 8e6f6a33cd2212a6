package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fedimux/internal/model"
)

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (domain, user_id, username, access_token, app_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		account.Domain, account.UserID, account.Username,
		account.AccessToken, account.AppToken,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.ErrAccountExists
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *accountRepository) List(ctx context.Context) ([]model.Account, error) {
	query := `
		SELECT id, domain, user_id, username, access_token, app_token, created_at
		FROM accounts
		ORDER BY created_at ASC
	`
	var accounts []model.Account
	if err := r.db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (r *accountRepository) GetByAccessToken(ctx context.Context, accessToken string) (*model.Account, error) {
	query := `
		SELECT id, domain, user_id, username, access_token, app_token, created_at
		FROM accounts
		WHERE access_token = $1
	`
	var account model.Account
	err := r.db.GetContext(ctx, &account, query, accessToken)
	if err == sql.ErrNoRows {
		return nil, model.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account by access token: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) GetByDomainUserID(ctx context.Context, domain, userID string) (*model.Account, error) {
	query := `
		SELECT id, domain, user_id, username, access_token, app_token, created_at
		FROM accounts
		WHERE domain = $1 AND user_id = $2
	`
	var account model.Account
	err := r.db.GetContext(ctx, &account, query, domain, userID)
	if err == sql.ErrNoRows {
		return nil, model.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// Delete removes a signed-out account and returns the deleted row so callers
// can run subscription cleanup with its access token.
func (r *accountRepository) Delete(ctx context.Context, domain, userID string) (*model.Account, error) {
	query := `
		DELETE FROM accounts
		WHERE domain = $1 AND user_id = $2
		RETURNING id, domain, user_id, username, access_token, app_token, created_at
	`
	var account model.Account
	err := r.db.GetContext(ctx, &account, query, domain, userID)
	if err == sql.ErrNoRows {
		return nil, model.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete account: %w", err)
	}
	return &account, nil
}
