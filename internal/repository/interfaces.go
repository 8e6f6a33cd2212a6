package repository

import (
	"context"

	"fedimux/internal/model"
)

// AccountRepository provides the set of currently signed-in accounts. The
// services consume this as an injected collaborator; sign-in rows arrive
// with their tokens already issued.
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	List(ctx context.Context) ([]model.Account, error)
	GetByAccessToken(ctx context.Context, accessToken string) (*model.Account, error)
	GetByDomainUserID(ctx context.Context, domain, userID string) (*model.Account, error)
	Delete(ctx context.Context, domain, userID string) (*model.Account, error)
}

// SubscriptionRepository persists the access-token -> issuing-domain
// association behind each push subscription.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, record *model.SubscriptionRecord) error
	GetByAccessToken(ctx context.Context, accessToken string) (*model.SubscriptionRecord, error)
	Delete(ctx context.Context, accessToken string) error
}

// DeviceTokenRepository persists device tokens that receive badge pushes.
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, token, platform string) error
	List(ctx context.Context) ([]model.DeviceToken, error)
	Delete(ctx context.Context, token string) error
}
