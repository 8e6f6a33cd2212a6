package service

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"fedimux/internal/model"
	"fedimux/internal/repository"
)

// SubscriptionClient covers the push-subscription remote calls.
type SubscriptionClient interface {
	CreateSubscription(ctx context.Context, domain, accessToken string, query model.SubscriptionQuery) error
	CancelSubscription(ctx context.Context, domain, accessToken string) error
}

// DefaultAlerts subscribes to every notification kind.
var DefaultAlerts = model.SubscriptionAlerts{
	Follow:        true,
	FollowRequest: true,
	Favourite:     true,
	Reblog:        true,
	Mention:       true,
}

// SubscriptionService manages the lifecycle of push subscriptions: creating
// them for a device token and cancelling the ones left behind by sign-out.
type SubscriptionService struct {
	accounts repository.AccountRepository
	records  repository.SubscriptionRepository
	client   SubscriptionClient
	keys     model.KeyMaterial
}

func NewSubscriptionService(
	accounts repository.AccountRepository,
	records repository.SubscriptionRepository,
	client SubscriptionClient,
	keys model.KeyMaterial,
) *SubscriptionService {
	return &SubscriptionService{
		accounts: accounts,
		records:  records,
		client:   client,
		keys:     keys,
	}
}

// BuildSubscribeQuery assembles the create-subscription body for a device
// token: delivery endpoint base joined with the hex form of the token, plus
// the web-push keys base64url-encoded. Pure data transformation, no side
// effects.
func BuildSubscribeQuery(deviceToken []byte, keys model.KeyMaterial, alerts model.SubscriptionAlerts) model.SubscriptionQuery {
	endpoint := strings.TrimRight(keys.Endpoint, "/") + "/" + hex.EncodeToString(deviceToken)

	return model.SubscriptionQuery{
		Subscription: model.QuerySubscription{
			Endpoint: endpoint,
			Keys: model.SubscriptionKeys{
				P256DH: base64.RawURLEncoding.EncodeToString(keys.P256DH),
				Auth:   base64.RawURLEncoding.EncodeToString(keys.Auth),
			},
		},
		Data: model.QueryData{Alerts: alerts},
	}
}

// Subscribe registers a push subscription for a signed-in account and
// persists the record that later lets a detached token find its domain.
func (s *SubscriptionService) Subscribe(ctx context.Context, domain, userID string, deviceToken []byte) error {
	acct, err := s.accounts.GetByDomainUserID(ctx, domain, userID)
	if err != nil {
		return err
	}

	query := BuildSubscribeQuery(deviceToken, s.keys, DefaultAlerts)
	if err := s.client.CreateSubscription(ctx, acct.Domain, acct.AccessToken, query); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}

	record := &model.SubscriptionRecord{
		AccessToken: acct.AccessToken,
		Domain:      acct.Domain,
		Endpoint:    query.Subscription.Endpoint,
	}
	if err := s.records.Upsert(ctx, record); err != nil {
		return err
	}

	log.Printf("[SubscriptionService] Subscribe OK: domain=%s user=%s", acct.Domain, acct.UserID)
	return nil
}

// CancelIfDetached cancels the push subscription behind an access token that
// no longer belongs to a signed-in account. Nothing to do when the account
// is still signed in or no record exists. The record is deleted only after
// a successful cancel, so a failure is retried the next time a push arrives
// for the same token.
func (s *SubscriptionService) CancelIfDetached(ctx context.Context, accessToken string) error {
	_, err := s.accounts.GetByAccessToken(ctx, accessToken)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrAccountNotFound) {
		return err
	}

	record, err := s.records.GetByAccessToken(ctx, accessToken)
	if errors.Is(err, model.ErrSubscriptionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.client.CancelSubscription(ctx, record.Domain, accessToken); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}

	if err := s.records.Delete(ctx, accessToken); err != nil {
		return err
	}

	log.Printf("[SubscriptionService] Cancelled detached subscription: domain=%s", record.Domain)
	return nil
}
