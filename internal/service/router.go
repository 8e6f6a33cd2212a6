package service

import (
	"context"
	"errors"
	"log"

	"fedimux/internal/cache"
	"fedimux/internal/mastodon"
	"fedimux/internal/model"
	"fedimux/internal/repository"
)

// NotificationFetcher is the remote fetch-notifications call used for the
// best-effort timeline refresh.
type NotificationFetcher interface {
	Notifications(ctx context.Context, domain, maxID, accessToken string) ([]mastodon.Notification, error)
}

// SubscriptionCleaner retires subscriptions whose account has signed out.
type SubscriptionCleaner interface {
	CancelIfDetached(ctx context.Context, accessToken string) error
}

// BadgeInvalidator receives the counter-invalidation signal.
type BadgeInvalidator interface {
	Invalidate()
}

// PushRouter consumes inbound push envelopes: it resolves the owning
// account, bumps that account's unread counter, refreshes its notification
// timeline, retires detached subscriptions, and always signals the badge
// aggregator.
type PushRouter struct {
	accounts repository.AccountRepository
	registry *NotificationRegistry
	counters cache.CounterStore
	fetcher  NotificationFetcher
	cleaner  SubscriptionCleaner
	badge    BadgeInvalidator
}

func NewPushRouter(
	accounts repository.AccountRepository,
	registry *NotificationRegistry,
	counters cache.CounterStore,
	fetcher NotificationFetcher,
	cleaner SubscriptionCleaner,
	badge BadgeInvalidator,
) *PushRouter {
	return &PushRouter{
		accounts: accounts,
		registry: registry,
		counters: counters,
		fetcher:  fetcher,
		cleaner:  cleaner,
		badge:    badge,
	}
}

// Handle consumes one envelope. Refresh and cleanup are best-effort: their
// failures are logged and swallowed, and the invalidation signal fires no
// matter what.
func (r *PushRouter) Handle(ctx context.Context, envelope model.PushEnvelope) error {
	defer r.badge.Invalidate()

	acct, err := r.accounts.GetByAccessToken(ctx, envelope.AccessToken)
	if err != nil {
		if !errors.Is(err, model.ErrAccountNotFound) {
			log.Printf("[PushRouter] account lookup failed: %v", err)
		}
		// The token may belong to an account that just signed out;
		// try to retire its subscription. Retried on the next push
		// for the same token if this attempt fails.
		if cerr := r.cleaner.CancelIfDetached(ctx, envelope.AccessToken); cerr != nil {
			log.Printf("[PushRouter] subscription cleanup failed: %v", cerr)
		}
		return nil
	}

	r.registry.Dequeue(acct.Domain, acct.UserID)

	if _, err := r.counters.Increment(ctx, acct.AccessToken, 1); err != nil {
		log.Printf("[PushRouter] counter increment failed: user=%s err=%v", acct.UserID, err)
	}

	if _, err := r.fetcher.Notifications(ctx, acct.Domain, "", acct.AccessToken); err != nil {
		log.Printf("[PushRouter] notification refresh failed: domain=%s user=%s err=%v",
			acct.Domain, acct.UserID, err)
	}

	return nil
}
