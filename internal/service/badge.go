package service

import (
	"context"
	"fmt"
	"log"

	"fedimux/internal/cache"
	"fedimux/internal/model"
	"fedimux/internal/repository"
)

// BadgeSink receives the recomputed aggregate badge and the unread-shortcut
// list. The production sink delivers them to registered devices over FCM.
type BadgeSink interface {
	PublishBadge(ctx context.Context, total int) error
	PublishShortcuts(ctx context.Context, items []model.UnreadShortcut) error
}

// BadgeAggregator derives the single application badge from the per-account
// unread counters. Two triggers exist — the signed-in account set changed,
// or a counter was invalidated — and both collapse into the same recompute.
// Recompute is idempotent, so coalescing concurrent triggers is safe.
type BadgeAggregator struct {
	accounts repository.AccountRepository
	counters cache.CounterStore
	sink     BadgeSink

	// Buffered size 1 so triggers coalesce instead of queueing.
	accountsCh   chan struct{}
	invalidateCh chan struct{}
}

func NewBadgeAggregator(
	accounts repository.AccountRepository,
	counters cache.CounterStore,
	sink BadgeSink,
) *BadgeAggregator {
	return &BadgeAggregator{
		accounts:     accounts,
		counters:     counters,
		sink:         sink,
		accountsCh:   make(chan struct{}, 1),
		invalidateCh: make(chan struct{}, 1),
	}
}

// AccountsChanged signals that the signed-in account set changed.
func (a *BadgeAggregator) AccountsChanged() {
	select {
	case a.accountsCh <- struct{}{}:
	default:
	}
}

// Invalidate signals that some per-account counter changed.
func (a *BadgeAggregator) Invalidate() {
	select {
	case a.invalidateCh <- struct{}{}:
	default:
	}
}

// Run fans both trigger sources into recompute until ctx is cancelled.
func (a *BadgeAggregator) Run(ctx context.Context) {
	log.Printf("[BadgeAggregator] Started")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[BadgeAggregator] Stopped")
			return
		case <-a.accountsCh:
		case <-a.invalidateCh:
		}

		if _, _, err := a.Recompute(ctx); err != nil {
			log.Printf("[BadgeAggregator] Recompute FAILED: %v", err)
		}
	}
}

// Recompute sums the unread counters of exactly the currently signed-in
// accounts, persists the total in the badge slot, and publishes the badge
// plus one shortcut per account with unread notifications. Calling it twice
// with unchanged inputs produces identical outputs.
func (a *BadgeAggregator) Recompute(ctx context.Context) (int, []model.UnreadShortcut, error) {
	accounts, err := a.accounts.List(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("list accounts: %w", err)
	}

	total := 0
	items := []model.UnreadShortcut{}
	for _, acct := range accounts {
		count, err := a.counters.Get(ctx, acct.AccessToken)
		if err != nil {
			return 0, nil, fmt.Errorf("read counter for %s: %w", acct.UserID, err)
		}
		total += count
		if count > 0 {
			items = append(items, model.UnreadShortcut{
				Type:        model.UnreadShortcutType,
				Title:       acct.Acct(),
				Subtitle:    model.PluralUnread(count),
				AccessToken: acct.AccessToken,
			})
		}
	}

	if err := a.counters.SetBadgeTotal(ctx, total); err != nil {
		// Badge delivery must not depend on the persisted slot.
		log.Printf("[BadgeAggregator] persist badge slot failed: %v", err)
	}

	if err := a.sink.PublishBadge(ctx, total); err != nil {
		log.Printf("[BadgeAggregator] publish badge failed: %v", err)
	}
	if err := a.sink.PublishShortcuts(ctx, items); err != nil {
		log.Printf("[BadgeAggregator] publish shortcuts failed: %v", err)
	}

	log.Printf("[BadgeAggregator] Recompute OK: accounts=%d badge=%d shortcuts=%d",
		len(accounts), total, len(items))
	return total, items, nil
}

// ClearForActiveAccount zeroes the active account's counter and triggers a
// recompute. Called when the user opens their notification list. The active
// account is the first signed-in account.
func (a *BadgeAggregator) ClearForActiveAccount(ctx context.Context) error {
	accounts, err := a.accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil
	}

	if err := a.counters.Set(ctx, accounts[0].AccessToken, 0); err != nil {
		return err
	}

	a.Invalidate()
	return nil
}

// LogBadgeSink is the fallback sink used when no push credentials are
// configured. It only logs the outputs.
type LogBadgeSink struct{}

func (LogBadgeSink) PublishBadge(_ context.Context, total int) error {
	log.Printf("[BadgeSink] badge=%d", total)
	return nil
}

func (LogBadgeSink) PublishShortcuts(_ context.Context, items []model.UnreadShortcut) error {
	log.Printf("[BadgeSink] shortcuts=%d", len(items))
	return nil
}
