package service

import (
	"context"
	"sync"
	"testing"

	"fedimux/internal/model"
)

type mockBadgeSink struct {
	mu        sync.Mutex
	badges    []int
	shortcuts [][]model.UnreadShortcut
}

func (m *mockBadgeSink) PublishBadge(_ context.Context, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.badges = append(m.badges, total)
	return nil
}

func (m *mockBadgeSink) PublishShortcuts(_ context.Context, items []model.UnreadShortcut) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortcuts = append(m.shortcuts, items)
	return nil
}

func (m *mockBadgeSink) lastBadge(t *testing.T) int {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.badges) == 0 {
		t.Fatal("no badge was published")
	}
	return m.badges[len(m.badges)-1]
}

var (
	accountAlice = model.Account{ID: 1, Domain: "mastodon.example", UserID: "u1", Username: "alice", AccessToken: "token-alice"}
	accountBob   = model.Account{ID: 2, Domain: "other.example", UserID: "u2", Username: "bob", AccessToken: "token-bob"}
)

func TestBadgeAggregator_RecomputeSumsSignedInAccounts(t *testing.T) {
	ctx := context.Background()
	counters := newMemoryCounterStore()
	counters.Set(ctx, accountAlice.AccessToken, 3)
	counters.Set(ctx, accountBob.AccessToken, 5)
	// A counter with no matching account must not contribute.
	counters.Set(ctx, "orphan-token", 11)

	sink := &mockBadgeSink{}
	agg := NewBadgeAggregator(signedInAccounts(accountAlice, accountBob), counters, sink)

	total, items, err := agg.Recompute(ctx)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if total != 8 {
		t.Errorf("badge = %d, want 8", total)
	}
	if len(items) != 2 {
		t.Fatalf("shortcuts = %d, want 2", len(items))
	}
	if items[0].Title != "@alice@mastodon.example" {
		t.Errorf("shortcut title = %q", items[0].Title)
	}
	if items[1].Subtitle != "5 unread notifications" {
		t.Errorf("shortcut subtitle = %q", items[1].Subtitle)
	}
	if sink.lastBadge(t) != 8 {
		t.Errorf("published badge = %d, want 8", sink.lastBadge(t))
	}

	// The persisted slot mirrors the published value.
	if slot, _ := counters.BadgeTotal(ctx); slot != 8 {
		t.Errorf("persisted badge slot = %d, want 8", slot)
	}
}

func TestBadgeAggregator_RecomputeIdempotent(t *testing.T) {
	ctx := context.Background()
	counters := newMemoryCounterStore()
	counters.Set(ctx, accountAlice.AccessToken, 3)

	sink := &mockBadgeSink{}
	agg := NewBadgeAggregator(signedInAccounts(accountAlice), counters, sink)

	first, _, err := agg.Recompute(ctx)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	second, _, err := agg.Recompute(ctx)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if first != second {
		t.Errorf("recompute with unchanged inputs diverged: %d then %d", first, second)
	}
}

func TestBadgeAggregator_SingularSubtitle(t *testing.T) {
	ctx := context.Background()
	counters := newMemoryCounterStore()
	counters.Set(ctx, accountAlice.AccessToken, 1)

	sink := &mockBadgeSink{}
	agg := NewBadgeAggregator(signedInAccounts(accountAlice), counters, sink)

	_, items, err := agg.Recompute(ctx)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if len(items) != 1 || items[0].Subtitle != "1 unread notification" {
		t.Errorf("unexpected shortcuts: %+v", items)
	}
}

func TestBadgeAggregator_ZeroCountersNoShortcuts(t *testing.T) {
	ctx := context.Background()
	counters := newMemoryCounterStore()

	sink := &mockBadgeSink{}
	agg := NewBadgeAggregator(signedInAccounts(accountAlice, accountBob), counters, sink)

	total, items, err := agg.Recompute(ctx)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if total != 0 {
		t.Errorf("badge = %d, want 0", total)
	}
	if len(items) != 0 {
		t.Errorf("accounts without unread notifications get no shortcut: %+v", items)
	}
}

// Signing out an account drops its contribution on the next recompute even
// though its counter still exists.
func TestBadgeAggregator_SignOutDropsContribution(t *testing.T) {
	ctx := context.Background()
	counters := newMemoryCounterStore()
	counters.Set(ctx, accountAlice.AccessToken, 3)
	counters.Set(ctx, accountBob.AccessToken, 5)

	sink := &mockBadgeSink{}
	agg := NewBadgeAggregator(signedInAccounts(accountBob), counters, sink)

	total, items, err := agg.Recompute(ctx)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if total != 5 {
		t.Errorf("badge = %d, want 5 after alice signed out", total)
	}
	if len(items) != 1 || items[0].Title != "@bob@other.example" {
		t.Errorf("unexpected shortcuts: %+v", items)
	}
}

func TestBadgeAggregator_ClearForActiveAccount(t *testing.T) {
	ctx := context.Background()
	counters := newMemoryCounterStore()
	counters.Set(ctx, accountAlice.AccessToken, 3)
	counters.Set(ctx, accountBob.AccessToken, 5)

	sink := &mockBadgeSink{}
	agg := NewBadgeAggregator(signedInAccounts(accountAlice, accountBob), counters, sink)

	if err := agg.ClearForActiveAccount(ctx); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// The active account is the first signed-in account.
	if count, _ := counters.Get(ctx, accountAlice.AccessToken); count != 0 {
		t.Errorf("active account counter = %d, want 0", count)
	}
	if count, _ := counters.Get(ctx, accountBob.AccessToken); count != 5 {
		t.Errorf("other counters must survive: got %d, want 5", count)
	}

	total, _, err := agg.Recompute(ctx)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if total != 5 {
		t.Errorf("badge = %d, want 5 after clearing the active account", total)
	}
}

func TestBadgeAggregator_ClearWithNoAccounts(t *testing.T) {
	counters := newMemoryCounterStore()
	sink := &mockBadgeSink{}
	agg := NewBadgeAggregator(signedInAccounts(), counters, sink)

	if err := agg.ClearForActiveAccount(context.Background()); err != nil {
		t.Fatalf("no accounts is not an error: %v", err)
	}
}
