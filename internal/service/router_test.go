package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fedimux/internal/mastodon"
	"fedimux/internal/model"
)

// memoryCounterStore is an in-memory stand-in for the Redis counter store,
// shared with the badge aggregator tests.
type memoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]int
	badge    int
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{counters: make(map[string]int)}
}

func (s *memoryCounterStore) Get(_ context.Context, accessToken string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[accessToken], nil
}

func (s *memoryCounterStore) Set(_ context.Context, accessToken string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[accessToken] = count
	return nil
}

func (s *memoryCounterStore) Increment(_ context.Context, accessToken string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[accessToken] += delta
	return s.counters[accessToken], nil
}

func (s *memoryCounterStore) Delete(_ context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, accessToken)
	return nil
}

func (s *memoryCounterStore) SetBadgeTotal(_ context.Context, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badge = total
	return nil
}

func (s *memoryCounterStore) BadgeTotal(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badge, nil
}

type mockFetcher struct {
	fetchFn    func(ctx context.Context, domain, maxID, accessToken string) ([]mastodon.Notification, error)
	fetchCalls int
}

func (m *mockFetcher) Notifications(ctx context.Context, domain, maxID, accessToken string) ([]mastodon.Notification, error) {
	m.fetchCalls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, domain, maxID, accessToken)
	}
	return nil, nil
}

type mockCleaner struct {
	cancelFn    func(ctx context.Context, accessToken string) error
	cancelCalls []string
}

func (m *mockCleaner) CancelIfDetached(ctx context.Context, accessToken string) error {
	m.cancelCalls = append(m.cancelCalls, accessToken)
	if m.cancelFn != nil {
		return m.cancelFn(ctx, accessToken)
	}
	return nil
}

type mockInvalidator struct {
	invalidations int
}

func (m *mockInvalidator) Invalidate() {
	m.invalidations++
}

func newTestRouter(counters *memoryCounterStore, fetcher *mockFetcher, cleaner *mockCleaner, badge *mockInvalidator) (*PushRouter, *NotificationRegistry) {
	registry := NewNotificationRegistry()
	router := NewPushRouter(signedInAccounts(testAccount), registry, counters, fetcher, cleaner, badge)
	return router, registry
}

func TestPushRouter_Handle_KnownAccount(t *testing.T) {
	counters := newMemoryCounterStore()
	fetcher := &mockFetcher{}
	cleaner := &mockCleaner{}
	badge := &mockInvalidator{}
	router, registry := newTestRouter(counters, fetcher, cleaner, badge)

	err := router.Handle(context.Background(), model.PushEnvelope{AccessToken: testAccount.AccessToken})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// The envelope landed on its account: counter bumped, registry entry
	// created, timeline refreshed, badge invalidated.
	if count, _ := counters.Get(context.Background(), testAccount.AccessToken); count != 1 {
		t.Errorf("counter = %d, want 1", count)
	}
	if registry.Len() != 1 {
		t.Errorf("registry entries = %d, want 1", registry.Len())
	}
	if fetcher.fetchCalls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.fetchCalls)
	}
	if badge.invalidations != 1 {
		t.Errorf("badge invalidations = %d, want 1", badge.invalidations)
	}
	if len(cleaner.cancelCalls) != 0 {
		t.Error("no cleanup may run for a signed-in account")
	}
}

func TestPushRouter_Handle_UnknownToken(t *testing.T) {
	counters := newMemoryCounterStore()
	fetcher := &mockFetcher{}
	cleaner := &mockCleaner{}
	badge := &mockInvalidator{}
	router, registry := newTestRouter(counters, fetcher, cleaner, badge)

	err := router.Handle(context.Background(), model.PushEnvelope{AccessToken: "stale-token"})
	if err != nil {
		t.Fatalf("an unroutable envelope is consumed, not retried: %v", err)
	}

	if len(cleaner.cancelCalls) != 1 || cleaner.cancelCalls[0] != "stale-token" {
		t.Errorf("cleanup should run once for the stale token, got %v", cleaner.cancelCalls)
	}
	if count, _ := counters.Get(context.Background(), "stale-token"); count != 0 {
		t.Error("no counter may be bumped for an unroutable envelope")
	}
	if registry.Len() != 0 {
		t.Error("no registry entry may be created for an unroutable envelope")
	}
	if fetcher.fetchCalls != 0 {
		t.Error("no timeline refresh for an unroutable envelope")
	}

	// The badge signal fires unconditionally.
	if badge.invalidations != 1 {
		t.Errorf("badge invalidations = %d, want 1", badge.invalidations)
	}
}

func TestPushRouter_Handle_CleanupFailureSwallowed(t *testing.T) {
	counters := newMemoryCounterStore()
	fetcher := &mockFetcher{}
	cleaner := &mockCleaner{
		cancelFn: func(_ context.Context, _ string) error {
			return errors.New("connection refused")
		},
	}
	badge := &mockInvalidator{}
	router, _ := newTestRouter(counters, fetcher, cleaner, badge)

	err := router.Handle(context.Background(), model.PushEnvelope{AccessToken: "stale-token"})
	if err != nil {
		t.Fatalf("cleanup failure must not fail the envelope: %v", err)
	}
	if badge.invalidations != 1 {
		t.Error("badge invalidation must fire even when cleanup fails")
	}
}

func TestPushRouter_Handle_FetchFailureStillCounts(t *testing.T) {
	counters := newMemoryCounterStore()
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, _, _, _ string) ([]mastodon.Notification, error) {
			return nil, errors.New("502 bad gateway")
		},
	}
	cleaner := &mockCleaner{}
	badge := &mockInvalidator{}
	router, _ := newTestRouter(counters, fetcher, cleaner, badge)

	err := router.Handle(context.Background(), model.PushEnvelope{AccessToken: testAccount.AccessToken})
	if err != nil {
		t.Fatalf("refresh failure must not fail the envelope: %v", err)
	}
	if count, _ := counters.Get(context.Background(), testAccount.AccessToken); count != 1 {
		t.Errorf("counter = %d, want 1 despite refresh failure", count)
	}
	if badge.invalidations != 1 {
		t.Error("badge invalidation must fire despite refresh failure")
	}
}

// Repeated pushes for the same account reuse one registry entry and keep
// counting.
func TestPushRouter_Handle_RepeatedPushes(t *testing.T) {
	counters := newMemoryCounterStore()
	fetcher := &mockFetcher{}
	cleaner := &mockCleaner{}
	badge := &mockInvalidator{}
	router, registry := newTestRouter(counters, fetcher, cleaner, badge)

	for i := 0; i < 3; i++ {
		if err := router.Handle(context.Background(), model.PushEnvelope{AccessToken: testAccount.AccessToken}); err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
	}

	if count, _ := counters.Get(context.Background(), testAccount.AccessToken); count != 3 {
		t.Errorf("counter = %d, want 3", count)
	}
	if registry.Len() != 1 {
		t.Errorf("registry entries = %d, want 1", registry.Len())
	}
	if badge.invalidations != 3 {
		t.Errorf("badge invalidations = %d, want 3", badge.invalidations)
	}
}
