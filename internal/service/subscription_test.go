package service

import (
	"context"
	"errors"
	"testing"

	"fedimux/internal/model"
)

type mockSubscriptionRepository struct {
	upsertFn           func(ctx context.Context, record *model.SubscriptionRecord) error
	getByAccessTokenFn func(ctx context.Context, accessToken string) (*model.SubscriptionRecord, error)
	deleteFn           func(ctx context.Context, accessToken string) error

	deleteCalls int
}

func (m *mockSubscriptionRepository) Upsert(ctx context.Context, record *model.SubscriptionRecord) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, record)
	}
	return nil
}

func (m *mockSubscriptionRepository) GetByAccessToken(ctx context.Context, accessToken string) (*model.SubscriptionRecord, error) {
	if m.getByAccessTokenFn != nil {
		return m.getByAccessTokenFn(ctx, accessToken)
	}
	return nil, model.ErrSubscriptionNotFound
}

func (m *mockSubscriptionRepository) Delete(ctx context.Context, accessToken string) error {
	m.deleteCalls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, accessToken)
	}
	return nil
}

type mockSubscriptionClient struct {
	createFn func(ctx context.Context, domain, accessToken string, query model.SubscriptionQuery) error
	cancelFn func(ctx context.Context, domain, accessToken string) error

	createCalls int
	cancelCalls int
}

func (m *mockSubscriptionClient) CreateSubscription(ctx context.Context, domain, accessToken string, query model.SubscriptionQuery) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, domain, accessToken, query)
	}
	return nil
}

func (m *mockSubscriptionClient) CancelSubscription(ctx context.Context, domain, accessToken string) error {
	m.cancelCalls++
	if m.cancelFn != nil {
		return m.cancelFn(ctx, domain, accessToken)
	}
	return nil
}

var testKeys = model.KeyMaterial{
	Endpoint: "https://push.fedimux.example/relay/",
	P256DH:   []byte{0x04, 0x01, 0x02, 0x03},
	Auth:     []byte{0xaa, 0xbb},
}

func TestBuildSubscribeQuery(t *testing.T) {
	deviceToken := []byte{0xde, 0xad, 0xbe, 0xef}

	query := BuildSubscribeQuery(deviceToken, testKeys, DefaultAlerts)

	// Endpoint is the base joined with the hex device token, no double slash.
	want := "https://push.fedimux.example/relay/deadbeef"
	if query.Subscription.Endpoint != want {
		t.Errorf("endpoint = %q, want %q", query.Subscription.Endpoint, want)
	}

	// Keys travel base64url without padding.
	if query.Subscription.Keys.P256DH != "BAECAw" {
		t.Errorf("p256dh = %q, want %q", query.Subscription.Keys.P256DH, "BAECAw")
	}
	if query.Subscription.Keys.Auth != "qrs" {
		t.Errorf("auth = %q, want %q", query.Subscription.Keys.Auth, "qrs")
	}

	if query.Data.Alerts != DefaultAlerts {
		t.Errorf("alerts = %+v, want defaults", query.Data.Alerts)
	}
}

func TestSubscriptionService_Subscribe(t *testing.T) {
	var stored *model.SubscriptionRecord
	records := &mockSubscriptionRepository{
		upsertFn: func(_ context.Context, record *model.SubscriptionRecord) error {
			stored = record
			return nil
		},
	}
	client := &mockSubscriptionClient{}
	svc := NewSubscriptionService(signedInAccounts(testAccount), records, client, testKeys)

	err := svc.Subscribe(context.Background(), "mastodon.example", "u1", []byte{0x01})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if client.createCalls != 1 {
		t.Errorf("expected exactly one remote create, got %d", client.createCalls)
	}
	if stored == nil {
		t.Fatal("expected a subscription record to be stored")
	}
	if stored.AccessToken != testAccount.AccessToken || stored.Domain != testAccount.Domain {
		t.Errorf("record should tie the access token to its issuing domain: %+v", stored)
	}
}

func TestSubscriptionService_Subscribe_RemoteFailureStoresNothing(t *testing.T) {
	records := &mockSubscriptionRepository{
		upsertFn: func(_ context.Context, _ *model.SubscriptionRecord) error {
			t.Error("nothing may be stored when the remote create fails")
			return nil
		},
	}
	client := &mockSubscriptionClient{
		createFn: func(_ context.Context, _, _ string, _ model.SubscriptionQuery) error {
			return errors.New("403 forbidden")
		},
	}
	svc := NewSubscriptionService(signedInAccounts(testAccount), records, client, testKeys)

	if err := svc.Subscribe(context.Background(), "mastodon.example", "u1", []byte{0x01}); err == nil {
		t.Fatal("expected error from failed remote create")
	}
}

func TestSubscriptionService_CancelIfDetached(t *testing.T) {
	record := &model.SubscriptionRecord{
		AccessToken: "stale-token",
		Domain:      "old.example",
	}

	t.Run("account still signed in", func(t *testing.T) {
		records := &mockSubscriptionRepository{}
		client := &mockSubscriptionClient{}
		svc := NewSubscriptionService(signedInAccounts(testAccount), records, client, testKeys)

		if err := svc.CancelIfDetached(context.Background(), testAccount.AccessToken); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if client.cancelCalls != 0 {
			t.Error("a signed-in account's subscription must not be cancelled")
		}
	})

	t.Run("no record for token", func(t *testing.T) {
		records := &mockSubscriptionRepository{}
		client := &mockSubscriptionClient{}
		svc := NewSubscriptionService(signedInAccounts(testAccount), records, client, testKeys)

		if err := svc.CancelIfDetached(context.Background(), "unknown-token"); err != nil {
			t.Fatalf("missing record is not an error, got: %v", err)
		}
		if client.cancelCalls != 0 {
			t.Error("nothing to cancel without a record")
		}
	})

	t.Run("cancel succeeds, record deleted", func(t *testing.T) {
		records := &mockSubscriptionRepository{
			getByAccessTokenFn: func(_ context.Context, _ string) (*model.SubscriptionRecord, error) {
				return record, nil
			},
		}
		var cancelledDomain string
		client := &mockSubscriptionClient{
			cancelFn: func(_ context.Context, domain, _ string) error {
				cancelledDomain = domain
				return nil
			},
		}
		svc := NewSubscriptionService(signedInAccounts(testAccount), records, client, testKeys)

		if err := svc.CancelIfDetached(context.Background(), "stale-token"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if cancelledDomain != "old.example" {
			t.Errorf("cancel must target the domain from the record, got %q", cancelledDomain)
		}
		if records.deleteCalls != 1 {
			t.Errorf("record should be deleted after a successful cancel, got %d deletes", records.deleteCalls)
		}
	})

	t.Run("cancel fails, record kept for retry", func(t *testing.T) {
		records := &mockSubscriptionRepository{
			getByAccessTokenFn: func(_ context.Context, _ string) (*model.SubscriptionRecord, error) {
				return record, nil
			},
		}
		client := &mockSubscriptionClient{
			cancelFn: func(_ context.Context, _, _ string) error {
				return errors.New("connection refused")
			},
		}
		svc := NewSubscriptionService(signedInAccounts(testAccount), records, client, testKeys)

		if err := svc.CancelIfDetached(context.Background(), "stale-token"); err == nil {
			t.Fatal("expected error from failed cancel")
		}
		if records.deleteCalls != 0 {
			t.Error("record must survive a failed cancel so the next push retries it")
		}
	})
}
