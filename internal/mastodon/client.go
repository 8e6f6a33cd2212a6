package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"fedimux/internal/model"
)

// Client talks to the REST API of whichever fediverse server issued an
// account's tokens. One client serves every signed-in account; the domain is
// passed per call.
type Client struct {
	httpClient *http.Client
}

// Relationship is the server's authoritative view of one edge, returned by
// follow and unfollow calls. The server is the source of truth: a successful
// toggle overwrites the local optimistic edge with these values.
type Relationship struct {
	ID             string `json:"id"`
	Following      bool   `json:"following"`
	Requested      bool   `json:"requested"`
	ShowingReblogs bool   `json:"showing_reblogs"`
	FollowedBy     bool   `json:"followed_by"`
	Muting         bool   `json:"muting"`
	Blocking       bool   `json:"blocking"`
}

// FollowQuery selects the follow-endpoint variant: unfollow, plain follow,
// or follow carrying a reblogs-visibility flag.
type FollowQuery struct {
	Unfollow bool
	Reblogs  *bool
}

// Notification is one entry of an account's notification timeline. The
// router only needs it to trigger a refresh, so most fields stay opaque.
type Notification struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Account   json.RawMessage `json:"account,omitempty"`
	Status    json.RawMessage `json:"status,omitempty"`
}

// NewClient creates a Client with a bounded request timeout. Timeouts
// surface as ordinary request errors, which toggle callers treat as failure.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Follow issues exactly one follow or unfollow request and returns the
// authoritative relationship plus the server's response time, used to
// timestamp the local commit.
func (c *Client) Follow(ctx context.Context, domain, accountID string, query FollowQuery, accessToken string) (*Relationship, time.Time, error) {
	action := "follow"
	if query.Unfollow {
		action = "unfollow"
	}
	endpoint := fmt.Sprintf("https://%s/api/v1/accounts/%s/%s", domain, url.PathEscape(accountID), action)

	var body io.Reader
	if !query.Unfollow && query.Reblogs != nil {
		payload, err := json.Marshal(map[string]bool{"reblogs": *query.Reblogs})
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("marshal follow query: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	respBody, networkDate, err := c.do(ctx, http.MethodPost, endpoint, accessToken, body)
	if err != nil {
		log.Printf("[Mastodon] Follow FAILED: domain=%s account=%s action=%s err=%v", domain, accountID, action, err)
		return nil, time.Time{}, err
	}

	var relationship Relationship
	if err := json.Unmarshal(respBody, &relationship); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode relationship: %w", err)
	}

	log.Printf("[Mastodon] Follow OK: domain=%s account=%s action=%s following=%t requested=%t",
		domain, accountID, action, relationship.Following, relationship.Requested)
	return &relationship, networkDate, nil
}

// Notifications fetches the account's notification timeline with scope
// "everything". maxID pages backwards when non-empty.
func (c *Client) Notifications(ctx context.Context, domain, maxID, accessToken string) ([]Notification, error) {
	endpoint := fmt.Sprintf("https://%s/api/v1/notifications", domain)
	if maxID != "" {
		endpoint += "?max_id=" + url.QueryEscape(maxID)
	}

	respBody, _, err := c.do(ctx, http.MethodGet, endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var notifications []Notification
	if err := json.Unmarshal(respBody, &notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}

	log.Printf("[Mastodon] Notifications OK: domain=%s count=%d", domain, len(notifications))
	return notifications, nil
}

// CreateSubscription registers the web-push subscription for an account.
func (c *Client) CreateSubscription(ctx context.Context, domain, accessToken string, query model.SubscriptionQuery) error {
	endpoint := fmt.Sprintf("https://%s/api/v1/push/subscription", domain)

	payload, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("marshal subscription query: %w", err)
	}

	if _, _, err := c.do(ctx, http.MethodPost, endpoint, accessToken, bytes.NewReader(payload)); err != nil {
		log.Printf("[Mastodon] CreateSubscription FAILED: domain=%s err=%v", domain, err)
		return err
	}

	log.Printf("[Mastodon] CreateSubscription OK: domain=%s", domain)
	return nil
}

// CancelSubscription removes the push subscription held by an access token.
// The response carries nothing useful beyond success or failure.
func (c *Client) CancelSubscription(ctx context.Context, domain, accessToken string) error {
	endpoint := fmt.Sprintf("https://%s/api/v1/push/subscription", domain)

	if _, _, err := c.do(ctx, http.MethodDelete, endpoint, accessToken, nil); err != nil {
		log.Printf("[Mastodon] CancelSubscription FAILED: domain=%s err=%v", domain, err)
		return err
	}

	log.Printf("[Mastodon] CancelSubscription OK: domain=%s", domain)
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint, accessToken string, body io.Reader) ([]byte, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, time.Time{}, fmt.Errorf("server error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	// The Date header timestamps local commits; fall back to local time
	// when the server omits it.
	networkDate := time.Now()
	if parsed, err := http.ParseTime(resp.Header.Get("Date")); err == nil {
		networkDate = parsed
	}

	return respBody, networkDate, nil
}
