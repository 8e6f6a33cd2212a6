package model

import (
	"encoding/json"
	"errors"
	"time"
)

// PushEnvelope is one inbound push delivery. Produced by the push transport,
// tagged with the access token of the recipient account, consumed exactly
// once by the router.
type PushEnvelope struct {
	AccessToken    string          `json:"access_token"`
	NotificationID *int64          `json:"notification_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// SubscriptionRecord associates an access token with the server that issued
// its push subscription. Created on subscribe, read when an envelope arrives
// for a signed-out token, deleted once the subscription is cancelled.
type SubscriptionRecord struct {
	ID          int64     `db:"id" json:"id"`
	AccessToken string    `db:"access_token" json:"-"`
	Domain      string    `db:"domain" json:"domain"`
	Endpoint    string    `db:"endpoint" json:"endpoint"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// KeyMaterial is the app-wide web-push key set: the delivery endpoint base
// plus the P-256 public key and auth secret sent to the server on subscribe.
type KeyMaterial struct {
	Endpoint string
	P256DH   []byte
	Auth     []byte
}

// SubscriptionKeys are the web-push keys as the server expects them,
// base64url-encoded.
type SubscriptionKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscriptionAlerts selects which notification kinds the server pushes.
type SubscriptionAlerts struct {
	Follow        bool `json:"follow"`
	FollowRequest bool `json:"follow_request"`
	Favourite     bool `json:"favourite"`
	Reblog        bool `json:"reblog"`
	Mention       bool `json:"mention"`
}

// QuerySubscription is the subscription half of a create-subscription body.
type QuerySubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// QueryData is the delivery policy half of a create-subscription body.
type QueryData struct {
	Alerts SubscriptionAlerts `json:"alerts"`
}

// SubscriptionQuery is the outbound body of a push-subscription create call.
type SubscriptionQuery struct {
	Subscription QuerySubscription `json:"subscription"`
	Data         QueryData         `json:"data"`
}

// DeviceToken is a registered device that receives badge updates.
type DeviceToken struct {
	ID        int64     `db:"id" json:"id"`
	Token     string    `db:"token" json:"-"`
	Platform  string    `db:"platform" json:"platform"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

var ErrSubscriptionNotFound = errors.New("push subscription not found")
