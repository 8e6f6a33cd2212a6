package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"fedimux/internal/model"
	"fedimux/internal/repository"
)

// FCMBadgeSink delivers badge recomputes to registered devices as silent
// high-priority pushes. The APNS badge field carries the aggregate count so
// the app icon updates without the app running; the shortcut list rides
// along as a data payload for clients to rebuild their quick actions.
type FCMBadgeSink struct {
	client  *messaging.Client
	devices repository.DeviceTokenRepository
}

// NewFCMBadgeSink creates the sink from service-account credentials.
// The private key in .env has literal "\n" sequences, so they are replaced
// with real newlines before handing the PEM to the SDK.
func NewFCMBadgeSink(ctx context.Context, projectID, clientEmail, privateKey string, devices repository.DeviceTokenRepository) (*FCMBadgeSink, error) {
	privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)

	opt := option.WithCredentialsJSON([]byte(credsJSON))
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log.Printf("[FCM] Initialized for project: %s", projectID)
	return &FCMBadgeSink{client: client, devices: devices}, nil
}

// PublishBadge sends the aggregate badge to every registered device.
func (s *FCMBadgeSink) PublishBadge(ctx context.Context, total int) error {
	return s.send(ctx, map[string]string{"badge": strconv.Itoa(total)}, &total)
}

// PublishShortcuts ships the unread-shortcut list as a data-only message.
func (s *FCMBadgeSink) PublishShortcuts(ctx context.Context, items []model.UnreadShortcut) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal shortcuts: %w", err)
	}
	return s.send(ctx, map[string]string{"shortcuts": string(payload)}, nil)
}

func (s *FCMBadgeSink) send(ctx context.Context, data map[string]string, badge *int) error {
	devices, err := s.devices.List(ctx)
	if err != nil {
		return fmt.Errorf("list device tokens: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, len(devices))
	for i, d := range devices {
		tokens[i] = d.Token
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Badge:            badge,
					ContentAvailable: true,
				},
			},
		},
	}

	response, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("send multicast: %w", err)
	}

	log.Printf("[FCM] Sent to %d tokens: %d success, %d failure",
		len(tokens), response.SuccessCount, response.FailureCount)

	// Dead tokens are dropped so they stop accumulating failures.
	for i, resp := range response.Responses {
		if resp.Success {
			continue
		}
		if messaging.IsUnregistered(resp.Error) {
			if derr := s.devices.Delete(ctx, tokens[i]); derr != nil {
				log.Printf("[FCM] failed to drop dead token: %v", derr)
			}
			continue
		}
		log.Printf("[FCM] Token %d failed: %v", i, resp.Error)
	}

	return nil
}
