package handler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fedimux/internal/httputil"
	"fedimux/internal/model"
	"fedimux/internal/queue"
	"fedimux/internal/repository"
	"fedimux/internal/service"
)

// PushPublisher enqueues inbound envelopes for the worker pipeline.
type PushPublisher interface {
	PublishPushReceived(ctx context.Context, event queue.PushEvent) (string, error)
}

type PushHandler struct {
	publisher     PushPublisher
	subscriptions *service.SubscriptionService
	devices       repository.DeviceTokenRepository
}

func NewPushHandler(
	publisher PushPublisher,
	subscriptions *service.SubscriptionService,
	devices repository.DeviceTokenRepository,
) *PushHandler {
	return &PushHandler{
		publisher:     publisher,
		subscriptions: subscriptions,
		devices:       devices,
	}
}

// Receive ingests one push envelope. The envelope is acknowledged as soon
// as it is durably enqueued; routing happens in the workers.
func (h *PushHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var envelope model.PushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if envelope.AccessToken == "" {
		httputil.WriteBadRequest(w, "access_token is required")
		return
	}

	event := queue.NewPushReceivedEvent(envelope)
	messageID, err := h.publisher.PublishPushReceived(r.Context(), event)
	if err != nil {
		log.Printf("[ERROR] Receive push handler: %v", err)
		httputil.WriteInternalError(w, "Failed to enqueue push")
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"event_id":   event.ID,
		"message_id": messageID,
	})
}

type subscribeRequest struct {
	DeviceToken string `json:"device_token"` // hex-encoded
}

// Subscribe creates a push subscription on the account's home server for
// the given device token.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	userID := chi.URLParam(r, "userID")

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	deviceToken, err := hex.DecodeString(req.DeviceToken)
	if err != nil || len(deviceToken) == 0 {
		httputil.WriteBadRequest(w, "device_token must be non-empty hex")
		return
	}

	if err := h.subscriptions.Subscribe(r.Context(), domain, userID, deviceToken); err != nil {
		switch {
		case errors.Is(err, model.ErrAccountNotFound):
			httputil.WriteNotFound(w, err.Error())
		default:
			log.Printf("[ERROR] Subscribe handler: %v", err)
			httputil.WriteBadGateway(w, "Failed to create push subscription")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "Subscription created",
	})
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// RegisterDevice stores a device token that receives badge pushes.
func (h *PushHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Token == "" {
		httputil.WriteBadRequest(w, "token is required")
		return
	}
	if req.Platform == "" {
		req.Platform = model.PlatformIOS
	}

	if err := h.devices.Upsert(r.Context(), req.Token, req.Platform); err != nil {
		log.Printf("[ERROR] RegisterDevice handler: %v", err)
		httputil.WriteInternalError(w, "Failed to register device")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device registered",
	})
}
